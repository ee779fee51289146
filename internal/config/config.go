package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EngineWkhtmltopdf = "wkhtmltopdf"
	EngineChrome      = "chrome"
)

// PostgresConfig locates the API token table.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns a postgres:// URL for p. A Host that is already such a URL
// is used as is; otherwise Port defaults to 5432 unless Host carries one.
func (p PostgresConfig) DSN() (string, error) {
	if strings.HasPrefix(p.Host, "postgres://") || strings.HasPrefix(p.Host, "postgresql://") {
		return p.Host, nil
	}
	for _, f := range []struct{ name, value string }{
		{"host", p.Host}, {"database", p.Database}, {"user", p.User},
	} {
		if f.value == "" {
			return "", fmt.Errorf("postgres %s is empty", f.name)
		}
	}

	addr := p.Host
	if _, _, err := net.SplitHostPort(addr); err != nil {
		port := p.Port
		if port == 0 {
			port = 5432
		}
		addr = net.JoinHostPort(strings.Trim(addr, "[]"), strconv.Itoa(port))
	}

	u := url.URL{Scheme: "postgres", Host: addr, Path: "/" + p.Database, User: url.User(p.User)}
	if p.Password != "" {
		u.User = url.UserPassword(p.User, p.Password)
	}
	if p.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {p.SSLMode}}.Encode()
	}
	return u.String(), nil
}

// Config is the full service configuration.
type Config struct {
	Server struct {
		Host           string `yaml:"host"`
		Port           string `yaml:"port"`
		Prefork        bool   `yaml:"prefork"`
		BodyLimitBytes int    `yaml:"body_limit_bytes"`
		// AllowOrigins is a comma-separated CORS origin list; empty allows all.
		AllowOrigins string `yaml:"allow_origins"`
		Monitor      bool   `yaml:"monitor"`
	} `yaml:"server"`

	Logger struct {
		File       string `yaml:"file"`
		Level      string `yaml:"level"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logger"`

	Storage struct {
		Bucket    string `yaml:"bucket"`
		Endpoint  string `yaml:"endpoint"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
		Region    string `yaml:"region"`
		UseSSL    bool   `yaml:"use_ssl"`
	} `yaml:"storage"`

	Conversion struct {
		// Project prefixes every stored key: <project>/<folder><file>.
		Project       string `yaml:"project"`
		DefaultFolder string `yaml:"default_folder"`
		ScratchDir    string `yaml:"scratch_dir"`
		KeepScratch   bool   `yaml:"keep_scratch"`
	} `yaml:"conversion"`

	Renderer struct {
		Engine          string        `yaml:"engine"`
		Binary          string        `yaml:"binary"`
		Timeout         time.Duration `yaml:"timeout"`
		FailOnExitCode  bool          `yaml:"fail_on_exit_code"`
		ChromePath      string        `yaml:"chrome_path"`
		ChromeNoSandbox bool          `yaml:"chrome_no_sandbox"`
	} `yaml:"renderer"`

	Auth struct {
		Enabled        bool           `yaml:"enabled"`
		Postgres       PostgresConfig `yaml:"postgres"`
		ReloadInterval time.Duration  `yaml:"reload_interval"`
	} `yaml:"auth"`

	RateLimiter struct {
		Interval          time.Duration `yaml:"interval"`
		EnableUserLimiter bool          `yaml:"enable_user_limiter"`
		UserLimit         int           `yaml:"user_limit"`
	} `yaml:"rate_limiter"`

	Cache struct {
		RedisHost   string `yaml:"redis_host"`
		RateLimitDB int    `yaml:"redis_rate_db"`
	} `yaml:"cache"`
}

// Load reads the file named by CONFIG_PATH (default config.yaml).
func Load() Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	return LoadFrom(path)
}

// LoadFrom reads the YAML file at path, applies defaults and environment
// overrides and validates the result. A missing file is not an error; an
// invalid configuration panics.
func LoadFrom(path string) Config {
	cfg, err := Parse(path)
	if err != nil {
		panic(fmt.Sprintf("invalid config: %v", err))
	}
	return cfg
}

// DefaultFolder is used when neither the file nor the environment sets one.
const DefaultFolder = "tmp/"

// Parse is LoadFrom without the panic.
func Parse(path string) (Config, error) {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("load env file: %w", err)
		}
	} else {
		// .env is optional
		_ = godotenv.Load()
	}

	// Seeded before decoding so an explicit empty default_folder survives.
	var cfg Config
	cfg.Conversion.DefaultFolder = DefaultFolder
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = ":8080"
	}
	if c.Server.BodyLimitBytes == 0 {
		c.Server.BodyLimitBytes = 6 * 1024 * 1024
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Conversion.ScratchDir == "" {
		c.Conversion.ScratchDir = os.TempDir()
	}
	if c.Renderer.Engine == "" {
		c.Renderer.Engine = EngineWkhtmltopdf
	}
	if c.Renderer.Binary == "" {
		c.Renderer.Binary = "wkhtmltopdf"
	}
	if c.Storage.Region == "" {
		c.Storage.Region = "us-east-1"
	}
	if c.Auth.ReloadInterval == 0 {
		c.Auth.ReloadInterval = time.Minute
	}
	if c.RateLimiter.Interval == 0 {
		c.RateLimiter.Interval = time.Minute
	}
}

func (c *Config) applyEnv() error {
	setString(&c.Storage.Bucket, "BUCKET_NAME")
	setString(&c.Conversion.Project, "PROJECT_NAME")
	// An empty DEFAULT_BUCKET_FOLDER is meaningful: keys land at project root.
	if v, ok := os.LookupEnv("DEFAULT_BUCKET_FOLDER"); ok {
		c.Conversion.DefaultFolder = v
	}
	setString(&c.Conversion.ScratchDir, "SCRATCH_DIR")
	setString(&c.Storage.Endpoint, "S3_ENDPOINT")
	setString(&c.Storage.AccessKey, "S3_ACCESS_KEY")
	setString(&c.Storage.SecretKey, "S3_SECRET_KEY")
	setString(&c.Storage.Region, "S3_REGION")
	setString(&c.Renderer.Engine, "RENDER_ENGINE")
	setString(&c.Renderer.Binary, "WKHTMLTOPDF_BIN")
	setString(&c.Renderer.ChromePath, "CHROME_BIN")
	setString(&c.Cache.RedisHost, "REDIS_HOST")
	setString(&c.Logger.Level, "LOG_LEVEL")

	if v := os.Getenv("S3_USE_SSL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("S3_USE_SSL: %w", err)
		}
		c.Storage.UseSSL = b
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Storage.Bucket) == "" {
		return errors.New("storage bucket is required (BUCKET_NAME)")
	}
	if strings.TrimSpace(c.Conversion.Project) == "" {
		return errors.New("project name is required (PROJECT_NAME)")
	}
	switch c.Renderer.Engine {
	case EngineWkhtmltopdf, EngineChrome:
	default:
		return fmt.Errorf("unknown renderer engine %q", c.Renderer.Engine)
	}
	if c.Renderer.Timeout < 0 {
		return errors.New("renderer timeout must not be negative")
	}
	if c.RateLimiter.UserLimit < 0 {
		return errors.New("user_limit must not be negative")
	}
	if c.RateLimiter.Interval <= 0 {
		return errors.New("rate limiter interval must be positive")
	}
	if c.Auth.Enabled {
		if c.Auth.Postgres.Host == "" {
			return errors.New("auth enabled but postgres host is empty")
		}
		if c.Auth.ReloadInterval <= 0 {
			return errors.New("token reload interval must be positive")
		}
	}
	return nil
}
