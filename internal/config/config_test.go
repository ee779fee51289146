package config

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadFrom_Valid(t *testing.T) {
	p := writeConfig(t, `storage:
  bucket: "pdfs"
  endpoint: "s3.example.com"
conversion:
  project: "billing"
renderer:
  timeout: 30s
  fail_on_exit_code: true
rate_limiter:
  interval: 1h
  user_limit: 20
`)
	cfg := LoadFrom(p)
	if cfg.Storage.Bucket != "pdfs" || cfg.Conversion.Project != "billing" {
		t.Fatalf("unexpected storage/project: %+v %+v", cfg.Storage, cfg.Conversion)
	}
	if cfg.Conversion.DefaultFolder != "tmp/" {
		t.Fatalf("expected default folder tmp/, got %q", cfg.Conversion.DefaultFolder)
	}
	if cfg.Renderer.Timeout != 30*time.Second || !cfg.Renderer.FailOnExitCode {
		t.Fatalf("unexpected renderer config: %+v", cfg.Renderer)
	}
	if cfg.Renderer.Engine != EngineWkhtmltopdf || cfg.Renderer.Binary != "wkhtmltopdf" {
		t.Fatalf("unexpected renderer defaults: %+v", cfg.Renderer)
	}
	if cfg.RateLimiter.UserLimit != 20 {
		t.Fatalf("unexpected user_limit: %d", cfg.RateLimiter.UserLimit)
	}
}

func TestLoadFrom_EnvironmentOverridesFile(t *testing.T) {
	p := writeConfig(t, "storage:\n  bucket: from-file\nconversion:\n  project: from-file\n")
	t.Setenv("BUCKET_NAME", "from-env")
	t.Setenv("PROJECT_NAME", "proj")
	t.Setenv("DEFAULT_BUCKET_FOLDER", "reports/")
	t.Setenv("S3_USE_SSL", "true")
	t.Setenv("WKHTMLTOPDF_BIN", "/opt/bin/wkhtmltopdf")

	cfg := LoadFrom(p)
	if cfg.Storage.Bucket != "from-env" || cfg.Conversion.Project != "proj" {
		t.Fatalf("env did not override: %+v %+v", cfg.Storage, cfg.Conversion)
	}
	if cfg.Conversion.DefaultFolder != "reports/" {
		t.Fatalf("unexpected default folder %q", cfg.Conversion.DefaultFolder)
	}
	if !cfg.Storage.UseSSL {
		t.Fatalf("expected S3_USE_SSL to enable ssl")
	}
	if cfg.Renderer.Binary != "/opt/bin/wkhtmltopdf" {
		t.Fatalf("unexpected binary %q", cfg.Renderer.Binary)
	}
}

func TestLoadFrom_EmptyDefaultFolderIsKept(t *testing.T) {
	t.Setenv("BUCKET_NAME", "b")
	t.Setenv("PROJECT_NAME", "p")

	p := writeConfig(t, "conversion:\n  default_folder: \"\"\n")
	if got := LoadFrom(p).Conversion.DefaultFolder; got != "" {
		t.Fatalf("expected empty folder from file, got %q", got)
	}

	t.Setenv("DEFAULT_BUCKET_FOLDER", "")
	if got := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml")).Conversion.DefaultFolder; got != "" {
		t.Fatalf("expected empty folder from env, got %q", got)
	}
}

func TestLoadFrom_MissingFileUsesEnvOnly(t *testing.T) {
	t.Setenv("BUCKET_NAME", "b")
	t.Setenv("PROJECT_NAME", "p")
	cfg := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	if cfg.Storage.Bucket != "b" || cfg.Conversion.ScratchDir == "" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadFrom_PanicsOnInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yml  string
	}{
		{name: "missing bucket", yml: "conversion:\n  project: p\n"},
		{name: "missing project", yml: "storage:\n  bucket: b\n"},
		{name: "unknown engine", yml: "storage:\n  bucket: b\nconversion:\n  project: p\nrenderer:\n  engine: prince\n"},
		{name: "negative timeout", yml: "storage:\n  bucket: b\nconversion:\n  project: p\nrenderer:\n  timeout: -1s\n"},
		{name: "negative user limit", yml: "storage:\n  bucket: b\nconversion:\n  project: p\nrate_limiter:\n  user_limit: -1\n"},
		{name: "auth without postgres", yml: "storage:\n  bucket: b\nconversion:\n  project: p\nauth:\n  enabled: true\n"},
		{name: "broken yaml", yml: "storage: [\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := writeConfig(t, tc.yml)
			defer func() {
				if recover() == nil {
					t.Fatalf("expected panic")
				}
			}()
			_ = LoadFrom(p)
		})
	}
}

func TestLoad_UsesConfigPathEnv(t *testing.T) {
	p := writeConfig(t, "storage:\n  bucket: env-bucket\nconversion:\n  project: p\n")
	t.Setenv("CONFIG_PATH", p)
	cfg := Load()
	if cfg.Storage.Bucket != "env-bucket" {
		t.Fatalf("expected CONFIG_PATH to be used")
	}
}

func TestParse_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	if err := os.WriteFile(envFile, []byte("BUCKET_NAME=dotenv-bucket\nPROJECT_NAME=dotenv\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("ENV_FILE", envFile)
	// t.Setenv restores these after the test; godotenv only sets unset keys.
	t.Setenv("BUCKET_NAME", "")
	t.Setenv("PROJECT_NAME", "")
	os.Unsetenv("BUCKET_NAME")
	os.Unsetenv("PROJECT_NAME")

	cfg, err := Parse(filepath.Join(dir, "absent.yaml"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Storage.Bucket != "dotenv-bucket" || cfg.Conversion.Project != "dotenv" {
		t.Fatalf("expected values from env file, got %+v %+v", cfg.Storage, cfg.Conversion)
	}

	t.Setenv("ENV_FILE", filepath.Join(dir, "missing.env"))
	if _, err := Parse(filepath.Join(dir, "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing env file")
	}
}

func TestPostgresDSN_BuildsURL(t *testing.T) {
	dsn, err := PostgresConfig{
		Host:     "localhost",
		Database: "pdf",
		User:     "user",
		Password: "p@ss word",
		SSLMode:  "disable",
	}.DSN()
	if err != nil {
		t.Fatalf("DSN: %v", err)
	}
	u, err := url.Parse(dsn)
	if err != nil {
		t.Fatalf("parse %q: %v", dsn, err)
	}
	if u.Scheme != "postgres" || u.Host != "localhost:5432" || u.Path != "/pdf" {
		t.Fatalf("unexpected url %q", dsn)
	}
	if pw, ok := u.User.Password(); !ok || pw != "p@ss word" || u.User.Username() != "user" {
		t.Fatalf("unexpected credentials in %q", dsn)
	}
	if got := u.Query().Get("sslmode"); got != "disable" {
		t.Fatalf("unexpected sslmode %q", got)
	}
}

func TestPostgresDSN_HostForms(t *testing.T) {
	tests := []struct {
		name string
		cfg  PostgresConfig
		want string
	}{
		{"url passthrough", PostgresConfig{Host: "postgres://u:p@localhost:5432/db?sslmode=disable"}, "postgres://u:p@localhost:5432/db?sslmode=disable"},
		{"ipv6 with port", PostgresConfig{Host: "::1", Port: 6543, Database: "d", User: "u"}, "postgres://u@[::1]:6543/d"},
		{"bracketed ipv6", PostgresConfig{Host: "[::1]", Database: "d", User: "u"}, "postgres://u@[::1]:5432/d"},
		{"explicit port", PostgresConfig{Host: "db:7000", Port: 1, Database: "d", User: "u"}, "postgres://u@db:7000/d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.DSN()
			if err != nil {
				t.Fatalf("DSN: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}

	for _, cfg := range []PostgresConfig{{Host: "db", User: "u"}, {Host: "db", Database: "d"}, {}} {
		if _, err := cfg.DSN(); err == nil {
			t.Fatalf("expected error for %+v", cfg)
		}
	}
}
