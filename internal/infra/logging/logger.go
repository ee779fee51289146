package logging

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu     sync.RWMutex
	logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
)

// InitLogger configures structured logging to stdout and, when file is set,
// to a size-rotated log file.
func InitLogger(file string, maxSizeMB, maxBackups, maxAgeDays int, compress bool, level string) {
	var out io.Writer = os.Stdout
	if file != "" {
		rotator := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			Compress:   compress,
		}
		out = zerolog.MultiLevelWriter(os.Stdout, rotator)
	}

	l := zerolog.New(out).With().Timestamp().Logger().Level(parseLevel(level))

	mu.Lock()
	logger = l
	mu.Unlock()
}

// UseWriter sends log output to w only. One-shot invocations use it to keep
// stdout free for the response.
func UseWriter(w io.Writer, level string) {
	l := zerolog.New(w).With().Timestamp().Logger().Level(parseLevel(level))
	mu.Lock()
	logger = l
	mu.Unlock()
}

// SetLogLevel changes the level of the active logger. Unknown levels fall back to info.
func SetLogLevel(level string) {
	mu.Lock()
	logger = logger.Level(parseLevel(level))
	mu.Unlock()
}

// SetLoggerForTest swaps the active logger.
func SetLoggerForTest(l zerolog.Logger) {
	mu.Lock()
	logger = l
	mu.Unlock()
}

// Logger returns a copy of the active logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// Debug logs msg with key/value pairs at debug level.
func Debug(msg string, kv ...any) { write(zerolog.DebugLevel, msg, kv) }

// Info logs msg with key/value pairs at info level.
func Info(msg string, kv ...any) { write(zerolog.InfoLevel, msg, kv) }

// Warn logs msg with key/value pairs at warn level.
func Warn(msg string, kv ...any) { write(zerolog.WarnLevel, msg, kv) }

// Error logs msg with key/value pairs at error level.
func Error(msg string, kv ...any) { write(zerolog.ErrorLevel, msg, kv) }

func write(level zerolog.Level, msg string, kv []any) {
	l := Logger()
	ev := l.WithLevel(level)
	if ev == nil {
		return
	}
	for i := 0; i < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		if i+1 >= len(kv) {
			ev = ev.Interface("extra", kv[i])
			break
		}
		if err, ok := kv[i+1].(error); ok {
			ev = ev.AnErr(key, err)
			continue
		}
		ev = ev.Interface(key, kv[i+1])
	}
	ev.Msg(msg)
}
