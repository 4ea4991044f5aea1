package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mygeslike/api/internal/config"
)

// Setup initializes the application's logging system. It creates a JSON
// logger writing to stdout at the configured level and installs it as the
// slog default.
func Setup(cfg config.ServerConfig) (*slog.Logger, error) {
	return SetupWithWriter(cfg, os.Stdout), nil
}

// SetupWithWriter is Setup with an explicit destination.
func SetupWithWriter(cfg config.ServerConfig, out io.Writer) *slog.Logger {
	level, ok := ParseLevel(cfg.LogLevel)
	if !ok {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Warn(
			"invalid log level configured, using default level",
			"configured_level", cfg.LogLevel,
			"default_level", "info")
	}

	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a case-insensitive level name to a slog.Level. Unknown
// names yield slog.LevelInfo and false.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// GooseLogger adapts slog to goose's logger interface.
type GooseLogger struct {
	Logger *slog.Logger
}

func (l GooseLogger) log() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

// Printf logs a goose progress message at info level.
func (l GooseLogger) Printf(format string, v ...interface{}) {
	l.log().Info(strings.TrimSpace(fmt.Sprintf(format, v...)), "source", "goose")
}

// Fatalf logs at error level and exits, matching goose's expectations.
func (l GooseLogger) Fatalf(format string, v ...interface{}) {
	l.log().Error(strings.TrimSpace(fmt.Sprintf(format, v...)), "source", "goose")
	os.Exit(1)
}
