// Package logger provides a structured, levelled logger built on log/slog.
//
// Every package in the library logs through the helpers here so that a host
// application can redirect all delegate, worker and transport logs with one
// call:
//
//	logger.Configure("json", "debug")
//	logger.Info("worker started", "worker", "ui")
//	// → {"time":"...","level":"INFO","msg":"worker started","worker":"ui"}
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/shashiranjanraj/delegate/config"
)

var (
	current  atomic.Pointer[slog.Logger]
	logLevel = new(slog.LevelVar)
)

func init() {
	format := config.LogFormat()
	switch config.AppEnv() {
	case "production", "prod":
		format = "json" // structured JSON for log aggregators
	}
	Configure(format, config.LogLevel())
}

// Configure rebuilds the logger writing to stdout.
// format: "text" (default) or "json"; level: "debug", "info", "warn", "error".
func Configure(format, level string) {
	ConfigureOutput(os.Stdout, format, level)
}

// ConfigureOutput is Configure with an explicit destination.
func ConfigureOutput(w io.Writer, format, level string) {
	SetLevel(level)

	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts) // human-readable for dev
	}

	Use(handler)
}

// Use installs handler as the library logger (e.g. a MultiHandler that also
// ships records to MongoDB).
func Use(handler slog.Handler) {
	l := slog.New(handler)
	current.Store(l)
	slog.SetDefault(l)
}

// SetLevel changes the minimum level. Unknown values are ignored.
func SetLevel(level string) {
	switch strings.ToLower(level) {
	case "debug":
		logLevel.Set(slog.LevelDebug)
	case "info":
		logLevel.Set(slog.LevelInfo)
	case "warn", "warning":
		logLevel.Set(slog.LevelWarn)
	case "error":
		logLevel.Set(slog.LevelError)
	}
}

// Level returns the level variable shared by every handler built here.
func Level() *slog.LevelVar { return logLevel }

// L returns the current logger.
func L() *slog.Logger { return current.Load() }

// With returns the current logger with args attached to every record.
func With(args ...any) *slog.Logger { return current.Load().With(args...) }

// ─────────────────────────────────────────────
// Short-hand helpers (use current logger)
// ─────────────────────────────────────────────

// Debug logs at DEBUG level.
func Debug(msg string, args ...any) { current.Load().Debug(msg, args...) }

// Info logs at INFO level.
func Info(msg string, args ...any) { current.Load().Info(msg, args...) }

// Warn logs at WARN level.
func Warn(msg string, args ...any) { current.Load().Warn(msg, args...) }

// Error logs at ERROR level.
func Error(msg string, args ...any) { current.Load().Error(msg, args...) }
