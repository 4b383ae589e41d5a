// Package logger provides a small structured-logging facade shared by
// every component so that call sites never reach for log/slog directly.
package logger

import (
	"fmt"
	"log/slog"
)

// Error logs an error-level message with optional key/value pairs.
func Error(msg string, kv ...interface{}) {
	slog.Error(msg, kv...)
}

// Warn logs a warn-level message with optional key/value pairs.
func Warn(msg string, kv ...interface{}) {
	slog.Warn(msg, kv...)
}

// Info logs an info-level message with optional key/value pairs.
func Info(msg string, kv ...interface{}) {
	slog.Info(msg, kv...)
}

// Debug logs a debug-level message with optional key/value pairs.
func Debug(msg string, kv ...interface{}) {
	slog.Debug(msg, kv...)
}

// LogError preserves the teacher's printf-style call sites for places that
// still format into a single message string.
func LogError(format string, args ...interface{}) {
	slog.Error(fmt.Sprintf(format, args...))
}

// LogErrorf is an alias kept for call-site parity with the teacher's
// two-name convention.
func LogErrorf(format string, args ...interface{}) {
	LogError(format, args...)
}
