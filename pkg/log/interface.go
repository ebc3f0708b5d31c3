// Package log provides a structured logging interface for gbdata.
//
// The interface is slog-compatible so callers can plug in any backend; the
// package ships a zerolog implementation (NewZerologLogger), an slog JSON
// setup with stack trace extraction (SetupLogger), and a TestLogger that
// captures JSON lines for assertions.
//
// Example usage:
//
//	logger := log.GetLogger().With(log.ComponentKey, "dmatrix")
//	logger.Debug("matrix loaded",
//	    log.PathKey, "train.txt",
//	    log.RowsKey, 6513,
//	    log.NNZKey, 143286,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// fields are alternating key/value pairs. An error passed as a value is
// rendered with its message; Error additionally accepts an error as the
// first field.
type Logger interface {
	// Debug logs a debug-level message with optional structured fields.
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional structured fields.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional structured fields.
	Warn(msg string, fields ...any)

	// Error logs an error-level message with optional structured fields.
	// If the first field is an error it is attached as the "error" field.
	//
	// Example:
	//   logger.Error("failed to load matrix",
	//       err,
	//       log.PathKey, path,
	//   )
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits log records at the given level.
	// Use it to skip building expensive fields.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4 // Detailed diagnostic information
	LevelInfo  Level = 0  // General operational information
	LevelWarn  Level = 4  // Warning conditions
	LevelError Level = 8  // Error conditions
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoggerProvider defines an interface for creating and configuring loggers.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger with a specific name/component identifier.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum log level for all loggers created by this provider.
	SetLevel(level Level)
}
