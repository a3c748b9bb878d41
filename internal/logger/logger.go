// Package logger provides a structured, module-aware logging system built on Go's standard log/slog.
//
// Each package obtains a module-scoped logger from the central logger:
//
//	log := logger.Global().Module("imageprovider")
//	log.Info("Search page fetched",
//	    logger.String("identifier", "X123"),
//	    logger.Int("status", 200))
//
// Console output is human readable text, file output is JSON. Levels can be
// overridden per module through LoggingConfig.ModuleLevels:
//
//	logging:
//	  defaultlevel: info
//	  console:
//	    enabled: true
//	    level: info
//	  fileoutput:
//	    enabled: true
//	    path: logs/imagefinder.log
//	    level: debug
//	  modulelevels:
//	    dispatch: debug
//
// For tests, NewSlogLogger writes to any io.Writer:
//
//	buf := &bytes.Buffer{}
//	testLogger := logger.NewSlogLogger(buf, logger.LogLevelDebug, time.UTC)
package logger

import (
	"context"
	"time"
	"unique"
)

// LogLevel represents log severity levels
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Field represents a structured log field.
// Keys are interned using unique.Make() so repeated keys share one allocation.
type Field struct {
	Key   string
	Value any
}

// internKey returns an interned version of the key string.
func internKey(key string) string {
	return unique.Make(key).Value()
}

// Pre-interned keys used by the logger itself
var (
	errorKey   = internKey("error")
	moduleKey  = internKey("module")
	traceIDKey = internKey("trace_id")
)

// Logger is the centralized logging interface for dependency injection
type Logger interface {
	// Module returns a logger scoped to a specific module
	Module(name string) Logger

	Trace(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	With(fields ...Field) Logger
	WithContext(ctx context.Context) Logger

	// Log with explicit level
	Log(level LogLevel, msg string, fields ...Field)

	// Flush ensures all buffered logs are written
	Flush() error
}

// String creates a string field for structured logging.
func String(key, value string) Field {
	return Field{Key: internKey(key), Value: value}
}

// Int creates an integer field for structured logging.
//
// Use this for counts, worker caps, HTTP status codes and row numbers.
func Int(key string, value int) Field {
	return Field{Key: internKey(key), Value: value}
}

// Bool creates a boolean field for structured logging.
func Bool(key string, value bool) Field {
	return Field{Key: internKey(key), Value: value}
}

// Error creates an error field for structured logging.
//
// The field key is always "error". A nil err produces a nil value.
//
// Example:
//
//	if err := writer.Flush(); err != nil {
//	    log.Error("Failed to write output",
//	        logger.Error(err),
//	        logger.String("path", outputPath))
//	}
func Error(err error) Field {
	if err == nil {
		return Field{Key: errorKey, Value: nil}
	}
	return Field{Key: errorKey, Value: err.Error()}
}

// Duration creates a duration field for structured logging.
// The value is rendered as a human readable string such as "1.5s".
func Duration(key string, value time.Duration) Field {
	return Field{Key: internKey(key), Value: value}
}
