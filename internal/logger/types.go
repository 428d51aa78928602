// Package logger provides logging functionality for the application.
package logger

import "time"

// Level represents the logging level.
type Level string

const (
	// DebugLevel logs debug messages.
	DebugLevel Level = "debug"
	// InfoLevel logs info messages.
	InfoLevel Level = "info"
	// WarnLevel logs warning messages.
	WarnLevel Level = "warn"
	// ErrorLevel logs error messages.
	ErrorLevel Level = "error"
	// FatalLevel logs fatal messages and exits.
	FatalLevel Level = "fatal"
)

// Interface is the logging surface used throughout the crawler. Fields are
// passed as alternating key/value pairs, e.g. Info("fetched", "url", u,
// "status", 200), or as pre-built zap.Field values.
type Interface interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)
	Fatal(msg string, fields ...any)

	With(fields ...any) Interface
	WithComponent(component string) Interface
	WithError(err error) Interface
	WithDuration(duration time.Duration) Interface
}

// Config represents the logger configuration.
type Config struct {
	// Level is the minimum logging level.
	Level Level `json:"level" yaml:"level"`
	// Development enables development mode (colorized console encoding).
	Development bool `json:"development" yaml:"development"`
	// Encoding sets the logger's encoding: "console" or "json".
	Encoding string `json:"encoding" yaml:"encoding"`
	// OutputPaths is a list of URLs or file paths to write logging output to.
	OutputPaths []string `json:"outputPaths" yaml:"outputPaths"`
}
