// Package logging sets up the zerolog logger used across the worker.
package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// NewLogger builds the service logger. Logs go to stdout as console output
// with the given minimum level; unknown levels fall back to info.
func NewLogger(serviceName, level string) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}

	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "15:04:05",
	}

	return zerolog.New(output).
		Level(parsed).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}
