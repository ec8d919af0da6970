// Package logger builds the process-wide zerolog logger.
package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New returns a console-writer logger with timestamps.
func New() zerolog.Logger {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	return log.Output(output).With().Timestamp().Logger()
}

// NewWithLevel returns a logger filtered to the given level name
// (trace, debug, info, warn, error). Unknown names fall back to info.
func NewWithLevel(level string) zerolog.Logger {
	l := New()
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	return l.Level(parsed)
}
