package cliconfig

import (
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/piscesgamedev/pisces/pkg/log"
)

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
	With().Timestamp().Logger()

// Logger returns the CLI logger.
func Logger() zerolog.Logger {
	return logger
}

// LoggerWithLevel returns the CLI logger filtered to the named level.
func LoggerWithLevel(level string) (zerolog.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return logger, err
	}
	return logger.Level(lvl), nil
}
