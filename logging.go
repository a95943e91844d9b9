// logging.go - Structured logger construction

package main

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

const DEFAULT_LOG_LEVEL = "info"

// newLogger builds the process logger. Machines and devices never reach for a
// global logger; they receive entries derived from this one.
func newLogger(level string, out io.Writer) (*log.Logger, error) {
	if out == nil {
		out = os.Stderr
	}
	if level == "" {
		level = DEFAULT_LOG_LEVEL
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, &ConfigError{Operation: "logger", Details: level, Err: ErrInvalidOption}
	}
	logger := log.New()
	logger.SetOutput(out)
	logger.SetLevel(lvl)
	logger.SetFormatter(&log.TextFormatter{
		DisableTimestamp: false,
		FullTimestamp:    true,
		TimestampFormat:  "15:04:05.000",
	})
	return logger, nil
}

// discardLogger is used by tests and by machines created without a logger.
func discardLogger() *log.Entry {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return log.NewEntry(logger)
}
