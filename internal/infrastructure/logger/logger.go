package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	globalLogger zerolog.Logger
	once         sync.Once
	mu           sync.RWMutex
)

// GetLogger returns the process logger. Until New is called it is an info-level console logger.
func GetLogger() zerolog.Logger {
	once.Do(func() {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		mu.Lock()
		globalLogger = zerolog.New(consoleWriter).With().Timestamp().Logger().Level(zerolog.InfoLevel)
		mu.Unlock()
	})
	mu.RLock()
	defer mu.RUnlock()
	return globalLogger
}

// New constructs the process logger from level and format configuration and installs it as the
// one GetLogger returns.
func New(level, format, service, environment string) (zerolog.Logger, error) {
	return NewWithWriter(os.Stdout, level, format, service, environment)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(out io.Writer, level, format, service, environment string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("parse log level: %w", err)
	}

	var base zerolog.Logger
	switch strings.ToLower(format) {
	case "json":
		base = zerolog.New(out)
	case "console":
		base = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	default:
		return zerolog.Logger{}, fmt.Errorf("unsupported log format %q", format)
	}

	log := base.With().
		Timestamp().
		Str("service", service).
		Str("environment", environment).
		Logger().
		Level(lvl)

	once.Do(func() {})
	mu.Lock()
	globalLogger = log
	mu.Unlock()

	return log, nil
}
