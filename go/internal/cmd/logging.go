package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mcdev12/emdrtap/go/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func setLogLevel(cfg config.LogConfig) error {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)
	return nil
}

// setupConsoleLogging is used by commands that do not own the screen.
func setupConsoleLogging(cfg config.LogConfig) error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	return setLogLevel(cfg)
}

// setupFileLogging moves logs off the terminal while the UI is drawn. The
// returned closer restores console logging.
func setupFileLogging(cfg config.LogConfig) (io.Closer, error) {
	if err := setLogLevel(cfg); err != nil {
		return nil, err
	}
	if cfg.File == "" {
		log.Logger = zerolog.Nop()
		return io.NopCloser(nil), nil
	}

	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	log.Logger = zerolog.New(f).With().Timestamp().Logger()
	return closerFunc(func() error {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		return f.Close()
	}), nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
