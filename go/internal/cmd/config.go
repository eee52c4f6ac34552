package main

import (
	"fmt"

	"github.com/mcdev12/emdrtap/go/internal/config"
)

// loadConfig reads the config file and environment, then applies flags.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if opts.store != "" {
		cfg.Store.Backend = opts.store
	}
	if opts.prefs != "" {
		cfg.Prefs.Backend = opts.prefs
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
