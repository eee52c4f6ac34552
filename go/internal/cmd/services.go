package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mcdev12/emdrtap/go/internal/config"
	"github.com/mcdev12/emdrtap/go/internal/docstore"
	"github.com/mcdev12/emdrtap/go/internal/docstore/memory"
	"github.com/mcdev12/emdrtap/go/internal/docstore/natskv"
	"github.com/mcdev12/emdrtap/go/internal/feedback"
	"github.com/mcdev12/emdrtap/go/internal/metrics"
	"github.com/mcdev12/emdrtap/go/internal/prefs"
	"github.com/mcdev12/emdrtap/go/internal/prefs/sqlite"
	"github.com/mcdev12/emdrtap/go/internal/prefs/tomlfile"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Services struct {
	Store    docstore.Store // nil unless requested
	Prefs    prefs.Store
	Feedback feedback.Player
	Metrics  metrics.Collector
	// Prometheus is nil when metrics are disabled
	Prometheus *metrics.Prometheus

	closers []func() error
}

type serviceNeeds struct {
	store bool
	prefs bool
}

func setupServices(ctx context.Context, cfg *config.Config, needs serviceNeeds) (*Services, error) {
	services := &Services{
		Feedback: setupFeedback(cfg.Feedback),
		Metrics:  metrics.NoOp{},
	}
	if cfg.Metrics.Enabled {
		services.Prometheus = metrics.NewPrometheus()
		services.Metrics = services.Prometheus
	}

	if needs.store {
		store, closeStore, err := setupStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		services.Store = store
		services.closers = append(services.closers, closeStore)
	}

	if needs.prefs {
		store, closePrefs, err := setupPrefs(cfg.Prefs)
		if err != nil {
			services.Close()
			return nil, err
		}
		services.Prefs = store
		services.closers = append(services.closers, closePrefs)
	}

	return services, nil
}

func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.Error().Err(err).Msg("failed to close service")
		}
	}
	s.closers = nil
}

func setupStore(ctx context.Context, cfg *config.Config) (docstore.Store, func() error, error) {
	switch cfg.Store.Backend {
	case config.StoreMemory:
		log.Warn().Msg("using the in-process document store; sessions are not shared with other processes")
		store := memory.New()
		return store, store.Close, nil

	case config.StoreNATS:
		natsCfg := natskv.DefaultConfig()
		natsCfg.URL = cfg.Store.NATS.URL
		if cfg.Store.NATS.Bucket != "" {
			natsCfg.Bucket = cfg.Store.NATS.Bucket
		}
		if cfg.Store.NATS.TTL > 0 {
			natsCfg.TTL = cfg.Store.NATS.TTL
		}
		store, err := natskv.Open(ctx, natsCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open nats document store: %w", err)
		}
		return store, store.Close, nil

	case config.StorePostgres:
		store, err := setupDatabase(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func setupPrefs(cfg config.PrefsConfig) (prefs.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case config.PrefsMemory:
		return &prefs.MemoryStore{}, noop, nil

	case config.PrefsTOML:
		v := viper.New()
		if cfg.Path != "" {
			v.Set(tomlfile.PathKey, cfg.Path)
		}
		store, err := tomlfile.New(v)
		if err != nil {
			return nil, nil, fmt.Errorf("wire preferences file: %w", err)
		}
		return store, noop, nil

	case config.PrefsSQLite:
		path := cfg.Path
		if path == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return nil, nil, fmt.Errorf("resolve home directory: %w", err)
			}
			path = filepath.Join(homeDir, ".emdrtap", "preferences.db")
		}
		store, err := sqlite.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("wire preferences database: %w", err)
		}
		return store, store.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown preferences backend %q", cfg.Backend)
	}
}

func setupFeedback(cfg config.FeedbackConfig) feedback.Player {
	players := feedback.Multi{feedback.LogPlayer{}}
	if cfg.Bell {
		players = append(players, feedback.NewBell(os.Stderr, cfg.Bounces))
	}
	return players
}
