package main

import (
	"context"
	"fmt"

	"github.com/mcdev12/emdrtap/go/internal/config"
	"github.com/mcdev12/emdrtap/go/internal/docstore/pgstore"
	"github.com/rs/zerolog/log"
)

func setupDatabase(ctx context.Context, cfg *config.Config) (*pgstore.Store, error) {
	pgCfg := pgstore.DefaultConfig()
	pgCfg.DatabaseURL = cfg.PostgresDSN()
	if cfg.Store.Postgres.NotifyChannel != "" {
		pgCfg.NotifyChannel = cfg.Store.Postgres.NotifyChannel
	}

	store, err := pgstore.Open(ctx, pgCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres document store: %w", err)
	}

	log.Info().Str("channel", pgCfg.NotifyChannel).Msg("connected to database")
	return store, nil
}
