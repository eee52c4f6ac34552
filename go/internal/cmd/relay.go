package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mcdev12/emdrtap/go/internal/relay"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newRelayCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Serve sessions to browsers over WebSocket, REST and Connect",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRelay(cmd.Context(), opts, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides relay.addr)")
	return cmd
}

func runRelay(ctx context.Context, opts *rootOptions, addr string) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Relay.Addr = addr
	}
	if err := setupConsoleLogging(cfg.Log); err != nil {
		return err
	}

	services, err := setupServices(ctx, cfg, serviceNeeds{store: true})
	if err != nil {
		return err
	}
	defer services.Close()

	relayService, server := setupServer(cfg, services)

	log.Info().
		Str("store", cfg.Store.Backend).
		Str("addr", server.Addr).
		Msg("starting relay")

	serviceCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serviceDone := make(chan struct{})
	go func() {
		defer close(serviceDone)
		if err := relayService.Start(serviceCtx); err != nil {
			log.Error().Err(err).Msg("relay service failed")
		}
	}()

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("received shutdown signal")
	case runErr = <-serveErr:
		if runErr != nil {
			log.Error().Err(runErr).Msg("HTTP server failed")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	cancel()
	<-serviceDone

	log.Info().Msg("relay shutdown complete")
	return runErr
}

func relayConfig(origins []string) relay.Config {
	rc := relay.DefaultConfig()
	rc.ConnectionConfig.CheckOrigin = relay.OriginChecker(origins)
	return rc
}
