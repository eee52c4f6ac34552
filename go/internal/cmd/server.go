package main

import (
	"net/http"

	"github.com/mcdev12/emdrtap/go/internal/config"
	"github.com/mcdev12/emdrtap/go/internal/relay"
)

func setupServer(cfg *config.Config, services *Services) (*relay.Service, *http.Server) {
	service := relay.NewService(relayConfig(cfg.Relay.AllowedOrigins), services.Store, services.Metrics)

	opts := relay.ServerOptions{
		Addr:           cfg.Relay.Addr,
		AllowedOrigins: cfg.Relay.AllowedOrigins,
	}
	if services.Prometheus != nil {
		opts.Metrics = services.Prometheus.Handler()
	}

	return service, relay.NewServer(service, opts)
}
