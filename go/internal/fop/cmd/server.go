package main

import (
	"net/http"
	"time"

	"github.com/mcdev12/fieldofplay/go/internal/config"
)

func setupServer(cfg config.Server, services *Services) *http.Server {
	// WebSocket connections outlive any write timeout, so only reads are bounded.
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           services.Gateway.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
