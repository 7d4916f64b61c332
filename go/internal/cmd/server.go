package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func setupServer(config *Config, services *Services) *http.Server {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: config.Gateway.AllowedOrigins,
		AllowedHeaders: []string{"*"},
	})

	// WebSocket, REST and Connect routes
	services.Gateway.RegisterRoutes(mux)

	setupHealthCheck(mux, services)

	handler := c.Handler(mux)

	// h2c so Connect clients can speak HTTP/2 without TLS
	return &http.Server{
		Addr:              fmt.Sprintf(":%s", config.Gateway.Port),
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func setupHealthCheck(mux *http.ServeMux, services *Services) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})

	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		snap := services.Engine.Snapshot()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"service":"bosswatch","connections":%d,"subscribers":%d,"phase":%q}`,
			services.Gateway.ConnectionCount(), snap.Subscribers, snap.Phase)
	})
}
