// Package core provides the HTTP chassis for the buzzflix orchestration
// service: a chi router with recovery, request-ID, and logging middleware,
// envelope response helpers, and the health endpoint.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/buzzflixai/buzzflix-droplet/internal/config"
)

// Pinger is the minimal store handle the health endpoint needs.
// *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the router and the cross-cutting dependencies handlers need.
// Dependencies are injected at construction; the server owns no background
// work of its own.
type Server struct {
	Config *config.Config
	Logger *slog.Logger
	Store  Pinger

	router *chi.Mux
}

// NewServer builds the router and registers the global middleware chain.
// The caller mounts domain routes afterwards via Router().
func NewServer(cfg *config.Config, store Pinger, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	s := &Server{
		Config: cfg,
		Logger: logger,
		Store:  store,
		router: chi.NewRouter(),
	}

	// Recoverer is outermost so panics anywhere in the chain become 500
	// envelopes instead of dropped connections.
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(logger))

	s.router.Get("/health", s.HandleHealth)

	return s, nil
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the http.Handler for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}
