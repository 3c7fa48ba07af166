// Package server provides the HTTP API for kensaku.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/search"
	"github.com/hyperjump/kensaku/pkg/utils"
)

// Rebuilder runs an explicit index rebuild.
type Rebuilder interface {
	Rebuild(ctx context.Context) error
}

// Server is the HTTP server for the search API.
type Server struct {
	engine    *search.Engine
	config    *config.ServerConfig
	logger    *zap.Logger
	rebuilder Rebuilder
	diskPaths []string
	server    *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithRebuilder enables POST /api/v1/rebuild.
func WithRebuilder(r Rebuilder) Option {
	return func(s *Server) { s.rebuilder = r }
}

// WithDiskPaths lists cache paths whose size /api/v1/status reports.
func WithDiskPaths(paths ...string) Option {
	return func(s *Server) { s.diskPaths = paths }
}

// NewServer creates a server with the given dependencies.
func NewServer(engine *search.Engine, cfg *config.ServerConfig, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		engine: engine,
		config: cfg,
		logger: utils.LoggerOrNop(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/search", s.handleSearch)
	r.Get("/api/v1/movies/{id}", s.handleGetMovie)
	r.Get("/api/v1/status", s.handleStatus)
	r.Post("/api/v1/rebuild", s.handleRebuild)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Addr()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
