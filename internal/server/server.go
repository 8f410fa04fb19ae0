// Package server provides the HTTP API for rankd.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hyperjump/rankd/internal/cache"
	"github.com/hyperjump/rankd/internal/config"
	"github.com/hyperjump/rankd/internal/metrics"
	"github.com/hyperjump/rankd/internal/search"
	"github.com/hyperjump/rankd/internal/storage"
	"github.com/hyperjump/rankd/internal/trending"
	"github.com/hyperjump/rankd/pkg/utils"
)

// Server is the HTTP server for the rankd API.
type Server struct {
	engine   *search.Engine
	trending *trending.Service
	job      *trending.RecomputeJob
	cache    *cache.Orchestrator
	store    storage.Store
	config   *config.ServerConfig
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies. A nil orchestrator
// disables the invalidation endpoint.
func NewServer(
	engine *search.Engine,
	trendingSvc *trending.Service,
	job *trending.RecomputeJob,
	orchestrator *cache.Orchestrator,
	store storage.Store,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	if cfg == nil {
		cfg = &config.ServerConfig{}
	}
	return &Server{
		engine:   engine,
		trending: trendingSvc,
		job:      job,
		cache:    orchestrator,
		store:    store,
		config:   cfg,
		logger:   utils.LoggerOrNop(logger),
	}
}

// Router returns the API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Get("/trending/{kind}", s.handleTrending)
		r.Get("/trending/{kind}/{id}/insights", s.handleInsights)
		r.Post("/trending/recompute", s.handleRecompute)
		r.Post("/cache/invalidate", s.handleInvalidate)
	})
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  time.Duration(s.config.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeoutSec) * time.Second,
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
