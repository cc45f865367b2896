// Package api is the HTTP host for an evolution engine.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"morphogen/internal/events"
	"morphogen/internal/evolution"
	"morphogen/internal/logging"
	"morphogen/internal/metrics"
	"morphogen/internal/store"
)

// Persister checkpoints engine state after a mutating request.
type Persister func(ctx context.Context) error

// Journal reads past events.
type Journal interface {
	Events(ctx context.Context, q store.EventQuery) ([]events.Event, error)
}

// Server routes HTTP requests to an engine.
type Server struct {
	engine    *evolution.Engine
	logger    *zap.Logger
	collector *metrics.Collector
	persist   Persister
	journal   Journal
	version   string
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger replaces the api category logger.
func WithLogger(l *zap.Logger) Option { return func(s *Server) { s.logger = l } }

// WithMetrics records request metrics and serves /metrics.
func WithMetrics(c *metrics.Collector) Option { return func(s *Server) { s.collector = c } }

// WithPersister runs p after every successful mutation.
func WithPersister(p Persister) Option { return func(s *Server) { s.persist = p } }

// WithJournal enables the events endpoint.
func WithJournal(j Journal) Option { return func(s *Server) { s.journal = j } }

// WithVersion sets the version reported by /healthz.
func WithVersion(v string) Option { return func(s *Server) { s.version = v } }

// NewServer returns a server for engine.
func NewServer(engine *evolution.Engine, opts ...Option) *Server {
	s := &Server{
		engine: engine,
		logger: logging.Get(logging.CategoryAPI),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Router builds the chi router.
func (s *Server) Router() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(s.requestLogger)
	if s.collector != nil {
		router.Use(s.collector.Middleware)
		router.Method(http.MethodGet, "/metrics", s.collector.Handler())
	}

	router.Get("/healthz", s.health)

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.status)
		r.Get("/artifacts", s.listArtifacts)
		r.Route("/artifacts/{id}", func(r chi.Router) {
			r.Get("/", s.getArtifact)
			r.Get("/properties", s.getProperties)
			r.Get("/lineage", s.getLineage)
			r.Get("/metadata", s.getMetadata)
			r.Get("/events", s.getEvents)
			r.Post("/interactions", s.interact)
		})
		r.Post("/evolutions", s.evolve)
		r.Get("/generations/{gen}", s.getGeneration)
	})

	return router
}

// requestLogger logs each request once it completes.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
