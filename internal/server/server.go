// Package server binds a chunkcanvas.Store to HTTP, with health checks,
// graceful shutdown and request middleware.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/hupe1980/chunkcanvas"
	"github.com/hupe1980/chunkcanvas/codec"
	"github.com/hupe1980/chunkcanvas/internal/observability"
)

// Config configures the HTTP server.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// RateLimit is the sustained number of requests per second accepted by
	// the server. Zero disables rate limiting.
	RateLimit float64
	RateBurst int

	CORSOrigins  []string
	MaxBodyBytes int64

	// MetricsPath serves the Prometheus registry when a collector is set.
	MetricsPath string
	Version     string
}

// DefaultConfig returns the configuration used for zero fields.
func DefaultConfig() Config {
	return Config{
		Addr:         ":8000",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
		RateBurst:    20,
		CORSOrigins:  []string{"*"},
		MaxBodyBytes: 64 << 20,
		MetricsPath:  "/metrics",
	}
}

// Server serves the index REST API.
type Server struct {
	store   *chunkcanvas.Store
	cfg     Config
	logger  *slog.Logger
	metrics *observability.PrometheusCollector
	codec   codec.Codec
	health  *HealthServer

	mu         sync.Mutex
	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics exposes c at Config.MetricsPath and counts requests in it.
func WithMetrics(c *observability.PrometheusCollector) Option {
	return func(s *Server) {
		s.metrics = c
	}
}

// WithCodec sets the codec for request and response bodies.
func WithCodec(c codec.Codec) Option {
	return func(s *Server) {
		if c != nil {
			s.codec = c
		}
	}
}

// New creates a Server for store.
func New(store *chunkcanvas.Store, cfg Config, optFns ...Option) *Server {
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = def.RateBurst
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = def.MetricsPath
	}

	s := &Server{
		store:  store,
		cfg:    cfg,
		logger: slog.Default(),
		codec:  codec.Default,
		health: NewHealthServer(&HealthConfig{Version: cfg.Version}),
	}
	for _, fn := range optFns {
		fn(s)
	}
	return s
}

// Health returns the health server whose endpoints the handler serves.
func (s *Server) Health() *HealthServer {
	return s.health
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.health.Register(mux)

	mux.HandleFunc("GET /faiss/indexes/list", s.handleList)
	mux.HandleFunc("POST /faiss/indexes/create", s.handleCreate)
	mux.HandleFunc("POST /faiss/indexes/upsert", s.handleUpsert)
	mux.HandleFunc("POST /faiss/indexes/delete", s.handleDelete)
	mux.HandleFunc("POST /faiss/indexes/search", s.handleSearch)
	mux.HandleFunc("GET /faiss/indexes/info", s.handleInfo)
	mux.HandleFunc("GET /faiss/indexes/content", s.handleContent)
	mux.HandleFunc("GET /faiss/indexes/vector", s.handleVector)

	if s.metrics != nil {
		mux.Handle("GET "+s.cfg.MetricsPath, s.metrics.Handler())
	}

	var h http.Handler = mux
	h = s.loggingMiddleware(h)
	h = tracingMiddleware(h)
	h = s.rateLimitMiddleware(h)
	h = s.corsMiddleware(h)
	h = s.recoverMiddleware(h)
	h = requestIDMiddleware(h)
	return h
}

// Start listens on Config.Addr and serves until Shutdown is called.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	s.logger.Info("server listening", "addr", ln.Addr().String())
	s.health.SetReady(true)

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown marks the server not ready and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
