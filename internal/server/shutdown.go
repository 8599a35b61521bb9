package server

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"
	"time"
)

// Hook priorities. Lower priorities run first.
const (
	PriorityHTTP    = 10
	PriorityTracing = 80
	PriorityMetrics = 85
)

// ShutdownHook is a function called during shutdown.
type ShutdownHook struct {
	Name     string
	Priority int
	Fn       func(ctx context.Context) error
}

// ShutdownConfig configures the shutdown handler.
type ShutdownConfig struct {
	// Timeout bounds the time all hooks together may take (default: 30s).
	Timeout time.Duration
	// Signals to listen for (default: SIGTERM, SIGINT).
	Signals []os.Signal
	Logger  *slog.Logger
}

// DefaultShutdownConfig returns default configuration.
func DefaultShutdownConfig() *ShutdownConfig {
	return &ShutdownConfig{
		Timeout: 30 * time.Second,
		Signals: []os.Signal{syscall.SIGTERM, syscall.SIGINT},
	}
}

// ShutdownHandler runs registered hooks in priority order once a signal
// arrives or Shutdown is called.
type ShutdownHandler struct {
	mu           sync.Mutex
	hooks        []ShutdownHook
	timeout      time.Duration
	signals      []os.Signal
	logger       *slog.Logger
	shutdownCh   chan struct{}
	doneCh       chan struct{}
	started      bool
	shutdownOnce sync.Once
	doneOnce     sync.Once
}

// NewShutdownHandler creates a new shutdown handler.
func NewShutdownHandler(config *ShutdownConfig) *ShutdownHandler {
	def := DefaultShutdownConfig()
	if config == nil {
		config = def
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if len(config.Signals) == 0 {
		config.Signals = def.Signals
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ShutdownHandler{
		timeout:    config.Timeout,
		signals:    config.Signals,
		logger:     logger,
		shutdownCh: make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// RegisterHook adds a shutdown hook. Hooks of equal priority run in
// registration order.
func (s *ShutdownHandler) RegisterHook(name string, priority int, fn func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hooks = append(s.hooks, ShutdownHook{Name: name, Priority: priority, Fn: fn})
	slices.SortStableFunc(s.hooks, func(a, b ShutdownHook) int {
		return a.Priority - b.Priority
	})
}

// Start begins listening for shutdown signals.
func (s *ShutdownHandler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, s.signals...)

	go func() {
		select {
		case sig := <-sigCh:
			signal.Stop(sigCh)
			s.logger.Info("shutdown signal received", "signal", sig.String())
		case <-s.shutdownCh:
			signal.Stop(sigCh)
		}
		s.shutdown()
	}()
}

// Shutdown triggers a manual shutdown. It has no effect before Start.
func (s *ShutdownHandler) Shutdown() {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return
	}

	s.shutdownOnce.Do(func() {
		close(s.shutdownCh)
	})
}

// Wait blocks until shutdown is complete.
func (s *ShutdownHandler) Wait() {
	<-s.doneCh
}

// Done returns a channel that closes when shutdown is complete.
func (s *ShutdownHandler) Done() <-chan struct{} {
	return s.doneCh
}

func (s *ShutdownHandler) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.mu.Lock()
	hooks := slices.Clone(s.hooks)
	s.mu.Unlock()

	for _, hook := range hooks {
		start := time.Now()
		if err := hook.Fn(ctx); err != nil {
			s.logger.Error("shutdown hook failed", "hook", hook.Name, "error", err)
			continue
		}
		s.logger.Debug("shutdown hook done", "hook", hook.Name, "duration", time.Since(start))
	}

	s.doneOnce.Do(func() {
		close(s.doneCh)
	})
}
