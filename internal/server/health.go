package server

import (
	"context"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/chunkcanvas/blobstore"
	"github.com/hupe1980/chunkcanvas/codec"
)

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	HealthStatusOK        HealthStatus = "ok"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck represents a single health check.
type HealthCheck struct {
	Name    string            `json:"name"`
	Status  HealthStatus      `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// HealthResponse is the response from health endpoints.
type HealthResponse struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Version   string        `json:"version,omitempty"`
	Checks    []HealthCheck `json:"checks,omitempty"`
}

// HealthChecker is a function that performs a health check.
type HealthChecker func(ctx context.Context) HealthCheck

// HealthServer serves liveness, readiness and component health.
type HealthServer struct {
	mu      sync.RWMutex
	checks  map[string]HealthChecker
	version string
	ready   bool
	live    bool
}

// HealthConfig configures the health server.
type HealthConfig struct {
	Version string
}

// NewHealthServer creates a new health server. It starts live but not ready.
func NewHealthServer(config *HealthConfig) *HealthServer {
	version := ""
	if config != nil {
		version = config.Version
	}

	return &HealthServer{
		checks:  make(map[string]HealthChecker),
		version: version,
		live:    true,
	}
}

// RegisterCheck adds a health check.
func (s *HealthServer) RegisterCheck(name string, checker HealthChecker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = checker
}

// SetReady marks the server as ready to accept traffic.
func (s *HealthServer) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// SetLive marks the server as live (or not).
func (s *HealthServer) SetLive(live bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = live
}

// Register adds the health endpoints to mux.
func (s *HealthServer) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.HandleFunc("GET /live", s.handleLive)
	mux.HandleFunc("GET /healthz", s.handleHealth) // Kubernetes alias
	mux.HandleFunc("GET /readyz", s.handleReady)   // Kubernetes alias
	mux.HandleFunc("GET /livez", s.handleLive)     // Kubernetes alias
}

// Handler returns an http.Handler serving only the health endpoints.
func (s *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

func (s *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	s.mu.RLock()
	names := make([]string, 0, len(s.checks))
	checks := make(map[string]HealthChecker, len(s.checks))
	for k, v := range s.checks {
		names = append(names, k)
		checks[k] = v
	}
	version := s.version
	s.mu.RUnlock()
	sort.Strings(names)

	response := HealthResponse{
		Status:    HealthStatusOK,
		Timestamp: time.Now().UTC(),
		Version:   version,
	}

	for _, name := range names {
		check := checks[name](ctx)
		check.Name = name
		response.Checks = append(response.Checks, check)

		if check.Status == HealthStatusUnhealthy {
			response.Status = HealthStatusUnhealthy
		} else if check.Status == HealthStatusDegraded && response.Status == HealthStatusOK {
			response.Status = HealthStatusDegraded
		}
	}

	statusCode := http.StatusOK
	if response.Status == HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	writeHealth(w, statusCode, response)
}

func (s *HealthServer) handleReady(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	ready := s.ready
	s.mu.RUnlock()
	s.probe(w, ready)
}

func (s *HealthServer) handleLive(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	live := s.live
	s.mu.RUnlock()
	s.probe(w, live)
}

func (s *HealthServer) probe(w http.ResponseWriter, ok bool) {
	response := HealthResponse{
		Status:    HealthStatusOK,
		Timestamp: time.Now().UTC(),
	}
	if !ok {
		response.Status = HealthStatusUnhealthy
		writeHealth(w, http.StatusServiceUnavailable, response)
		return
	}
	writeHealth(w, http.StatusOK, response)
}

func writeHealth(w http.ResponseWriter, status int, data HealthResponse) {
	body, err := codec.Default.Marshal(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// DirectoryHealthChecker reports unhealthy when path is not an accessible
// directory.
func DirectoryHealthChecker(path string) HealthChecker {
	return func(context.Context) HealthCheck {
		fi, err := os.Stat(path)
		if err != nil {
			return HealthCheck{
				Status:  HealthStatusUnhealthy,
				Message: "directory not accessible: " + err.Error(),
				Details: map[string]string{"path": path},
			}
		}
		if !fi.IsDir() {
			return HealthCheck{
				Status:  HealthStatusUnhealthy,
				Message: "not a directory",
				Details: map[string]string{"path": path},
			}
		}
		return HealthCheck{
			Status:  HealthStatusOK,
			Details: map[string]string{"path": path},
		}
	}
}

// MirrorHealthChecker lists the mirror store. A failure reports degraded,
// never unhealthy.
func MirrorHealthChecker(store blobstore.Store) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		if _, err := store.List(ctx, ""); err != nil {
			return HealthCheck{
				Status:  HealthStatusDegraded,
				Message: "mirror unavailable: " + err.Error(),
			}
		}
		return HealthCheck{
			Status:  HealthStatusOK,
			Message: "mirror OK",
		}
	}
}
