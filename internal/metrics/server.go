package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CameraStatus is the health view of one pipeline.
type CameraStatus struct {
	SessionPath     string `json:"session_path"`
	State           string `json:"state"`
	Error           string `json:"error,omitempty"`
	FramesWritten   uint64 `json:"frames_written"`
	FramesDropped   uint64 `json:"frames_dropped"`
	FramesPublished uint64 `json:"frames_published"`
}

// StatusProvider reports the current state of every pipeline.
type StatusProvider interface {
	Status() []CameraStatus
}

// HealthResponse is the JSON body of /health.
type HealthResponse struct {
	Status  string         `json:"status"`
	Uptime  string         `json:"uptime"`
	Cameras []CameraStatus `json:"cameras"`
}

// StateFailed is the CameraStatus.State that turns /health unhealthy.
const StateFailed = "failed"

// Server serves /metrics and /health.
type Server struct {
	addr     string
	metrics  *Metrics
	status   StatusProvider
	started  time.Time
	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewServer creates a metrics server listening on addr (e.g. ":9090").
func NewServer(addr string, m *Metrics, status StatusProvider) *Server {
	if addr == "" {
		addr = ":9090"
	}
	return &Server{
		addr:    addr,
		metrics: m,
		status:  status,
		started: time.Now(),
	}
}

// Handler returns the HTTP handler with both endpoints mounted.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("metrics: server already running")
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("metrics: failed to listen on %s: %w", s.addr, err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics: server stopped", "error", err)
		}
	}(s.server)

	slog.Info("metrics: server listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	s.server = nil
	s.listener = nil
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status: "healthy",
		Uptime: time.Since(s.started).Round(time.Second).String(),
	}
	if s.status != nil {
		resp.Cameras = s.status.Status()
	}

	code := http.StatusOK
	for _, c := range resp.Cameras {
		if c.State == StateFailed {
			resp.Status = "unhealthy"
			code = http.StatusServiceUnavailable
			break
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
