// Package health serves the probe endpoints scraped by Kubernetes and
// Prometheus.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goldfish-inc/oceanid/sqs-worker/internal/logging"
)

// ShutdownTimeout bounds how long Run waits for open requests once its
// context is done.
const ShutdownTimeout = 5 * time.Second

// Server exposes liveness, readiness and metrics over HTTP. Liveness comes
// from the check function; readiness is set explicitly by the application.
type Server struct {
	addr     string
	check    func() bool
	gatherer prometheus.Gatherer
	logger   logging.Logger
	ready    atomic.Bool
	mux      *http.ServeMux
}

// NewServer builds a server listening on addr. A nil check always reports
// healthy; a nil gatherer serves the default Prometheus registry.
func NewServer(addr string, check func() bool, gatherer prometheus.Gatherer, logger logging.Logger) *Server {
	if check == nil {
		check = func() bool { return true }
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	s := &Server{
		addr:     addr,
		check:    check,
		gatherer: gatherer,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthcheck", s.healthcheck)
	mux.HandleFunc("/livez", s.livez)
	mux.HandleFunc("/readyz", s.readyz)
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	s.mux = mux
	return s
}

// Handler exposes the routes for testing.
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) MarkReady() {
	s.ready.Store(true)
	s.logger.Infow("service_marked_ready")
}

func (s *Server) MarkNotReady() {
	s.ready.Store(false)
	s.logger.Infow("service_marked_not_ready")
}

func (s *Server) Ready() bool { return s.ready.Load() }

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("health server listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("health_server_started", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		s.logger.Errorw("health_server_error", "error", err)
		return fmt.Errorf("health server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warnw("health_server_shutdown_error", "error", err)
		return fmt.Errorf("health server shutdown: %w", err)
	}
	s.logger.Infow("health_server_stopped")
	return nil
}

func (s *Server) healthcheck(w http.ResponseWriter, r *http.Request) {
	ready := s.ready.Load()
	if s.check() && ready {
		writeJSON(w, http.StatusOK, map[string]any{"status": "healthy", "ready": true})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unhealthy", "ready": ready})
}

func (s *Server) livez(w http.ResponseWriter, r *http.Request) {
	if s.check() {
		writeJSON(w, http.StatusOK, map[string]any{"status": "alive"})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "dead"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready.Load() {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
