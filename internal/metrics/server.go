package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/riftlink/relay/internal/logging"
)

// HealthStatus is the response body for the health endpoint.
type HealthStatus struct {
	Status     string `json:"status"`
	Players    uint32 `json:"players"`
	Actors     int    `json:"actors"`
	UptimeSecs int64  `json:"uptime_secs"`
}

// StatusFunc supplies the current health snapshot.
type StatusFunc func() HealthStatus

// Server exposes /healthz and /metrics over HTTP.
type Server struct {
	addr     string
	status   StatusFunc
	logger   *slog.Logger
	httpSrv  *http.Server
	listener net.Listener
}

// NewServer creates a metrics/health server bound to addr.
func NewServer(addr string, status StatusFunc, logger *slog.Logger) *Server {
	return &Server{
		addr:   addr,
		status: status,
		logger: logger.With(slog.String(logging.KeyComponent, "health")),
	}
}

// Start binds the listener and serves in a background goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	s.httpSrv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("health server failed", slog.String(logging.KeyError, err.Error()))
		}
	}()

	s.logger.Info("health server listening", slog.String(logging.KeyAddress, ln.Addr().String()))
	return nil
}

// Addr returns the bound listener address, for tests using port 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	st := HealthStatus{Status: "ok"}
	if s.status != nil {
		st = s.status()
		if st.Status == "" {
			st.Status = "ok"
		}
	}

	if err := json.NewEncoder(w).Encode(st); err != nil {
		s.logger.Debug("encode health status", slog.String(logging.KeyError, err.Error()))
	}
}
