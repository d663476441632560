// Package server exposes the scanning pipeline over HTTP: a multipart scan
// endpoint, a WebSocket variant streaming stage progress, health and
// Prometheus metrics.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/grovecrm/cardscan/internal/config"
	"github.com/grovecrm/cardscan/internal/orchestrate"
	"github.com/grovecrm/cardscan/internal/scanner"
)

// ScanService runs a scan. Satisfied by *scanner.Scanner; tests substitute
// a fake.
type ScanService interface {
	ScanWithProgress(ctx context.Context, raw []byte, progress orchestrate.ProgressFunc) scanner.Result
}

// Server is the HTTP front end.
type Server struct {
	cfg     config.ServerConfig
	scans   ScanService
	logger  *slog.Logger
	httpSrv *http.Server
}

// New creates a server around the given scan service.
func New(cfg config.ServerConfig, scans ScanService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{cfg: cfg, scans: scans, logger: logger.With("component", "server")}

	mux := http.NewServeMux()
	mux.HandleFunc("/scan", s.wrap(s.scanHandler))
	mux.HandleFunc("/scan/ws", s.scanWebSocketHandler)
	mux.HandleFunc("/healthz", s.wrap(s.healthHandler))
	if cfg.EnableMetrics {
		mux.Handle("/metrics", promhttp.Handler())
	}

	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }

// ListenAndServe runs the server until the listener fails or Shutdown is
// called.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", "addr", s.httpSrv.Addr)
	return s.httpSrv.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
