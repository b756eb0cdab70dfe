// Package server exposes the notification pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ArionMiles/notispend/pkg/api"
	"github.com/ArionMiles/notispend/pkg/pipeline"
)

// maxBodyBytes caps a single notification payload.
const maxBodyBytes = 1 << 20

// Service is the pipeline surface the handlers use.
type Service interface {
	Ingest(ctx context.Context, n api.Notification) (pipeline.Outcome, error)
	List(ctx context.Context, page api.Page) ([]api.StoredNotification, error)
	Backfill(ctx context.Context, page api.Page) ([]api.AmountUpdate, error)
	Ping(ctx context.Context) error
}

// Server serves the notifications API.
type Server struct {
	svc      Service
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// New creates a server. gatherer backs /metrics and may be nil to disable it.
func New(svc Service, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		svc:      svc,
		gatherer: gatherer,
		logger:   logger.With("component", "http"),
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /notifications", s.handleCreate)
	mux.HandleFunc("GET /notifications", s.handleList)
	mux.HandleFunc("PUT /notifications", s.handleBackfill)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return chain(mux, requestID, s.accessLog, cors)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}
