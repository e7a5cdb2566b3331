// Package server carries the HTTP surface: routing, request-scoped
// logging, panic recovery and the mapping of service errors onto
// status codes and JSON bodies.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/embershare/ember/internal/constants"
	"github.com/embershare/ember/internal/logging"
	"github.com/embershare/ember/internal/models"
	"github.com/embershare/ember/internal/share"
)

// UploadGate admits or rejects an upload attempt by source address.
type UploadGate interface {
	AllowUpload(ctx context.Context, ip string) error
}

// HealthReporter produces the health document.
type HealthReporter interface {
	Report(ctx context.Context) *models.HealthResponse
}

// Deps collects everything the HTTP layer delegates to.
type Deps struct {
	Service     *share.Service
	Health      HealthReporter
	Gate        UploadGate
	Log         *logging.Logger
	ListenAddr  string
	MaxFileSize int64
}

// Server owns the router and the listener lifecycle.
type Server struct {
	svc         *share.Service
	health      HealthReporter
	gate        UploadGate
	log         *logging.Logger
	addr        string
	maxFileSize int64
}

// New builds a Server. A non-positive MaxFileSize falls back to the
// default blob cap.
func New(d Deps) *Server {
	maxSize := d.MaxFileSize
	if maxSize <= 0 {
		maxSize = constants.DefaultMaxFileSize
	}
	return &Server{
		svc:         d.Service,
		health:      d.Health,
		gate:        d.Gate,
		log:         d.Log,
		addr:        d.ListenAddr,
		maxFileSize: maxSize,
	}
}

// Handler assembles the router. Upload and health are registered with
// and without the trailing slash so existing clients of either form
// keep working.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.requestLogger)
	r.Use(s.recoverer)

	r.Post("/upload", s.handleUpload)
	r.Post("/upload/", s.handleUpload)
	r.Get("/preview/{key}", s.handlePreview)
	r.Get("/download/{key}", s.handleDownload)
	r.Get("/status/{key}", s.handleStatus)
	r.Get("/health", s.handleHealth)
	r.Get("/health/", s.handleHealth)

	return r
}

// Run serves until ctx is canceled, then drains in-flight requests
// within the shutdown grace window.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: constants.ServerReadHeaderTimeout,
		ReadTimeout:       constants.ServerReadTimeout,
		WriteTimeout:      constants.ServerWriteTimeout,
		IdleTimeout:       constants.ServerIdleTimeout,
		ErrorLog:          logging.StdLogger(s.log),
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.log.Info().Msg("Shutting down, draining in-flight requests")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ServerShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	s.log.Info().Msg("HTTP server stopped")
	return nil
}
