// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package status serves the optional read-only HTTP surface of the server:
// liveness, the current catalog as JSON, and Prometheus metrics.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ManuGH/mediacast/internal/catalog"
	"github.com/ManuGH/mediacast/internal/log"
	"github.com/ManuGH/mediacast/internal/selector"
)

const shutdownTimeout = 5 * time.Second

// CatalogEntry is the JSON form of one catalog entry.
type CatalogEntry struct {
	File       string `json:"file"`
	Movie      string `json:"movie"`
	Resolution int    `json:"resolution"`
	Format     string `json:"format"`
	Provenance string `json:"provenance"`
}

// CatalogResponse is the body of GET /catalog.
type CatalogResponse struct {
	Dir     string         `json:"dir"`
	BuiltAt time.Time      `json:"builtAt"`
	Count   int            `json:"count"`
	Movies  []string       `json:"movies"`
	Entries []CatalogEntry `json:"entries"`
}

// NewRouter returns the status routes over the catalogs holder.
func NewRouter(catalogs *catalog.Holder, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(recoverer(logger))
	r.Use(requestID)
	r.Use(accessLog(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/catalog", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, catalogResponse(catalogs.Load()))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return otelhttp.NewHandler(r, "status")
}

func catalogResponse(c *catalog.Catalog) CatalogResponse {
	resp := CatalogResponse{
		Dir:     c.Dir(),
		BuiltAt: c.BuiltAt(),
		Count:   c.Len(),
		Movies:  append([]string{}, selector.MovieNames(c.Identities())...),
		Entries: make([]CatalogEntry, 0, c.Len()),
	}
	for _, e := range c.Entries() {
		resp.Entries = append(resp.Entries, CatalogEntry{
			File:       e.FileName,
			Movie:      e.MovieName,
			Resolution: e.Resolution,
			Format:     e.Format,
			Provenance: e.Provenance.String(),
		})
	}
	return resp
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Server runs the status router on its own listener.
type Server struct {
	addr    string
	handler http.Handler
	logger  zerolog.Logger
}

// NewServer returns a status server for addr.
func NewServer(addr string, catalogs *catalog.Holder, logger zerolog.Logger) *Server {
	return &Server{addr: addr, handler: NewRouter(catalogs, logger), logger: logger}
}

// ListenAndServe binds addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("status listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().
			Str(log.FieldEvent, "status.listening").
			Str("addr", ln.Addr().String()).
			Msg("status server listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("status server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("status shutdown: %w", err)
	}
	<-errCh
	s.logger.Info().Str(log.FieldEvent, "status.stopped").Msg("status server stopped")
	return nil
}
