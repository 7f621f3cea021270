// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/mediacast/internal/catalog"
	"github.com/ManuGH/mediacast/internal/log"
	"github.com/ManuGH/mediacast/internal/metrics"
	"github.com/ManuGH/mediacast/internal/telemetry"
)

// ServerConfig wires a Server.
type ServerConfig struct {
	ListenAddr string
	Catalogs   *catalog.Holder
	Handler    *Handler
	Logger     zerolog.Logger
}

// Server accepts connections and runs one independent session per
// connection. Sessions share nothing but the read-only catalog.
type Server struct {
	addr     string
	catalogs *catalog.Holder
	handler  *Handler
	logger   zerolog.Logger

	mu    sync.Mutex
	ln    net.Listener
	ready chan struct{}
	wg    sync.WaitGroup
}

// NewServer returns a Server for cfg.
func NewServer(cfg ServerConfig) *Server {
	return &Server{
		addr:     cfg.ListenAddr,
		catalogs: cfg.Catalogs,
		handler:  cfg.Handler,
		logger:   cfg.Logger,
		ready:    make(chan struct{}),
	}
}

// ListenAndServe binds the listen address and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Addr blocks until the server is listening and returns its address.
func (s *Server) Addr() net.Addr {
	<-s.ready
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ln.Addr()
}

// Serve accepts on ln until ctx is cancelled, then waits for open sessions.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	close(s.ready)

	s.logger.Info().
		Str(log.FieldEvent, "session.listening").
		Str("addr", ln.Addr().String()).
		Msg("session server listening")

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				s.logger.Info().Str(log.FieldEvent, "session.stopped").Msg("session server stopped")
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				delay = backoff(delay)
				s.logger.Warn().Err(err).Dur("retry_in", delay).Msg("accept error")
				time.Sleep(delay)
				continue
			}
			s.wg.Wait()
			return fmt.Errorf("accept: %w", err)
		}
		delay = 0

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

func backoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	if d *= 2; d > time.Second {
		d = time.Second
	}
	return d
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	sessionID := uuid.NewString()
	ctx = log.ContextWithSessionID(ctx, sessionID)
	ctx, span := telemetry.Tracer("session").Start(ctx, "session",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String(telemetry.SessionIDKey, sessionID),
			attribute.String(telemetry.SessionRemoteKey, conn.RemoteAddr().String()),
		))
	defer span.End()
	logger := log.WithContext(ctx, s.logger).With().
		Str(log.FieldRemote, conn.RemoteAddr().String()).
		Logger()

	// Shutdown unblocks pending reads.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer func() { _ = conn.Close() }()

	metrics.SessionOpened()
	logger.Info().Str(log.FieldEvent, "session.accepted").Msg("client connected")

	err := s.handler.Serve(ctx, conn, s.catalogs.Load())

	outcome := "streamed"
	switch {
	case err == nil:
		logger.Info().Str(log.FieldEvent, "session.closed").Msg("session finished")
	case errors.Is(err, ErrProtocolViolation):
		outcome = "protocol_violation"
		logger.Warn().Err(err).Str(log.FieldEvent, "session.protocol_violation").Msg("closing session")
	case errors.Is(err, ErrConnection):
		outcome = "disconnected"
		logger.Debug().Err(err).Str(log.FieldEvent, "session.disconnected").Msg("client went away")
	case errors.Is(err, ErrStreamFailed):
		outcome = "stream_failed"
		logger.Error().Err(err).Str(log.FieldEvent, "session.stream_failed").Msg("stream failed")
	default:
		outcome = "error"
		logger.Error().Err(err).Str(log.FieldEvent, "session.error").Msg("session error")
	}
	span.SetAttributes(attribute.String("outcome", outcome))
	if outcome != "streamed" {
		telemetry.RecordError(span, err)
	}
	metrics.SessionClosed(outcome)
}
