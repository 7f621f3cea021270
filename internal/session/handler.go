// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/mediacast/internal/catalog"
	"github.com/ManuGH/mediacast/internal/log"
	"github.com/ManuGH/mediacast/internal/metrics"
	"github.com/ManuGH/mediacast/internal/process"
	"github.com/ManuGH/mediacast/internal/telemetry"
	"github.com/ManuGH/mediacast/internal/transport"
)

// maxLine bounds a single request line.
const maxLine = 64 * 1024

// Handler runs the server side of one session.
type Handler struct {
	resolver *transport.Resolver
	runner   process.Runner
	binary   string
	logger   zerolog.Logger
}

// NewHandler returns a Handler that streams with binary (ffmpeg) via runner.
func NewHandler(resolver *transport.Resolver, runner process.Runner, binary string, logger zerolog.Logger) *Handler {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Handler{resolver: resolver, runner: runner, binary: binary, logger: logger}
}

type serverSession struct {
	h       *Handler
	cat     *catalog.Catalog
	scanner *bufio.Scanner
	w       io.Writer
	state   State
	logger  zerolog.Logger
}

// Serve runs one session over rw against the read-only catalog cat. It
// returns nil once a stream has been dispatched and its process has exited
// cleanly.
func (h *Handler) Serve(ctx context.Context, rw io.ReadWriter, cat *catalog.Catalog) error {
	sc := bufio.NewScanner(rw)
	sc.Buffer(make([]byte, 0, 4096), maxLine)

	s := &serverSession{
		h:       h,
		cat:     cat,
		scanner: sc,
		w:       rw,
		state:   AwaitCatalogRequest,
		logger:  log.WithContext(ctx, h.logger),
	}
	defer s.transition(Closed)
	return s.run(ctx)
}

func (s *serverSession) run(ctx context.Context) error {
	first, err := s.readLine()
	if err != nil {
		return err
	}

	line := first
	if first == GetFiles {
		if err := s.writeLine(s.cat.Line()); err != nil {
			return err
		}
		s.transition(CatalogSent)
		s.logger.Info().
			Str(log.FieldEvent, "session.catalog_sent").
			Int("entries", s.cat.Len()).
			Msg("sent catalog to client")
		line = ""
	}
	// Any other first line is already the stream request.
	s.transition(AwaitStreamRequest)

	for strings.TrimSpace(line) == "" {
		if line, err = s.readLine(); err != nil {
			return err
		}
	}

	req, err := ParseRequest(line)
	if err != nil {
		return err
	}
	return s.dispatch(ctx, req)
}

func (s *serverSession) dispatch(ctx context.Context, req Request) (err error) {
	ctx, span := telemetry.Tracer("session").Start(ctx, "stream.dispatch",
		trace.WithAttributes(telemetry.StreamAttributes(req.FileName, req.Protocol)...))
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	logger := s.logger.With().
		Str(log.FieldFile, req.FileName).
		Str(log.FieldProtocol, req.Protocol).
		Logger()

	if _, ok := s.cat.Lookup(req.FileName); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFile, req.FileName)
	}
	args, err := s.h.resolver.ServerArgs(s.cat.Path(req.FileName), req.Protocol)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProtocolViolation, err)
	}
	protocol := strings.ToUpper(req.Protocol)

	s.transition(StreamDispatched)
	logger.Info().
		Str(log.FieldEvent, "stream.dispatched").
		Strs("args", args).
		Msg("starting stream")

	handle, err := s.h.runner.Start(ctx, s.h.binary, args)
	if err != nil {
		metrics.IncStream(protocol, false)
		return fmt.Errorf("%w: %w", ErrStreamFailed, err)
	}
	if err := handle.Wait(); err != nil {
		metrics.IncStream(protocol, false)
		logger.Warn().
			Err(err).
			Str(log.FieldEvent, "stream.exited").
			Int(log.FieldExitCode, process.ExitCode(err)).
			Strs("stderr", handle.Diagnostics()).
			Msg("streaming process exited with error")
		return fmt.Errorf("%w: %w", ErrStreamFailed, err)
	}

	metrics.IncStream(protocol, true)
	logger.Info().
		Str(log.FieldEvent, "stream.completed").
		Msg("streaming process completed")
	return nil
}

func (s *serverSession) readLine() (string, error) {
	if s.scanner.Scan() {
		return strings.TrimRight(s.scanner.Text(), "\r"), nil
	}
	err := s.scanner.Err()
	if errors.Is(err, bufio.ErrTooLong) {
		return "", fmt.Errorf("%w: line exceeds %d bytes", ErrProtocolViolation, maxLine)
	}
	if err == nil {
		err = io.EOF
	}
	return "", fmt.Errorf("%w: read in %s: %w", ErrConnection, s.state, err)
}

func (s *serverSession) writeLine(line string) error {
	if _, err := io.WriteString(s.w, line+"\n"); err != nil {
		return fmt.Errorf("%w: write in %s: %w", ErrConnection, s.state, err)
	}
	return nil
}

func (s *serverSession) transition(to State) {
	if s.state == to {
		return
	}
	s.logger.Debug().
		Str(log.FieldOldState, s.state.String()).
		Str(log.FieldNewState, to.String()).
		Msg("session state change")
	s.state = to
}
