// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/mediacast/internal/catalog"
	"github.com/ManuGH/mediacast/internal/config"
	mclog "github.com/ManuGH/mediacast/internal/log"
	"github.com/ManuGH/mediacast/internal/media"
	"github.com/ManuGH/mediacast/internal/probe"
	"github.com/ManuGH/mediacast/internal/process"
	"github.com/ManuGH/mediacast/internal/selector"
	"github.com/ManuGH/mediacast/internal/session"
	"github.com/ManuGH/mediacast/internal/transport"
)

const (
	sdpWaitTimeout = 10 * time.Second
	// sessionDrainTimeout bounds the wait for the server to end the session
	// after the player exits.
	sessionDrainTimeout = 5 * time.Second
)

var (
	errUnknownMovie     = errors.New("movie not in catalog")
	errUnknownFormat    = errors.New("format not offered")
	errNotSelectable    = errors.New("resolution not selectable at measured bandwidth")
	errMissingRendition = errors.New("rendition not in catalog")
)

type options struct {
	movie      string
	format     string
	protocol   string
	resolution string
}

type client struct {
	cfg    config.AppConfig
	prober probe.Prober
	runner process.Runner
	dial   func(ctx context.Context, addr string) (*session.Client, error)
	out    io.Writer
	logger zerolog.Logger

	sdpInterval  time.Duration
	sessionDrain time.Duration
}

func (c *client) run(ctx context.Context, opts options) error {
	bw, err := c.prober.Measure(ctx)
	if err != nil {
		// Only the unconditional rendition stays selectable.
		c.logger.Warn().
			Err(err).
			Str(mclog.FieldEvent, "probe.unavailable").
			Msg("bandwidth unknown, selection unavailable beyond " + selector.Fallback)
		bw = 0
	}

	sc, err := c.dial(ctx, c.cfg.Client.ServerAddr)
	if err != nil {
		return err
	}
	defer func() { _ = sc.Close() }()

	files, err := sc.FetchCatalog()
	if err != nil {
		return err
	}
	parser := media.NewParser(c.cfg.Formats, c.cfg.Resolutions)
	ids := catalog.ParseLine(strings.Join(files, catalog.Separator), parser)
	movies := selector.MovieNames(ids)

	if opts.movie == "" {
		c.printListing(movies, parser.Formats())
		return nil
	}
	if !selector.Contains(movies, opts.movie) {
		return fmt.Errorf("%w: %q", errUnknownMovie, opts.movie)
	}

	choices := selector.ForMovie(bw, opts.movie, ids)
	_, _ = fmt.Fprintf(c.out, "bandwidth: %.0f Kbps\nresolutions for %s: %s\n",
		float64(bw), opts.movie, strings.Join(choices, ", "))

	req, err := c.request(opts, parser, files, choices)
	if err != nil {
		return err
	}

	resolver := transport.NewResolver(transport.DefaultEndpoints(c.cfg.SDPPath))
	rtp := strings.EqualFold(req.Protocol, string(transport.RTP))
	if rtp {
		if err := os.Remove(c.cfg.SDPPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale sdp: %w", err)
		}
	}

	if err := sc.RequestStream(req); err != nil {
		return err
	}
	c.logger.Info().
		Str(mclog.FieldEvent, "client.requested").
		Str(mclog.FieldFile, req.FileName).
		Str(mclog.FieldProtocol, req.Protocol).
		Float64(mclog.FieldBandwidth, float64(bw)).
		Msg("stream requested")

	if rtp {
		waitCtx, cancel := context.WithTimeout(ctx, sdpWaitTimeout)
		_, err := transport.WaitForSDP(waitCtx, resolver.Endpoints(), c.sdpInterval)
		cancel()
		if err != nil {
			return err
		}
	}

	args, err := resolver.PlayerArgs(req.Protocol)
	if err != nil {
		return err
	}
	handle, err := c.runner.Start(ctx, c.cfg.FFmpeg.PlayerBinary, args)
	if err != nil {
		return fmt.Errorf("start player: %w", err)
	}
	if err := handle.Wait(); err != nil {
		return fmt.Errorf("player: %w", err)
	}
	c.drain(ctx, sc)
	return nil
}

// drain waits, at most sessionDrain, for the server to close the session
// once its stream process has exited. The caller's Close ends the read.
func (c *client) drain(ctx context.Context, sc *session.Client) {
	timeout := c.sessionDrain
	if timeout <= 0 {
		timeout = sessionDrainTimeout
	}
	done := make(chan error, 1)
	go func() { done <- sc.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		if err != nil {
			c.logger.Debug().Err(err).Str(mclog.FieldEvent, "client.session_lost").Msg("session ended with error")
			return
		}
		c.logger.Info().Str(mclog.FieldEvent, "client.session_closed").Msg("server ended the session")
	case <-timer.C:
		c.logger.Info().
			Str(mclog.FieldEvent, "client.session_abandoned").
			Dur("waited", timeout).
			Msg("server still streaming, closing session")
	case <-ctx.Done():
	}
}

// request validates the user's choice against the catalog and the
// selectable renditions. An empty resolution picks the first, highest, choice.
func (c *client) request(opts options, parser *media.Parser, files, choices []string) (session.Request, error) {
	protocol, err := transport.ParseProtocol(opts.protocol)
	if err != nil {
		return session.Request{}, err
	}
	format := strings.ToLower(strings.TrimPrefix(opts.format, "."))
	if !selector.Contains(parser.Formats(), format) {
		return session.Request{}, fmt.Errorf("%w: %q", errUnknownFormat, opts.format)
	}

	label := opts.resolution
	if label == "" {
		label = choices[0]
	}
	if !selector.Contains(choices, label) {
		return session.Request{}, fmt.Errorf("%w: %s", errNotSelectable, label)
	}
	res, err := media.ParseLabel(label)
	if err != nil {
		return session.Request{}, err
	}

	name := media.RenditionFileName(opts.movie, res, format)
	if !selector.Contains(files, name) {
		return session.Request{}, fmt.Errorf("%w: %s", errMissingRendition, name)
	}
	return session.Request{FileName: name, Protocol: string(protocol)}, nil
}

func (c *client) printListing(movies, formats []string) {
	protocols := make([]string, 0, 3)
	for _, p := range transport.Protocols() {
		protocols = append(protocols, string(p))
	}
	_, _ = fmt.Fprintf(c.out, "movies: %s\nformats: %s\nprotocols: %s\n",
		strings.Join(movies, ", "), strings.Join(formats, ", "), strings.Join(protocols, ", "))
}
