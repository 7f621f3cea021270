// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon owns the server lifecycle: the catalog is built once before
// any listener is bound, then the session server, the optional status server
// and the optional directory watcher run until the context is cancelled.
package daemon

import (
	"context"
	"errors"
	"net"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/mediacast/internal/catalog"
	"github.com/ManuGH/mediacast/internal/config"
	"github.com/ManuGH/mediacast/internal/log"
	"github.com/ManuGH/mediacast/internal/media"
	"github.com/ManuGH/mediacast/internal/process"
	"github.com/ManuGH/mediacast/internal/session"
	"github.com/ManuGH/mediacast/internal/status"
	"github.com/ManuGH/mediacast/internal/transcode"
	"github.com/ManuGH/mediacast/internal/transport"
)

// ErrMissingConfig is returned when Options carries no media directory.
var ErrMissingConfig = errors.New("config is required")

// Options wires an App. Runner, Transcoder and the listeners are optional and
// default to the exec runner, the ffmpeg transcoder and fresh listeners on
// the configured addresses.
type Options struct {
	Config     config.AppConfig
	Logger     zerolog.Logger
	Runner     process.Runner
	Transcoder transcode.Transcoder

	SessionListener net.Listener
	StatusListener  net.Listener
}

// App is one server instance.
type App struct {
	cfg     config.AppConfig
	logger  zerolog.Logger
	builder *catalog.Builder
	server  *session.Server
	holder  *catalog.Holder

	sessionLn net.Listener
	statusLn  net.Listener
	ready     chan struct{}
}

// New assembles an App from opts.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg.MediaDir == "" {
		return nil, ErrMissingConfig
	}

	runner := opts.Runner
	if runner == nil {
		runner = process.NewExec(cfg.FFmpeg.KillGrace, log.WithComponent("process"))
	}
	transcoder := opts.Transcoder
	if transcoder == nil {
		transcoder = transcode.NewFFmpeg(cfg.FFmpeg.Binary, runner, log.WithComponent("transcode"))
	}

	parser := media.NewParser(cfg.Formats, cfg.Resolutions)
	builder := catalog.NewBuilder(catalog.BuilderConfig{
		Dir:        cfg.MediaDir,
		Parser:     parser,
		Transcoder: transcoder,
		Workers:    cfg.Derive.Workers,
		Logger:     log.WithComponent("catalog"),
	})

	resolver := transport.NewResolver(transport.DefaultEndpoints(cfg.SDPPath))
	handler := session.NewHandler(resolver, runner, cfg.FFmpeg.Binary, log.WithComponent("session"))

	a := &App{
		cfg:       cfg,
		logger:    opts.Logger,
		builder:   builder,
		holder:    catalog.NewHolder(catalog.New(cfg.MediaDir, nil)),
		sessionLn: opts.SessionListener,
		statusLn:  opts.StatusListener,
		ready:     make(chan struct{}),
	}
	a.server = session.NewServer(session.ServerConfig{
		ListenAddr: cfg.ListenAddr,
		Catalogs:   a.holder,
		Handler:    handler,
		Logger:     log.WithComponent("session"),
	})
	return a, nil
}

// Catalogs returns the holder sessions read from.
func (a *App) Catalogs() *catalog.Holder { return a.holder }

// Ready is closed once the initial catalog is in place.
func (a *App) Ready() <-chan struct{} { return a.ready }

// SessionAddr blocks until the session server is listening.
func (a *App) SessionAddr() net.Addr { return a.server.Addr() }

// Run builds the catalog and serves until ctx is cancelled or a component
// fails. A catalog build failure is returned before anything is bound.
func (a *App) Run(ctx context.Context) error {
	cat, report, err := a.builder.Build(ctx)
	if err != nil {
		a.closeListeners()
		return err
	}
	a.holder.Swap(cat)
	if report != nil && len(report.Failed) > 0 {
		a.logger.Warn().
			Str(log.FieldEvent, "daemon.derivations_failed").
			Int("failed", len(report.Failed)).
			Msg("some renditions could not be derived and are missing from the catalog")
	}
	close(a.ready)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if a.sessionLn != nil {
			return a.server.Serve(ctx, a.sessionLn)
		}
		return a.server.ListenAndServe(ctx)
	})

	if a.cfg.StatusAddr != "" || a.statusLn != nil {
		srv := status.NewServer(a.cfg.StatusAddr, a.holder, log.WithComponent("status"))
		g.Go(func() error {
			if a.statusLn != nil {
				return srv.Serve(ctx, a.statusLn)
			}
			return srv.ListenAndServe(ctx)
		})
	}

	if a.cfg.Watch.Enabled {
		w := catalog.NewWatcher(a.cfg.MediaDir, a.builder, a.holder, a.cfg.Watch.Debounce, log.WithComponent("watcher"))
		// Best-effort: a watcher failure leaves the startup catalog in place.
		g.Go(func() error {
			if err := w.Run(ctx); err != nil {
				a.logger.Warn().
					Err(err).
					Str(log.FieldEvent, "watcher.failed").
					Msg("catalog watcher stopped")
			}
			return nil
		})
	}

	a.logger.Info().
		Str(log.FieldEvent, "daemon.started").
		Int("entries", cat.Len()).
		Str("listen", a.cfg.ListenAddr).
		Str("status", a.cfg.StatusAddr).
		Bool("watch", a.cfg.Watch.Enabled).
		Msg("mediacast server running")

	err = g.Wait()
	a.logger.Info().Str(log.FieldEvent, "daemon.stopped").Msg("mediacast server stopped")
	return err
}

func (a *App) closeListeners() {
	for _, ln := range []net.Listener{a.sessionLn, a.statusLn} {
		if ln != nil {
			_ = ln.Close()
		}
	}
}
