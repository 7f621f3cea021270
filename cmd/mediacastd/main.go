// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command mediacastd builds the media catalog and serves streaming sessions.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ManuGH/mediacast/internal/catalog"
	"github.com/ManuGH/mediacast/internal/config"
	"github.com/ManuGH/mediacast/internal/daemon"
	mclog "github.com/ManuGH/mediacast/internal/log"
	"github.com/ManuGH/mediacast/internal/telemetry"
	"github.com/ManuGH/mediacast/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	// Safe defaults until config is loaded.
	mclog.Configure(mclog.Config{
		Level:   "info",
		Service: "mediacastd",
		Version: version.Version,
	})
	logger := mclog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path := strings.TrimSpace(*configPath)
	cfg, err := config.NewLoader(path, version.Version).Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(mclog.FieldEvent, "config.load_failed").
			Str("config_path", path).
			Msg("failed to load configuration")
	}

	mclog.Configure(mclog.Config{
		Level:   cfg.LogLevel,
		Service: "mediacastd",
		Version: cfg.Version,
	})
	logger = mclog.WithComponent("daemon")

	source := "env+defaults"
	if path != "" {
		source = "file"
	}
	logger.Info().
		Str(mclog.FieldEvent, "config.loaded").
		Str("source", source).
		Str("media_dir", cfg.MediaDir).
		Strs("formats", cfg.Formats).
		Ints("resolutions", cfg.Resolutions).
		Str("sdp_path", cfg.SDPPath).
		Msg("configuration loaded")

	tracing, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    "mediacastd",
		ServiceVersion: cfg.Version,
		ExporterType:   cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
	})
	if err != nil {
		logger.Fatal().Err(err).Str(mclog.FieldEvent, "tracing.init_failed").Msg("failed to initialise tracing")
	}
	defer shutdownTracing(tracing)

	app, err := daemon.New(daemon.Options{Config: cfg, Logger: logger})
	if err != nil {
		logger.Fatal().Err(err).Str(mclog.FieldEvent, "daemon.init_failed").Msg("failed to initialise server")
	}

	if err := app.Run(ctx); err != nil {
		event := "daemon.failed"
		if errors.Is(err, catalog.ErrStartup) {
			event = "startup.failed"
		}
		logger.Error().Err(err).Str(mclog.FieldEvent, event).Msg("server exited with error")
		stop()
		shutdownTracing(tracing)
		os.Exit(1)
	}
}

func shutdownTracing(p *telemetry.Provider) {
	if err := p.Shutdown(context.Background()); err != nil {
		logger := mclog.WithComponent("telemetry")
		logger.Warn().Err(err).Str(mclog.FieldEvent, "tracing.shutdown_failed").Msg("failed to flush spans")
	}
}
