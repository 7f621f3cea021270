// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command mediacast picks a rendition for its bandwidth, asks a mediacastd
// server to stream it and plays it with ffplay.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ManuGH/mediacast/internal/config"
	mclog "github.com/ManuGH/mediacast/internal/log"
	"github.com/ManuGH/mediacast/internal/probe"
	"github.com/ManuGH/mediacast/internal/process"
	"github.com/ManuGH/mediacast/internal/selector"
	"github.com/ManuGH/mediacast/internal/session"
	"github.com/ManuGH/mediacast/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	movie := flag.String("movie", "", "movie to play (omit to list the catalog)")
	format := flag.String("format", "", "container format, e.g. mp4")
	protocol := flag.String("protocol", "", "transport: TCP, UDP or RTP")
	resolution := flag.String("resolution", "", "rendition label, e.g. 720p (default: best selectable)")
	bandwidth := flag.Float64("bandwidth", -1, "bandwidth in Kbps; skips the probe when set")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	mclog.Configure(mclog.Config{Level: "info", Service: "mediacast", Version: version.Version})
	logger := mclog.WithComponent("client")

	cfg, err := config.NewLoader(strings.TrimSpace(*configPath), version.Version).Load()
	if err != nil {
		logger.Fatal().Err(err).Str(mclog.FieldEvent, "config.load_failed").Msg("failed to load configuration")
	}
	mclog.Configure(mclog.Config{Level: cfg.LogLevel, Service: "mediacast", Version: cfg.Version})
	logger = mclog.WithComponent("client")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var prober probe.Prober = probe.NewHTTPProber(cfg.Client.ProbeURL, cfg.Client.ProbeDuration, nil)
	if *bandwidth >= 0 {
		prober = probe.Fixed(selector.Kbps(*bandwidth))
	}

	c := &client{
		cfg:    cfg,
		prober: prober,
		runner: process.NewExec(cfg.FFmpeg.KillGrace, mclog.WithComponent("player")),
		dial:   session.Dial,
		out:    os.Stdout,
		logger: logger,
	}
	err = c.run(ctx, options{
		movie:      *movie,
		format:     *format,
		protocol:   *protocol,
		resolution: *resolution,
	})
	if err != nil {
		logger.Error().Err(err).Str(mclog.FieldEvent, "client.failed").Msg("playback failed")
		stop()
		os.Exit(1)
	}
}
