// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads mediacast settings from defaults, a YAML file and
// MEDIACAST_* environment variables, in that order of precedence.
package config

import "time"

// AppConfig is the resolved runtime configuration.
type AppConfig struct {
	Version string

	MediaDir   string
	ListenAddr string
	// StatusAddr enables the HTTP status surface when non-empty.
	StatusAddr string
	LogLevel   string

	Formats     []string
	Resolutions []int

	FFmpeg FFmpegConfig
	Derive DeriveConfig
	Watch  WatchConfig

	// SDPPath is absolute after Load.
	SDPPath string

	Client ClientConfig

	Tracing TracingConfig
}

// FFmpegConfig names the external media tools.
type FFmpegConfig struct {
	Binary       string
	PlayerBinary string
	KillGrace    time.Duration
}

// DeriveConfig bounds startup derivation.
type DeriveConfig struct {
	Workers int
}

// WatchConfig controls live rescans of the media directory.
type WatchConfig struct {
	Enabled  bool
	Debounce time.Duration
}

// ClientConfig holds settings only the client binary reads.
type ClientConfig struct {
	ServerAddr    string
	ProbeURL      string
	ProbeDuration time.Duration
}

// TracingConfig controls OpenTelemetry span export.
type TracingConfig struct {
	Enabled bool
	// Exporter is "grpc" or "http".
	Exporter     string
	Endpoint     string
	SamplingRate float64
}

// FileConfig is the on-disk YAML shape. Pointers distinguish "unset" from
// zero values; durations use Go duration syntax.
type FileConfig struct {
	MediaDir    string   `yaml:"mediaDir,omitempty"`
	ListenAddr  string   `yaml:"listenAddr,omitempty"`
	StatusAddr  *string  `yaml:"statusAddr,omitempty"`
	LogLevel    string   `yaml:"logLevel,omitempty"`
	Formats     []string `yaml:"formats,omitempty"`
	Resolutions []int    `yaml:"resolutions,omitempty"`
	SDPPath     string   `yaml:"sdpPath,omitempty"`

	FFmpeg FileFFmpegConfig `yaml:"ffmpeg,omitempty"`
	Derive FileDeriveConfig `yaml:"derive,omitempty"`
	Watch  FileWatchConfig  `yaml:"watch,omitempty"`
	Client FileClientConfig `yaml:"client,omitempty"`

	Tracing FileTracingConfig `yaml:"tracing,omitempty"`
}

type FileFFmpegConfig struct {
	Binary       string `yaml:"binary,omitempty"`
	PlayerBinary string `yaml:"playerBinary,omitempty"`
	KillGrace    string `yaml:"killGrace,omitempty"`
}

type FileDeriveConfig struct {
	Workers *int `yaml:"workers,omitempty"`
}

type FileWatchConfig struct {
	Enabled  *bool  `yaml:"enabled,omitempty"`
	Debounce string `yaml:"debounce,omitempty"`
}

type FileClientConfig struct {
	ServerAddr    string `yaml:"serverAddr,omitempty"`
	ProbeURL      string `yaml:"probeURL,omitempty"`
	ProbeDuration string `yaml:"probeDuration,omitempty"`
}

type FileTracingConfig struct {
	Enabled      *bool    `yaml:"enabled,omitempty"`
	Exporter     string   `yaml:"exporter,omitempty"`
	Endpoint     string   `yaml:"endpoint,omitempty"`
	SamplingRate *float64 `yaml:"samplingRate,omitempty"`
}
