// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment keys.
const (
	EnvMediaDir      = "MEDIACAST_MEDIA_DIR"
	EnvListen        = "MEDIACAST_LISTEN"
	EnvStatusListen  = "MEDIACAST_STATUS_LISTEN"
	EnvFormats       = "MEDIACAST_FORMATS"
	EnvFFmpegBin     = "MEDIACAST_FFMPEG_BIN"
	EnvFFplayBin     = "MEDIACAST_FFPLAY_BIN"
	EnvKillGrace     = "MEDIACAST_KILL_GRACE"
	EnvDeriveWorkers = "MEDIACAST_DERIVE_WORKERS"
	EnvWatch         = "MEDIACAST_WATCH"
	EnvSDPPath       = "MEDIACAST_SDP_PATH"
	EnvServerAddr    = "MEDIACAST_SERVER_ADDR"
	EnvProbeURL      = "MEDIACAST_PROBE_URL"
	EnvProbeDuration = "MEDIACAST_PROBE_DURATION"
	EnvLogLevel      = "MEDIACAST_LOG_LEVEL"

	EnvTracingEnabled    = "MEDIACAST_TRACING_ENABLED"
	EnvTracingExporter   = "MEDIACAST_OTLP_EXPORTER"
	EnvTracingEndpoint   = "MEDIACAST_OTLP_ENDPOINT"
	EnvTracingSampleRate = "MEDIACAST_TRACING_SAMPLE_RATE"
)

// Loader handles configuration loading with precedence.
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a loader for the optional YAML file at configPath.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

func (l *Loader) envList(key string, defaultVal []string) []string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseStringList(key, defaultVal)
}

// Load resolves the configuration: defaults, then the file (strict), then
// environment, then validation.
func (l *Loader) Load() (AppConfig, error) {
	cfg := defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := mergeFile(&cfg, fileCfg); err != nil {
			return cfg, fmt.Errorf("merge file config: %w", err)
		}
	}

	l.mergeEnv(&cfg)
	cfg.Version = l.version

	if err := resolvePaths(&cfg); err != nil {
		return cfg, err
	}

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile loads configuration from a YAML file with strict parsing.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("%w: %w", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return &fileCfg, nil
}

func mergeFile(dst *AppConfig, src *FileConfig) error {
	if src.MediaDir != "" {
		dst.MediaDir = os.ExpandEnv(src.MediaDir)
	}
	if src.ListenAddr != "" {
		dst.ListenAddr = src.ListenAddr
	}
	if src.StatusAddr != nil {
		dst.StatusAddr = *src.StatusAddr
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if len(src.Formats) > 0 {
		dst.Formats = append([]string(nil), src.Formats...)
	}
	if len(src.Resolutions) > 0 {
		dst.Resolutions = append([]int(nil), src.Resolutions...)
	}
	if src.SDPPath != "" {
		dst.SDPPath = os.ExpandEnv(src.SDPPath)
	}

	if src.FFmpeg.Binary != "" {
		dst.FFmpeg.Binary = src.FFmpeg.Binary
	}
	if src.FFmpeg.PlayerBinary != "" {
		dst.FFmpeg.PlayerBinary = src.FFmpeg.PlayerBinary
	}
	if err := mergeDuration(&dst.FFmpeg.KillGrace, "ffmpeg.killGrace", src.FFmpeg.KillGrace); err != nil {
		return err
	}

	if src.Derive.Workers != nil {
		dst.Derive.Workers = *src.Derive.Workers
	}

	if src.Watch.Enabled != nil {
		dst.Watch.Enabled = *src.Watch.Enabled
	}
	if err := mergeDuration(&dst.Watch.Debounce, "watch.debounce", src.Watch.Debounce); err != nil {
		return err
	}

	if src.Client.ServerAddr != "" {
		dst.Client.ServerAddr = src.Client.ServerAddr
	}
	if src.Client.ProbeURL != "" {
		dst.Client.ProbeURL = src.Client.ProbeURL
	}
	if err := mergeDuration(&dst.Client.ProbeDuration, "client.probeDuration", src.Client.ProbeDuration); err != nil {
		return err
	}

	if src.Tracing.Enabled != nil {
		dst.Tracing.Enabled = *src.Tracing.Enabled
	}
	if src.Tracing.Exporter != "" {
		dst.Tracing.Exporter = src.Tracing.Exporter
	}
	if src.Tracing.Endpoint != "" {
		dst.Tracing.Endpoint = src.Tracing.Endpoint
	}
	if src.Tracing.SamplingRate != nil {
		dst.Tracing.SamplingRate = *src.Tracing.SamplingRate
	}
	return nil
}

func mergeDuration(dst *time.Duration, field, raw string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	*dst = d
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.MediaDir = l.envString(EnvMediaDir, cfg.MediaDir)
	cfg.ListenAddr = l.envString(EnvListen, cfg.ListenAddr)
	cfg.StatusAddr = l.envString(EnvStatusListen, cfg.StatusAddr)
	cfg.LogLevel = l.envString(EnvLogLevel, cfg.LogLevel)
	cfg.Formats = l.envList(EnvFormats, cfg.Formats)
	cfg.SDPPath = l.envString(EnvSDPPath, cfg.SDPPath)

	cfg.FFmpeg.Binary = l.envString(EnvFFmpegBin, cfg.FFmpeg.Binary)
	cfg.FFmpeg.PlayerBinary = l.envString(EnvFFplayBin, cfg.FFmpeg.PlayerBinary)
	cfg.FFmpeg.KillGrace = l.envDuration(EnvKillGrace, cfg.FFmpeg.KillGrace)
	cfg.Derive.Workers = l.envInt(EnvDeriveWorkers, cfg.Derive.Workers)
	cfg.Watch.Enabled = l.envBool(EnvWatch, cfg.Watch.Enabled)

	cfg.Client.ServerAddr = l.envString(EnvServerAddr, cfg.Client.ServerAddr)
	cfg.Client.ProbeURL = l.envString(EnvProbeURL, cfg.Client.ProbeURL)
	cfg.Client.ProbeDuration = l.envDuration(EnvProbeDuration, cfg.Client.ProbeDuration)

	cfg.Tracing.Enabled = l.envBool(EnvTracingEnabled, cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = l.envString(EnvTracingExporter, cfg.Tracing.Exporter)
	cfg.Tracing.Endpoint = l.envString(EnvTracingEndpoint, cfg.Tracing.Endpoint)
	cfg.Tracing.SamplingRate = l.envFloat(EnvTracingSampleRate, cfg.Tracing.SamplingRate)
}

// resolvePaths makes the SDP path absolute against the working directory.
func resolvePaths(cfg *AppConfig) error {
	if cfg.SDPPath == "" {
		cfg.SDPPath = DefaultSDPFile
	}
	abs, err := filepath.Abs(cfg.SDPPath)
	if err != nil {
		return fmt.Errorf("resolve sdp path: %w", err)
	}
	cfg.SDPPath = abs

	for i, f := range cfg.Formats {
		cfg.Formats[i] = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(f), "."))
	}
	return nil
}
