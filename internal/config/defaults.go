// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"github.com/ManuGH/mediacast/internal/media"
)

const (
	DefaultMediaDir      = "media"
	DefaultListenAddr    = ":8080"
	DefaultFFmpegBinary  = "ffmpeg"
	DefaultPlayerBinary  = "ffplay"
	DefaultKillGrace     = 5 * time.Second
	DefaultDeriveWorkers = 1
	DefaultWatchDebounce = 2 * time.Second
	DefaultSDPFile       = "video.sdp"
	DefaultServerAddr    = "127.0.0.1:8080"
	DefaultProbeDuration = 5 * time.Second
	DefaultLogLevel      = "info"

	DefaultTracingExporter   = "grpc"
	DefaultTracingEndpoint   = "localhost:4317"
	DefaultTracingSampleRate = 1.0
)

func defaults() AppConfig {
	return AppConfig{
		MediaDir:    DefaultMediaDir,
		ListenAddr:  DefaultListenAddr,
		LogLevel:    DefaultLogLevel,
		Formats:     append([]string(nil), media.DefaultFormats...),
		Resolutions: append([]int(nil), media.DefaultResolutions...),
		FFmpeg: FFmpegConfig{
			Binary:       DefaultFFmpegBinary,
			PlayerBinary: DefaultPlayerBinary,
			KillGrace:    DefaultKillGrace,
		},
		Derive: DeriveConfig{Workers: DefaultDeriveWorkers},
		Watch:  WatchConfig{Debounce: DefaultWatchDebounce},
		Client: ClientConfig{
			ServerAddr:    DefaultServerAddr,
			ProbeDuration: DefaultProbeDuration,
		},
		Tracing: TracingConfig{
			Exporter:     DefaultTracingExporter,
			Endpoint:     DefaultTracingEndpoint,
			SamplingRate: DefaultTracingSampleRate,
		},
	}
}
