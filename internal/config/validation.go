// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/rs/zerolog"
)

// FieldError is one failed check.
type FieldError struct {
	Field   string
	Value   any
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// ValidationError bundles every failed check of one Validate call.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap lets errors.Is match ErrInvalidConfig.
func (e *ValidationError) Unwrap() error { return ErrInvalidConfig }

type validator struct {
	errs []FieldError
}

func (v *validator) add(field, msg string, value any) {
	v.errs = append(v.errs, FieldError{Field: field, Value: value, Message: msg})
}

func (v *validator) notEmpty(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.add(field, "must not be empty", value)
	}
}

func (v *validator) listenAddr(field, value string) {
	if _, _, err := net.SplitHostPort(value); err != nil {
		v.add(field, fmt.Sprintf("invalid listen address: %v", err), value)
	}
}

func (v *validator) min(field string, value, minVal int) {
	if value < minVal {
		v.add(field, fmt.Sprintf("must be at least %d, got %d", minVal, value), value)
	}
}

func (v *validator) err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return &ValidationError{Errors: append([]FieldError(nil), v.errs...)}
}

// Validate checks cfg and reports every violation at once.
func Validate(cfg AppConfig) error {
	v := &validator{}

	v.notEmpty("MediaDir", cfg.MediaDir)
	v.listenAddr("ListenAddr", cfg.ListenAddr)
	if cfg.StatusAddr != "" {
		v.listenAddr("StatusAddr", cfg.StatusAddr)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel)); err != nil {
		v.add("LogLevel", "unknown log level", cfg.LogLevel)
	}

	validateFormats(v, cfg.Formats)
	validateLadder(v, cfg.Resolutions)

	v.notEmpty("FFmpeg.Binary", cfg.FFmpeg.Binary)
	v.notEmpty("FFmpeg.PlayerBinary", cfg.FFmpeg.PlayerBinary)
	if cfg.FFmpeg.KillGrace <= 0 {
		v.add("FFmpeg.KillGrace", "must be positive", cfg.FFmpeg.KillGrace)
	}
	v.min("Derive.Workers", cfg.Derive.Workers, 1)
	if cfg.Watch.Enabled && cfg.Watch.Debounce <= 0 {
		v.add("Watch.Debounce", "must be positive when watching", cfg.Watch.Debounce)
	}
	v.notEmpty("SDPPath", cfg.SDPPath)

	v.notEmpty("Client.ServerAddr", cfg.Client.ServerAddr)
	if cfg.Client.ProbeDuration <= 0 {
		v.add("Client.ProbeDuration", "must be positive", cfg.Client.ProbeDuration)
	}

	if cfg.Tracing.Enabled {
		if cfg.Tracing.Exporter != "grpc" && cfg.Tracing.Exporter != "http" {
			v.add("Tracing.Exporter", "must be grpc or http", cfg.Tracing.Exporter)
		}
		v.notEmpty("Tracing.Endpoint", cfg.Tracing.Endpoint)
	}
	if cfg.Tracing.SamplingRate < 0 || cfg.Tracing.SamplingRate > 1 {
		v.add("Tracing.SamplingRate", "must be between 0 and 1", cfg.Tracing.SamplingRate)
	}

	return v.err()
}

func validateFormats(v *validator, formats []string) {
	if len(formats) == 0 {
		v.add("Formats", "at least one format is required", formats)
		return
	}
	seen := make(map[string]struct{}, len(formats))
	for _, f := range formats {
		if f == "" || strings.ContainsAny(f, ".,-/ ") {
			v.add("Formats", "format must be a bare extension", f)
			continue
		}
		if _, dup := seen[f]; dup {
			v.add("Formats", "duplicate format", f)
		}
		seen[f] = struct{}{}
	}
}

func validateLadder(v *validator, ladder []int) {
	if len(ladder) == 0 {
		v.add("Resolutions", "at least one resolution is required", ladder)
		return
	}
	for i, r := range ladder {
		if r <= 0 {
			v.add("Resolutions", "resolutions must be positive", r)
			return
		}
		if i > 0 && r <= ladder[i-1] {
			v.add("Resolutions", "resolutions must be strictly ascending", ladder)
			return
		}
	}
}
