// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package transcode derives renditions of a source file with ffmpeg.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/ManuGH/mediacast/internal/media"
	"github.com/ManuGH/mediacast/internal/process"
)

// ErrExists is returned when the output already exists. Existing files are
// treated as derived and are never overwritten.
var ErrExists = errors.New("output already exists")

// Job describes one derivation.
type Job struct {
	Input  string
	Output string
	Target media.Identity
}

// Transcoder derives Job.Output from Job.Input.
type Transcoder interface {
	Transcode(ctx context.Context, job Job) error
}

// muxers maps container extensions to ffmpeg muxer names. The temp file has
// no usable extension, so the muxer is always passed explicitly.
var muxers = map[string]string{
	"avi":  "avi",
	"mp4":  "mp4",
	"mkv":  "matroska",
	"webm": "webm",
	"mov":  "mov",
	"ts":   "mpegts",
}

// FFmpeg is the ffmpeg-backed Transcoder.
type FFmpeg struct {
	binary string
	runner process.Runner
	logger zerolog.Logger
	group  singleflight.Group
}

// NewFFmpeg returns a Transcoder running binary through runner.
func NewFFmpeg(binary string, runner process.Runner, logger zerolog.Logger) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{binary: binary, runner: runner, logger: logger}
}

var _ Transcoder = (*FFmpeg)(nil)

// Transcode writes the job output atomically. Concurrent calls for the same
// output path share one ffmpeg run.
func (f *FFmpeg) Transcode(ctx context.Context, job Job) error {
	_, err, _ := f.group.Do(job.Output, func() (any, error) {
		return nil, f.transcode(ctx, job)
	})
	return err
}

func (f *FFmpeg) transcode(ctx context.Context, job Job) error {
	if _, err := os.Stat(job.Output); err == nil {
		return ErrExists
	}

	pending, err := renameio.NewPendingFile(job.Output, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			f.logger.Debug().Err(err).Str("output", job.Output).Msg("cleanup pending file")
		}
	}()

	args, err := BuildArgs(job, pending.Name())
	if err != nil {
		return err
	}

	h, err := f.runner.Start(ctx, f.binary, args)
	if err != nil {
		return fmt.Errorf("start transcoder: %w", err)
	}
	if err := h.Wait(); err != nil {
		return fmt.Errorf("transcoder exited (code %d): %w", process.ExitCode(err), err)
	}

	// Another process may have produced the file while ffmpeg ran.
	if _, err := os.Stat(job.Output); err == nil {
		return ErrExists
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("commit %s: %w", filepath.Base(job.Output), err)
	}
	return nil
}

// BuildArgs returns the ffmpeg arguments that derive job into tmpPath.
func BuildArgs(job Job, tmpPath string) ([]string, error) {
	muxer, ok := muxers[job.Target.Format]
	if !ok {
		return nil, fmt.Errorf("no muxer for format %q", job.Target.Format)
	}
	args := []string{
		"-nostats", "-hide_banner", "-loglevel", "error",
		"-y",
		"-i", job.Input,
	}
	if job.Target.Resolution > 0 {
		args = append(args, "-vf", "scale=-2:"+strconv.Itoa(job.Target.Resolution))
	}
	return append(args, "-f", muxer, tmpPath), nil
}
