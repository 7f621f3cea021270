// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transcode

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/mediacast/internal/media"
	"github.com/ManuGH/mediacast/internal/process"
	"github.com/ManuGH/mediacast/internal/process/processtest"
)

// writingRunner emulates ffmpeg by writing to the last argument.
type writingRunner struct {
	calls atomic.Int32
	delay time.Duration
	fail  bool
}

func (r *writingRunner) Start(_ context.Context, _ string, args []string) (process.Handle, error) {
	r.calls.Add(1)
	time.Sleep(r.delay)
	if !r.fail {
		if err := os.WriteFile(args[len(args)-1], []byte("media"), 0o644); err != nil {
			return nil, err
		}
	}
	var err error
	if r.fail {
		err = errors.New("exit status 1")
	}
	return (&processtest.Runner{Err: err}).Start(context.Background(), "", nil)
}

func newJob(dir string) Job {
	p := media.NewParser(nil, nil)
	return Job{
		Input:  filepath.Join(dir, "movie-1080p.mp4"),
		Output: filepath.Join(dir, "movie-720p.mkv"),
		Target: p.Parse("movie-720p.mkv"),
	}
}

func TestFFmpeg_CommitsOutput(t *testing.T) {
	dir := t.TempDir()
	r := &writingRunner{}
	tc := NewFFmpeg("ffmpeg", r, zerolog.Nop())

	job := newJob(dir)
	require.NoError(t, tc.Transcode(context.Background(), job))

	data, err := os.ReadFile(job.Output)
	require.NoError(t, err)
	assert.Equal(t, "media", string(data))
	assert.EqualValues(t, 1, r.calls.Load())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFFmpeg_ExistingOutputIsNotOverwritten(t *testing.T) {
	dir := t.TempDir()
	job := newJob(dir)
	require.NoError(t, os.WriteFile(job.Output, []byte("original"), 0o644))

	r := &writingRunner{}
	tc := NewFFmpeg("ffmpeg", r, zerolog.Nop())

	err := tc.Transcode(context.Background(), job)
	require.ErrorIs(t, err, ErrExists)
	assert.EqualValues(t, 0, r.calls.Load())

	data, err := os.ReadFile(job.Output)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
}

func TestFFmpeg_FailureLeavesNoOutput(t *testing.T) {
	dir := t.TempDir()
	job := newJob(dir)
	tc := NewFFmpeg("ffmpeg", &writingRunner{fail: true}, zerolog.Nop())

	err := tc.Transcode(context.Background(), job)
	require.Error(t, err)

	_, statErr := os.Stat(job.Output)
	assert.True(t, os.IsNotExist(statErr))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFFmpeg_ConcurrentSamePathRunsOnce(t *testing.T) {
	dir := t.TempDir()
	job := newJob(dir)
	r := &writingRunner{delay: 50 * time.Millisecond}
	tc := NewFFmpeg("ffmpeg", r, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := tc.Transcode(context.Background(), job)
			if err != nil {
				assert.ErrorIs(t, err, ErrExists)
			}
		}()
	}
	wg.Wait()

	_, err := os.Stat(job.Output)
	require.NoError(t, err)
	assert.EqualValues(t, 1, r.calls.Load())
}

func TestBuildArgs(t *testing.T) {
	job := newJob("/media")

	args, err := BuildArgs(job, "/media/.movie-720p.mkv123")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"-nostats", "-hide_banner", "-loglevel", "error",
		"-y",
		"-i", "/media/movie-1080p.mp4",
		"-vf", "scale=-2:720",
		"-f", "matroska", "/media/.movie-720p.mkv123",
	}, args)

	job.Target.Format = "flv"
	_, err = BuildArgs(job, "x")
	assert.Error(t, err)
}
