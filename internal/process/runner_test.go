// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build unix

package process

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExec_WaitSuccess(t *testing.T) {
	r := NewExec(time.Second, zerolog.Nop())

	h, err := r.Start(context.Background(), "sh", []string{"-c", "echo hello >&2; exit 0"})
	require.NoError(t, err)
	require.NoError(t, h.Wait())
	assert.Equal(t, []string{"hello"}, h.Diagnostics())

	// Wait is idempotent.
	require.NoError(t, h.Wait())
}

func TestExec_NonZeroExit(t *testing.T) {
	r := NewExec(time.Second, zerolog.Nop())

	h, err := r.Start(context.Background(), "sh", []string{"-c", "exit 3"})
	require.NoError(t, err)

	err = h.Wait()
	require.Error(t, err)
	assert.Equal(t, 3, ExitCode(err))
}

func TestExec_StartFailure(t *testing.T) {
	r := NewExec(time.Second, zerolog.Nop())

	_, err := r.Start(context.Background(), "/nonexistent/ffmpeg", nil)
	require.Error(t, err)
}

func TestExec_ContextCancelStopsProcess(t *testing.T) {
	r := NewExec(200*time.Millisecond, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	h, err := r.Start(ctx, "sleep", []string{"30"})
	require.NoError(t, err)

	cancel()

	done := make(chan error, 1)
	go func() { done <- h.Wait() }()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("process was not terminated after cancel")
	}
}

func TestExec_StopAfterExit(t *testing.T) {
	r := NewExec(time.Second, zerolog.Nop())

	h, err := r.Start(context.Background(), "true", nil)
	require.NoError(t, err)
	require.NoError(t, h.Wait())
	require.NoError(t, h.Stop(time.Second))
}

func TestRingBuffer_Wraps(t *testing.T) {
	r := NewRingBuffer(3)
	for _, l := range []string{"a", "b", "c", "d"} {
		r.Add(l)
	}
	assert.Equal(t, []string{"b", "c", "d"}, r.GetAll())
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, -1, ExitCode(context.Canceled))
}
