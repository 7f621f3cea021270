// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package processtest provides a recording process.Runner for tests.
package processtest

import (
	"context"
	"sync"
	"time"

	"github.com/ManuGH/mediacast/internal/process"
)

// Call is one recorded Start invocation.
type Call struct {
	Binary string
	Args   []string
}

// Runner records Start calls and returns handles that exit with Err.
type Runner struct {
	// StartErr, when set, is returned from Start.
	StartErr error
	// Err is returned from Wait.
	Err error
	// Block, when non-nil, makes Wait block until it is closed.
	Block chan struct{}

	mu    sync.Mutex
	calls []Call
}

var _ process.Runner = (*Runner)(nil)

// Start records the call.
func (r *Runner) Start(_ context.Context, binary string, args []string) (process.Handle, error) {
	r.mu.Lock()
	r.calls = append(r.calls, Call{Binary: binary, Args: append([]string(nil), args...)})
	r.mu.Unlock()

	if r.StartErr != nil {
		return nil, r.StartErr
	}
	return &handle{err: r.Err, block: r.Block}, nil
}

// Calls returns a copy of the recorded calls.
func (r *Runner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

type handle struct {
	err   error
	block chan struct{}
}

func (h *handle) Wait() error {
	if h.block != nil {
		<-h.block
	}
	return h.err
}

func (h *handle) Stop(time.Duration) error { return nil }

func (h *handle) Diagnostics() []string { return nil }
