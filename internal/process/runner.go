// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package process is the capability boundary for external media tools.
// Core logic builds argument lists and hands them to a Runner; tests swap the
// Runner for a fake.
package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/mediacast/internal/procgroup"
)

// Runner starts external processes.
type Runner interface {
	Start(ctx context.Context, binary string, args []string) (Handle, error)
}

// Handle is a started process.
type Handle interface {
	// Wait blocks until the process exits and returns its exit error.
	Wait() error
	// Stop terminates the process group, escalating to SIGKILL after grace.
	Stop(grace time.Duration) error
	// Diagnostics returns the most recent stderr lines.
	Diagnostics() []string
}

// ExitCode extracts the exit code from a Wait error, or -1 if there is none.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// Exec runs processes with os/exec in their own process group. A cancelled
// context terminates the group with the configured grace period.
type Exec struct {
	Grace  time.Duration
	Logger zerolog.Logger
}

// NewExec returns an exec-backed Runner.
func NewExec(grace time.Duration, logger zerolog.Logger) *Exec {
	if grace <= 0 {
		grace = 5 * time.Second
	}
	return &Exec{Grace: grace, Logger: logger}
}

var _ Runner = (*Exec)(nil)

// Start launches binary with args.
func (e *Exec) Start(ctx context.Context, binary string, args []string) (Handle, error) {
	cmd := exec.Command(binary, args...)
	procgroup.Set(cmd)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("pipe stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", binary, err)
	}

	h := &handle{
		cmd:    cmd,
		waitCh: make(chan error, 1),
		done:   make(chan struct{}),
		ring:   NewRingBuffer(64),
	}
	go h.monitor(stderr)

	// Context cancellation tears the process group down; a natural exit
	// releases this goroutine through h.done.
	go func() {
		select {
		case <-ctx.Done():
			e.Logger.Debug().
				Int("pid", cmd.Process.Pid).
				Str("event", "process.cancelled").
				Msg("context cancelled, terminating process group")
			_ = h.Stop(e.Grace)
		case <-h.done:
		}
	}()

	return h, nil
}

type handle struct {
	cmd    *exec.Cmd
	waitCh chan error
	done   chan struct{}
	ring   *RingBuffer

	once sync.Once
	err  error
	mu   sync.Mutex
}

func (h *handle) monitor(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		h.ring.Add(scanner.Text())
	}
	h.waitCh <- h.cmd.Wait()
}

func (h *handle) collect() {
	h.once.Do(func() {
		h.err = <-h.waitCh
		close(h.done)
	})
}

func (h *handle) Wait() error {
	h.collect()
	return h.err
}

func (h *handle) Stop(grace time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	select {
	case <-h.done:
		return nil
	default:
	}

	// Terminate drains the wait channel itself; hand it a channel that
	// resolves through collect so Wait keeps working afterwards.
	ch := make(chan error, 1)
	go func() {
		h.collect()
		ch <- h.err
	}()
	return procgroup.Terminate(h.cmd, ch, grace)
}

func (h *handle) Diagnostics() []string {
	return h.ring.GetAll()
}

// RingBuffer keeps the last N lines written to it.
type RingBuffer struct {
	lines []string
	pos   int
	full  bool
	mu    sync.Mutex
}

// NewRingBuffer returns a ring buffer holding size lines.
func NewRingBuffer(size int) *RingBuffer {
	return &RingBuffer{lines: make([]string, size)}
}

// Add appends a line, evicting the oldest one when full.
func (r *RingBuffer) Add(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines[r.pos] = line
	r.pos = (r.pos + 1) % len(r.lines)
	if r.pos == 0 {
		r.full = true
	}
}

// GetAll returns the buffered lines oldest first.
func (r *RingBuffer) GetAll() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		return append([]string(nil), r.lines[:r.pos]...)
	}
	res := make([]string, len(r.lines))
	copy(res, r.lines[r.pos:])
	copy(res[len(r.lines)-r.pos:], r.lines[:r.pos])
	return res
}
