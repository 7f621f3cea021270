// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package probe measures download throughput for rendition selection.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/mediacast/internal/log"
	"github.com/ManuGH/mediacast/internal/selector"
)

// ErrProbeFailed means no usable measurement was taken. Callers treat it as
// "selection unavailable" rather than a fatal error.
var ErrProbeFailed = errors.New("bandwidth probe failed")

// DefaultDuration bounds a download probe.
const DefaultDuration = 5 * time.Second

// Prober returns one bandwidth sample.
type Prober interface {
	Measure(ctx context.Context) (selector.Bandwidth, error)
}

// Fixed is a Prober that always reports the same rate.
type Fixed selector.Bandwidth

// Measure returns f.
func (f Fixed) Measure(context.Context) (selector.Bandwidth, error) {
	return selector.Bandwidth(f), nil
}

// HTTPProber downloads from URL for at most Duration and reports the mean
// rate in Kbps.
type HTTPProber struct {
	URL      string
	Duration time.Duration
	Client   *http.Client
	Logger   zerolog.Logger

	now func() time.Time
}

// NewHTTPProber returns a prober for url. A nil client uses NewClient.
func NewHTTPProber(url string, duration time.Duration, client *http.Client) *HTTPProber {
	if duration <= 0 {
		duration = DefaultDuration
	}
	if client == nil {
		client = NewClient()
	}
	return &HTTPProber{
		URL:      url,
		Duration: duration,
		Client:   client,
		Logger:   log.WithComponent("probe"),
		now:      time.Now,
	}
}

// Measure performs one time-boxed download.
func (p *HTTPProber) Measure(ctx context.Context) (selector.Bandwidth, error) {
	if strings.TrimSpace(p.URL) == "" {
		return 0, fmt.Errorf("%w: no probe url configured", ErrProbeFailed)
	}

	ctx, cancel := context.WithTimeout(ctx, p.Duration)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrProbeFailed, err)
	}

	start := p.now()
	resp, err := p.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrProbeFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("%w: unexpected status %d", ErrProbeFailed, resp.StatusCode)
	}

	n, err := io.Copy(io.Discard, resp.Body)
	elapsed := p.now().Sub(start)
	if err != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return 0, fmt.Errorf("%w: read body: %w", ErrProbeFailed, err)
	}
	if n == 0 || elapsed <= 0 {
		return 0, fmt.Errorf("%w: no data received", ErrProbeFailed)
	}

	bw := Rate(n, elapsed)
	p.Logger.Info().
		Str(log.FieldEvent, "probe.measured").
		Int64("bytes", n).
		Dur("elapsed", elapsed).
		Float64(log.FieldBandwidth, float64(bw)).
		Msg("bandwidth measured")
	return bw, nil
}

// Rate converts bytes transferred over elapsed into Kbps.
func Rate(bytes int64, elapsed time.Duration) selector.Bandwidth {
	if elapsed <= 0 {
		return 0
	}
	bits := float64(bytes) * 8
	return selector.Kbps(bits / elapsed.Seconds() / 1000)
}
