// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/mediacast/internal/selector"
)

func TestRate(t *testing.T) {
	// 1 MB in 8 s is 1000 Kbps.
	assert.InDelta(t, 1000, float64(Rate(1_000_000, 8*time.Second)), 0.001)
	assert.Zero(t, Rate(1000, 0))
}

func TestHTTPProber_Measure(t *testing.T) {
	payload := make([]byte, 250_000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	p := NewHTTPProber(srv.URL, time.Second, srv.Client())
	// Fake clock: every reading advances one second.
	clock := time.Unix(0, 0)
	p.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	bw, err := p.Measure(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 2000, float64(bw), 0.001)
}

func TestHTTPProber_DeadlineWhileStreamingCountsAsSample(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chunk := make([]byte, 4096)
		for {
			if _, err := w.Write(chunk); err != nil {
				return
			}
			w.(http.Flusher).Flush()
			select {
			case <-r.Context().Done():
				return
			case <-time.After(5 * time.Millisecond):
			}
		}
	}))
	defer srv.Close()

	bw, err := NewHTTPProber(srv.URL, 200*time.Millisecond, srv.Client()).Measure(context.Background())
	require.NoError(t, err)
	assert.Greater(t, float64(bw), 0.0)
}

func TestHTTPProber_Failures(t *testing.T) {
	notFound := httptest.NewServer(http.NotFoundHandler())
	defer notFound.Close()
	empty := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer empty.Close()

	tests := []struct {
		name string
		url  string
	}{
		{name: "no url", url: ""},
		{name: "status", url: notFound.URL},
		{name: "empty body", url: empty.URL},
		{name: "unreachable", url: "http://127.0.0.1:1/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHTTPProber(tt.url, time.Second, nil).Measure(context.Background())
			assert.ErrorIs(t, err, ErrProbeFailed)
		})
	}
}

func TestFixed(t *testing.T) {
	bw, err := Fixed(selector.Mbps(1.2)).Measure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"480p", "360p", "240p"}, selector.Selectable(bw, 1080))
}
