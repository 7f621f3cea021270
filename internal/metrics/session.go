// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsActive is the number of connections currently being served.
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mediacast_sessions_active",
		Help: "Number of client sessions currently open",
	})

	// SessionsTotal counts finished sessions by outcome.
	SessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediacast_sessions_total",
		Help: "Total client sessions by outcome",
	}, []string{"outcome"})

	// StreamsTotal counts stream dispatches by transport and result.
	StreamsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediacast_streams_total",
		Help: "Total stream dispatches by transport and result",
	}, []string{"protocol", "result"})
)

// SessionOpened marks a connection as active.
func SessionOpened() { SessionsActive.Inc() }

// SessionClosed marks a connection as finished with the given outcome.
func SessionClosed(outcome string) {
	SessionsActive.Dec()
	SessionsTotal.WithLabelValues(outcome).Inc()
}

// IncStream records a stream dispatch outcome.
func IncStream(protocol string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	StreamsTotal.WithLabelValues(protocol, result).Inc()
}
