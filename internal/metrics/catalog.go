// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics exposes Prometheus instruments for the catalog builder,
// the session server and the external process lifecycle.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CatalogBuildsTotal counts catalog builds by result.
	CatalogBuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediacast_catalog_builds_total",
		Help: "Total number of catalog builds by result",
	}, []string{"result"})

	// CatalogBuildDuration tracks the wall time of a full build including derivations.
	CatalogBuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mediacast_catalog_build_duration_seconds",
		Help:    "Duration of catalog builds including rendition derivation",
		Buckets: []float64{0.01, 0.1, 1, 5, 15, 60, 300, 900, 3600},
	})

	// CatalogEntries reports the size of the catalog currently being served.
	CatalogEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mediacast_catalog_entries",
		Help: "Number of files in the served catalog",
	})

	// DerivationsTotal counts rendition derivations by format and result.
	DerivationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediacast_derivations_total",
		Help: "Total rendition derivations by target format and result",
	}, []string{"format", "result"})
)

// ObserveCatalogBuild records one build outcome.
func ObserveCatalogBuild(success bool, entries int, d time.Duration) {
	result := "failure"
	if success {
		result = "success"
		CatalogEntries.Set(float64(entries))
	}
	CatalogBuildsTotal.WithLabelValues(result).Inc()
	CatalogBuildDuration.Observe(d.Seconds())
}

// IncDerivation records a derivation attempt ("success", "failure", "exists").
func IncDerivation(format, result string) {
	DerivationsTotal.WithLabelValues(format, result).Inc()
}
