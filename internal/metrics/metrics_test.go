// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/mediacast/internal/metrics"
)

func TestObserveCatalogBuild(t *testing.T) {
	before := testutil.ToFloat64(metrics.CatalogBuildsTotal.WithLabelValues("success"))

	metrics.ObserveCatalogBuild(true, 15, time.Second)

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.CatalogBuildsTotal.WithLabelValues("success")))
	assert.Equal(t, float64(15), testutil.ToFloat64(metrics.CatalogEntries))

	metrics.ObserveCatalogBuild(false, 0, time.Second)
	assert.Equal(t, float64(15), testutil.ToFloat64(metrics.CatalogEntries), "failed build keeps the served size")
}

func TestSessionGauge(t *testing.T) {
	start := testutil.ToFloat64(metrics.SessionsActive)

	metrics.SessionOpened()
	assert.Equal(t, start+1, testutil.ToFloat64(metrics.SessionsActive))

	metrics.SessionClosed("streamed")
	assert.Equal(t, start, testutil.ToFloat64(metrics.SessionsActive))
}

func TestPromhttpExposure(t *testing.T) {
	metrics.IncDerivation("mkv", "success")
	metrics.IncStream("RTP", true)

	srv := httptest.NewServer(promhttp.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "mediacast_derivations_total"))
	assert.True(t, strings.Contains(string(body), "mediacast_streams_total"))
}
