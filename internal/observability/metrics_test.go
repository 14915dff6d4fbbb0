package observability

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	m.BLSRequests.WithLabelValues("success").Inc()
	m.SeriesRequested.Add(50)
	m.Runs.WithLabelValues("laus", "success").Inc()

	assert.InDelta(t, 1, testutil.ToFloat64(m.BLSRequests.WithLabelValues("success")), 0)
	assert.InDelta(t, 50, testutil.ToFloat64(m.SeriesRequested), 0)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["blsgeo_bls_requests_total"])
	assert.True(t, names["blsgeo_series_requested_total"])
	assert.True(t, names["blsgeo_runs_total"])
}

func TestNewMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)

	_, err = NewMetrics(reg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "register metrics")
}

func TestWriteTextfile(t *testing.T) {
	m, reg := NewMetricsForTesting()
	m.ObservationsParsed.Add(12)

	path := filepath.Join(t.TempDir(), "blsgeo.prom")
	require.NoError(t, WriteTextfile(path, reg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "blsgeo_observations_parsed_total 12")
}
