// Package observability holds the Prometheus instruments for BLS retrieval
// and statistic runs.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
)

const namespace = "blsgeo"

// Metrics holds the Prometheus counters and histograms for the pipeline.
type Metrics struct {
	// BLS API metrics.
	BLSRequests        *prometheus.CounterVec // labels: outcome={success,http_error,transport_error,decode_error}
	BLSRequestDuration prometheus.Histogram
	SeriesRequested    prometheus.Counter
	ObservationsParsed prometheus.Counter

	// Statistic run metrics.
	Runs             *prometheus.CounterVec // labels: statistic, outcome={success,error}
	RegionsSelected  *prometheus.HistogramVec
	RowsJoined       *prometheus.CounterVec // labels: statistic
	Diagnostics      *prometheus.CounterVec // labels: statistic, code
	RunDuration *prometheus.HistogramVec
}

// NewMetrics creates the pipeline metrics and registers them with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		BLSRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bls_requests_total",
			Help:      "BLS API POST requests by outcome.",
		}, []string{"outcome"}),
		BLSRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bls_request_duration_seconds",
			Help:      "Duration of one BLS API POST request.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		SeriesRequested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "series_requested_total",
			Help:      "Series identifiers sent to the BLS API.",
		}),
		ObservationsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_parsed_total",
			Help:      "Observations decoded from BLS responses.",
		}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Statistic runs by statistic and outcome.",
		}, []string{"statistic", "outcome"}),
		RegionsSelected: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "regions_selected",
			Help:      "Regions selected per run.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000, 3500},
		}, []string{"statistic"}),
		RowsJoined: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_joined_total",
			Help:      "Rows produced by the region/observation join.",
		}, []string{"statistic"}),
		Diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_total",
			Help:      "Data-quality diagnostics raised after the join.",
		}, []string{"statistic", "code"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete statistic run.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"statistic"}),
	}

	for _, c := range []prometheus.Collector{
		m.BLSRequests,
		m.BLSRequestDuration,
		m.SeriesRequested,
		m.ObservationsParsed,
		m.Runs,
		m.RegionsSelected,
		m.RowsJoined,
		m.Diagnostics,
		m.RunDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, eris.Wrap(err, "observability: register metrics")
		}
	}

	return m, nil
}

// NewMetricsForTesting creates Metrics on a fresh registry to avoid
// "already registered" errors when called from multiple tests.
func NewMetricsForTesting() (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	if err != nil {
		panic(err)
	}
	return m, reg
}

// WriteTextfile writes the current state of g in the Prometheus text format,
// for node_exporter's textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return eris.Wrapf(err, "observability: write metrics to %s", path)
	}
	return nil
}
