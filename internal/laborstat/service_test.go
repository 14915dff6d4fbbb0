package laborstat

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/blsgeo/internal/apperr"
	"github.com/sells-group/blsgeo/internal/bls"
	"github.com/sells-group/blsgeo/internal/geo"
	"github.com/sells-group/blsgeo/internal/observability"
	"github.com/sells-group/blsgeo/internal/reference"
)

type stubSelector struct {
	regions   map[string][]geo.Region
	product   reference.Product
	predicate geo.Predicate
	buffer    float64
	calls     int
}

func (s *stubSelector) SelectRegions(_ context.Context, product reference.Product, _ geo.Boundary, predicate geo.Predicate, buffer float64) ([]geo.Region, error) {
	s.calls++
	s.product = product
	s.predicate = predicate
	s.buffer = buffer
	return s.regions[product.Name], nil
}

type stubFetcher struct {
	ids  []string
	opts bls.FetchOptions
	// respond returns the observation for an id, or false to omit it.
	respond func(id string) (bls.Observation, bool)
	err     error
}

func (f *stubFetcher) FetchObservations(_ context.Context, ids []string, opts bls.FetchOptions) ([]bls.Observation, error) {
	f.ids = ids
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	var out []bls.Observation
	for _, id := range ids {
		if f.respond == nil {
			continue
		}
		if o, ok := f.respond(id); ok {
			out = append(out, o)
		}
	}
	return out, nil
}

var unitBoundary = &geo.Boundary{Geometries: []geom.T{
	geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}),
}}

func metros() []geo.Region {
	return []geo.Region{
		{Code: "38060", Name: "Phoenix-Mesa-Chandler, AZ", StateFIPS: "04"},
		{Code: "46060", Name: "Tucson, AZ", StateFIPS: "04"},
	}
}

func newTestService(t *testing.T, fetcher Fetcher) (*Service, *stubSelector, *clockwork.FakeClock, *observability.Metrics) {
	t.Helper()
	sel := &stubSelector{regions: map[string][]geo.Region{
		reference.Counties.Name: fourCounties(),
		reference.Metros.Name:   metros(),
	}}
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	metrics, _ := observability.NewMetricsForTesting()
	svc := NewService(sel, fetcher,
		WithClock(clock),
		WithMetrics(metrics),
		WithRunID(func() string { return "run-1" }),
	)
	return svc, sel, clock, metrics
}

func TestService_LAUS(t *testing.T) {
	fetcher := &stubFetcher{respond: func(id string) (bls.Observation, bool) {
		if id[len(id)-2:] != "03" {
			return bls.Observation{}, false
		}
		return obs(id, "4.5"), true
	}}
	svc, sel, _, metrics := newTestService(t, fetcher)

	res, err := svc.LAUS(context.Background(), Request{Boundary: unitBoundary, APIKey: "k"},
		LAUSParams{Measures: []string{"03", "06"}})
	require.NoError(t, err)

	assert.Equal(t, reference.Counties, sel.product)
	assert.Equal(t, geo.Intersects, sel.predicate)
	assert.InDelta(t, DefaultBuffer, sel.buffer, 0)

	assert.Len(t, fetcher.ids, 8)
	assert.Equal(t, "LAUCN040010000000003", fetcher.ids[0])
	assert.True(t, fetcher.opts.LatestOnly)
	assert.Equal(t, "k", fetcher.opts.APIKey)

	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, "laus", res.Statistic)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), res.RetrievedAt)
	assert.Equal(t, 8, res.SeriesRequested)
	assert.Equal(t, 1, res.BatchesSent)
	assert.Len(t, res.Rows, 8)
	assert.Len(t, res.Regions, 4)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, DiagNullValues, res.Diagnostics[0].Code)
	assert.Equal(t, 4, res.Diagnostics[0].Count)

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Runs.WithLabelValues("laus", "success")), 0)
	assert.InDelta(t, 8, testutil.ToFloat64(metrics.RowsJoined.WithLabelValues("laus")), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(metrics.Diagnostics.WithLabelValues("laus", DiagNullValues)), 0)
}

func TestService_Defaults(t *testing.T) {
	tests := []struct {
		name    string
		run     func(*Service) (*Result, error)
		product reference.Product
		firstID string
	}{
		{"laus", func(s *Service) (*Result, error) {
			return s.LAUS(context.Background(), Request{Boundary: unitBoundary, APIKey: "k"}, LAUSParams{})
		}, reference.Counties, "LAUCN040010000000003"},
		{"qcew", func(s *Service) (*Result, error) {
			return s.QCEW(context.Background(), Request{Boundary: unitBoundary, APIKey: "k"}, QCEWParams{})
		}, reference.Counties, "ENU0400110010"},
		{"oews", func(s *Service) (*Result, error) {
			return s.OEWS(context.Background(), Request{Boundary: unitBoundary, APIKey: "k"}, OEWSParams{})
		}, reference.Metros, "OEUM003806000000000000004"},
		{"ces", func(s *Service) (*Result, error) {
			return s.CES(context.Background(), Request{Boundary: unitBoundary, APIKey: "k"}, CESParams{})
		}, reference.Metros, "SMU04380600000000001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &stubFetcher{respond: func(id string) (bls.Observation, bool) { return obs(id, "4.5"), true }}
			svc, sel, _, _ := newTestService(t, fetcher)

			res, err := tt.run(svc)
			require.NoError(t, err)
			assert.Equal(t, tt.product, sel.product)
			require.NotEmpty(t, fetcher.ids)
			assert.Equal(t, tt.firstID, fetcher.ids[0])
			assert.Equal(t, tt.name, res.Statistic)
			for _, row := range res.Rows {
				assert.NotNil(t, row.Value)
			}
			assert.Empty(t, res.Diagnostics)
		})
	}
}

func TestService_RunGeneric(t *testing.T) {
	fetcher := &stubFetcher{}
	svc, _, _, _ := newTestService(t, fetcher)

	res, err := svc.Run(context.Background(), "CES", Request{Boundary: unitBoundary, APIKey: "k", FullSeries: true, StartYear: 2020, EndYear: 2024},
		map[string][]string{"Industry": {"05000000", "90000000"}})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"SMU04380600500000001",
		"SMU04380609000000001",
		"SMU04460600500000001",
		"SMU04460609000000001",
	}, fetcher.ids)
	assert.False(t, fetcher.opts.LatestOnly)
	assert.Equal(t, 2020, fetcher.opts.StartYear)

	require.Len(t, res.Diagnostics, 2)
	assert.Equal(t, DiagNullValues, res.Diagnostics[0].Code)
	assert.Equal(t, DiagEmptyResult, res.Diagnostics[1].Code)
}

func TestService_RunUnknownStatistic(t *testing.T) {
	svc, _, _, _ := newTestService(t, &stubFetcher{})
	_, err := svc.Run(context.Background(), "cpi", Request{Boundary: unitBoundary, APIKey: "k"}, nil)
	require.Error(t, err)
	assert.True(t, apperr.IsInvalidArgument(err))
}

func TestService_InvalidArgumentsBeforeWork(t *testing.T) {
	tests := []struct {
		name   string
		req    Request
		params map[string][]string
	}{
		{"unknown predicate", Request{Boundary: unitBoundary, APIKey: "k", Predicate: "within"}, nil},
		{"negative buffer", Request{Boundary: unitBoundary, APIKey: "k", Predicate: "contains", Buffer: ptr(-1)}, nil},
		{"missing key", Request{Boundary: unitBoundary}, nil},
		{"missing boundary", Request{APIKey: "k"}, nil},
		{"param too long", Request{Boundary: unitBoundary, APIKey: "k"}, map[string][]string{"measure": {"003"}}},
		{"unknown param", Request{Boundary: unitBoundary, APIKey: "k"}, map[string][]string{"occupation": {"1"}}},
		{"param given twice", Request{Boundary: unitBoundary, APIKey: "k"}, map[string][]string{"Measure": {"04"}, "measure": {"06"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &stubFetcher{}
			svc, sel, _, _ := newTestService(t, fetcher)

			_, err := svc.Run(context.Background(), "laus", tt.req, tt.params)
			require.Error(t, err)
			assert.True(t, apperr.IsInvalidArgument(err))
			assert.Zero(t, sel.calls)
			assert.Nil(t, fetcher.ids)
		})
	}
}

func TestService_ContainsPredicate(t *testing.T) {
	fetcher := &stubFetcher{}
	svc, sel, _, _ := newTestService(t, fetcher)

	_, err := svc.LAUS(context.Background(), Request{Boundary: unitBoundary, APIKey: "k", Predicate: "contains", Buffer: ptr(0.5)}, LAUSParams{})
	require.NoError(t, err)
	assert.Equal(t, geo.Contains, sel.predicate)
	assert.InDelta(t, 0.5, sel.buffer, 0)
}

func TestService_ExternalServiceError(t *testing.T) {
	fetcher := &stubFetcher{err: &apperr.ExternalServiceError{StatusCode: http.StatusServiceUnavailable}}
	svc, _, _, metrics := newTestService(t, fetcher)

	res, err := svc.LAUS(context.Background(), Request{Boundary: unitBoundary, APIKey: "k"}, LAUSParams{})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, apperr.IsExternalService(err))
	assert.Equal(t, http.StatusServiceUnavailable, apperr.StatusCode(err))
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Runs.WithLabelValues("laus", "error")), 0)
}

func TestService_NoRegions(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("must not be called")}
	svc, sel, _, _ := newTestService(t, fetcher)
	sel.regions = nil

	res, err := svc.OEWS(context.Background(), Request{Boundary: unitBoundary, APIKey: "k"}, OEWSParams{})
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.Zero(t, res.BatchesSent)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, DiagNoRegions, res.Diagnostics[0].Code)
}

func TestService_BoundaryFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aoi.wkt")
	require.NoError(t, os.WriteFile(path, []byte("POLYGON ((0 0, 1 0, 1 1, 0 1, 0 0))\n"), 0o644))

	fetcher := &stubFetcher{}
	svc, sel, _, _ := newTestService(t, fetcher)

	_, err := svc.LAUS(context.Background(), Request{BoundaryPath: path, APIKey: "k"}, LAUSParams{})
	require.NoError(t, err)
	assert.Equal(t, 1, sel.calls)

	_, err = svc.LAUS(context.Background(), Request{BoundaryPath: filepath.Join(t.TempDir(), "missing.wkt"), APIKey: "k"}, LAUSParams{})
	require.Error(t, err)
}

func TestService_ManyBatches(t *testing.T) {
	var regions []geo.Region
	for i := 0; i < 30; i++ {
		regions = append(regions, geo.Region{Code: "04" + string(rune('0'+i/10)) + string(rune('0'+i%10)) + "1", StateFIPS: "04"})
	}
	fetcher := &stubFetcher{}
	svc, sel, _, _ := newTestService(t, fetcher)
	sel.regions[reference.Counties.Name] = regions

	res, err := svc.LAUS(context.Background(), Request{Boundary: unitBoundary, APIKey: "k"},
		LAUSParams{Measures: []string{"03", "04", "05", "06"}})
	require.NoError(t, err)
	assert.Equal(t, 120, res.SeriesRequested)
	assert.Equal(t, 3, res.BatchesSent)
}

func TestFileRegions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counties.geojson")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"FeatureCollection","features":[
	  {"type":"Feature","properties":{"GEOID":"04001","NAMELSAD":"Apache County","STATEFP":"04"},
	   "geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}},
	  {"type":"Feature","properties":{"GEOID":"04003","NAMELSAD":"Cochise County","STATEFP":"04"},
	   "geometry":{"type":"Polygon","coordinates":[[[5,5],[6,5],[6,6],[5,6],[5,5]]]}}]}`), 0o644))

	sel := NewFileRegions(path, "")
	regions, err := sel.SelectRegions(context.Background(), reference.Counties, *unitBoundary, geo.Intersects, 0)
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.Equal(t, "04001", regions[0].Code)
	assert.Equal(t, "Apache County", regions[0].Name)

	_, err = sel.SelectRegions(context.Background(), reference.Metros, *unitBoundary, geo.Intersects, 0)
	require.Error(t, err)
}
