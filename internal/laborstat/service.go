package laborstat

import (
	"context"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/blsgeo/internal/bls"
	"github.com/sells-group/blsgeo/internal/geo"
	"github.com/sells-group/blsgeo/internal/observability"
	"github.com/sells-group/blsgeo/internal/series"
)

// Fetcher retrieves observations for series identifiers.
type Fetcher interface {
	FetchObservations(ctx context.Context, ids []string, opts bls.FetchOptions) ([]bls.Observation, error)
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock used to stamp results.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithMetrics records run metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithRunID overrides run id generation.
func WithRunID(fn func() string) Option {
	return func(s *Service) { s.newRunID = fn }
}

// Service runs statistics end to end. Calls are independent; nothing is
// cached between them.
type Service struct {
	selector RegionSelector
	fetcher  Fetcher
	clock    clockwork.Clock
	metrics  *observability.Metrics
	newRunID func() string
}

// NewService creates a Service.
func NewService(selector RegionSelector, fetcher Fetcher, opts ...Option) *Service {
	s := &Service{
		selector: selector,
		fetcher:  fetcher,
		clock:    clockwork.NewRealClock(),
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LAUS runs Local Area Unemployment Statistics for the counties selected by req.
func (s *Service) LAUS(ctx context.Context, req Request, p LAUSParams) (*Result, error) {
	return s.run(ctx, LAUS, req, p.values())
}

// QCEW runs the Quarterly Census of Employment and Wages for the counties selected by req.
func (s *Service) QCEW(ctx context.Context, req Request, p QCEWParams) (*Result, error) {
	return s.run(ctx, QCEW, req, p.values())
}

// OEWS runs Occupational Employment and Wage Statistics for the metro areas selected by req.
func (s *Service) OEWS(ctx context.Context, req Request, p OEWSParams) (*Result, error) {
	return s.run(ctx, OEWS, req, p.values())
}

// CES runs state and area Current Employment Statistics for the metro areas selected by req.
func (s *Service) CES(ctx context.Context, req Request, p CESParams) (*Result, error) {
	return s.run(ctx, CES, req, p.values())
}

// Run runs the named statistic with parameter lists keyed by parameter name.
// Missing parameters take the statistic's defaults.
func (s *Service) Run(ctx context.Context, name string, req Request, params map[string][]string) (*Result, error) {
	stat, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	merged, err := stat.Params(params)
	if err != nil {
		return nil, eris.Wrap(err, "laborstat: invalid parameters")
	}
	return s.run(ctx, stat, req, merged)
}

func (s *Service) run(ctx context.Context, stat Statistic, req Request, params map[string][]string) (*Result, error) {
	start := s.clock.Now()
	res, err := s.execute(ctx, stat, req, params)
	if s.metrics != nil {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		s.metrics.Runs.WithLabelValues(stat.Name, outcome).Inc()
		s.metrics.RunDuration.WithLabelValues(stat.Name).Observe(s.clock.Since(start).Seconds())
	}
	return res, err
}

func (s *Service) execute(ctx context.Context, stat Statistic, req Request, params map[string][]string) (*Result, error) {
	runID := s.newRunID()
	log := zap.L().With(
		zap.String("component", "laborstat"),
		zap.String("statistic", stat.Name),
		zap.String("run_id", runID),
	)

	if err := req.Validate(); err != nil {
		return nil, eris.Wrap(err, "laborstat: invalid request")
	}
	if err := stat.Template.ValidateParams(params); err != nil {
		return nil, eris.Wrap(err, "laborstat: invalid parameters")
	}
	predicate, err := req.SpatialPredicate()
	if err != nil {
		return nil, eris.Wrap(err, "laborstat: invalid request")
	}

	boundary := req.Boundary
	if boundary == nil {
		b, err := geo.LoadBoundary(req.BoundaryPath)
		if err != nil {
			return nil, eris.Wrap(err, "laborstat: load boundary")
		}
		boundary = &b
	}

	regions, err := s.selector.SelectRegions(ctx, stat.Product, *boundary, predicate, req.BufferDistance())
	if err != nil {
		return nil, eris.Wrap(err, "laborstat: select regions")
	}
	log.Info("regions selected",
		zap.String("predicate", predicate.String()),
		zap.Float64("buffer", req.BufferDistance()),
		zap.Int("regions", len(regions)),
	)

	keys, err := series.Build(regions, stat.Template, params)
	if err != nil {
		return nil, eris.Wrap(err, "laborstat: build series identifiers")
	}
	ids := series.IDs(keys)

	var observations []bls.Observation
	if len(ids) > 0 {
		observations, err = s.fetcher.FetchObservations(ctx, ids, bls.FetchOptions{
			APIKey:     req.APIKey,
			LatestOnly: !req.FullSeries,
			StartYear:  req.StartYear,
			EndYear:    req.EndYear,
		})
		if err != nil {
			return nil, eris.Wrap(err, "laborstat: retrieve observations")
		}
	}

	res := Join(regions, keys, observations, stat.AreaRange())
	res.RunID = runID
	res.Statistic = stat.Name
	res.RetrievedAt = s.clock.Now().UTC()
	res.SeriesRequested = len(ids)
	res.BatchesSent = len(series.Chunk(ids, bls.MaxSeriesPerRequest))
	res.Regions = regions

	switch {
	case len(regions) == 0:
		res.Diagnostics = append(res.Diagnostics, Diagnostic{
			Level:   "warn",
			Code:    DiagNoRegions,
			Message: "no regions matched the boundary",
		})
	case len(observations) == 0:
		res.Diagnostics = append(res.Diagnostics, Diagnostic{
			Level:   "warn",
			Code:    DiagEmptyResult,
			Message: "BLS returned no observations for the requested series",
			Count:   len(ids),
		})
	}

	for _, d := range res.Diagnostics {
		log.Warn(d.Message, zap.String("code", d.Code), zap.Int("count", d.Count))
	}
	if s.metrics != nil {
		s.metrics.RegionsSelected.WithLabelValues(stat.Name).Observe(float64(len(regions)))
		s.metrics.RowsJoined.WithLabelValues(stat.Name).Add(float64(len(res.Rows)))
		for _, d := range res.Diagnostics {
			s.metrics.Diagnostics.WithLabelValues(stat.Name, d.Code).Add(float64(max(d.Count, 1)))
		}
	}

	log.Info("statistic complete",
		zap.Int("series", res.SeriesRequested),
		zap.Int("batches", res.BatchesSent),
		zap.Int("observations", len(observations)),
		zap.Int("rows", len(res.Rows)),
	)
	return &res, nil
}
