package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/blsgeo/internal/bls"
	"github.com/sells-group/blsgeo/internal/db"
	"github.com/sells-group/blsgeo/internal/export"
	"github.com/sells-group/blsgeo/internal/geospatial"
	"github.com/sells-group/blsgeo/internal/laborstat"
	"github.com/sells-group/blsgeo/internal/observability"
)

// appEnv holds the service and the resources the statistic, run and serve
// commands share.
type appEnv struct {
	Service  *laborstat.Service
	Selector laborstat.RegionSelector
	Metrics  *observability.Metrics
	Writer   export.Writer // nil when store.driver is none
	closers  []func()
}

// Close releases resources in reverse order of acquisition.
func (e *appEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}

// initEnv validates configuration for mode and wires the service. Callers
// should defer env.Close().
func initEnv(ctx context.Context, mode string, reg prometheus.Registerer) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	metrics, err := observability.NewMetrics(reg)
	if err != nil {
		return nil, err
	}
	env := &appEnv{Metrics: metrics}

	selector, err := initSelector(ctx, env)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Selector = selector

	if mode == "fetch" {
		writer, err := initWriter(ctx, env)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.Writer = writer
	}

	client := bls.NewClient(bls.ClientOptions{
		BaseURL:           cfg.BLS.BaseURL,
		UserAgent:         cfg.BLS.UserAgent,
		Timeout:           time.Duration(cfg.BLS.TimeoutSecs) * time.Second,
		RequestsPerSecond: cfg.BLS.RequestsPerSecond,
		Metrics:           metrics,
	})
	env.Service = laborstat.NewService(selector, client, laborstat.WithMetrics(metrics))
	return env, nil
}

// initSelector returns the region selector for selection.engine.
func initSelector(ctx context.Context, env *appEnv) (laborstat.RegionSelector, error) {
	switch cfg.Selection.Engine {
	case "postgis":
		pool, err := db.Connect(ctx, cfg.PostGISURL())
		if err != nil {
			return nil, eris.Wrap(err, "connect to PostGIS")
		}
		env.closers = append(env.closers, pool.Close)
		zap.L().Debug("using PostGIS region selection", zap.Int("srid", cfg.Selection.SRID))
		return geospatial.NewSelector(pool, cfg.Selection.SRID), nil
	default:
		return laborstat.NewFileRegions(cfg.Reference.CountiesPath(), cfg.Reference.MetrosPath()), nil
	}
}

// initWriter returns the result store for store.driver, or nil.
func initWriter(ctx context.Context, env *appEnv) (export.Writer, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		s, err := export.NewSQLite(ctx, cfg.Store.DatabaseURL, cfg.Store.Table)
		if err != nil {
			return nil, err
		}
		env.closers = append(env.closers, func() { _ = s.Close() })
		return s, nil
	case "postgres":
		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "connect to result store")
		}
		env.closers = append(env.closers, pool.Close)
		p, err := export.NewPostgres(pool, cfg.Store.Table)
		if err != nil {
			return nil, err
		}
		if err := p.EnsureTable(ctx); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, nil
	}
}

// defaultRequest fills unset selection settings from configuration.
func defaultRequest(req laborstat.Request) laborstat.Request {
	if req.Predicate == "" {
		req.Predicate = cfg.Selection.Predicate
	}
	if req.Buffer == nil {
		buffer := cfg.Selection.Buffer
		req.Buffer = &buffer
	}
	if req.APIKey == "" {
		req.APIKey = cfg.BLS.APIKey
	}
	return req
}
