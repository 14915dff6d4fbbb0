package geo

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/blsgeo/internal/apperr"
)

// SelectRegions returns the regions that satisfy predicate against any boundary geometry.
//
// Intersects keeps every region whose geometry intersects a boundary geometry.
// Contains buffers each boundary geometry outward by bufferDistance (in the
// coordinate reference system's units) and keeps every region that lies fully
// inside at least one buffered geometry; the region is the contained side.
//
// Regions keep their reference order and appear at most once.
func SelectRegions(boundary Boundary, regions []Region, predicate Predicate, bufferDistance float64) ([]Region, error) {
	switch predicate {
	case Intersects, Contains:
	default:
		return nil, apperr.InvalidArgument("predicate", "unsupported predicate %d", int(predicate))
	}
	if predicate == Contains && bufferDistance < 0 {
		return nil, apperr.InvalidArgument("buffer", "must be >= 0, got %g", bufferDistance)
	}

	targets := make([]*shape, 0, len(boundary.Geometries))
	for i, g := range boundary.Geometries {
		s, err := newShape(g)
		if err != nil {
			return nil, eris.Wrapf(err, "geo: boundary geometry %d", i)
		}
		if !s.isEmpty() {
			targets = append(targets, s)
		}
	}

	log := zap.L().With(zap.String("component", "geo.select"))

	var selected []Region
	var skipped int
	for _, r := range regions {
		rs, err := newShape(r.Geometry)
		if err != nil || rs.isEmpty() {
			skipped++
			continue
		}
		for _, t := range targets {
			if matches(predicate, rs, t, bufferDistance) {
				selected = append(selected, r)
				break
			}
		}
	}

	if skipped > 0 {
		log.Debug("skipped regions without usable geometry", zap.Int("skipped", skipped))
	}
	log.Info("regions selected",
		zap.String("predicate", predicate.String()),
		zap.Float64("buffer", bufferDistance),
		zap.Int("boundary_geometries", len(targets)),
		zap.Int("candidates", len(regions)),
		zap.Int("selected", len(selected)),
	)

	return selected, nil
}

func matches(predicate Predicate, region, target *shape, bufferDistance float64) bool {
	switch predicate {
	case Intersects:
		return intersects(region, target)
	case Contains:
		return withinBuffer(region, target, bufferDistance)
	default:
		return false
	}
}
