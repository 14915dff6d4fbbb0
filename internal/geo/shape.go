package geo

import (
	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
)

// shapeToGeom converts a go-shp geometry to go-geom.
// Returns nil for unsupported or empty shapes.
func shapeToGeom(s shp.Shape) geom.T {
	switch t := s.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{t.X, t.Y})
	case *shp.MultiPoint:
		if len(t.Points) == 0 {
			return nil
		}
		flat := make([]float64, 0, len(t.Points)*2)
		for _, p := range t.Points {
			flat = append(flat, p.X, p.Y)
		}
		return geom.NewMultiPointFlat(geom.XY, flat)
	case *shp.PolyLine:
		return polyLineToMultiLineString(t)
	case *shp.Polygon:
		return polygonToMultiPolygon(t)
	default:
		return nil
	}
}

// partBounds returns the [start, end) point range of each part.
func partBounds(parts []int32, numParts int32, numPoints int) [][2]int32 {
	out := make([][2]int32, 0, numParts)
	for i := int32(0); i < numParts; i++ {
		start := parts[i]
		end := int32(numPoints)
		if i+1 < numParts {
			end = parts[i+1]
		}
		if start < 0 || end > int32(numPoints) || start >= end {
			continue
		}
		out = append(out, [2]int32{start, end})
	}
	return out
}

// polyLineToMultiLineString converts a shapefile PolyLine to a geom.MultiLineString.
func polyLineToMultiLineString(pl *shp.PolyLine) geom.T {
	if pl == nil || pl.NumParts == 0 || len(pl.Points) == 0 {
		return nil
	}

	mls := geom.NewMultiLineString(geom.XY)
	for i, b := range partBounds(pl.Parts, pl.NumParts, len(pl.Points)) {
		ls := geom.NewLineStringFlat(geom.XY, flatPoints(pl.Points[b[0]:b[1]]))
		if err := mls.Push(ls); err != nil {
			zap.L().Debug("geo: skipping malformed linestring part", zap.Int("part", i), zap.Error(err))
		}
	}

	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

// polygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon.
// Shapefile exteriors wind clockwise and holes counter-clockwise; each hole is
// attached to the exterior that contains it.
func polygonToMultiPolygon(p *shp.Polygon) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	type assembled struct {
		rings [][]float64
	}
	var polys []*assembled
	var holes [][]float64

	for _, b := range partBounds(p.Parts, p.NumParts, len(p.Points)) {
		ring := closeRing(flatPoints(p.Points[b[0]:b[1]]))
		if len(ring) < 8 {
			continue
		}
		// xy.SignedArea is negative for counter-clockwise rings.
		if xy.SignedArea(geom.XY, ring) < 0 {
			holes = append(holes, ring)
			continue
		}
		polys = append(polys, &assembled{rings: [][]float64{ring}})
	}

	for _, h := range holes {
		var owner *assembled
		for _, poly := range polys {
			if xy.IsPointInRing(geom.XY, geom.Coord{h[0], h[1]}, poly.rings[0]) {
				owner = poly
				break
			}
		}
		if owner == nil {
			// Counter-clockwise ring with no enclosing exterior: treat as an exterior.
			polys = append(polys, &assembled{rings: [][]float64{h}})
			continue
		}
		owner.rings = append(owner.rings, h)
	}

	mp := geom.NewMultiPolygon(geom.XY)
	for i, a := range polys {
		poly := geom.NewPolygon(geom.XY)
		for _, ring := range a.rings {
			if err := poly.Push(geom.NewLinearRingFlat(geom.XY, ring)); err != nil {
				zap.L().Debug("geo: skipping malformed polygon ring", zap.Int("part", i), zap.Error(err))
			}
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("geo: skipping malformed polygon part", zap.Int("part", i), zap.Error(err))
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// closeRing appends the first vertex of a flat XY ring when the ring is open.
func closeRing(ring []float64) []float64 {
	n := len(ring)
	if n < 4 || (ring[0] == ring[n-2] && ring[1] == ring[n-1]) {
		return ring
	}
	return append(ring, ring[0], ring[1])
}

// flatPoints converts shapefile points to flat coordinate pairs for go-geom.
func flatPoints(points []shp.Point) []float64 {
	flat := make([]float64, 0, len(points)*2)
	for _, p := range points {
		flat = append(flat, p.X, p.Y)
	}
	return flat
}
