package geo

import (
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/lineintersector"
	"github.com/twpayne/go-geom/xy/location"

	"github.com/sells-group/blsgeo/internal/apperr"
)

const (
	// epsilon is the distance under which two coordinates are treated as touching.
	epsilon = 1e-12

	// bufferSamplesPerDistance controls boundary densification for buffered
	// containment: edges are sampled every bufferDistance/bufferSamplesPerDistance.
	bufferSamplesPerDistance = 8

	// maxSamplesPerSegment caps densification of a single edge.
	maxSamplesPerSegment = 4096

	// maxCoverageDepth caps quadtree subdivision of a region's interior.
	maxCoverageDepth = 16
)

// bbox is an axis-aligned XY bounding box.
type bbox struct {
	minX, minY, maxX, maxY float64
	empty                  bool
}

func emptyBBox() bbox {
	return bbox{
		minX: math.Inf(1), minY: math.Inf(1),
		maxX: math.Inf(-1), maxY: math.Inf(-1),
		empty: true,
	}
}

func (b *bbox) extend(x, y float64) {
	b.minX = math.Min(b.minX, x)
	b.minY = math.Min(b.minY, y)
	b.maxX = math.Max(b.maxX, x)
	b.maxY = math.Max(b.maxY, y)
	b.empty = false
}

func (b bbox) overlaps(o bbox) bool {
	if b.empty || o.empty {
		return false
	}
	return b.minX <= o.maxX && o.minX <= b.maxX && b.minY <= o.maxY && o.minY <= b.maxY
}

func (b bbox) expand(d float64) bbox {
	if b.empty {
		return b
	}
	return bbox{minX: b.minX - d, minY: b.minY - d, maxX: b.maxX + d, maxY: b.maxY + d}
}

func (b bbox) within(o bbox) bool {
	if b.empty || o.empty {
		return false
	}
	return b.minX >= o.minX && b.maxX <= o.maxX && b.minY >= o.minY && b.maxY <= o.maxY
}

func (b bbox) diagonal() float64 {
	if b.empty {
		return 0
	}
	return math.Hypot(b.maxX-b.minX, b.maxY-b.minY)
}

// shape is a flattened XY view of a go-geom geometry. Rings and lines hold flat
// x,y pairs; rings are closed, the first ring of each polygon is the exterior
// and the rest are holes.
type shape struct {
	polygons [][][]float64
	lines    [][]float64
	points   [][2]float64
	bounds   bbox
}

// newShape flattens g into XY coordinates, dropping Z/M ordinates.
func newShape(g geom.T) (*shape, error) {
	s := &shape{bounds: emptyBBox()}
	if err := s.add(g); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *shape) add(g geom.T) error {
	switch t := g.(type) {
	case nil:
		return nil
	case *geom.Point:
		flat := t.FlatCoords()
		if len(flat) < 2 {
			return nil
		}
		s.points = append(s.points, [2]float64{flat[0], flat[1]})
		s.bounds.extend(flat[0], flat[1])
	case *geom.MultiPoint:
		for i := 0; i < t.NumPoints(); i++ {
			if err := s.add(t.Point(i)); err != nil {
				return err
			}
		}
	case *geom.LineString:
		line := s.xy(t.FlatCoords(), t.Stride())
		if len(line) >= 4 {
			s.lines = append(s.lines, line)
		}
	case *geom.MultiLineString:
		for i := 0; i < t.NumLineStrings(); i++ {
			if err := s.add(t.LineString(i)); err != nil {
				return err
			}
		}
	case *geom.Polygon:
		var rings [][]float64
		for i := 0; i < t.NumLinearRings(); i++ {
			ring := t.LinearRing(i)
			flat := closeRing(s.xy(ring.FlatCoords(), ring.Stride()))
			if len(flat) < 8 {
				if i == 0 {
					return nil
				}
				continue
			}
			rings = append(rings, flat)
		}
		if len(rings) > 0 {
			s.polygons = append(s.polygons, rings)
		}
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			if err := s.add(t.Polygon(i)); err != nil {
				return err
			}
		}
	case *geom.GeometryCollection:
		for _, child := range t.Geoms() {
			if err := s.add(child); err != nil {
				return err
			}
		}
	default:
		return apperr.InvalidArgument("geometry", "unsupported geometry type %T", g)
	}
	return nil
}

// xy copies the first two ordinates of each coordinate and extends the bounds.
func (s *shape) xy(flat []float64, stride int) []float64 {
	if stride < 2 {
		return nil
	}
	out := make([]float64, 0, len(flat)/stride*2)
	for i := 0; i+1 < len(flat); i += stride {
		out = append(out, flat[i], flat[i+1])
		s.bounds.extend(flat[i], flat[i+1])
	}
	return out
}

func (s *shape) isEmpty() bool {
	return len(s.polygons) == 0 && len(s.lines) == 0 && len(s.points) == 0
}

// eachSegment calls fn for every ring edge and line segment until fn returns
// false. Zero-length segments are skipped.
func (s *shape) eachSegment(fn func(a, b geom.Coord) bool) bool {
	visit := func(flat []float64) bool {
		for i := 0; i+3 < len(flat); i += 2 {
			if flat[i] == flat[i+2] && flat[i+1] == flat[i+3] {
				continue
			}
			if !fn(geom.Coord{flat[i], flat[i+1]}, geom.Coord{flat[i+2], flat[i+3]}) {
				return false
			}
		}
		return true
	}
	for _, poly := range s.polygons {
		for _, ring := range poly {
			if !visit(ring) {
				return false
			}
		}
	}
	for _, line := range s.lines {
		if !visit(line) {
			return false
		}
	}
	return true
}

// containsPoint reports whether p lies inside or on any polygon of s. Points
// strictly inside a hole are outside; points on a hole's ring are inside.
func (s *shape) containsPoint(p geom.Coord) bool {
	for _, poly := range s.polygons {
		if !xy.IsPointInRing(geom.XY, p, poly[0]) {
			continue
		}
		inHole := false
		for _, hole := range poly[1:] {
			if xy.LocatePointInRing(geom.XY, p, hole) == location.Interior {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}

// edgeDistance returns the distance from p to the nearest ring, line or point of s.
func (s *shape) edgeDistance(p geom.Coord) float64 {
	best := math.Inf(1)
	for _, poly := range s.polygons {
		for _, ring := range poly {
			best = math.Min(best, xy.DistanceFromPointToLineString(geom.XY, p, ring))
		}
	}
	for _, line := range s.lines {
		best = math.Min(best, xy.DistanceFromPointToLineString(geom.XY, p, line))
	}
	for _, pt := range s.points {
		best = math.Min(best, xy.Distance(p, geom.Coord{pt[0], pt[1]}))
	}
	return best
}

// distanceTo returns the Euclidean distance from p to s; 0 inside a polygon.
func (s *shape) distanceTo(p geom.Coord) float64 {
	if s.containsPoint(p) {
		return 0
	}
	return s.edgeDistance(p)
}

// representatives returns one vertex of every polygon and line component.
func (s *shape) representatives() []geom.Coord {
	out := make([]geom.Coord, 0, len(s.polygons)+len(s.lines))
	for _, poly := range s.polygons {
		out = append(out, geom.Coord{poly[0][0], poly[0][1]})
	}
	for _, line := range s.lines {
		out = append(out, geom.Coord{line[0], line[1]})
	}
	return out
}

// intersects reports whether a and b share at least one point.
func intersects(a, b *shape) bool {
	if !a.bounds.overlaps(b.bounds) {
		return false
	}

	for _, p := range a.points {
		if b.distanceTo(geom.Coord{p[0], p[1]}) <= epsilon {
			return true
		}
	}
	for _, p := range b.points {
		if a.distanceTo(geom.Coord{p[0], p[1]}) <= epsilon {
			return true
		}
	}

	// Without boundary crossings a component is either wholly inside the other
	// shape's polygons or disjoint from them, so one vertex decides.
	for _, v := range a.representatives() {
		if b.containsPoint(v) {
			return true
		}
	}
	for _, v := range b.representatives() {
		if a.containsPoint(v) {
			return true
		}
	}

	crossed := false
	a.eachSegment(func(p0, p1 geom.Coord) bool {
		segBox := emptyBBox()
		segBox.extend(p0[0], p0[1])
		segBox.extend(p1[0], p1[1])
		if !segBox.overlaps(b.bounds) {
			return true
		}
		b.eachSegment(func(q0, q1 geom.Coord) bool {
			if segmentsIntersect(p0, p1, q0, q1) {
				crossed = true
				return false
			}
			return true
		})
		return !crossed
	})
	return crossed
}

// withinBuffer reports whether every point of region lies within distance d of
// boundary, that is whether region is inside buffer(boundary, d). The region
// outline is densified and each sample is tested against the exact distance to
// boundary, then the polygon interiors are covered by a quadtree so that gaps
// of the buffered boundary lying inside the region (holes, areas enclosed by
// several parts) are rejected too.
func withinBuffer(region, boundary *shape, d float64) bool {
	if region.isEmpty() || boundary.isEmpty() {
		return false
	}
	if !region.bounds.within(boundary.bounds.expand(d + epsilon)) {
		return false
	}

	step := d / bufferSamplesPerDistance
	if step <= 0 {
		step = region.bounds.diagonal() / 512
	}
	limit := d + epsilon

	for _, p := range region.points {
		if boundary.distanceTo(geom.Coord{p[0], p[1]}) > limit {
			return false
		}
	}

	sample := func(p0, p1 geom.Coord) bool {
		n := 1
		if step > 0 {
			n = int(math.Ceil(xy.Distance(p0, p1) / step))
		}
		n = max(1, min(n, maxSamplesPerSegment))
		for k := 0; k < n; k++ {
			t := float64(k) / float64(n)
			p := geom.Coord{p0[0] + t*(p1[0]-p0[0]), p0[1] + t*(p1[1]-p0[1])}
			if boundary.distanceTo(p) > limit {
				return false
			}
		}
		return true
	}

	// Holes of a region do not enlarge its area, so only exteriors are sampled.
	for _, poly := range region.polygons {
		exterior := &shape{polygons: [][][]float64{{poly[0]}}}
		if !exterior.eachSegment(sample) {
			return false
		}
	}
	for _, line := range region.lines {
		if !(&shape{lines: [][]float64{line}}).eachSegment(sample) {
			return false
		}
		last := len(line) - 2
		if boundary.distanceTo(geom.Coord{line[last], line[last+1]}) > limit {
			return false
		}
	}

	if len(region.polygons) == 0 {
		return true
	}
	b := region.bounds
	half := math.Max(b.maxX-b.minX, b.maxY-b.minY) / 2
	center := geom.Coord{(b.minX + b.maxX) / 2, (b.minY + b.maxY) / 2}
	return covered(region, boundary, center, half, d, step, 0)
}

// covered reports whether the part of region inside the square cell centred
// on c with half-width half lies within distance d of boundary. A cell is
// settled when it is entirely inside the buffer or entirely outside the region;
// otherwise it is split into quadrants until it is smaller than tolerance.
func covered(region, boundary *shape, c geom.Coord, half, d, tolerance float64, depth int) bool {
	radius := half * math.Sqrt2

	inBoundary := boundary.containsPoint(c)
	gap := boundary.edgeDistance(c)
	if inBoundary {
		if radius <= gap+d {
			return true
		}
	} else if gap+radius <= d {
		return true
	}

	inRegion := region.containsPoint(c)
	if inRegion && !inBoundary && gap > d+epsilon {
		return false
	}
	if !inRegion && region.edgeDistance(c) > radius {
		return true
	}
	if radius <= tolerance || depth >= maxCoverageDepth {
		return true
	}

	q := half / 2
	for _, off := range [4][2]float64{{-q, -q}, {q, -q}, {-q, q}, {q, q}} {
		child := geom.Coord{c[0] + off[0], c[1] + off[1]}
		if !covered(region, boundary, child, q, d, tolerance, depth+1) {
			return false
		}
	}
	return true
}

// segmentsIntersect reports whether segment p0p1 and segment q0q1 share a point.
func segmentsIntersect(p0, p1, q0, q1 geom.Coord) bool {
	res := lineintersector.LineIntersectsLine(lineintersector.RobustLineIntersector{}, p0, p1, q0, q1)
	return res.HasIntersection()
}
