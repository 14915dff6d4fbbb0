package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

// square returns an axis-aligned square polygon with lower-left corner (x, y).
func square(x, y, size float64) *geom.Polygon {
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}, {x, y},
	}})
}

func mustShape(t *testing.T, g geom.T) *shape {
	t.Helper()
	s, err := newShape(g)
	require.NoError(t, err)
	return s
}

func TestPointInPolygon_Holes(t *testing.T) {
	donut := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{
		{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
		{{4, 4}, {6, 4}, {6, 6}, {4, 6}, {4, 4}},
	})
	s := mustShape(t, donut)

	assert.True(t, s.containsPoint(geom.Coord{1, 1}))
	assert.False(t, s.containsPoint(geom.Coord{5, 5}), "point in hole")
	assert.False(t, s.containsPoint(geom.Coord{11, 5}))
}

func TestSegmentsIntersect(t *testing.T) {
	tests := []struct {
		name string
		seg  [8]float64
		want bool
	}{
		{"crossing", [8]float64{0, 0, 2, 2, 0, 2, 2, 0}, true},
		{"parallel", [8]float64{0, 0, 2, 0, 0, 1, 2, 1}, false},
		{"touching endpoint", [8]float64{0, 0, 1, 1, 1, 1, 2, 0}, true},
		{"collinear overlap", [8]float64{0, 0, 2, 0, 1, 0, 3, 0}, true},
		{"collinear disjoint", [8]float64{0, 0, 1, 0, 2, 0, 3, 0}, false},
		{"disjoint", [8]float64{0, 0, 1, 1, 3, 0, 4, -1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.seg
			got := segmentsIntersect(geom.Coord{s[0], s[1]}, geom.Coord{s[2], s[3]}, geom.Coord{s[4], s[5]}, geom.Coord{s[6], s[7]})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDistanceTo(t *testing.T) {
	line := mustShape(t, geom.NewLineStringFlat(geom.XY, []float64{0, 0, 2, 0}))
	assert.InDelta(t, 1.0, line.distanceTo(geom.Coord{1, 1}), 1e-12)
	assert.InDelta(t, 5.0, line.distanceTo(geom.Coord{5, 4}), 1e-12)
	assert.InDelta(t, 0.0, line.distanceTo(geom.Coord{1, 0}), 1e-12)

	donut := mustShape(t, geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{
		{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
		{{3, 3}, {7, 3}, {7, 7}, {3, 7}, {3, 3}},
	}))
	assert.InDelta(t, 0.0, donut.distanceTo(geom.Coord{1, 1}), 1e-12)
	assert.InDelta(t, 2.0, donut.distanceTo(geom.Coord{5, 5}), 1e-12)
	assert.InDelta(t, 0.0, donut.distanceTo(geom.Coord{3, 5}), 1e-12, "on hole ring")
	assert.InDelta(t, 1.0, donut.distanceTo(geom.Coord{11, 5}), 1e-12)
}

func TestNewShape_ClosesRings(t *testing.T) {
	open := geom.NewPolygonFlat(geom.XY, []float64{0, 0, 1, 0, 1, 1, 0, 1}, []int{8})
	s := mustShape(t, open)
	require.Len(t, s.polygons, 1)
	assert.Len(t, s.polygons[0][0], 10)
	assert.True(t, s.containsPoint(geom.Coord{0.5, 0.5}))
}

func TestIntersects(t *testing.T) {
	base := mustShape(t, square(0, 0, 2))

	tests := []struct {
		name string
		g    geom.T
		want bool
	}{
		{"overlapping square", square(1, 1, 2), true},
		{"contained square", square(0.5, 0.5, 0.5), true},
		{"containing square", square(-1, -1, 5), true},
		{"edge touch", square(2, 0, 1), true},
		{"disjoint", square(3, 3, 1), false},
		{"bbox overlap only", geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{{1.5, 3}, {3, 1.5}, {3, 3}, {1.5, 3}}}), false},
		{"point inside", geom.NewPointFlat(geom.XY, []float64{1, 1}), true},
		{"point outside", geom.NewPointFlat(geom.XY, []float64{5, 5}), false},
		{"line crossing", geom.NewLineStringFlat(geom.XY, []float64{-1, 1, 3, 1}), true},
		{"line outside", geom.NewLineStringFlat(geom.XY, []float64{-1, 3, 3, 3}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := mustShape(t, tt.g)
			assert.Equal(t, tt.want, intersects(base, other))
			assert.Equal(t, tt.want, intersects(other, base), "symmetry")
		})
	}
}

func TestIntersects_RegionInsideHole(t *testing.T) {
	donut := mustShape(t, geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{
		{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
		{{2, 2}, {8, 2}, {8, 8}, {2, 8}, {2, 2}},
	}))
	inHole := mustShape(t, square(4, 4, 1))

	assert.False(t, intersects(donut, inHole))
	assert.False(t, intersects(inHole, donut))
}

func TestWithinBuffer(t *testing.T) {
	boundary := mustShape(t, square(0, 0, 10))

	tests := []struct {
		name   string
		region geom.T
		buffer float64
		want   bool
	}{
		{"inside", square(1, 1, 2), 0, true},
		{"inside with buffer", square(1, 1, 2), 0.09, true},
		{"overhang within buffer", square(9, 1, 1.05), 0.09, true},
		{"overhang beyond buffer", square(9, 1, 1.05), 0.01, false},
		{"corner within rounded buffer", square(10, 10, 0.05), 0.09, true},
		{"corner beyond rounded buffer", square(10, 10, 0.08), 0.09, false},
		{"larger than boundary", square(-1, -1, 12), 0.09, false},
		{"disjoint", square(20, 20, 1), 0.09, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, withinBuffer(mustShape(t, tt.region), boundary, tt.buffer))
		})
	}
}

func TestWithinBuffer_ConcaveBoundary(t *testing.T) {
	// U-shaped boundary: the notch between the arms is 2 wide.
	u := mustShape(t, geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{0, 0}, {6, 0}, {6, 6}, {4, 6}, {4, 2}, {2, 2}, {2, 6}, {0, 6}, {0, 0},
	}}))
	// Region spans the notch; every vertex is inside the U but the middle of
	// its top edge is 1 unit from the arms.
	bridge := mustShape(t, geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{1, 4}, {5, 4}, {5, 5}, {1, 5}, {1, 4},
	}}))

	assert.False(t, withinBuffer(bridge, u, 0.5))
	assert.True(t, withinBuffer(bridge, u, 1.0))
}

func TestWithinBuffer_BoundaryHole(t *testing.T) {
	donut := mustShape(t, geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{
		{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
		{{3, 3}, {7, 3}, {7, 7}, {3, 7}, {3, 3}},
	}))

	// The region's outline runs along the hole's ring but its centre is 2 away.
	assert.False(t, withinBuffer(mustShape(t, square(3, 3, 4)), donut, 0.09))
	// A hole narrower than twice the buffer is closed by it.
	assert.True(t, withinBuffer(mustShape(t, square(3, 3, 4)), donut, 2.5))
	// Regions beside the hole are unaffected.
	assert.True(t, withinBuffer(mustShape(t, square(0.5, 0.5, 2)), donut, 0.09))
	assert.False(t, withinBuffer(mustShape(t, square(1, 1, 4)), donut, 0.09))
}

func TestWithinBuffer_LineBoundary(t *testing.T) {
	road := mustShape(t, geom.NewLineStringFlat(geom.XY, []float64{0, 0, 10, 0}))

	assert.True(t, withinBuffer(mustShape(t, square(2, -0.5, 1)), road, 1))
	assert.False(t, withinBuffer(mustShape(t, square(2, -0.5, 2)), road, 1))
}

func TestNewShape_Unsupported(t *testing.T) {
	_, err := newShape(geom.NewLinearRing(geom.XY))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported geometry type")
}

func TestNewShape_DropsZ(t *testing.T) {
	p := geom.NewPolygon(geom.XYZ).MustSetCoords([][]geom.Coord{{
		{0, 0, 5}, {1, 0, 5}, {1, 1, 5}, {0, 1, 5}, {0, 0, 5},
	}})
	s := mustShape(t, p)
	require.Len(t, s.polygons, 1)
	assert.Len(t, s.polygons[0][0], 10)
	assert.True(t, s.containsPoint(geom.Coord{0.5, 0.5}))
}
