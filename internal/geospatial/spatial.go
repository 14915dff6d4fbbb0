// Package geospatial runs region selection inside PostGIS, for reference
// datasets loaded into the geo.* schema.
package geospatial

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/wkb"
	"go.uber.org/zap"

	"github.com/sells-group/blsgeo/internal/apperr"
	"github.com/sells-group/blsgeo/internal/db"
	"github.com/sells-group/blsgeo/internal/geo"
	"github.com/sells-group/blsgeo/internal/reference"
)

// RegionTable describes where a reference product lives in PostGIS.
type RegionTable struct {
	Table string
	// StateFromName derives the state when the table has none.
	StateFromName func(string) string
}

// regionTables is an allowlist of tables that may be interpolated into SQL.
var regionTables = map[string]RegionTable{
	reference.Counties.Name: {Table: "geo.counties"},
	reference.Metros.Name:   {Table: "geo.cbsa", StateFromName: reference.StateFromCBSAName},
}

// TableFor returns the region table of a product.
func TableFor(product reference.Product) (RegionTable, error) {
	t, ok := regionTables[product.Name]
	if !ok {
		return RegionTable{}, eris.Errorf("geo: no region table for product %q", product.Name)
	}
	return t, nil
}

// Selector evaluates selection predicates with PostGIS. Buffer distances are in
// the units of SRID.
type Selector struct {
	pool db.Pool
	srid int
}

// NewSelector creates a Selector. Boundary geometries are tagged with srid.
func NewSelector(pool db.Pool, srid int) *Selector {
	return &Selector{pool: pool, srid: srid}
}

const intersectsSQL = `SELECT t.code, t.name, COALESCE(t.state_fips, ''), ST_AsEWKB(t.geom)
FROM %s t
WHERE EXISTS (
	SELECT 1 FROM unnest($1::bytea[]) AS b(wkb)
	WHERE ST_Intersects(t.geom, ST_GeomFromWKB(b.wkb, $2))
)
ORDER BY t.code`

const containsSQL = `SELECT t.code, t.name, COALESCE(t.state_fips, ''), ST_AsEWKB(t.geom)
FROM %s t
WHERE EXISTS (
	SELECT 1 FROM unnest($1::bytea[]) AS b(wkb)
	WHERE ST_Within(t.geom, ST_Buffer(ST_GeomFromWKB(b.wkb, $2), $3))
)
ORDER BY t.code`

// SelectRegions returns the regions of product that satisfy predicate against
// boundary. Contains means region within the buffered boundary.
func (s *Selector) SelectRegions(ctx context.Context, product reference.Product, boundary geo.Boundary, predicate geo.Predicate, buffer float64) ([]geo.Region, error) {
	table, err := TableFor(product)
	if err != nil {
		return nil, err
	}

	params, err := encodeBoundary(boundary)
	if err != nil {
		return nil, err
	}

	var (
		query string
		args  []any
	)
	switch predicate {
	case geo.Intersects:
		query = fmt.Sprintf(intersectsSQL, table.Table)
		args = []any{params, s.srid}
	case geo.Contains:
		if buffer < 0 {
			return nil, apperr.InvalidArgument("buffer", "must be >= 0, got %g", buffer)
		}
		query = fmt.Sprintf(containsSQL, table.Table)
		args = []any{params, s.srid, buffer}
	default:
		return nil, apperr.InvalidArgument("predicate", "unsupported predicate %d", int(predicate))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: select regions from %s", table.Table)
	}
	defer rows.Close()

	var out []geo.Region
	for rows.Next() {
		var (
			r    geo.Region
			blob []byte
		)
		if err := rows.Scan(&r.Code, &r.Name, &r.StateFIPS, &blob); err != nil {
			return nil, eris.Wrap(err, "geo: scan region row")
		}
		if r.StateFIPS == "" && table.StateFromName != nil {
			r.StateFIPS = table.StateFromName(r.Name)
		}
		if len(blob) > 0 {
			g, err := ewkb.Unmarshal(blob)
			if err != nil {
				return nil, eris.Wrapf(err, "geo: decode geometry of region %s", r.Code)
			}
			r.Geometry = g
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "geo: iterate region rows")
	}

	zap.L().Debug("postgis selection complete",
		zap.String("component", "geospatial.selector"),
		zap.String("table", table.Table),
		zap.String("predicate", predicate.String()),
		zap.Int("regions", len(out)),
	)
	return out, nil
}

// encodeBoundary renders each boundary geometry as 2D WKB.
func encodeBoundary(boundary geo.Boundary) ([][]byte, error) {
	if len(boundary.Geometries) == 0 {
		return nil, apperr.InvalidArgument("boundary", "boundary has no geometries")
	}
	out := make([][]byte, 0, len(boundary.Geometries))
	for i, g := range boundary.Geometries {
		b, err := wkb.Marshal(g, binary.LittleEndian)
		if err != nil {
			return nil, eris.Wrapf(err, "geo: encode boundary geometry %d", i)
		}
		out = append(out, b)
	}
	return out, nil
}

// multiPolygon promotes a polygon to a one-member multipolygon so every row of
// a region table has the same geometry type.
func multiPolygon(g geom.T) (geom.T, error) {
	switch t := g.(type) {
	case *geom.MultiPolygon:
		return t, nil
	case *geom.Polygon:
		mp := geom.NewMultiPolygon(t.Layout())
		if err := mp.Push(t); err != nil {
			return nil, eris.Wrap(err, "geo: promote polygon")
		}
		return mp, nil
	default:
		return nil, apperr.InvalidArgument("geometry", "region geometry must be polygonal, got %T", g)
	}
}
