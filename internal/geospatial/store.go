package geospatial

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/wkb"
	"go.uber.org/zap"

	"github.com/sells-group/blsgeo/internal/db"
	"github.com/sells-group/blsgeo/internal/geo"
	"github.com/sells-group/blsgeo/internal/reference"
)

// Store loads reference regions into the geo.* region tables.
type Store struct {
	pool db.Pool
	srid int
}

// NewStore creates a Store whose tables hold geometries in srid.
func NewStore(pool db.Pool, srid int) *Store {
	return &Store{pool: pool, srid: srid}
}

// EnsureSchema creates the geo schema and the region tables if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS geo`); err != nil {
		return eris.Wrap(err, "geo: create schema")
	}
	for _, p := range reference.Products {
		t, err := TableFor(p)
		if err != nil {
			return err
		}
		ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	code       TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	state_fips TEXT,
	geom       geometry(MultiPolygon, %d) NOT NULL
)`, t.Table, s.srid)
		if _, err := s.pool.Exec(ctx, ddl); err != nil {
			return eris.Wrapf(err, "geo: create table %s", t.Table)
		}
		index := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_geom_idx ON %s USING GIST (geom)`,
			indexPrefix(t.Table), t.Table)
		if _, err := s.pool.Exec(ctx, index); err != nil {
			return eris.Wrapf(err, "geo: create index on %s", t.Table)
		}
	}
	return nil
}

const upsertRegionSQL = `INSERT INTO %s (code, name, state_fips, geom)
VALUES ($1, $2, NULLIF($3, ''), ST_Force2D(ST_GeomFromWKB($4, $5)))
ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name, state_fips = EXCLUDED.state_fips, geom = EXCLUDED.geom`

// LoadRegions upserts regions into the product's table in one transaction.
// Returns the number of rows written.
func (s *Store) LoadRegions(ctx context.Context, product reference.Product, regions []geo.Region) (int64, error) {
	if len(regions) == 0 {
		return 0, nil
	}
	t, err := TableFor(product)
	if err != nil {
		return 0, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "geo: load regions: begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := fmt.Sprintf(upsertRegionSQL, t.Table)
	var n int64
	for _, r := range regions {
		g, err := multiPolygon(r.Geometry)
		if err != nil {
			return 0, eris.Wrapf(err, "geo: region %s", r.Code)
		}
		blob, err := wkb.Marshal(g, binary.LittleEndian)
		if err != nil {
			return 0, eris.Wrapf(err, "geo: encode region %s", r.Code)
		}
		tag, err := tx.Exec(ctx, query, r.Code, r.Name, r.StateFIPS, blob, s.srid)
		if err != nil {
			return 0, eris.Wrapf(err, "geo: upsert region %s", r.Code)
		}
		n += tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "geo: load regions: commit tx")
	}

	zap.L().Info("reference regions stored",
		zap.String("component", "geospatial.store"),
		zap.String("table", t.Table),
		zap.Int64("rows", n),
	)
	return n, nil
}

func indexPrefix(table string) string {
	return strings.ReplaceAll(table, ".", "_")
}
