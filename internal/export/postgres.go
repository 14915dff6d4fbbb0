package export

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/blsgeo/internal/db"
	"github.com/sells-group/blsgeo/internal/laborstat"
)

// Postgres writes result rows to a PostgreSQL table.
type Postgres struct {
	pool  db.Pool
	table string
	// Upsert replaces rows of a run already present instead of failing on
	// the primary key.
	Upsert bool
}

// NewPostgres creates a Postgres writer for table, which may be
// schema-qualified.
func NewPostgres(pool db.Pool, table string) (*Postgres, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}
	return &Postgres{pool: pool, table: table, Upsert: true}, nil
}

const postgresTable = `CREATE TABLE IF NOT EXISTS %s (
	run_id       TEXT NOT NULL,
	row_num      INTEGER NOT NULL,
	statistic    TEXT NOT NULL,
	retrieved_at TIMESTAMPTZ NOT NULL,
	region_code  TEXT NOT NULL,
	region_name  TEXT,
	state_fips   TEXT,
	series_id    TEXT,
	params       TEXT,
	year         TEXT,
	period       TEXT,
	period_name  TEXT,
	latest       BOOLEAN NOT NULL DEFAULT false,
	value        DOUBLE PRECISION,
	raw_value    TEXT,
	footnotes    TEXT,
	suppressed   BOOLEAN NOT NULL DEFAULT false,
	orphan       BOOLEAN NOT NULL DEFAULT false,
	PRIMARY KEY (run_id, row_num)
)`

// EnsureTable creates the table if missing.
func (p *Postgres) EnsureTable(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, fmt.Sprintf(postgresTable, p.table)); err != nil {
		return eris.Wrapf(err, "postgres: create table %s", p.table)
	}
	return nil
}

// Write stores every row of res, through BulkUpsert when Upsert is set and a
// plain COPY otherwise.
func (p *Postgres) Write(ctx context.Context, res *laborstat.Result) (int64, error) {
	rows := make([][]any, len(res.Rows))
	for i := range res.Rows {
		rows[i] = Values(res, i)
	}

	var (
		n   int64
		err error
	)
	if p.Upsert {
		n, err = db.BulkUpsert(ctx, p.pool, db.UpsertConfig{
			Table:        p.table,
			Columns:      Columns,
			ConflictKeys: []string{"run_id", "row_num"},
		}, rows)
	} else {
		n, err = db.CopyFrom(ctx, p.pool, p.table, Columns, rows)
	}
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: write run %s", res.RunID)
	}

	zap.L().Info("result stored",
		zap.String("component", "export.postgres"),
		zap.String("table", p.table),
		zap.String("run_id", res.RunID),
		zap.Int64("rows", n),
	)
	return n, nil
}
