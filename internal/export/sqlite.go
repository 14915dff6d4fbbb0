package export

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/blsgeo/internal/laborstat"
)

// SQLite appends result rows to a table in a SQLite database.
type SQLite struct {
	db    *sql.DB
	table string
}

// NewSQLite opens the database at dsn, configures WAL mode and creates table
// if missing.
func NewSQLite(ctx context.Context, dsn, table string) (*SQLite, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}
	if strings.Contains(table, ".") {
		table = strings.ReplaceAll(table, ".", "_")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}

	s := &SQLite{db: db, table: table}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

const sqliteTable = `
CREATE TABLE IF NOT EXISTS %[1]s (
	run_id       TEXT NOT NULL,
	row_num      INTEGER NOT NULL,
	statistic    TEXT NOT NULL,
	retrieved_at DATETIME NOT NULL,
	region_code  TEXT NOT NULL,
	region_name  TEXT,
	state_fips   TEXT,
	series_id    TEXT,
	params       TEXT,
	year         TEXT,
	period       TEXT,
	period_name  TEXT,
	latest       BOOLEAN NOT NULL DEFAULT 0,
	value        REAL,
	raw_value    TEXT,
	footnotes    TEXT,
	suppressed   BOOLEAN NOT NULL DEFAULT 0,
	orphan       BOOLEAN NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, row_num)
);

CREATE INDEX IF NOT EXISTS idx_%[1]s_series_id ON %[1]s(series_id);
CREATE INDEX IF NOT EXISTS idx_%[1]s_region_code ON %[1]s(region_code);
`

func (s *SQLite) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(sqliteTable, s.table))
	return eris.Wrap(err, "sqlite: migrate")
}

// Write inserts every row of res in one transaction. Writing the same run
// twice replaces its rows.
func (s *SQLite) Write(ctx context.Context, res *laborstat.Result) (int64, error) {
	if len(res.Rows) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(Columns)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT OR REPLACE INTO %s (%s) VALUES (%s)`,
		s.table, strings.Join(Columns, ", "), placeholders,
	))
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	for i := range res.Rows {
		if _, err := stmt.ExecContext(ctx, Values(res, i)...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert row %d of run %s", i+1, res.RunID)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit")
	}

	zap.L().Info("result stored",
		zap.String("component", "export.sqlite"),
		zap.String("table", s.table),
		zap.String("run_id", res.RunID),
		zap.Int("rows", len(res.Rows)),
	)
	return int64(len(res.Rows)), nil
}

// Table returns the table rows are written to.
func (s *SQLite) Table() string {
	return s.table
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
