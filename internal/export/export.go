// Package export writes statistic results to files and database tables.
package export

import (
	"context"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/blsgeo/internal/apperr"
	"github.com/sells-group/blsgeo/internal/laborstat"
)

// Columns are the flat result columns, in output order.
var Columns = []string{
	"run_id", "row_num", "statistic", "retrieved_at",
	"region_code", "region_name", "state_fips",
	"series_id", "params", "year", "period", "period_name", "latest",
	"value", "raw_value", "footnotes", "suppressed", "orphan",
}

// Writer persists a result somewhere and reports the number of rows written.
type Writer interface {
	Write(ctx context.Context, res *laborstat.Result) (int64, error)
}

// FormatParams renders row parameters as "name=value" pairs sorted by name and
// joined by ";".
func FormatParams(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = k + "=" + params[k]
	}
	return strings.Join(parts, ";")
}

// Values returns row i of res as typed column values matching Columns.
// A missing value is nil.
func Values(res *laborstat.Result, i int) []any {
	row := res.Rows[i]
	var value any
	if row.Value != nil {
		value = *row.Value
	}
	return []any{
		res.RunID, i + 1, res.Statistic, res.RetrievedAt.UTC(),
		row.RegionCode, row.RegionName, row.StateFIPS,
		row.SeriesID, FormatParams(row.Params), row.Year, row.Period, row.PeriodName, row.Latest,
		value, row.RawValue, row.Footnotes, row.Suppressed, row.Orphan,
	}
}

// Record returns row i of res as strings matching Columns.
func Record(res *laborstat.Result, i int) []string {
	row := res.Rows[i]
	value := ""
	if row.Value != nil {
		value = strconv.FormatFloat(*row.Value, 'f', -1, 64)
	}
	return []string{
		res.RunID, strconv.Itoa(i + 1), res.Statistic, res.RetrievedAt.UTC().Format(time.RFC3339),
		row.RegionCode, row.RegionName, row.StateFIPS,
		row.SeriesID, FormatParams(row.Params), row.Year, row.Period, row.PeriodName, strconv.FormatBool(row.Latest),
		value, row.RawValue, row.Footnotes, strconv.FormatBool(row.Suppressed), strconv.FormatBool(row.Orphan),
	}
}

// WriteFile writes res to path in the format implied by its extension:
// .csv, .xlsx, .geojson or .json (GeoJSON FeatureCollection).
func WriteFile(path string, res *laborstat.Result) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return writeCSVFile(path, res)
	case ".xlsx":
		return WriteXLSX(path, res)
	case ".geojson", ".json":
		return writeGeoJSONFile(path, res)
	default:
		return apperr.InvalidArgument("output", "unsupported output format %q (valid: .csv, .xlsx, .geojson, .json)", filepath.Ext(path))
	}
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// validateTable accepts plain or schema-qualified SQL identifiers only, since
// table names are interpolated into DDL.
func validateTable(table string) error {
	if !tableName.MatchString(table) {
		return apperr.InvalidArgument("table", "invalid table name %q", table)
	}
	return nil
}

func wrapWrite(err error, format string) error {
	if err == nil {
		return nil
	}
	return eris.Wrapf(err, "export: write %s", format)
}
