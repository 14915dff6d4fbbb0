package laborstat

import (
	"time"

	"github.com/sells-group/blsgeo/internal/bls"
	"github.com/sells-group/blsgeo/internal/geo"
	"github.com/sells-group/blsgeo/internal/series"
)

// Diagnostic codes.
const (
	DiagNullValues   = "null_values"
	DiagNotDisclosed = "not_disclosable"
	DiagEmptyResult  = "empty_result"
	DiagNoRegions    = "no_regions"
	DiagOrphanSeries = "orphan_series"
	DiagUnmatched    = "unmatched_series"
)

// Diagnostic is a non-fatal data-quality finding attached to a result.
type Diagnostic struct {
	Level   string `json:"level"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// Row is one region joined with at most one observation.
type Row struct {
	RegionCode string            `json:"region_code"`
	RegionName string            `json:"region_name"`
	StateFIPS  string            `json:"state_fips"`
	SeriesID   string            `json:"series_id,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
	Year       string            `json:"year,omitempty"`
	Period     string            `json:"period,omitempty"`
	PeriodName string            `json:"period_name,omitempty"`
	Latest     bool              `json:"latest"`
	Value      *float64          `json:"value"`
	RawValue   string            `json:"raw_value,omitempty"`
	Footnotes  string            `json:"footnotes,omitempty"`
	Suppressed bool              `json:"suppressed"`
	// Orphan marks an observation for a series that was not requested.
	Orphan bool `json:"orphan,omitempty"`
}

// Matched reports whether the row carries an observation.
func (r Row) Matched() bool {
	return r.Period != "" || r.Year != ""
}

// Result is the outcome of one statistic run.
type Result struct {
	RunID           string       `json:"run_id"`
	Statistic       string       `json:"statistic"`
	RetrievedAt     time.Time    `json:"retrieved_at"`
	SeriesRequested int          `json:"series_requested"`
	BatchesSent     int          `json:"batches_sent"`
	Rows            []Row        `json:"rows"`
	Diagnostics     []Diagnostic `json:"diagnostics"`
	// Regions are the selected regions in selection order.
	Regions []geo.Region `json:"-"`
}

// Join left-joins observations onto regions through the requested keys.
// Every region yields at least one row; every key yields at least one row
// under its region; keys without observations yield a row with empty
// observation fields. Observations for series that were not requested are
// attached to the region their area code names, when that region is present.
func Join(regions []geo.Region, keys []series.Key, observations []bls.Observation, area series.AreaCodeRange) Result {
	byID := make(map[string][]bls.Observation)
	for _, o := range observations {
		byID[o.SeriesID] = append(byID[o.SeriesID], o)
	}

	present := make(map[string]bool, len(regions))
	for _, r := range regions {
		present[r.Code] = true
	}

	requested := make(map[string]bool, len(keys))
	keysByRegion := make(map[string][]series.Key)
	for _, k := range keys {
		requested[k.ID] = true
		keysByRegion[k.Region] = append(keysByRegion[k.Region], k)
	}

	orphans := make(map[string][]bls.Observation)
	var unknown int
	for _, o := range observations {
		if requested[o.SeriesID] {
			continue
		}
		code, ok := area.Extract(o.SeriesID)
		if !ok || !present[code] {
			unknown++
			continue
		}
		orphans[code] = append(orphans[code], o)
	}

	var res Result
	for _, r := range regions {
		base := Row{RegionCode: r.Code, RegionName: r.Name, StateFIPS: r.StateFIPS}

		regionKeys := keysByRegion[r.Code]
		if len(regionKeys) == 0 && len(orphans[r.Code]) == 0 {
			res.Rows = append(res.Rows, base)
			continue
		}

		for _, k := range regionKeys {
			row := base
			row.SeriesID = k.ID
			row.Params = k.Params

			matches := byID[k.ID]
			if len(matches) == 0 {
				res.Rows = append(res.Rows, row)
				continue
			}
			for _, o := range matches {
				res.Rows = append(res.Rows, withObservation(row, o))
			}
		}

		for _, o := range orphans[r.Code] {
			row := base
			row.SeriesID = o.SeriesID
			row.Orphan = true
			res.Rows = append(res.Rows, withObservation(row, o))
		}
	}

	res.Diagnostics = diagnose(res.Rows, unknown)
	return res
}

func withObservation(row Row, o bls.Observation) Row {
	row.Year = o.Year
	row.Period = o.Period
	row.PeriodName = o.PeriodName
	row.Latest = o.Latest
	row.Value = o.Value
	row.RawValue = o.RawValue
	row.Footnotes = o.Footnotes
	row.Suppressed = o.Suppressed()
	return row
}

func diagnose(rows []Row, unknown int) []Diagnostic {
	var nulls, suppressed, orphaned int
	for _, r := range rows {
		switch {
		case r.Suppressed:
			suppressed++
		case r.Value == nil:
			nulls++
		}
		if r.Orphan {
			orphaned++
		}
	}

	var out []Diagnostic
	if nulls > 0 {
		out = append(out, Diagnostic{
			Level:   "warn",
			Code:    DiagNullValues,
			Message: "rows without a value; the series may not exist",
			Count:   nulls,
		})
	}
	if suppressed > 0 {
		out = append(out, Diagnostic{
			Level:   "warn",
			Code:    DiagNotDisclosed,
			Message: "values withheld by BLS (not disclosable)",
			Count:   suppressed,
		})
	}
	if orphaned > 0 {
		out = append(out, Diagnostic{
			Level:   "warn",
			Code:    DiagOrphanSeries,
			Message: "observations returned for series that were not requested",
			Count:   orphaned,
		})
	}
	if unknown > 0 {
		out = append(out, Diagnostic{
			Level:   "warn",
			Code:    DiagUnmatched,
			Message: "observations whose area code names no selected region were dropped",
			Count:   unknown,
		})
	}
	return out
}
