package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"

	"github.com/sells-group/blsgeo/internal/export"
	"github.com/sells-group/blsgeo/internal/geo"
	"github.com/sells-group/blsgeo/internal/laborstat"
)

// printResult writes res to out as a table, CSV or indented JSON.
func printResult(out io.Writer, res *laborstat.Result, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "csv":
		return export.WriteCSV(out, res)
	case "table", "":
		formatResultTable(out, res)
		return nil
	default:
		return eris.Errorf("unknown format %q (valid: table, csv, json)", format)
	}
}

// formatResultTable writes the rows of res followed by its diagnostics.
func formatResultTable(out io.Writer, res *laborstat.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "REGION\tNAME\tSERIES\tPARAMS\tPERIOD\tVALUE\tNOTES")
	_, _ = fmt.Fprintln(w, "------\t----\t------\t------\t------\t-----\t-----")

	for _, r := range res.Rows {
		period := ""
		if r.Matched() {
			period = r.Year + " " + r.Period
		}
		value := ""
		switch {
		case r.Value != nil:
			value = strconv.FormatFloat(*r.Value, 'f', -1, 64)
		case r.Suppressed:
			value = r.RawValue
		}
		notes := r.Footnotes
		if r.Orphan {
			notes = "unrequested series " + notes
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.RegionCode,
			truncate(r.RegionName, 30),
			r.SeriesID,
			export.FormatParams(r.Params),
			period,
			value,
			notes,
		)
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\n%s run %s: %d series in %d batches, %d rows\n",
		res.Statistic, res.RunID, res.SeriesRequested, res.BatchesSent, len(res.Rows))
	for _, d := range res.Diagnostics {
		_, _ = fmt.Fprintf(out, "%s: %s (%s)\n", d.Level, d.Message, d.Code)
	}
}

// formatRegions writes code, name and state of each region.
func formatRegions(out io.Writer, regions []geo.Region) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CODE\tNAME\tSTATE")
	_, _ = fmt.Fprintln(w, "----\t----\t-----")
	for _, r := range regions {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", r.Code, r.Name, r.StateFIPS)
	}
	_ = w.Flush()
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
