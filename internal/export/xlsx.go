package export

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/blsgeo/internal/laborstat"
)

// Sheet names used by WriteXLSX.
const (
	RowsSheet        = "rows"
	DiagnosticsSheet = "diagnostics"
)

// WriteXLSX writes the result rows to a "rows" sheet and its diagnostics to a
// "diagnostics" sheet. Numeric values are stored as numbers.
func WriteXLSX(path string, res *laborstat.Result) error {
	file := xlsx.NewFile()

	rows, err := file.AddSheet(RowsSheet)
	if err != nil {
		return eris.Wrap(err, "xlsx: add rows sheet")
	}
	addStringRow(rows, Columns)
	for i := range res.Rows {
		record := Record(res, i)
		row := rows.AddRow()
		for j, v := range record {
			cell := row.AddCell()
			switch Columns[j] {
			case "row_num":
				cell.SetInt(i + 1)
			case "value":
				if res.Rows[i].Value != nil {
					cell.SetFloat(*res.Rows[i].Value)
				}
			default:
				cell.SetString(v)
			}
		}
	}

	diags, err := file.AddSheet(DiagnosticsSheet)
	if err != nil {
		return eris.Wrap(err, "xlsx: add diagnostics sheet")
	}
	addStringRow(diags, []string{"level", "code", "message", "count"})
	for _, d := range res.Diagnostics {
		addStringRow(diags, []string{d.Level, d.Code, d.Message, strconv.Itoa(d.Count)})
	}

	if err := file.Save(path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", path)
	}
	return nil
}

func addStringRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
