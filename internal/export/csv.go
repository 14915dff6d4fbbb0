package export

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/blsgeo/internal/laborstat"
)

// WriteCSV writes a header line followed by one line per result row.
func WriteCSV(w io.Writer, res *laborstat.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return wrapWrite(err, "csv header")
	}
	for i := range res.Rows {
		if err := cw.Write(Record(res, i)); err != nil {
			return wrapWrite(err, "csv row")
		}
	}
	cw.Flush()
	return wrapWrite(cw.Error(), "csv")
}

func writeCSVFile(path string, res *laborstat.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	if err := WriteCSV(f, res); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "export: close %s", path)
}
