package export

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/blsgeo/internal/laborstat"
)

// FeatureCollection returns one feature per result row, carrying the geometry
// of the row's region and the row's columns as properties. Rows whose region
// has no geometry get a null geometry.
func FeatureCollection(res *laborstat.Result) *geojson.FeatureCollection {
	geoms := make(map[string]geom.T, len(res.Regions))
	for _, r := range res.Regions {
		geoms[r.Code] = r.Geometry
	}

	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(res.Rows))}
	for i, row := range res.Rows {
		props := make(map[string]interface{}, len(Columns))
		for j, v := range Values(res, i) {
			props[Columns[j]] = v
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         row.RegionCode,
			Geometry:   geoms[row.RegionCode],
			Properties: props,
		})
	}
	return fc
}

// WriteGeoJSON writes res as a GeoJSON FeatureCollection.
func WriteGeoJSON(w io.Writer, res *laborstat.Result) error {
	data, err := json.Marshal(FeatureCollection(res))
	if err != nil {
		return eris.Wrap(err, "geojson: encode feature collection")
	}
	_, err = w.Write(data)
	return wrapWrite(err, "geojson")
}

func writeGeoJSONFile(path string, res *laborstat.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	if err := WriteGeoJSON(f, res); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "export: close %s", path)
}
