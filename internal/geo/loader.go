package geo

import (
	"archive/zip"
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkt"
	"go.uber.org/zap"
)

// LoadRegions reads a reference dataset (.shp, .zip holding a shapefile, or GeoJSON)
// and returns its regions in file order. Records without a code or geometry are skipped.
func LoadRegions(spec DatasetSpec) ([]Region, error) {
	if spec.CodeField == "" {
		return nil, eris.New("geo: dataset code field is required")
	}

	log := zap.L().With(zap.String("component", "geo.loader"), zap.String("path", spec.Path))

	features, err := readFeatures(spec.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: load regions from %s", spec.Path)
	}

	regions := make([]Region, 0, len(features))
	seen := make(map[string]bool, len(features))
	var skipped, duplicates int
	for _, f := range features {
		code := lookup(f.attrs, spec.CodeField)
		if code == "" || f.geometry == nil {
			skipped++
			continue
		}
		if seen[code] {
			duplicates++
			continue
		}
		seen[code] = true

		r := Region{
			Code:       code,
			Name:       lookup(f.attrs, spec.NameField),
			StateFIPS:  lookup(f.attrs, spec.StateField),
			Attributes: f.attrs,
			Geometry:   f.geometry,
		}
		if r.StateFIPS == "" && spec.StateFromName != nil {
			r.StateFIPS = spec.StateFromName(r.Name)
		}
		regions = append(regions, r)
	}

	if skipped > 0 || duplicates > 0 {
		log.Debug("geo: skipped reference records",
			zap.Int("skipped", skipped),
			zap.Int("duplicates", duplicates),
		)
	}
	log.Info("reference regions loaded", zap.Int("regions", len(regions)))

	return regions, nil
}

// LoadBoundary reads the user boundary from a shapefile (.shp or .zip), GeoJSON
// (.geojson, .json) or WKT (.wkt, one geometry per line) file.
func LoadBoundary(path string) (Boundary, error) {
	var b Boundary

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wkt", ".txt":
		geoms, err := readWKT(path)
		if err != nil {
			return b, eris.Wrapf(err, "geo: load boundary %s", path)
		}
		b.Geometries = geoms
	default:
		features, err := readFeatures(path)
		if err != nil {
			return b, eris.Wrapf(err, "geo: load boundary %s", path)
		}
		for _, f := range features {
			if f.geometry != nil {
				b.Geometries = append(b.Geometries, f.geometry)
			}
		}
	}

	if len(b.Geometries) == 0 {
		return b, eris.Errorf("geo: boundary %s contains no geometries", path)
	}

	zap.L().Debug("boundary loaded",
		zap.String("path", path),
		zap.Int("geometries", len(b.Geometries)),
	)
	return b, nil
}

// feature is one record of a vector dataset.
type feature struct {
	attrs    map[string]string
	geometry geom.T
}

func readFeatures(path string) ([]feature, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return readShapefile(path)
	case ".zip":
		return readZippedShapefile(path)
	case ".geojson", ".json":
		return readGeoJSON(path)
	default:
		return nil, eris.Errorf("unsupported dataset format %q", filepath.Ext(path))
	}
}

func readShapefile(path string) ([]feature, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
	}

	var out []feature
	for reader.Next() {
		_, s := reader.Shape()

		attrs := make(map[string]string, len(names))
		for i, name := range names {
			val := strings.TrimRight(reader.Attribute(i), "\x00")
			attrs[name] = strings.TrimSpace(val)
		}

		out = append(out, feature{attrs: attrs, geometry: shapeToGeom(s)})
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "read shapefile %s", path)
	}

	return out, nil
}

func readZippedShapefile(zipPath string) ([]feature, error) {
	dir, err := os.MkdirTemp("", "blsgeo-shp-*")
	if err != nil {
		return nil, eris.Wrap(err, "create extract dir")
	}
	defer func() { _ = os.RemoveAll(dir) }()

	shpPath, err := ExtractShapefile(zipPath, dir)
	if err != nil {
		return nil, err
	}
	return readShapefile(shpPath)
}

// ExtractShapefile extracts a shapefile ZIP into destDir and returns the path
// of the .shp member.
func ExtractShapefile(zipPath, destDir string) (string, error) {
	if err := extractZIP(zipPath, destDir); err != nil {
		return "", eris.Wrap(err, "extract shapefile ZIP")
	}
	return findFileByExt(destDir, ".shp")
}

func readGeoJSON(path string) ([]feature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}
	features, err := decodeGeoJSON(data)
	if err != nil {
		return nil, eris.Wrapf(err, "decode %s", path)
	}
	return features, nil
}

// ParseBoundaryGeoJSON decodes a boundary from a GeoJSON FeatureCollection,
// Feature or bare geometry.
func ParseBoundaryGeoJSON(data []byte) (Boundary, error) {
	var b Boundary
	features, err := decodeGeoJSON(data)
	if err != nil {
		return b, eris.Wrap(err, "geo: parse boundary")
	}
	for _, f := range features {
		if f.geometry != nil {
			b.Geometries = append(b.Geometries, f.geometry)
		}
	}
	if len(b.Geometries) == 0 {
		return b, eris.New("geo: boundary contains no geometries")
	}
	return b, nil
}

func decodeGeoJSON(data []byte) ([]feature, error) {
	var header struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, eris.Wrap(err, "decode GeoJSON")
	}

	switch header.Type {
	case "FeatureCollection":
		var fc geojson.FeatureCollection
		if err := json.Unmarshal(data, &fc); err != nil {
			return nil, eris.Wrap(err, "decode feature collection")
		}
		out := make([]feature, 0, len(fc.Features))
		for _, f := range fc.Features {
			out = append(out, fromGeoJSONFeature(f))
		}
		return out, nil
	case "Feature":
		var f geojson.Feature
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, eris.Wrap(err, "decode feature")
		}
		return []feature{fromGeoJSONFeature(&f)}, nil
	default:
		var g geom.T
		if err := geojson.Unmarshal(data, &g); err != nil {
			return nil, eris.Wrap(err, "decode geometry")
		}
		return []feature{{attrs: map[string]string{}, geometry: g}}, nil
	}
}

func fromGeoJSONFeature(f *geojson.Feature) feature {
	attrs := make(map[string]string, len(f.Properties))
	for k, v := range f.Properties {
		if v == nil {
			attrs[k] = ""
			continue
		}
		attrs[k] = strings.TrimSpace(fmt.Sprint(v))
	}
	if f.ID != "" {
		if _, ok := attrs["id"]; !ok {
			attrs["id"] = f.ID
		}
	}
	return feature{attrs: attrs, geometry: f.Geometry}
}

func readWKT(path string) ([]geom.T, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", path)
	}
	defer file.Close() //nolint:errcheck

	var out []geom.T
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		g, err := wkt.Unmarshal(text)
		if err != nil {
			return nil, eris.Wrapf(err, "parse WKT on line %d", line)
		}
		out = append(out, g)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "scan %s", path)
	}
	return out, nil
}

// lookup returns the attribute whose name matches key case-insensitively.
func lookup(attrs map[string]string, key string) string {
	if key == "" {
		return ""
	}
	if v, ok := attrs[key]; ok {
		return v
	}
	for k, v := range attrs {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// extractZIP extracts a ZIP archive to the destination directory.
func extractZIP(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return eris.Wrap(err, "open zip")
	}
	defer r.Close() //nolint:errcheck

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		destPath := filepath.Join(destDir, filepath.Base(f.Name))

		rc, err := f.Open()
		if err != nil {
			return eris.Wrapf(err, "open zip entry %s", f.Name)
		}

		outFile, err := os.Create(destPath)
		if err != nil {
			_ = rc.Close()
			return eris.Wrapf(err, "create %s", destPath)
		}

		if _, err := io.Copy(outFile, rc); err != nil {
			_ = outFile.Close()
			_ = rc.Close()
			return eris.Wrapf(err, "extract %s", f.Name)
		}
		_ = outFile.Close()
		_ = rc.Close()
	}

	return nil
}

// findFileByExt finds the first file with the given extension in a directory.
func findFileByExt(dir, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", eris.Wrap(err, "read directory")
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ext) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", eris.Errorf("no %s file found in %s", ext, dir)
}
