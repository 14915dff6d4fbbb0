package laborstat

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/blsgeo/internal/geo"
	"github.com/sells-group/blsgeo/internal/reference"
)

// RegionSelector returns the regions of a reference product that satisfy the
// predicate against the boundary, in reference order.
type RegionSelector interface {
	SelectRegions(ctx context.Context, product reference.Product, boundary geo.Boundary, predicate geo.Predicate, buffer float64) ([]geo.Region, error)
}

// FileRegions selects regions from reference shapefiles on disk, loading the
// dataset on every call.
type FileRegions struct {
	// Paths maps a product name to its dataset path.
	Paths map[string]string
}

// NewFileRegions returns a selector over the county and metro datasets.
func NewFileRegions(countiesPath, metrosPath string) *FileRegions {
	return &FileRegions{Paths: map[string]string{
		reference.Counties.Name: countiesPath,
		reference.Metros.Name:   metrosPath,
	}}
}

// SelectRegions implements RegionSelector.
func (f *FileRegions) SelectRegions(ctx context.Context, product reference.Product, boundary geo.Boundary, predicate geo.Predicate, buffer float64) ([]geo.Region, error) {
	path, ok := f.Paths[product.Name]
	if !ok || path == "" {
		return nil, eris.Errorf("laborstat: no dataset configured for %s", product.Name)
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "laborstat: select regions")
	}

	regions, err := geo.LoadRegions(reference.Dataset(product, path))
	if err != nil {
		return nil, eris.Wrap(err, "laborstat: load reference regions")
	}
	return geo.SelectRegions(boundary, regions, predicate, buffer)
}
