// Package geo loads reference regions and user boundaries and selects the regions
// that satisfy a spatial predicate against the boundary.
package geo

import (
	"strings"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/blsgeo/internal/apperr"
)

// Region is a reference administrative area (county, metro area) with a unique code.
type Region struct {
	Code       string            `json:"code"`
	Name       string            `json:"name"`
	StateFIPS  string            `json:"state_fips"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Geometry   geom.T            `json:"-"`
}

// Boundary is the caller-supplied area of interest.
type Boundary struct {
	Geometries []geom.T
}

// Predicate is the spatial test used to select regions.
type Predicate int

const (
	// Intersects selects regions whose geometry intersects any boundary geometry.
	Intersects Predicate = iota + 1
	// Contains selects regions fully inside a boundary geometry buffered outward.
	Contains
)

// String returns the predicate name.
func (p Predicate) String() string {
	switch p {
	case Intersects:
		return "intersects"
	case Contains:
		return "contains"
	default:
		return "unknown"
	}
}

// ParsePredicate converts "intersects" or "contains" into a Predicate.
func ParsePredicate(s string) (Predicate, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "intersects":
		return Intersects, nil
	case "contains":
		return Contains, nil
	default:
		return 0, apperr.InvalidArgument("predicate", "unknown value %q (valid: intersects, contains)", s)
	}
}

// DatasetSpec describes how to read a reference dataset.
// Field names are matched case-insensitively against shapefile or GeoJSON attributes.
type DatasetSpec struct {
	Path       string
	CodeField  string
	NameField  string
	StateField string
	// StateFromName derives the state FIPS code from the region name when the
	// dataset has no state attribute (metro areas).
	StateFromName func(name string) string
}
