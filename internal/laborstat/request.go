package laborstat

import (
	"github.com/hashicorp/go-multierror"

	"github.com/sells-group/blsgeo/internal/apperr"
	"github.com/sells-group/blsgeo/internal/geo"
)

// DefaultBuffer is the containment buffer, in CRS units, when none is given.
const DefaultBuffer = 0.09

// Request holds the inputs common to every statistic.
type Request struct {
	// BoundaryPath names a boundary file; ignored when Boundary is set.
	BoundaryPath string        `json:"boundary_path,omitempty" yaml:"boundary"`
	Boundary     *geo.Boundary `json:"-" yaml:"-"`
	APIKey       string        `json:"-" yaml:"api_key"`
	// Predicate is "intersects" (default) or "contains".
	Predicate string `json:"predicate,omitempty" yaml:"predicate"`
	// Buffer applies to "contains"; nil means DefaultBuffer.
	Buffer *float64 `json:"buffer,omitempty" yaml:"buffer"`
	// FullSeries requests the whole history instead of the latest point only.
	FullSeries bool `json:"full_series,omitempty" yaml:"full_series"`
	StartYear  int  `json:"start_year,omitempty" yaml:"start_year"`
	EndYear    int  `json:"end_year,omitempty" yaml:"end_year"`
}

// BufferDistance returns the effective buffer.
func (r Request) BufferDistance() float64 {
	if r.Buffer == nil {
		return DefaultBuffer
	}
	return *r.Buffer
}

// SpatialPredicate returns the effective predicate.
func (r Request) SpatialPredicate() (geo.Predicate, error) {
	if r.Predicate == "" {
		return geo.Intersects, nil
	}
	return geo.ParsePredicate(r.Predicate)
}

// Validate reports every problem with the request at once.
func (r Request) Validate() error {
	var result *multierror.Error

	if r.Boundary == nil && r.BoundaryPath == "" {
		result = multierror.Append(result, apperr.InvalidArgument("boundary", "a boundary file or geometry is required"))
	}
	if r.Boundary != nil && len(r.Boundary.Geometries) == 0 {
		result = multierror.Append(result, apperr.InvalidArgument("boundary", "boundary has no geometries"))
	}
	if r.APIKey == "" {
		result = multierror.Append(result, apperr.InvalidArgument("api_key", "a BLS registration key is required"))
	}
	if _, err := r.SpatialPredicate(); err != nil {
		result = multierror.Append(result, err)
	}
	if r.BufferDistance() < 0 {
		result = multierror.Append(result, apperr.InvalidArgument("buffer", "must be non-negative, got %g", r.BufferDistance()))
	}
	if r.StartYear < 0 || r.EndYear < 0 {
		result = multierror.Append(result, apperr.InvalidArgument("years", "must be positive"))
	}
	if r.StartYear > 0 && r.EndYear > 0 && r.StartYear > r.EndYear {
		result = multierror.Append(result, apperr.InvalidArgument("years", "start year %d after end year %d", r.StartYear, r.EndYear))
	}

	return result.ErrorOrNil()
}
