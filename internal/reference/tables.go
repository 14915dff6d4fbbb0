// Package reference knows where the Census TIGER/Line reference datasets live
// and how their records map onto BLS area codes.
package reference

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sells-group/blsgeo/internal/geo"
)

// Product describes a national TIGER/Line shapefile product used as a region set.
type Product struct {
	Name       string // e.g., "COUNTY"
	Table      string // file suffix, e.g., "county"
	CodeField  string // attribute holding the BLS area code
	NameField  string
	StateField string // empty when the state must be derived from the name
}

// Counties is the county product: 5-digit state+county FIPS in GEOID.
var Counties = Product{
	Name:       "COUNTY",
	Table:      "county",
	CodeField:  "GEOID",
	NameField:  "NAMELSAD",
	StateField: "STATEFP",
}

// Metros is the core-based statistical area product: 5-digit CBSA code.
var Metros = Product{
	Name:      "CBSA",
	Table:     "cbsa",
	CodeField: "CBSAFP",
	NameField: "NAME",
}

// Products lists the region sets the statistics draw from.
var Products = []Product{Counties, Metros}

// ProductByName looks up a product by its name (case-insensitive).
func ProductByName(name string) (Product, bool) {
	for _, p := range Products {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Product{}, false
}

// DownloadURL builds the Census Bureau download URL for a national TIGER/Line
// shapefile: tl_{year}_us_{table}.zip.
func DownloadURL(product Product, year int) string {
	return fmt.Sprintf(
		"https://www2.census.gov/geo/tiger/TIGER%d/%s/tl_%d_us_%s.zip",
		year, product.Name, year, product.Table,
	)
}

// ShapefilePath is where Download leaves the extracted shapefile for a product.
func ShapefilePath(dir string, product Product, year int) string {
	base := fmt.Sprintf("tl_%d_us_%s", year, product.Table)
	return filepath.Join(dir, base, base+".shp")
}

// Dataset returns the loader description of a product stored at path.
func Dataset(product Product, path string) geo.DatasetSpec {
	spec := geo.DatasetSpec{
		Path:       path,
		CodeField:  product.CodeField,
		NameField:  product.NameField,
		StateField: product.StateField,
	}
	if product.StateField == "" {
		spec.StateFromName = StateFromCBSAName
	}
	return spec
}

// FIPSCodes maps state abbreviation to 2-digit FIPS code for all 50 states,
// DC and Puerto Rico.
var FIPSCodes = map[string]string{
	"AL": "01", "AK": "02", "AZ": "04", "AR": "05", "CA": "06",
	"CO": "08", "CT": "09", "DE": "10", "DC": "11", "FL": "12",
	"GA": "13", "HI": "15", "ID": "16", "IL": "17", "IN": "18",
	"IA": "19", "KS": "20", "KY": "21", "LA": "22", "ME": "23",
	"MD": "24", "MA": "25", "MI": "26", "MN": "27", "MS": "28",
	"MO": "29", "MT": "30", "NE": "31", "NV": "32", "NH": "33",
	"NJ": "34", "NM": "35", "NY": "36", "NC": "37", "ND": "38",
	"OH": "39", "OK": "40", "OR": "41", "PA": "42", "RI": "44",
	"SC": "45", "SD": "46", "TN": "47", "TX": "48", "UT": "49",
	"VT": "50", "VA": "51", "WA": "53", "WV": "54", "WI": "55",
	"WY": "56", "PR": "72",
}

// abbrByFIPS is a reverse lookup from FIPS code to state abbreviation.
var abbrByFIPS map[string]string

func init() {
	abbrByFIPS = make(map[string]string, len(FIPSCodes))
	for abbr, fips := range FIPSCodes {
		abbrByFIPS[fips] = abbr
	}
}

// AbbrFromFIPS returns the state abbreviation for a FIPS code.
func AbbrFromFIPS(fips string) (string, bool) {
	abbr, ok := abbrByFIPS[fips]
	return abbr, ok
}

// AllStateFIPS returns a sorted list of all state FIPS codes.
func AllStateFIPS() []string {
	codes := make([]string, 0, len(FIPSCodes))
	for _, fips := range FIPSCodes {
		codes = append(codes, fips)
	}
	sort.Strings(codes)
	return codes
}

// StateFromCBSAName derives the principal state FIPS from a CBSA title such as
// "Phoenix-Mesa-Chandler, AZ" or "New York-Newark-Jersey City, NY-NJ-PA".
// Multi-state areas resolve to the first listed state. Returns "" when the
// title carries no recognizable state suffix.
func StateFromCBSAName(name string) string {
	idx := strings.LastIndex(name, ",")
	if idx < 0 {
		return ""
	}
	suffix := strings.TrimSpace(name[idx+1:])
	first, _, _ := strings.Cut(suffix, "-")
	fips, ok := FIPSCodes[strings.ToUpper(strings.TrimSpace(first))]
	if !ok {
		return ""
	}
	return fips
}
