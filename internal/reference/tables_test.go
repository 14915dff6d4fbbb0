package reference

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadURL(t *testing.T) {
	assert.Equal(t,
		"https://www2.census.gov/geo/tiger/TIGER2024/COUNTY/tl_2024_us_county.zip",
		DownloadURL(Counties, 2024))
	assert.Equal(t,
		"https://www2.census.gov/geo/tiger/TIGER2023/CBSA/tl_2023_us_cbsa.zip",
		DownloadURL(Metros, 2023))
}

func TestShapefilePath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("data", "tl_2024_us_county", "tl_2024_us_county.shp"),
		ShapefilePath("data", Counties, 2024))
}

func TestProductByName(t *testing.T) {
	p, ok := ProductByName("cbsa")
	require.True(t, ok)
	assert.Equal(t, "CBSAFP", p.CodeField)

	_, ok = ProductByName("EDGES")
	assert.False(t, ok)
}

func TestDataset(t *testing.T) {
	counties := Dataset(Counties, "c.shp")
	assert.Equal(t, "GEOID", counties.CodeField)
	assert.Equal(t, "STATEFP", counties.StateField)
	assert.Nil(t, counties.StateFromName)

	metros := Dataset(Metros, "m.shp")
	assert.Equal(t, "CBSAFP", metros.CodeField)
	require.NotNil(t, metros.StateFromName)
	assert.Equal(t, "04", metros.StateFromName("Tucson, AZ"))
}

func TestStateFromCBSAName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Phoenix-Mesa-Chandler, AZ", "04"},
		{"New York-Newark-Jersey City, NY-NJ-PA", "36"},
		{"San Juan-Bayamón-Caguas, PR", "72"},
		{"Washington-Arlington-Alexandria, DC-VA-MD-WV", "11"},
		{"No state suffix", ""},
		{"Somewhere, ZZ", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StateFromCBSAName(tt.name))
		})
	}
}

func TestAbbrFromFIPS(t *testing.T) {
	abbr, ok := AbbrFromFIPS("04")
	assert.True(t, ok)
	assert.Equal(t, "AZ", abbr)

	_, ok = AbbrFromFIPS("99")
	assert.False(t, ok)
}

func TestAllStateFIPS(t *testing.T) {
	fips := AllStateFIPS()
	assert.Len(t, fips, 53)
	assert.Equal(t, "01", fips[0])
	assert.Equal(t, "72", fips[len(fips)-1])
}
