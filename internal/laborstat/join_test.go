package laborstat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/blsgeo/internal/bls"
	"github.com/sells-group/blsgeo/internal/geo"
	"github.com/sells-group/blsgeo/internal/series"
)

func fourCounties() []geo.Region {
	return []geo.Region{
		{Code: "04001", Name: "Apache County", StateFIPS: "04"},
		{Code: "04003", Name: "Cochise County", StateFIPS: "04"},
		{Code: "04005", Name: "Coconino County", StateFIPS: "04"},
		{Code: "04007", Name: "Gila County", StateFIPS: "04"},
	}
}

func ptr(v float64) *float64 { return &v }

func obs(id, value string) bls.Observation {
	o := bls.Observation{SeriesID: id, Year: "2024", Period: "M12", PeriodName: "December", Latest: true, RawValue: value}
	if value == "4.5" {
		o.Value = ptr(4.5)
	}
	return o
}

func TestJoin_EightIDsFourMatched(t *testing.T) {
	regions := fourCounties()
	keys, err := series.Build(regions, LAUS.Template, map[string][]string{"measure": {"03", "06"}})
	require.NoError(t, err)
	require.Len(t, keys, 8)

	// Only the unemployment-rate series exist.
	var observations []bls.Observation
	for _, k := range keys {
		if k.Params["measure"] == "03" {
			observations = append(observations, obs(k.ID, "4.5"))
		}
	}
	require.Len(t, observations, 4)

	res := Join(regions, keys, observations, LAUS.AreaRange())

	require.Len(t, res.Rows, 8)
	var nulls int
	for i, row := range res.Rows {
		assert.Equal(t, keys[i].ID, row.SeriesID)
		assert.Equal(t, keys[i].Region, row.RegionCode)
		if row.Value == nil {
			nulls++
			assert.False(t, row.Matched())
			assert.Equal(t, "06", row.Params["measure"])
		}
	}
	assert.Equal(t, 4, nulls)

	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, DiagNullValues, res.Diagnostics[0].Code)
	assert.Equal(t, "warn", res.Diagnostics[0].Level)
	assert.Equal(t, 4, res.Diagnostics[0].Count)
}

func TestJoin_KeepsEveryRegion(t *testing.T) {
	regions := fourCounties()
	keys, err := series.Build(regions[:2], LAUS.Template, map[string][]string{"measure": {"03"}})
	require.NoError(t, err)

	res := Join(regions, keys, nil, LAUS.AreaRange())

	require.Len(t, res.Rows, 4)
	for i, r := range regions {
		assert.Equal(t, r.Code, res.Rows[i].RegionCode)
		assert.Equal(t, r.Name, res.Rows[i].RegionName)
		assert.Nil(t, res.Rows[i].Value)
	}
	assert.Empty(t, res.Rows[2].SeriesID, "region without keys gets an empty row")
}

func TestJoin_MultipleObservationsPerSeries(t *testing.T) {
	regions := fourCounties()[:1]
	keys, err := series.Build(regions, LAUS.Template, map[string][]string{"measure": {"03"}})
	require.NoError(t, err)

	o1 := obs(keys[0].ID, "4.5")
	o2 := obs(keys[0].ID, "4.5")
	o2.Period = "M11"
	o2.Latest = false

	res := Join(regions, keys, []bls.Observation{o1, o2}, LAUS.AreaRange())
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "M12", res.Rows[0].Period)
	assert.Equal(t, "M11", res.Rows[1].Period)
	assert.Empty(t, res.Diagnostics)
}

func TestJoin_Orphans(t *testing.T) {
	regions := fourCounties()
	keys, err := series.Build(regions[:1], LAUS.Template, map[string][]string{"measure": {"03"}})
	require.NoError(t, err)

	observations := []bls.Observation{
		obs(keys[0].ID, "4.5"),
		obs("LAUCN040050000000004", "4.5"), // not requested, names a selected region
		obs("LAUCN990010000000003", "4.5"), // names no selected region
		obs("LAU", "4.5"),                  // too short for the area range
	}

	res := Join(regions, keys, observations, LAUS.AreaRange())

	require.Len(t, res.Rows, 4)
	assert.Equal(t, "04001", res.Rows[0].RegionCode)
	assert.False(t, res.Rows[0].Orphan)

	orphan := res.Rows[2]
	assert.Equal(t, "04005", orphan.RegionCode)
	assert.True(t, orphan.Orphan)
	assert.Equal(t, "LAUCN040050000000004", orphan.SeriesID)
	require.NotNil(t, orphan.Value)

	codes := map[string]int{}
	for _, d := range res.Diagnostics {
		codes[d.Code] = d.Count
	}
	assert.Equal(t, 1, codes[DiagOrphanSeries])
	assert.Equal(t, 2, codes[DiagUnmatched])
	assert.Equal(t, 2, codes[DiagNullValues], "04003 and 04007 have no keys")
}

func TestJoin_Suppressed(t *testing.T) {
	regions := fourCounties()[:2]
	params, err := QCEW.Params(nil)
	require.NoError(t, err)
	keys, err := series.Build(regions, QCEW.Template, params)
	require.NoError(t, err)

	res := Join(regions, keys, []bls.Observation{
		obs(keys[0].ID, "(D)"),
		obs(keys[1].ID, "4.5"),
	}, QCEW.AreaRange())

	require.Len(t, res.Rows, 2)
	assert.True(t, res.Rows[0].Suppressed)
	assert.Nil(t, res.Rows[0].Value)
	assert.Equal(t, "(D)", res.Rows[0].RawValue)

	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, DiagNotDisclosed, res.Diagnostics[0].Code)
	assert.Equal(t, 1, res.Diagnostics[0].Count)
}

func TestJoin_NoRegions(t *testing.T) {
	res := Join(nil, nil, nil, LAUS.AreaRange())
	assert.Empty(t, res.Rows)
	assert.Empty(t, res.Diagnostics)
}
