// Package laborstat runs BLS labor statistics over the regions selected by a
// boundary: select regions, build series identifiers, retrieve observations,
// and left-join them back onto the regions.
package laborstat

import (
	"sort"
	"strings"

	"github.com/sells-group/blsgeo/internal/apperr"
	"github.com/sells-group/blsgeo/internal/reference"
	"github.com/sells-group/blsgeo/internal/series"
)

// Statistic describes one BLS program: which regions it covers, how its series
// identifiers are laid out, and the parameter values used when none are given.
type Statistic struct {
	Name     string
	Title    string
	Product  reference.Product
	Template series.Template
	Defaults map[string][]string
}

// AreaRange is where the region code sits within the statistic's identifiers.
func (s Statistic) AreaRange() series.AreaCodeRange {
	return s.Template.AreaRange()
}

// Params merges caller-supplied parameter lists over the defaults. Names are
// matched case-insensitively; empty lists fall back to the default. A name
// given twice under different case is an InvalidArgument error.
func (s Statistic) Params(given map[string][]string) (map[string][]string, error) {
	seen := make(map[string]string, len(given))
	for name := range given {
		key := strings.ToLower(strings.TrimSpace(name))
		if prev, ok := seen[key]; ok {
			a, b := prev, name
			if b < a {
				a, b = b, a
			}
			return nil, apperr.InvalidArgument("params", "parameter %q given more than once (%q and %q)", key, a, b)
		}
		seen[key] = name
	}
	return s.withDefaults(given), nil
}

// withDefaults overlays the non-empty lists of given on the defaults. Names
// must already be unique ignoring case.
func (s Statistic) withDefaults(given map[string][]string) map[string][]string {
	out := make(map[string][]string, len(s.Defaults))
	for name, values := range s.Defaults {
		out[name] = values
	}
	for name, values := range given {
		if len(values) == 0 {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(name))] = values
	}
	return out
}

// LAUS is Local Area Unemployment Statistics at county level.
var LAUS = Statistic{
	Name:     "laus",
	Title:    "Local Area Unemployment Statistics",
	Product:  reference.Counties,
	Template: series.NewTemplate(series.Lit("LAU"), series.Lit("CN"), series.Area(5), series.Lit("00000000"), series.P("measure", 2)),
	Defaults: map[string][]string{"measure": {"03"}},
}

// QCEW is the Quarterly Census of Employment and Wages at county level.
var QCEW = Statistic{
	Name:    "qcew",
	Title:   "Quarterly Census of Employment and Wages",
	Product: reference.Counties,
	Template: series.NewTemplate(series.Lit("ENU"), series.Area(5),
		series.P("datatype", 1), series.P("size", 1), series.P("ownership", 1), series.P("industry", 0)),
	Defaults: map[string][]string{
		"datatype":  {"1"},
		"size":      {"0"},
		"ownership": {"0"},
		"industry":  {"10"},
	},
}

// OEWS is Occupational Employment and Wage Statistics for metropolitan areas.
var OEWS = Statistic{
	Name:    "oews",
	Title:   "Occupational Employment and Wage Statistics",
	Product: reference.Metros,
	Template: series.NewTemplate(series.Lit("OEU"), series.Lit("M"), series.Lit("00"), series.Area(5),
		series.P("industry", 6), series.P("occupation", 6), series.P("datatype", 2)),
	Defaults: map[string][]string{
		"industry":   {"000000"},
		"occupation": {"000000"},
		"datatype":   {"04"},
	},
}

// CES is Current Employment Statistics (state and area) for metropolitan areas.
var CES = Statistic{
	Name:    "ces",
	Title:   "Current Employment Statistics",
	Product: reference.Metros,
	Template: series.NewTemplate(series.Lit("SMU"), series.State(2), series.Area(5),
		series.P("industry", 8), series.P("datatype", 2)),
	Defaults: map[string][]string{
		"industry": {"00000000"},
		"datatype": {"01"},
	},
}

var statistics = map[string]Statistic{
	LAUS.Name: LAUS,
	QCEW.Name: QCEW,
	OEWS.Name: OEWS,
	CES.Name:  CES,
}

// Lookup returns the statistic with the given name (case-insensitive).
func Lookup(name string) (Statistic, error) {
	s, ok := statistics[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Statistic{}, apperr.InvalidArgument("statistic", "unknown statistic %q (want one of %s)",
			name, strings.Join(Names(), ", "))
	}
	return s, nil
}

// Names returns the statistic names in sorted order.
func Names() []string {
	names := make([]string, 0, len(statistics))
	for n := range statistics {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LAUSParams selects LAUS measures (03 unemployment rate, 04 unemployment,
// 05 employment, 06 labor force). Empty means {"03"}.
type LAUSParams struct {
	Measures []string `json:"measures" yaml:"measures"`
}

func (p LAUSParams) values() map[string][]string {
	return LAUS.withDefaults(map[string][]string{"measure": p.Measures})
}

// QCEWParams selects QCEW data types, establishment size classes, ownership
// codes and NAICS-based industry codes. Empty lists use datatype 1 (all
// employees), size 0, ownership 0 and industry 10 (total, all industries).
type QCEWParams struct {
	DataTypes  []string `json:"data_types" yaml:"data_types"`
	Sizes      []string `json:"sizes" yaml:"sizes"`
	Ownerships []string `json:"ownerships" yaml:"ownerships"`
	Industries []string `json:"industries" yaml:"industries"`
}

func (p QCEWParams) values() map[string][]string {
	return QCEW.withDefaults(map[string][]string{
		"datatype":  p.DataTypes,
		"size":      p.Sizes,
		"ownership": p.Ownerships,
		"industry":  p.Industries,
	})
}

// OEWSParams selects OEWS industries, SOC occupations and data types. Empty
// lists use industry 000000, occupation 000000 (all) and datatype 04 (annual
// mean wage).
type OEWSParams struct {
	Industries  []string `json:"industries" yaml:"industries"`
	Occupations []string `json:"occupations" yaml:"occupations"`
	DataTypes   []string `json:"data_types" yaml:"data_types"`
}

func (p OEWSParams) values() map[string][]string {
	return OEWS.withDefaults(map[string][]string{
		"industry":   p.Industries,
		"occupation": p.Occupations,
		"datatype":   p.DataTypes,
	})
}

// CESParams selects CES supersector/industry codes and data types. Empty lists
// use industry 00000000 (total nonfarm) and datatype 01 (all employees).
type CESParams struct {
	Industries []string `json:"industries" yaml:"industries"`
	DataTypes  []string `json:"data_types" yaml:"data_types"`
}

func (p CESParams) values() map[string][]string {
	return CES.withDefaults(map[string][]string{
		"industry": p.Industries,
		"datatype": p.DataTypes,
	})
}
