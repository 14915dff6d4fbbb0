// Package bls retrieves time-series observations from the BLS public data API v2.
package bls

import (
	"math"
	"strconv"
	"strings"
)

// MaxSeriesPerRequest is the v2 API limit on series identifiers per POST.
const MaxSeriesPerRequest = 50

// DefaultBaseURL is the v2 timeseries endpoint.
const DefaultBaseURL = "https://api.bls.gov/publicAPI/v2/timeseries/data/"

// FetchOptions controls one retrieval.
type FetchOptions struct {
	APIKey     string
	LatestOnly bool
	// StartYear and EndYear bound a full-history request; ignored when LatestOnly.
	StartYear int
	EndYear   int
}

// Observation is one data point of one series.
type Observation struct {
	SeriesID   string
	Year       string
	Period     string
	PeriodName string
	Latest     bool
	Value      *float64 // nil when RawValue is not numeric
	RawValue   string
	Footnotes  string // non-empty footnote texts joined with ","
}

// suppressionMarkers are the placeholder values BLS publishes instead of a
// number when an estimate is withheld or unavailable.
var suppressionMarkers = map[string]bool{
	"-":    true,
	"(D)":  true,
	"(NA)": true,
	"(X)":  true,
	"(S)":  true,
}

// Suppressed reports whether the raw value is a non-disclosure marker.
func (o Observation) Suppressed() bool {
	return suppressionMarkers[strings.TrimSpace(o.RawValue)]
}

// request is the POST body.
type request struct {
	SeriesID        []string `json:"seriesid"`
	RegistrationKey string   `json:"registrationkey,omitempty"`
	Latest          bool     `json:"latest"`
	StartYear       string   `json:"startyear,omitempty"`
	EndYear         string   `json:"endyear,omitempty"`
}

func newRequest(ids []string, opts FetchOptions) request {
	r := request{
		SeriesID:        ids,
		RegistrationKey: opts.APIKey,
		Latest:          opts.LatestOnly,
	}
	if !opts.LatestOnly {
		if opts.StartYear > 0 {
			r.StartYear = strconv.Itoa(opts.StartYear)
		}
		if opts.EndYear > 0 {
			r.EndYear = strconv.Itoa(opts.EndYear)
		}
	}
	return r
}

// seriesResponse is the v2 response envelope. Pointers distinguish absent
// members from empty ones.
type seriesResponse struct {
	Status       string   `json:"status"`
	ResponseTime int      `json:"responseTime"`
	Message      []string `json:"message"`
	Results      *struct {
		Series *[]seriesPayload `json:"series"`
	} `json:"Results"`
}

type seriesPayload struct {
	SeriesID string       `json:"seriesID"`
	Data     *[]dataPoint `json:"data"`
}

type dataPoint struct {
	Year       string     `json:"year"`
	Period     string     `json:"period"`
	PeriodName string     `json:"periodName"`
	Latest     string     `json:"latest"`
	Value      string     `json:"value"`
	Footnotes  []footnote `json:"footnotes"`
}

type footnote struct {
	Code string `json:"code"`
	Text string `json:"text"`
}

func (dp dataPoint) observation(seriesID string) Observation {
	o := Observation{
		SeriesID:   seriesID,
		Year:       dp.Year,
		Period:     dp.Period,
		PeriodName: dp.PeriodName,
		Latest:     dp.Latest == "true",
		RawValue:   dp.Value,
		Value:      parseValue(dp.Value),
	}

	var notes []string
	for _, fn := range dp.Footnotes {
		if text := strings.TrimSpace(fn.Text); text != "" {
			notes = append(notes, text)
		}
	}
	o.Footnotes = strings.Join(notes, ",")
	return o
}

// parseValue returns nil for values that are not numbers.
func parseValue(s string) *float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
