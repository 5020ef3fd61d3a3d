package models

import "time"

// CuisineViolations counts critical violations for one cuisine.
type CuisineViolations struct {
	Cuisine    string `json:"cuisine" yaml:"cuisine"`
	Violations int    `json:"violations" yaml:"violations"`
}

// BoroughScore is the mean inspection score for a borough (lower is better).
type BoroughScore struct {
	Borough  Borough `json:"borough" yaml:"borough"`
	AvgScore float64 `json:"avgScore" yaml:"avgScore"`
}

// GradeSlice is one segment of the restaurant grade distribution.
type GradeSlice struct {
	Name  string `json:"name" yaml:"name"`
	Value int    `json:"value" yaml:"value"`
	Fill  string `json:"fill" yaml:"fill"`
}

// RodentActivity summarises rodent inspection outcomes for a borough.
type RodentActivity struct {
	Borough Borough `json:"borough" yaml:"borough"`
	Total   int     `json:"total" yaml:"total"`
	Active  int     `json:"active" yaml:"active"`
	Passed  int     `json:"passed" yaml:"passed"`
}

// BoroughComplaints counts 311 noise complaints per borough.
type BoroughComplaints struct {
	Borough    Borough `json:"borough" yaml:"borough"`
	Complaints int     `json:"complaints" yaml:"complaints"`
}

// ComplaintType counts 311 noise complaints per display subtype.
type ComplaintType struct {
	Type  string `json:"type" yaml:"type"`
	Count int    `json:"count" yaml:"count"`
	Fill  string `json:"fill" yaml:"fill"`
}

// CovidMonth holds monthly COVID-19 totals labelled by three-letter month.
type CovidMonth struct {
	Month  string `json:"month" yaml:"month"`
	Cases  int    `json:"cases" yaml:"cases"`
	Hosp   int    `json:"hosp" yaml:"hosp"`
	Deaths int    `json:"deaths" yaml:"deaths"`
}

// CovidBorough holds 90-day COVID-19 totals for a borough.
type CovidBorough struct {
	Borough Borough `json:"borough" yaml:"borough"`
	Cases   int     `json:"cases" yaml:"cases"`
	Hosp    int     `json:"hosp" yaml:"hosp"`
}

// RaceRow is the ACS race/ethnicity breakdown for one borough.
type RaceRow struct {
	Borough  Borough `json:"borough" yaml:"borough"`
	NHWhite  int     `json:"nhWhite" yaml:"nhWhite"`
	NHBlack  int     `json:"nhBlack" yaml:"nhBlack"`
	NHAsian  int     `json:"nhAsian" yaml:"nhAsian"`
	Hispanic int     `json:"hispanic" yaml:"hispanic"`
	Other    int     `json:"other" yaml:"other"`
}

// Total sums every category including the residual.
func (r RaceRow) Total() int {
	return r.NHWhite + r.NHBlack + r.NHAsian + r.Hispanic + r.Other
}

// TractMeasures maps a census tract location id to measure id -> crude prevalence.
type TractMeasures map[string]map[string]float64

// AQICategory is the AirNow category block.
type AQICategory struct {
	Number int    `json:"Number"`
	Name   string `json:"Name"`
}

// AQIObservation is an hourly AirNow observation, passed through with upstream field names.
type AQIObservation struct {
	DateObserved  string      `json:"DateObserved"`
	HourObserved  int         `json:"HourObserved"`
	LocalTimeZone string      `json:"LocalTimeZone,omitempty"`
	ReportingArea string      `json:"ReportingArea"`
	StateCode     string      `json:"StateCode,omitempty"`
	Latitude      float64     `json:"Latitude,omitempty"`
	Longitude     float64     `json:"Longitude,omitempty"`
	ParameterName string      `json:"ParameterName"`
	AQI           int         `json:"AQI"`
	Category      AQICategory `json:"Category"`
}

// AQISummary is the strongest observation for one pollutant.
type AQISummary struct {
	Parameter     string `json:"parameter"`
	AQI           int    `json:"aqi"`
	Category      string `json:"category"`
	Color         string `json:"color"`
	ReportingArea string `json:"reportingArea"`
}

// AirQualityReport is the payload of the AirNow proxy route.
type AirQualityReport struct {
	Observations []AQIObservation `json:"observations"`
	Summary      []AQISummary     `json:"summary"`
	Timestamp    time.Time        `json:"timestamp"`
	Zips         []string         `json:"zips"`
}
