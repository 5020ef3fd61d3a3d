package models

import "strings"

// Borough is one of the five canonical display labels used across every dataset.
type Borough string

const (
	Bronx        Borough = "Bronx"
	Brooklyn     Borough = "Brooklyn"
	Manhattan    Borough = "Manhattan"
	Queens       Borough = "Queens"
	StatenIsland Borough = "Staten Is."
)

var canonicalOrder = []Borough{Bronx, Brooklyn, Manhattan, Queens, StatenIsland}

var boroughSpellings = map[string]Borough{
	"bronx":         Bronx,
	"the bronx":     Bronx,
	"brooklyn":      Brooklyn,
	"manhattan":     Manhattan,
	"queens":        Queens,
	"staten island": StatenIsland,
	"staten is.":    StatenIsland,
}

// county FIPS codes within New York State (36).
var countyBoroughs = map[string]Borough{
	"005": Bronx,
	"047": Brooklyn,
	"061": Manhattan,
	"081": Queens,
	"085": StatenIsland,
}

// Boroughs returns the canonical display order.
func Boroughs() []Borough {
	return append([]Borough(nil), canonicalOrder...)
}

// NormalizeBorough maps an upstream jurisdiction spelling onto the display taxonomy.
// The boolean is false for anything unrecognized, including "", "0" and "Unspecified".
func NormalizeBorough(raw string) (Borough, bool) {
	key := strings.ToLower(strings.Join(strings.Fields(raw), " "))
	if key == "" {
		return "", false
	}
	b, ok := boroughSpellings[key]
	return b, ok
}

// BoroughFromCounty resolves a 3-digit county code or a 5-digit state+county FIPS code.
func BoroughFromCounty(code string) (Borough, bool) {
	code = strings.TrimSpace(code)
	if len(code) == 5 {
		if !strings.HasPrefix(code, "36") {
			return "", false
		}
		code = code[2:]
	}
	b, ok := countyBoroughs[code]
	return b, ok
}

// Rank is the position of the borough in the canonical order, or len(Boroughs()) if unknown.
func (b Borough) Rank() int {
	for i, c := range canonicalOrder {
		if c == b {
			return i
		}
	}
	return len(canonicalOrder)
}

// FullName expands the abbreviated Staten Island label for prose such as KPI captions.
func (b Borough) FullName() string {
	if b == StatenIsland {
		return "Staten Island"
	}
	return string(b)
}

// CountyFIPS returns the 5-digit state+county code for the borough.
func (b Borough) CountyFIPS() string {
	for code, borough := range countyBoroughs {
		if borough == b {
			return "36" + code
		}
	}
	return ""
}

// CountyCodes lists the 3-digit county codes in canonical borough order.
func CountyCodes() []string {
	codes := make([]string, 0, len(canonicalOrder))
	for _, b := range canonicalOrder {
		codes = append(codes, b.CountyFIPS()[2:])
	}
	return codes
}
