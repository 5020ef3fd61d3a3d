package aggregators

import (
	"context"
	"sort"
	"time"

	"github.com/healthdash/healthfeeds/internal/models"
	"github.com/healthdash/healthfeeds/internal/query"
)

// ACS 5-year table B03002 (Hispanic or Latino origin by race).
const (
	acsTotal    = "B03002_001E"
	acsNHWhite  = "B03002_003E"
	acsNHBlack  = "B03002_004E"
	acsNHAsian  = "B03002_006E"
	acsHispanic = "B03002_012E"

	nyStateFIPS = "36"
)

// RaceByBorough reads the ACS race and ethnicity breakdown for the five counties.
func (c *Collector) RaceByBorough(ctx context.Context) models.Outcome[[]models.RaceRow] {
	const dataset = DatasetRaceByBorough
	start := time.Now()
	src := c.sources.Census
	q := query.Census{
		Variables: []string{acsTotal, acsNHWhite, acsNHBlack, acsNHAsian, acsHispanic},
		Counties:  models.CountyCodes(),
		State:     nyStateFIPS,
		Key:       c.sources.CensusAPIKey,
	}

	var raw [][]string
	if !c.load(ctx, dataset, SourceCensus, q.URL(src.URL), src.TTL, &raw) {
		return finish[models.RaceRow](c, dataset, start, nil, false)
	}
	rows, ok := reshapeRace(raw)
	if !ok {
		c.logger.Warn("census response missing expected columns")
	}
	return finish(c, dataset, start, rows, ok)
}

// reshapeRace locates columns by header name; false when any is missing.
func reshapeRace(raw [][]string) ([]models.RaceRow, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	index := make(map[string]int, len(raw[0]))
	for i, name := range raw[0] {
		index[name] = i
	}
	cols := []string{acsTotal, acsNHWhite, acsNHBlack, acsNHAsian, acsHispanic, "county"}
	for _, name := range cols {
		if _, ok := index[name]; !ok {
			return nil, false
		}
	}

	cell := func(row []string, name string) string {
		if i := index[name]; i < len(row) {
			return row[i]
		}
		return ""
	}

	out := make([]models.RaceRow, 0, len(raw)-1)
	for _, row := range raw[1:] {
		b, ok := models.BoroughFromCounty(cell(row, "county"))
		if !ok {
			continue
		}
		total, ok := parseCount(cell(row, acsTotal))
		if !ok {
			continue
		}
		r := models.RaceRow{Borough: b}
		r.NHWhite, _ = parseCount(cell(row, acsNHWhite))
		r.NHBlack, _ = parseCount(cell(row, acsNHBlack))
		r.NHAsian, _ = parseCount(cell(row, acsNHAsian))
		r.Hispanic, _ = parseCount(cell(row, acsHispanic))
		r.Other = max(0, total-r.NHWhite-r.NHBlack-r.NHAsian-r.Hispanic)
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Borough.Rank() < out[j].Borough.Rank() })
	return out, true
}
