package aggregators

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/healthdash/healthfeeds/internal/metrics"
	"github.com/healthdash/healthfeeds/internal/models"
	"github.com/healthdash/healthfeeds/internal/query"
)

const placesRowLimit = 15000

// TractMeasureIDs are the PLACES measures served for the tract map.
var TractMeasureIDs = []string{"OBESITY", "DIABETES", "CASTHMA", "BPHIGH", "CSMOKING"}

type placesRow struct {
	LocationID string  `json:"locationid"`
	MeasureID  string  `json:"measureid"`
	Value      numeric `json:"data_value"`
}

// TractHealth returns crude prevalence per census tract for the chronic disease measures.
func (c *Collector) TractHealth(ctx context.Context) models.Outcome[models.TractMeasures] {
	const dataset = DatasetTractHealth
	start := time.Now()
	src := c.sources.Places

	fips := make([]string, 0, len(models.Boroughs()))
	for _, b := range models.Boroughs() {
		fips = append(fips, b.CountyFIPS())
	}
	q := query.Socrata{
		Select: "locationid,measureid,data_value",
		Where:  query.And(query.AnyOf("countyfips", fips...), query.AnyOf("measureid", TractMeasureIDs...)),
		Limit:  placesRowLimit,
	}

	var raw []placesRow
	ok := c.load(ctx, dataset, SourcePlaces, q.URL(src.URL), src.TTL, &raw)
	metrics.ObserveAggregation(dataset, time.Since(start), ok)
	if !ok {
		return models.Unavailable[models.TractMeasures]()
	}
	// No seed exists for tracts, so an empty answer is served as an empty lookup.
	lookup := reshapeTracts(raw)
	if len(lookup) == 0 {
		c.logger.Info("live data empty", slog.String("dataset", dataset))
	}
	return models.Live(lookup)
}

func reshapeTracts(raw []placesRow) models.TractMeasures {
	lookup := make(models.TractMeasures)
	for _, row := range raw {
		id := strings.TrimSpace(row.LocationID)
		if id == "" || row.MeasureID == "" || !row.Value.valid {
			continue
		}
		m := lookup[id]
		if m == nil {
			m = make(map[string]float64)
			lookup[id] = m
		}
		m[row.MeasureID] = row.Value.value
	}
	return lookup
}
