package aggregators

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/healthdash/healthfeeds/internal/models"
	"github.com/healthdash/healthfeeds/internal/query"
	"github.com/healthdash/healthfeeds/internal/utils"
)

const (
	covidDailyRows      = 365
	covidMonthsKept     = 12
	covidBoroughWindow  = 90
	covidCompleteFilter = "incomplete='0'"
)

// covidPrefixes maps the dataset's two-letter column prefixes to boroughs.
var covidPrefixes = []struct {
	prefix  string
	borough models.Borough
}{
	{"bx", models.Bronx},
	{"bk", models.Brooklyn},
	{"mn", models.Manhattan},
	{"qn", models.Queens},
	{"si", models.StatenIsland},
}

type covidDailyRow struct {
	Date         string  `json:"date_of_interest"`
	Cases        numeric `json:"case_count"`
	Hospitalized numeric `json:"hospitalized_count"`
	Deaths       numeric `json:"death_count"`
}

// CovidMonthly buckets the latest year of complete daily counts into calendar months.
func (c *Collector) CovidMonthly(ctx context.Context) models.Outcome[[]models.CovidMonth] {
	const dataset = DatasetCovidMonthly
	start := time.Now()
	src := c.sources.Covid
	q := query.Socrata{
		Select: "date_of_interest,case_count,hospitalized_count,death_count",
		Where:  covidCompleteFilter,
		Order:  "date_of_interest DESC",
		Limit:  covidDailyRows,
	}

	var raw []covidDailyRow
	if !c.load(ctx, dataset, SourceSocrata, q.URL(src.URL), src.TTL, &raw) {
		return finish[models.CovidMonth](c, dataset, start, nil, false)
	}
	return finish(c, dataset, start, reshapeCovidMonthly(raw), true)
}

func reshapeCovidMonthly(raw []covidDailyRow) []models.CovidMonth {
	type bucket struct {
		key   string
		month time.Month
		row   models.CovidMonth
	}
	buckets := make(map[string]*bucket)
	for _, row := range raw {
		day, err := utils.ParseUpstreamTime(row.Date)
		if err != nil {
			continue
		}
		key := day.Format("2006-01")
		b := buckets[key]
		if b == nil {
			b = &bucket{key: key, month: day.Month()}
			buckets[key] = b
		}
		b.row.Cases += row.Cases.Int()
		b.row.Hosp += row.Hospitalized.Int()
		b.row.Deaths += row.Deaths.Int()
	}

	ordered := make([]*bucket, 0, len(buckets))
	for _, b := range buckets {
		ordered = append(ordered, b)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].key < ordered[j].key })
	if len(ordered) > covidMonthsKept {
		ordered = ordered[len(ordered)-covidMonthsKept:]
	}

	out := make([]models.CovidMonth, 0, len(ordered))
	for _, b := range ordered {
		row := b.row
		row.Month = b.month.String()[:3]
		out = append(out, row)
	}
	return out
}

// CovidByBorough sums the borough-prefixed columns over the last 90 days of complete rows.
func (c *Collector) CovidByBorough(ctx context.Context) models.Outcome[[]models.CovidBorough] {
	const dataset = DatasetCovidByBorough
	start := time.Now()
	src := c.sources.Covid

	selects := make([]string, 0, 2*len(covidPrefixes))
	for _, p := range covidPrefixes {
		selects = append(selects,
			"sum("+p.prefix+"_case_count) as "+p.prefix+"_cases",
			"sum("+p.prefix+"_hospitalized_count) as "+p.prefix+"_hosp",
		)
	}
	q := query.Socrata{
		Select: strings.Join(selects, ","),
		Where: query.And(
			query.Since("date_of_interest", utils.DaysAgo(c.now(), covidBoroughWindow)),
			covidCompleteFilter,
		),
	}

	var raw []map[string]numeric
	if !c.load(ctx, dataset, SourceSocrata, q.URL(src.URL), src.TTL, &raw) {
		return finish[models.CovidBorough](c, dataset, start, nil, false)
	}
	if len(raw) == 0 {
		return finish[models.CovidBorough](c, dataset, start, nil, true)
	}
	return finish(c, dataset, start, reshapeCovidByBorough(raw[0]), true)
}

func reshapeCovidByBorough(row map[string]numeric) []models.CovidBorough {
	out := make([]models.CovidBorough, 0, len(covidPrefixes))
	for _, p := range covidPrefixes {
		out = append(out, models.CovidBorough{
			Borough: p.borough,
			Cases:   row[p.prefix+"_cases"].Int(),
			Hosp:    row[p.prefix+"_hosp"].Int(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Cases > out[j].Cases })
	return out
}
