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

const rodentWindowDays = 30

type rodentRow struct {
	Borough string  `json:"borough"`
	Result  string  `json:"result"`
	Count   numeric `json:"count"`
}

// rodentActive and rodentPassed match the free-text inspection result.
// A result can match both; one matching neither still counts toward the total.
func rodentActive(result string) bool {
	r := strings.ToLower(result)
	return strings.Contains(r, "active") || strings.Contains(r, "rat activity")
}

func rodentPassed(result string) bool {
	return strings.Contains(strings.ToLower(result), "passed")
}

// RodentByBorough splits the last 30 days of rodent inspections into active and passed results.
func (c *Collector) RodentByBorough(ctx context.Context) models.Outcome[[]models.RodentActivity] {
	const dataset = DatasetRodentByBorough
	start := time.Now()
	src := c.sources.RodentInspections
	q := query.Socrata{
		Select: "borough,result,count(*) as count",
		Where:  query.Since("inspection_date", utils.DaysAgo(c.now(), rodentWindowDays)),
		Group:  "borough,result",
	}

	var raw []rodentRow
	if !c.load(ctx, dataset, SourceSocrata, q.URL(src.URL), src.TTL, &raw) {
		return finish[models.RodentActivity](c, dataset, start, nil, false)
	}
	return finish(c, dataset, start, reshapeRodents(raw), true)
}

func reshapeRodents(raw []rodentRow) []models.RodentActivity {
	grouped := make(map[models.Borough]*models.RodentActivity)
	for _, row := range raw {
		b, ok := models.NormalizeBorough(row.Borough)
		if !ok {
			continue
		}
		acc := grouped[b]
		if acc == nil {
			acc = &models.RodentActivity{Borough: b}
			grouped[b] = acc
		}
		n := row.Count.Int()
		acc.Total += n
		if rodentActive(row.Result) {
			acc.Active += n
		}
		if rodentPassed(row.Result) {
			acc.Passed += n
		}
	}

	out := make([]models.RodentActivity, 0, len(grouped))
	for _, b := range models.Boroughs() {
		if acc, ok := grouped[b]; ok {
			out = append(out, *acc)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	return out
}
