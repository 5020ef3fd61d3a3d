package aggregators

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/healthdash/healthfeeds/internal/models"
	"github.com/healthdash/healthfeeds/internal/query"
)

const cuisineLimit = 8

const defaultFill = "#6b7a94"

var gradeDisplay = map[string]struct{ name, fill string }{
	"A": {name: "Grade A", fill: "#2dd4a0"},
	"N": {name: "Pending N", fill: "#f5c542"},
	"Z": {name: "Pending Z", fill: "#f59e42"},
}

type cuisineRow struct {
	Cuisine    string  `json:"cuisine_description"`
	Violations numeric `json:"violations"`
}

// boroughScoreRow is either a grouped row (score_sum over n) or a raw inspection row (score).
type boroughScoreRow struct {
	Boro     string  `json:"boro"`
	ScoreSum numeric `json:"score_sum"`
	Score    numeric `json:"score"`
	N        numeric `json:"n"`
}

type gradeRow struct {
	Grade string  `json:"grade"`
	Count numeric `json:"count"`
}

// FoodByCuisine counts critical violations per cuisine, top eight descending.
func (c *Collector) FoodByCuisine(ctx context.Context) models.Outcome[[]models.CuisineViolations] {
	const dataset = DatasetFoodByCuisine
	start := time.Now()
	src := c.sources.FoodInspections
	q := query.Socrata{
		Select: "cuisine_description,count(*) as violations",
		Where:  query.Equals("critical_flag", "Critical"),
		Group:  "cuisine_description",
		Order:  "violations DESC",
		Limit:  cuisineLimit,
	}

	var raw []cuisineRow
	if !c.load(ctx, dataset, SourceSocrata, q.URL(src.URL), src.TTL, &raw) {
		return finish[models.CuisineViolations](c, dataset, start, nil, false)
	}
	return finish(c, dataset, start, reshapeCuisines(raw), true)
}

func reshapeCuisines(raw []cuisineRow) []models.CuisineViolations {
	out := make([]models.CuisineViolations, 0, len(raw))
	for _, row := range raw {
		name := strings.TrimSpace(row.Cuisine)
		if name == "" {
			continue
		}
		out = append(out, models.CuisineViolations{Cuisine: name, Violations: row.Violations.Int()})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Violations > out[j].Violations })
	if len(out) > cuisineLimit {
		out = out[:cuisineLimit]
	}
	return out
}

// FoodByBorough averages inspection scores per borough, rounded to one decimal.
func (c *Collector) FoodByBorough(ctx context.Context) models.Outcome[[]models.BoroughScore] {
	const dataset = DatasetFoodByBorough
	start := time.Now()
	src := c.sources.FoodInspections
	q := query.Socrata{
		Select: "boro,sum(score) as score_sum,count(score) as n",
		Where:  "score IS NOT NULL AND boro != '0' AND boro IS NOT NULL",
		Group:  "boro",
	}

	var raw []boroughScoreRow
	if !c.load(ctx, dataset, SourceSocrata, q.URL(src.URL), src.TTL, &raw) {
		return finish[models.BoroughScore](c, dataset, start, nil, false)
	}
	return finish(c, dataset, start, reshapeBoroughScores(raw), true)
}

// reshapeBoroughScores treats score_sum as a sum over n rows; rows without n are single observations.
func reshapeBoroughScores(raw []boroughScoreRow) []models.BoroughScore {
	type acc struct{ sum, n float64 }
	totals := make(map[models.Borough]*acc)
	for _, row := range raw {
		b, ok := models.NormalizeBorough(row.Boro)
		score := row.ScoreSum
		if !score.valid {
			score = row.Score
		}
		if !ok || !score.valid {
			continue
		}
		weight := 1.0
		if row.N.valid {
			weight = row.N.value
		}
		if weight <= 0 {
			continue
		}
		a := totals[b]
		if a == nil {
			a = &acc{}
			totals[b] = a
		}
		a.sum += score.value
		a.n += weight
	}

	out := make([]models.BoroughScore, 0, len(totals))
	for _, b := range models.Boroughs() {
		a, ok := totals[b]
		if !ok {
			continue
		}
		out = append(out, models.BoroughScore{Borough: b, AvgScore: round1(a.sum / a.n)})
	}
	return out
}

// GradeDistribution counts inspections by letter grade with fixed names and colours.
func (c *Collector) GradeDistribution(ctx context.Context) models.Outcome[[]models.GradeSlice] {
	const dataset = DatasetGradeDistribution
	start := time.Now()
	src := c.sources.FoodInspections
	q := query.Socrata{
		Select: "grade,count(*) as count",
		Where:  "grade IN('A','N','Z')",
		Group:  "grade",
		Order:  "count DESC",
	}

	var raw []gradeRow
	if !c.load(ctx, dataset, SourceSocrata, q.URL(src.URL), src.TTL, &raw) {
		return finish[models.GradeSlice](c, dataset, start, nil, false)
	}
	return finish(c, dataset, start, reshapeGrades(raw), true)
}

func reshapeGrades(raw []gradeRow) []models.GradeSlice {
	out := make([]models.GradeSlice, 0, len(raw))
	for _, row := range raw {
		code := strings.TrimSpace(row.Grade)
		if code == "" {
			continue
		}
		slice := models.GradeSlice{Name: code, Value: row.Count.Int(), Fill: defaultFill}
		if d, ok := gradeDisplay[code]; ok {
			slice.Name, slice.Fill = d.name, d.fill
		}
		out = append(out, slice)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
