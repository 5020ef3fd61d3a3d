package services

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/healthdash/healthfeeds/internal/models"
)

// KPI is one headline figure shown above a page's charts.
type KPI struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Sub   string `json:"sub,omitempty"`
}

// String renders the figure as "value · sub".
func (k KPI) String() string {
	if k.Sub == "" {
		return k.Value
	}
	return k.Value + " · " + k.Sub
}

var printer = message.NewPrinter(language.English)

func count(n int) string {
	return printer.Sprintf("%d", n)
}

func millions(n int) string {
	return fmt.Sprintf("%.2fM", float64(n)/1_000_000)
}

func percent(part, whole int, decimals int) string {
	if whole <= 0 {
		return "0%"
	}
	return fmt.Sprintf("%.*f%%", decimals, float64(part)*100/float64(whole))
}

func foodSafetyKPIs(grades []models.GradeSlice, scores []models.BoroughScore) []KPI {
	graded := 0
	for _, g := range grades {
		graded += g.Value
	}
	kpis := make([]KPI, 0, len(grades)+1)
	for i, g := range grades {
		sub := percent(g.Value, graded, 0)
		if i == 0 {
			sub += " of graded"
		}
		kpis = append(kpis, KPI{Label: g.Name, Value: count(g.Value), Sub: sub})
	}

	if len(scores) > 0 {
		worst := scores[0]
		for _, s := range scores[1:] {
			if s.AvgScore > worst.AvgScore {
				worst = s
			}
		}
		kpis = append(kpis, KPI{
			Label: "Worst Avg Score",
			Value: fmt.Sprintf("%.1f", worst.AvgScore),
			Sub:   worst.Borough.FullName(),
		})
	}
	return kpis
}

func environmentKPIs(rodents []models.RodentActivity, noise []models.BoroughComplaints) []KPI {
	var inspections, active int
	for _, r := range rodents {
		inspections += r.Total
		active += r.Active
	}
	perThousand := 0
	if inspections > 0 {
		perThousand = int(float64(active)*1000/float64(inspections) + 0.5)
	}

	complaints := 0
	for _, n := range noise {
		complaints += n.Complaints
	}
	return []KPI{
		{Label: "Rat Activity", Value: count(perThousand), Sub: "Active per 1K inspections"},
		{Label: "Noise Complaints", Value: count(complaints), Sub: "Recent 7 days · 311"},
	}
}

func covidKPIs(rows []models.CovidBorough) []KPI {
	if len(rows) == 0 {
		return nil
	}
	var cases, hosp int
	highest := rows[0]
	for _, r := range rows {
		cases += r.Cases
		hosp += r.Hosp
		if r.Cases > highest.Cases {
			highest = r
		}
	}
	return []KPI{
		{Label: "Cases (90d)", Value: count(cases), Sub: "All boroughs"},
		{Label: "Hospitalizations", Value: count(hosp), Sub: percent(hosp, cases, 1) + " of cases"},
		{Label: "Highest Borough", Value: highest.Borough.FullName(), Sub: count(highest.Cases) + " cases"},
	}
}

func demographicsKPIs(rows []models.RaceRow) []KPI {
	if len(rows) == 0 {
		return nil
	}
	var total, asian, hispanic int
	mostDiverse := rows[0]
	bestShare := 2.0
	for _, r := range rows {
		t := r.Total()
		total += t
		asian += r.NHAsian
		hispanic += r.Hispanic
		if t == 0 {
			continue
		}
		share := float64(max(r.NHWhite, r.NHBlack, r.NHAsian, r.Hispanic)) / float64(t)
		if share < bestShare {
			bestShare = share
			mostDiverse = r
		}
	}
	return []KPI{
		{Label: "NYC Population", Value: millions(total), Sub: "ACS 2022 · 5-year estimate"},
		{Label: "Most Diverse Borough", Value: mostDiverse.Borough.FullName(), Sub: "Smallest dominant-group share"},
		{Label: "Asian Americans", Value: millions(asian), Sub: percent(asian, total, 1) + " of NYC"},
		{Label: "Hispanic / Latino", Value: millions(hispanic), Sub: percent(hispanic, total, 1) + " of NYC"},
	}
}
