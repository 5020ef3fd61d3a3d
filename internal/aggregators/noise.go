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
	noiseWindowDays = 7
	noiseTypeLimit  = 7
)

var noisePalette = []string{"#5b9cf5", "#f59e42", "#a78bfa", "#2dd4a0", "#f5c542", "#f07070", "#6b7a94"}

type noiseBoroughRow struct {
	Borough    string  `json:"borough"`
	Complaints numeric `json:"complaints"`
}

type noiseTypeRow struct {
	ComplaintType string  `json:"complaint_type"`
	Count         numeric `json:"count"`
}

func (c *Collector) noiseWhere() string {
	return query.And(
		"complaint_type like 'Noise%'",
		query.Since("created_date", utils.DaysAgo(c.now(), noiseWindowDays)),
	)
}

// NoiseByBorough counts the last week of 311 noise complaints per borough.
func (c *Collector) NoiseByBorough(ctx context.Context) models.Outcome[[]models.BoroughComplaints] {
	const dataset = DatasetNoiseByBorough
	start := time.Now()
	src := c.sources.ServiceRequests
	q := query.Socrata{
		Select: "borough,count(*) as complaints",
		Where:  c.noiseWhere(),
		Group:  "borough",
		Order:  "complaints DESC",
	}

	var raw []noiseBoroughRow
	if !c.load(ctx, dataset, SourceSocrata, q.URL(src.URL), src.TTL, &raw) {
		return finish[models.BoroughComplaints](c, dataset, start, nil, false)
	}
	return finish(c, dataset, start, reshapeNoiseByBorough(raw), true)
}

func reshapeNoiseByBorough(raw []noiseBoroughRow) []models.BoroughComplaints {
	counts := make(map[models.Borough]int)
	for _, row := range raw {
		b, ok := models.NormalizeBorough(row.Borough)
		if !ok {
			continue
		}
		counts[b] += row.Complaints.Int()
	}
	out := make([]models.BoroughComplaints, 0, len(counts))
	for _, b := range models.Boroughs() {
		if n, ok := counts[b]; ok {
			out = append(out, models.BoroughComplaints{Borough: b, Complaints: n})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Complaints > out[j].Complaints })
	return out
}

// NoiseByType counts the last week of noise complaints per subtype, coloured by rank.
func (c *Collector) NoiseByType(ctx context.Context) models.Outcome[[]models.ComplaintType] {
	const dataset = DatasetNoiseByType
	start := time.Now()
	src := c.sources.ServiceRequests
	q := query.Socrata{
		Select: "complaint_type,count(*) as count",
		Where:  c.noiseWhere(),
		Group:  "complaint_type",
		Order:  "count DESC",
		Limit:  noiseTypeLimit,
	}

	var raw []noiseTypeRow
	if !c.load(ctx, dataset, SourceSocrata, q.URL(src.URL), src.TTL, &raw) {
		return finish[models.ComplaintType](c, dataset, start, nil, false)
	}
	return finish(c, dataset, start, reshapeNoiseByType(raw), true)
}

func reshapeNoiseByType(raw []noiseTypeRow) []models.ComplaintType {
	out := make([]models.ComplaintType, 0, len(raw))
	for _, row := range raw {
		label, ok := noiseLabel(row.ComplaintType)
		if !ok {
			continue
		}
		out = append(out, models.ComplaintType{Type: label, Count: row.Count.Int()})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > noiseTypeLimit {
		out = out[:noiseTypeLimit]
	}
	for i := range out {
		out[i].Fill = noisePalette[i%len(noisePalette)]
	}
	return out
}

// noiseLabel strips the "Noise - " prefix and renames the bare type to General.
func noiseLabel(complaintType string) (string, bool) {
	t := strings.TrimSpace(complaintType)
	if !strings.HasPrefix(t, "Noise") {
		return "", false
	}
	if t == "Noise" {
		return "General", true
	}
	if rest, ok := strings.CutPrefix(t, "Noise - "); ok {
		return rest, true
	}
	return t, true
}
