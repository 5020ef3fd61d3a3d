package fallback

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/healthdash/healthfeeds/internal/models"
)

//go:embed seeds.yaml
var bundledSeeds []byte

type seedDocument struct {
	FoodByCuisine     []models.CuisineViolations `yaml:"foodByCuisine"`
	FoodByBorough     []models.BoroughScore      `yaml:"foodByBorough"`
	GradeDistribution []models.GradeSlice        `yaml:"gradeDistribution"`
	RodentByBorough   []models.RodentActivity    `yaml:"rodentByBorough"`
	NoiseByBorough    []models.BoroughComplaints `yaml:"noiseByBorough"`
	NoiseByType       []models.ComplaintType     `yaml:"noiseByType"`
	CovidMonthly      []models.CovidMonth        `yaml:"covidMonthly"`
	CovidByBorough    []models.CovidBorough      `yaml:"covidByBorough"`
	RaceByBorough     []models.RaceRow           `yaml:"raceByBorough"`
}

// Seeds holds the fallback tables. It is loaded once and shared read-only;
// callers must not modify the returned slices.
type Seeds struct {
	doc seedDocument
}

// LoadSeeds reads seed tables from path, or the bundled tables when path is empty.
func LoadSeeds(path string) (*Seeds, error) {
	data := bundledSeeds
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read seeds: %w", err)
		}
		data = raw
	}
	return ParseSeeds(data)
}

// MustBundled returns the bundled seeds and panics if they are invalid.
func MustBundled() *Seeds {
	s, err := ParseSeeds(bundledSeeds)
	if err != nil {
		panic(err)
	}
	return s
}

// ParseSeeds decodes and validates a seed document.
func ParseSeeds(data []byte) (*Seeds, error) {
	var doc seedDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse seeds: %w", err)
	}
	if err := doc.validate(); err != nil {
		return nil, err
	}
	return &Seeds{doc: doc}, nil
}

func (d seedDocument) validate() error {
	sizes := map[string]int{
		"foodByCuisine":     len(d.FoodByCuisine),
		"foodByBorough":     len(d.FoodByBorough),
		"gradeDistribution": len(d.GradeDistribution),
		"rodentByBorough":   len(d.RodentByBorough),
		"noiseByBorough":    len(d.NoiseByBorough),
		"noiseByType":       len(d.NoiseByType),
		"covidMonthly":      len(d.CovidMonthly),
		"covidByBorough":    len(d.CovidByBorough),
		"raceByBorough":     len(d.RaceByBorough),
	}
	for name, n := range sizes {
		if n == 0 {
			return fmt.Errorf("seed table %s is empty", name)
		}
	}

	var boroughs []models.Borough
	for _, r := range d.FoodByBorough {
		boroughs = append(boroughs, r.Borough)
	}
	for _, r := range d.RodentByBorough {
		boroughs = append(boroughs, r.Borough)
	}
	for _, r := range d.NoiseByBorough {
		boroughs = append(boroughs, r.Borough)
	}
	for _, r := range d.CovidByBorough {
		boroughs = append(boroughs, r.Borough)
	}
	for _, r := range d.RaceByBorough {
		boroughs = append(boroughs, r.Borough)
	}
	for _, b := range boroughs {
		if b.Rank() == len(models.Boroughs()) {
			return fmt.Errorf("seed borough %q is not a display label", b)
		}
	}
	return nil
}

func (s *Seeds) FoodByCuisine() []models.CuisineViolations  { return s.doc.FoodByCuisine }
func (s *Seeds) FoodByBorough() []models.BoroughScore       { return s.doc.FoodByBorough }
func (s *Seeds) GradeDistribution() []models.GradeSlice     { return s.doc.GradeDistribution }
func (s *Seeds) RodentByBorough() []models.RodentActivity   { return s.doc.RodentByBorough }
func (s *Seeds) NoiseByBorough() []models.BoroughComplaints { return s.doc.NoiseByBorough }
func (s *Seeds) NoiseByType() []models.ComplaintType        { return s.doc.NoiseByType }
func (s *Seeds) CovidMonthly() []models.CovidMonth          { return s.doc.CovidMonthly }
func (s *Seeds) CovidByBorough() []models.CovidBorough      { return s.doc.CovidByBorough }
func (s *Seeds) RaceByBorough() []models.RaceRow            { return s.doc.RaceByBorough }
