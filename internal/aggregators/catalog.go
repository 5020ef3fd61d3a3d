package aggregators

import (
	"time"

	"github.com/healthdash/healthfeeds/internal/config"
)

// Dataset names as exposed by the API and used as metric labels.
const (
	DatasetFoodByCuisine     = "food_by_cuisine"
	DatasetFoodByBorough     = "food_by_borough"
	DatasetGradeDistribution = "grade_distribution"
	DatasetRodentByBorough   = "rodent_by_borough"
	DatasetNoiseByBorough    = "noise_by_borough"
	DatasetNoiseByType       = "noise_by_type"
	DatasetCovidMonthly      = "covid_monthly"
	DatasetCovidByBorough    = "covid_by_borough"
	DatasetRaceByBorough     = "race_by_borough"
	DatasetTractHealth       = "tract_health"
)

// Dashboard pages.
const (
	PageFoodSafety   = "food-safety"
	PageEnvironment  = "environment"
	PageCovid        = "covid"
	PageDemographics = "demographics"
)

// DatasetInfo describes one dataset for the catalogue endpoint.
type DatasetInfo struct {
	Name    string        `json:"name"`
	Page    string        `json:"page"`
	Source  string        `json:"source"`
	Cadence time.Duration `json:"-"`
	Seeded  bool          `json:"seeded"`
}

// Catalog lists every dataset with the revalidation cadence of its source.
func Catalog(sources config.SourcesConfig) []DatasetInfo {
	return []DatasetInfo{
		{Name: DatasetFoodByCuisine, Page: PageFoodSafety, Source: SourceSocrata, Cadence: sources.FoodInspections.TTL, Seeded: true},
		{Name: DatasetFoodByBorough, Page: PageFoodSafety, Source: SourceSocrata, Cadence: sources.FoodInspections.TTL, Seeded: true},
		{Name: DatasetGradeDistribution, Page: PageFoodSafety, Source: SourceSocrata, Cadence: sources.FoodInspections.TTL, Seeded: true},
		{Name: DatasetRodentByBorough, Page: PageEnvironment, Source: SourceSocrata, Cadence: sources.RodentInspections.TTL, Seeded: true},
		{Name: DatasetNoiseByBorough, Page: PageEnvironment, Source: SourceSocrata, Cadence: sources.ServiceRequests.TTL, Seeded: true},
		{Name: DatasetNoiseByType, Page: PageEnvironment, Source: SourceSocrata, Cadence: sources.ServiceRequests.TTL, Seeded: true},
		{Name: DatasetCovidMonthly, Page: PageCovid, Source: SourceSocrata, Cadence: sources.Covid.TTL, Seeded: true},
		{Name: DatasetCovidByBorough, Page: PageCovid, Source: SourceSocrata, Cadence: sources.Covid.TTL, Seeded: true},
		{Name: DatasetRaceByBorough, Page: PageDemographics, Source: SourceCensus, Cadence: sources.Census.TTL, Seeded: true},
		{Name: DatasetTractHealth, Page: "", Source: SourcePlaces, Cadence: sources.Places.TTL, Seeded: false},
	}
}

// Pages lists the dashboard pages served by the page endpoint.
func Pages() []string {
	return []string{PageFoodSafety, PageEnvironment, PageCovid, PageDemographics}
}
