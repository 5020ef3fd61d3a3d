package aggregators

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthdash/healthfeeds/internal/config"
	"github.com/healthdash/healthfeeds/internal/models"
	"github.com/healthdash/healthfeeds/internal/repo"
)

var fixedNow = time.Date(2024, time.November, 15, 12, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSources(base string) config.SourcesConfig {
	return config.SourcesConfig{
		FoodInspections:   config.SourceConfig{URL: base + "/resource/43nn-pn8j.json", TTL: time.Hour},
		RodentInspections: config.SourceConfig{URL: base + "/resource/p937-wjvj.json", TTL: time.Hour},
		ServiceRequests:   config.SourceConfig{URL: base + "/resource/fhrw-4uyv.json", TTL: time.Hour},
		Covid:             config.SourceConfig{URL: base + "/resource/rc75-m7u3.json", TTL: 24 * time.Hour},
		Census:            config.SourceConfig{URL: base + "/data/2022/acs/acs5", TTL: 720 * time.Hour},
		Places:            config.SourceConfig{URL: base + "/resource/cwsq-ngmh.json", TTL: 168 * time.Hour},
		AirNow:            config.SourceConfig{URL: base + "/aq/observation/zipCode/current/", TTL: time.Hour},
		AirNowZips:        []string{"10001", "10451", "11201"},
	}
}

// upstream serves one canned body and records the queries it saw.
type upstream struct {
	mu      sync.Mutex
	status  int
	body    string
	queries []map[string][]string
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	u.queries = append(u.queries, r.URL.Query())
	status, body := u.status, u.body
	u.mu.Unlock()
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (u *upstream) lastQuery(key string) string {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.queries) == 0 {
		return ""
	}
	values := u.queries[len(u.queries)-1][key]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func newTestCollector(t *testing.T, status int, body string) (*Collector, *upstream) {
	t.Helper()
	up := &upstream{status: status, body: body}
	srv := httptest.NewServer(up)
	t.Cleanup(srv.Close)
	fetcher := repo.NewFetcher(repo.FetcherOptions{Timeout: 2 * time.Second, Logger: quietLogger()})
	c := NewCollector(fetcher, testSources(srv.URL), quietLogger()).WithClock(func() time.Time { return fixedNow })
	return c, up
}

func TestFoodByBoroughExcludesInvalidBorough(t *testing.T) {
	c, _ := newTestCollector(t, 0, `[{"boro":"Bronx","score":10},{"boro":"Bronx","score":20},{"boro":"0","score":99}]`)

	rows, ok := c.FoodByBorough(context.Background()).Value()
	require.True(t, ok)
	assert.Equal(t, []models.BoroughScore{{Borough: models.Bronx, AvgScore: 15.0}}, rows)
}

func TestFoodByBoroughWeightedMeanInCanonicalOrder(t *testing.T) {
	c, up := newTestCollector(t, 0, `[
		{"boro":"Staten Island","score_sum":"642","n":"20"},
		{"boro":"Queens","score_sum":"502.4","n":"20"},
		{"boro":"Unspecified","score_sum":"10","n":"1"}
	]`)

	rows, ok := c.FoodByBorough(context.Background()).Value()
	require.True(t, ok)
	require.Len(t, rows, 2)
	assert.Equal(t, models.Queens, rows[0].Borough)
	assert.InDelta(t, 25.1, rows[0].AvgScore, 1e-9)
	assert.Equal(t, models.StatenIsland, rows[1].Borough)
	assert.InDelta(t, 32.1, rows[1].AvgScore, 1e-9)
	assert.Equal(t, "boro", up.lastQuery("$group"))
	assert.Equal(t, "boro,sum(score) as score_sum,count(score) as n", up.lastQuery("$select"))
}

func TestFoodByBoroughUpstreamFailureIsUnavailable(t *testing.T) {
	c, _ := newTestCollector(t, http.StatusInternalServerError, `{"error":"down"}`)

	out := c.FoodByBorough(context.Background())
	assert.False(t, out.IsLive())
	assert.Equal(t, models.SourceSeed, out.Source())
}

func TestMalformedBodyIsUnavailable(t *testing.T) {
	c, _ := newTestCollector(t, 0, `{"not":"an array"`)
	assert.False(t, c.GradeDistribution(context.Background()).IsLive())
}

func TestEmptyResultIsUnavailable(t *testing.T) {
	c, _ := newTestCollector(t, 0, `[]`)
	assert.False(t, c.NoiseByBorough(context.Background()).IsLive())
}

func TestFoodByCuisineSortsAndLimits(t *testing.T) {
	c, up := newTestCollector(t, 0, `[
		{"cuisine_description":"Pizza","violations":"49"},
		{"cuisine_description":"American","violations":"144"},
		{"cuisine_description":"","violations":"500"},
		{"cuisine_description":"Chinese","violations":"89"},
		{"cuisine_description":"Thai","violations":"oops"}
	]`)

	rows, ok := c.FoodByCuisine(context.Background()).Value()
	require.True(t, ok)
	assert.Equal(t, []models.CuisineViolations{
		{Cuisine: "American", Violations: 144},
		{Cuisine: "Chinese", Violations: 89},
		{Cuisine: "Pizza", Violations: 49},
		{Cuisine: "Thai", Violations: 0},
	}, rows)
	assert.Equal(t, "critical_flag='Critical'", up.lastQuery("$where"))
	assert.Equal(t, "8", up.lastQuery("$limit"))
}

func TestGradeDistributionFixedNamesAndColours(t *testing.T) {
	c, _ := newTestCollector(t, 0, `[
		{"grade":"Z","count":"88"},
		{"grade":"A","count":"311"},
		{"grade":"N","count":"235"}
	]`)

	rows, ok := c.GradeDistribution(context.Background()).Value()
	require.True(t, ok)
	require.Len(t, rows, 3)

	sum := 0
	for _, r := range rows {
		sum += r.Value
	}
	assert.Equal(t, 634, sum)
	assert.Equal(t, models.GradeSlice{Name: "Grade A", Value: 311, Fill: "#2dd4a0"}, rows[0])
	assert.Equal(t, models.GradeSlice{Name: "Pending N", Value: 235, Fill: "#f5c542"}, rows[1])
	assert.Equal(t, models.GradeSlice{Name: "Pending Z", Value: 88, Fill: "#f59e42"}, rows[2])
}

func TestGradeDistributionUnknownGradePassesThrough(t *testing.T) {
	rows := reshapeGrades([]gradeRow{{Grade: "P", Count: numeric{value: 4, valid: true}}})
	assert.Equal(t, []models.GradeSlice{{Name: "P", Value: 4, Fill: "#6b7a94"}}, rows)
}

func TestRodentClassification(t *testing.T) {
	c, up := newTestCollector(t, 0, `[
		{"borough":"Brooklyn","result":"Rat Activity","count":"5"},
		{"borough":"Brooklyn","result":"Passed","count":"7"},
		{"borough":"Brooklyn","result":"Failed","count":"3"},
		{"borough":"STATEN ISLAND","result":"Active Rat Signs","count":"1"},
		{"borough":"Queens","result":"Passed - Active Rat Signs cleared","count":"4"},
		{"borough":"Unspecified","result":"Passed","count":"100"}
	]`)

	rows, ok := c.RodentByBorough(context.Background()).Value()
	require.True(t, ok)
	assert.Equal(t, []models.RodentActivity{
		{Borough: models.Brooklyn, Total: 15, Active: 5, Passed: 7},
		{Borough: models.Queens, Total: 4, Active: 4, Passed: 4},
		{Borough: models.StatenIsland, Total: 1, Active: 1, Passed: 0},
	}, rows)
	assert.Equal(t, "inspection_date>'2024-10-16T12:00:00.000'", up.lastQuery("$where"))
}

func TestRodentResultBuckets(t *testing.T) {
	cases := []struct {
		in             string
		active, passed bool
	}{
		{"Rat Activity", true, false},
		{"ACTIVE RAT SIGNS", true, false},
		{"Passed", false, true},
		{"Passed - Active Rat Signs cleared", true, true},
		{"Failed", false, false},
		{"", false, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.active, rodentActive(tc.in), tc.in)
		assert.Equal(t, tc.passed, rodentPassed(tc.in), tc.in)
	}
}

func TestNoiseByTypeLabelsAndPalette(t *testing.T) {
	c, up := newTestCollector(t, 0, `[
		{"complaint_type":"Noise - Residential","count":"388"},
		{"complaint_type":"Noise - Street/Sidewalk","count":"271"},
		{"complaint_type":"Noise","count":"164"},
		{"complaint_type":"Illegal Parking","count":"150"},
		{"complaint_type":"Noise - Vehicle","count":"102"}
	]`)

	rows, ok := c.NoiseByType(context.Background()).Value()
	require.True(t, ok)
	assert.Equal(t, []models.ComplaintType{
		{Type: "Residential", Count: 388, Fill: "#5b9cf5"},
		{Type: "Street/Sidewalk", Count: 271, Fill: "#f59e42"},
		{Type: "General", Count: 164, Fill: "#a78bfa"},
		{Type: "Vehicle", Count: 102, Fill: "#2dd4a0"},
	}, rows)
	assert.Equal(t, "complaint_type like 'Noise%' AND created_date>'2024-11-08T12:00:00.000'", up.lastQuery("$where"))
}

func TestNoiseByTypeKeepsSeven(t *testing.T) {
	raw := make([]noiseTypeRow, 0, 9)
	for i := 9; i > 0; i-- {
		raw = append(raw, noiseTypeRow{ComplaintType: "Noise - T", Count: numeric{value: float64(i), valid: true}})
	}
	rows := reshapeNoiseByType(raw)
	require.Len(t, rows, noiseTypeLimit)
	assert.Equal(t, "#6b7a94", rows[6].Fill)
}

func TestNoiseByBoroughNormalizes(t *testing.T) {
	c, _ := newTestCollector(t, 0, `[
		{"borough":"BROOKLYN","complaints":"312"},
		{"borough":"Unspecified","complaints":"40"},
		{"borough":"Staten Island","complaints":"49"}
	]`)

	rows, ok := c.NoiseByBorough(context.Background()).Value()
	require.True(t, ok)
	assert.Equal(t, []models.BoroughComplaints{
		{Borough: models.Brooklyn, Complaints: 312},
		{Borough: models.StatenIsland, Complaints: 49},
	}, rows)
}

func TestCovidMonthlyKeepsLastTwelveMonths(t *testing.T) {
	var b strings.Builder
	b.WriteString("[")
	day := time.Date(2023, time.September, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 15; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(`{"date_of_interest":"` + day.AddDate(0, i, 0).Format("2006-01-02T15:04:05.000") + `","case_count":"10","hospitalized_count":"2","death_count":"x"}`)
	}
	b.WriteString(`,{"date_of_interest":"2024-11-01T00:00:00.000","case_count":"5","hospitalized_count":"1","death_count":"1"}`)
	b.WriteString(`,{"date_of_interest":"not-a-date","case_count":"999"}`)
	b.WriteString("]")

	c, up := newTestCollector(t, 0, b.String())
	rows, ok := c.CovidMonthly(context.Background()).Value()
	require.True(t, ok)
	require.Len(t, rows, 12)
	assert.Equal(t, "Dec", rows[0].Month)
	last := rows[len(rows)-1]
	assert.Equal(t, models.CovidMonth{Month: "Nov", Cases: 15, Hosp: 3, Deaths: 1}, last)
	assert.Equal(t, "365", up.lastQuery("$limit"))
	assert.Equal(t, "incomplete='0'", up.lastQuery("$where"))
}

func TestCovidByBoroughSortsByCases(t *testing.T) {
	c, up := newTestCollector(t, 0, `[{
		"bx_cases":"3982","bx_hosp":"389",
		"bk_cases":"4412","bk_hosp":"431",
		"mn_cases":"3445","mn_hosp":"340",
		"qn_cases":"4825","qn_hosp":"473",
		"si_cases":"1340"
	}]`)

	rows, ok := c.CovidByBorough(context.Background()).Value()
	require.True(t, ok)
	assert.Equal(t, []models.CovidBorough{
		{Borough: models.Queens, Cases: 4825, Hosp: 473},
		{Borough: models.Brooklyn, Cases: 4412, Hosp: 431},
		{Borough: models.Bronx, Cases: 3982, Hosp: 389},
		{Borough: models.Manhattan, Cases: 3445, Hosp: 340},
		{Borough: models.StatenIsland, Cases: 1340, Hosp: 0},
	}, rows)
	assert.Contains(t, up.lastQuery("$select"), "sum(si_hospitalized_count) as si_hosp")
	assert.Contains(t, up.lastQuery("$where"), "date_of_interest>'2024-08-17T12:00:00.000'")
}

func TestCovidByBoroughMissingRowIsUnavailable(t *testing.T) {
	c, _ := newTestCollector(t, 0, `[]`)
	assert.False(t, c.CovidByBorough(context.Background()).IsLive())
}

func TestRaceByBoroughResidualNeverNegative(t *testing.T) {
	c, up := newTestCollector(t, 0, `[
		["NAME","B03002_001E","B03002_003E","B03002_004E","B03002_006E","B03002_012E","state","county"],
		["Richmond County, New York","500000","287000","46000","62000","92000","36","085"],
		["Bronx County, New York","1000","500","400","200","100","36","005"],
		["Albany County, New York","300000","1","1","1","1","36","001"]
	]`)

	rows, ok := c.RaceByBorough(context.Background()).Value()
	require.True(t, ok)
	require.Len(t, rows, 2)
	assert.Equal(t, models.Bronx, rows[0].Borough)
	assert.Equal(t, 0, rows[0].Other)
	assert.Equal(t, models.StatenIsland, rows[1].Borough)
	assert.Equal(t, 13000, rows[1].Other)
	assert.Equal(t, 500000, rows[1].Total())
	assert.Equal(t, "county:005,047,061,081,085", up.lastQuery("for"))
	assert.Equal(t, "state:36", up.lastQuery("in"))
}

func TestRaceByBoroughMissingColumnIsUnavailable(t *testing.T) {
	c, _ := newTestCollector(t, 0, `[["NAME","B03002_001E","state","county"],["Bronx County","1","36","005"]]`)
	assert.False(t, c.RaceByBorough(context.Background()).IsLive())
}

func TestTractHealthBuildsLookup(t *testing.T) {
	c, up := newTestCollector(t, 0, `[
		{"locationid":"36005000100","measureid":"OBESITY","data_value":"31.2"},
		{"locationid":"36005000100","measureid":"DIABETES","data_value":"14.8"},
		{"locationid":"36047000200","measureid":"CASTHMA","data_value":""}
	]`)

	lookup, ok := c.TractHealth(context.Background()).Value()
	require.True(t, ok)
	assert.Equal(t, models.TractMeasures{
		"36005000100": {"OBESITY": 31.2, "DIABETES": 14.8},
	}, lookup)
	assert.Equal(t, "15000", up.lastQuery("$limit"))
	assert.Contains(t, up.lastQuery("$where"), "(countyfips='36005' OR countyfips='36047'")
	assert.Contains(t, up.lastQuery("$where"), "measureid='CSMOKING')")
}

func TestTractHealthEmptyIsLiveEmptyLookup(t *testing.T) {
	c, _ := newTestCollector(t, 0, `[{"locationid":"36005000100","measureid":"OBESITY","data_value":"NaN"}]`)
	lookup, ok := c.TractHealth(context.Background()).Value()
	require.True(t, ok)
	assert.Empty(t, lookup)

	c, _ = newTestCollector(t, http.StatusInternalServerError, `{}`)
	assert.False(t, c.TractHealth(context.Background()).IsLive())
}

func TestCatalogCoversPages(t *testing.T) {
	catalog := Catalog(testSources("http://x"))
	pages := map[string]int{}
	for _, d := range catalog {
		pages[d.Page]++
	}
	for _, p := range Pages() {
		assert.Positive(t, pages[p], p)
	}
}
