package aggregators

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthdash/healthfeeds/internal/models"
	"github.com/healthdash/healthfeeds/internal/repo"
)

// zipFetcher answers per ZIP code found in the request URL.
type zipFetcher struct {
	mu      sync.Mutex
	calls   int
	bodies  map[string]string
	failure map[string]error
}

func (f *zipFetcher) GetJSON(_ context.Context, _, url string, _ time.Duration, out any) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	for zip, err := range f.failure {
		if strings.Contains(url, "zipCode="+zip) {
			return err
		}
	}
	for zip, body := range f.bodies {
		if strings.Contains(url, "zipCode="+zip) {
			return json.Unmarshal([]byte(body), out)
		}
	}
	return json.Unmarshal([]byte(`[]`), out)
}

func TestAirNowNotConfiguredMakesNoRequest(t *testing.T) {
	f := &zipFetcher{}
	sources := testSources("http://airnow.test")
	a := NewAirNow(f, sources, quietLogger())

	_, err := a.Current(context.Background())
	require.ErrorIs(t, err, ErrNotConfigured)
	assert.Equal(t, 0, f.calls)
	assert.False(t, a.Configured())
}

func TestAirNowSkipsFailingZip(t *testing.T) {
	f := &zipFetcher{
		bodies: map[string]string{
			"10001": `[{"ParameterName":"PM2.5","AQI":42,"Category":{"Number":1,"Name":"Good"},"ReportingArea":"New York City"},
			           {"ParameterName":"O3","AQI":61,"Category":{"Number":2,"Name":"Moderate"},"ReportingArea":"New York City"}]`,
			"11201": `[{"ParameterName":"PM2.5","AQI":55,"Category":{"Number":2,"Name":"Moderate"},"ReportingArea":"Brooklyn"}]`,
		},
		failure: map[string]error{
			"10451": &repo.StatusError{Source: SourceAirNow, Code: http.StatusInternalServerError},
		},
	}
	sources := testSources("http://airnow.test")
	sources.AirNowAPIKey = "secret"
	a := NewAirNow(f, sources, quietLogger())
	a.now = func() time.Time { return fixedNow }

	report, err := a.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, f.calls)
	assert.Len(t, report.Observations, 3)
	assert.Equal(t, []string{"10001", "10451", "11201"}, report.Zips)
	assert.Equal(t, fixedNow, report.Timestamp)
	assert.Equal(t, []models.AQISummary{
		{Parameter: "O3", AQI: 61, Category: "Moderate", Color: "#f5c542", ReportingArea: "New York City"},
		{Parameter: "PM2.5", AQI: 55, Category: "Moderate", Color: "#f5c542", ReportingArea: "Brooklyn"},
	}, report.Summary)
}

func TestAirNowTransportErrorFailsReport(t *testing.T) {
	f := &zipFetcher{failure: map[string]error{"10451": errors.New("dial tcp: connection refused")}}
	sources := testSources("http://airnow.test")
	sources.AirNowAPIKey = "secret"

	_, err := NewAirNow(f, sources, quietLogger()).Current(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestAirNowURL(t *testing.T) {
	sources := testSources("http://airnow.test")
	sources.AirNowAPIKey = "k"
	a := NewAirNow(nil, sources, nil)
	u := a.zipURL("10001")
	assert.True(t, strings.HasPrefix(u, "http://airnow.test/aq/observation/zipCode/current/?"))
	assert.Contains(t, u, "distance=5")
	assert.Contains(t, u, "zipCode=10001")
	assert.Contains(t, u, "API_KEY=k")
}

func TestAQIColor(t *testing.T) {
	cases := map[int]string{0: "#2dd4a0", 1: "#2dd4a0", 2: "#f5c542", 3: "#f59e42", 4: "#f07070", 5: "#a78bfa", 6: "#a78bfa"}
	for category, want := range cases {
		assert.Equal(t, want, AQIColor(category))
	}
}

func TestNumericDecoding(t *testing.T) {
	var row struct {
		A numeric `json:"a"`
		B numeric `json:"b"`
		C numeric `json:"c"`
		D numeric `json:"d"`
		E numeric `json:"e"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"12.7","b":3,"c":null,"d":"n/a"}`), &row))
	assert.Equal(t, 12, row.A.Int())
	assert.InDelta(t, 12.7, row.A.Float(), 1e-9)
	assert.Equal(t, 3, row.B.Int())
	assert.False(t, row.C.valid)
	assert.False(t, row.D.valid)
	assert.Equal(t, 0, row.D.Int())
	assert.False(t, row.E.valid)
}

func TestNumericRejectsNonFinite(t *testing.T) {
	for _, in := range []string{`"NaN"`, `"Inf"`, `"-Infinity"`, `"+inf"`} {
		var n numeric
		require.NoError(t, json.Unmarshal([]byte(in), &n))
		assert.False(t, n.valid, in)
		assert.Equal(t, 0, n.Int(), in)
	}
	_, ok := parseCount("NaN")
	assert.False(t, ok)
	v, ok := parseCount(" 42 ")
	assert.True(t, ok)
	assert.Equal(t, 42, v)
}
