package aggregators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/healthdash/healthfeeds/internal/config"
	"github.com/healthdash/healthfeeds/internal/models"
	"github.com/healthdash/healthfeeds/internal/repo"
)

// ErrNotConfigured reports a missing API key; no request is attempted.
var ErrNotConfigured = errors.New("AIRNOW_API_KEY not configured")

const airNowDistanceMiles = "5"

// AirNow proxies current AQI observations for a fixed set of ZIP codes.
type AirNow struct {
	fetcher JSONFetcher
	source  config.SourceConfig
	apiKey  string
	zips    []string
	now     func() time.Time
	logger  *slog.Logger
}

// NewAirNow constructs the proxy from source configuration.
func NewAirNow(fetcher JSONFetcher, sources config.SourcesConfig, logger *slog.Logger) *AirNow {
	if logger == nil {
		logger = slog.Default()
	}
	return &AirNow{
		fetcher: fetcher,
		source:  sources.AirNow,
		apiKey:  sources.AirNowAPIKey,
		zips:    append([]string(nil), sources.AirNowZips...),
		now:     time.Now,
		logger:  logger,
	}
}

// Configured reports whether an API key is present.
func (a *AirNow) Configured() bool {
	return a != nil && a.apiKey != ""
}

// Current fetches every ZIP concurrently. A ZIP answering non-2xx contributes nothing;
// transport and decode failures fail the whole report.
func (a *AirNow) Current(ctx context.Context) (models.AirQualityReport, error) {
	if !a.Configured() {
		return models.AirQualityReport{}, ErrNotConfigured
	}

	results := make([][]models.AQIObservation, len(a.zips))
	g, gctx := errgroup.WithContext(ctx)
	for i, zip := range a.zips {
		i, zip := i, zip
		g.Go(func() error {
			var obs []models.AQIObservation
			err := a.fetcher.GetJSON(gctx, SourceAirNow, a.zipURL(zip), a.source.TTL, &obs)
			if err != nil {
				if se, ok := repo.IsStatus(err); ok {
					a.logger.Warn("airnow zip skipped", slog.String("zip", zip), slog.Int("status", se.Code))
					return nil
				}
				return fmt.Errorf("zip %s: %w", zip, err)
			}
			results[i] = obs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.AirQualityReport{}, err
	}

	observations := make([]models.AQIObservation, 0)
	for _, obs := range results {
		observations = append(observations, obs...)
	}
	return models.AirQualityReport{
		Observations: observations,
		Summary:      SummarizeAQI(observations),
		Timestamp:    a.now().UTC(),
		Zips:         append([]string(nil), a.zips...),
	}, nil
}

func (a *AirNow) zipURL(zip string) string {
	v := url.Values{}
	v.Set("format", "application/json")
	v.Set("zipCode", zip)
	v.Set("distance", airNowDistanceMiles)
	v.Set("API_KEY", a.apiKey)
	return a.source.URL + "?" + v.Encode()
}

// SummarizeAQI keeps the highest AQI observation per pollutant, strongest first.
func SummarizeAQI(observations []models.AQIObservation) []models.AQISummary {
	best := make(map[string]models.AQIObservation)
	for _, obs := range observations {
		if cur, ok := best[obs.ParameterName]; !ok || obs.AQI > cur.AQI {
			best[obs.ParameterName] = obs
		}
	}
	out := make([]models.AQISummary, 0, len(best))
	for _, obs := range best {
		out = append(out, models.AQISummary{
			Parameter:     obs.ParameterName,
			AQI:           obs.AQI,
			Category:      obs.Category.Name,
			Color:         AQIColor(obs.Category.Number),
			ReportingArea: obs.ReportingArea,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AQI != out[j].AQI {
			return out[i].AQI > out[j].AQI
		}
		return out[i].Parameter < out[j].Parameter
	})
	return out
}

// AQIColor maps an AirNow category number to its display colour.
func AQIColor(category int) string {
	switch {
	case category <= 1:
		return "#2dd4a0"
	case category == 2:
		return "#f5c542"
	case category == 3:
		return "#f59e42"
	case category == 4:
		return "#f07070"
	default:
		return "#a78bfa"
	}
}
