// Package aggregators turns open-data feeds into the dashboard's fixed display schemas.
//
// Every aggregator resolves to models.Live with at least one row, or models.Unavailable.
// Seed substitution happens in the caller, never here.
package aggregators

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/healthdash/healthfeeds/internal/config"
	"github.com/healthdash/healthfeeds/internal/metrics"
	"github.com/healthdash/healthfeeds/internal/models"
)

// Upstream source labels used for metrics and logs.
const (
	SourceSocrata = "socrata"
	SourceCensus  = "census"
	SourcePlaces  = "places"
	SourceAirNow  = "airnow"
)

// JSONFetcher is the read-through fetch used by every aggregator.
type JSONFetcher interface {
	GetJSON(ctx context.Context, source, url string, ttl time.Duration, out any) error
}

// Collector runs the dataset aggregators against the configured sources.
type Collector struct {
	fetcher JSONFetcher
	sources config.SourcesConfig
	now     func() time.Time
	logger  *slog.Logger
}

// NewCollector constructs a Collector.
func NewCollector(fetcher JSONFetcher, sources config.SourcesConfig, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		fetcher: fetcher,
		sources: sources,
		now:     time.Now,
		logger:  logger,
	}
}

// WithClock overrides the clock used for rolling query windows.
func (c *Collector) WithClock(now func() time.Time) *Collector {
	c.now = now
	return c
}

func (c *Collector) load(ctx context.Context, dataset, source, url string, ttl time.Duration, out any) bool {
	if err := c.fetcher.GetJSON(ctx, source, url, ttl, out); err != nil {
		c.logger.Warn("live data unavailable",
			slog.String("dataset", dataset),
			slog.String("source", source),
			slog.Any("error", err),
		)
		return false
	}
	return true
}

// finish records the aggregation and applies the non-empty rule.
func finish[T any](c *Collector, dataset string, start time.Time, rows []T, ok bool) models.Outcome[[]T] {
	live := ok && len(rows) > 0
	metrics.ObserveAggregation(dataset, time.Since(start), live)
	if !live {
		if ok {
			c.logger.Info("live data empty", slog.String("dataset", dataset))
		}
		return models.Unavailable[[]T]()
	}
	return models.Live(rows)
}

// numeric decodes Socrata numbers, which arrive as JSON strings, as well as plain JSON numbers.
// Missing or unparseable values decode as invalid rather than failing the whole body.
type numeric struct {
	value float64
	valid bool
}

func (n *numeric) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*n = numeric{}
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	raw := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
	}
	f, ok := parseFinite(raw)
	if !ok {
		return nil
	}
	*n = numeric{value: f, valid: true}
	return nil
}

// Int truncates toward zero; invalid values count as 0.
func (n numeric) Int() int {
	if !n.valid {
		return 0
	}
	return int(n.value)
}

func (n numeric) Float() float64 {
	if !n.valid {
		return 0
	}
	return n.value
}

// parseCount reads a count cell, reporting whether it parsed.
func parseCount(s string) (int, bool) {
	f, ok := parseFinite(s)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// parseFinite rejects NaN and Inf, which ParseFloat accepts.
func parseFinite(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
