package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/healthdash/healthfeeds/internal/aggregators"
	"github.com/healthdash/healthfeeds/internal/fallback"
	"github.com/healthdash/healthfeeds/internal/models"
	"github.com/healthdash/healthfeeds/internal/utils"
)

var (
	// ErrUnknownDataset is returned for a dataset name outside the catalogue.
	ErrUnknownDataset = errors.New("unknown dataset")
	// ErrUnknownPage is returned for a page outside the dashboard.
	ErrUnknownPage = errors.New("unknown page")
	// ErrUnavailable is returned for datasets that have no seed to fall back on.
	ErrUnavailable = errors.New("live data unavailable")
)

// DatasetResult is one dataset after fallback resolution.
type DatasetResult struct {
	Dataset string `json:"dataset"`
	Source  string `json:"source"`
	Data    any    `json:"data"`
}

// PageResult is every dataset of a dashboard page plus its headline figures.
type PageResult struct {
	Page        string          `json:"page"`
	Datasets    []DatasetResult `json:"datasets"`
	KPIs        []KPI           `json:"kpis"`
	GeneratedAt time.Time       `json:"generatedAt"`
}

// DashboardService composes aggregators with seed fallback for the API surfaces.
type DashboardService struct {
	logger    *slog.Logger
	collector *aggregators.Collector
	airNow    *aggregators.AirNow
	seeds     *fallback.Seeds
	latencies *utils.PageLatencies
	now       func() time.Time
}

// NewDashboardService constructs the dashboard facade.
func NewDashboardService(logger *slog.Logger, collector *aggregators.Collector, airNow *aggregators.AirNow, seeds *fallback.Seeds) *DashboardService {
	if logger == nil {
		logger = slog.Default()
	}
	if seeds == nil {
		seeds = fallback.MustBundled()
	}
	return &DashboardService{
		logger:    logger,
		collector: collector,
		airNow:    airNow,
		seeds:     seeds,
		latencies: utils.NewPageLatencies(256),
		now:       time.Now,
	}
}

func resolved[T any](name string, o models.Outcome[[]T], seed []T) ([]T, DatasetResult) {
	data, source := fallback.ResolveWithSource(o, seed)
	return data, DatasetResult{Dataset: name, Source: source, Data: data}
}

// Dataset runs one aggregator and resolves it against its seed.
func (s *DashboardService) Dataset(ctx context.Context, name string) (DatasetResult, error) {
	c := s.collector
	var res DatasetResult
	switch name {
	case aggregators.DatasetFoodByCuisine:
		_, res = resolved(name, c.FoodByCuisine(ctx), s.seeds.FoodByCuisine())
	case aggregators.DatasetFoodByBorough:
		_, res = resolved(name, c.FoodByBorough(ctx), s.seeds.FoodByBorough())
	case aggregators.DatasetGradeDistribution:
		_, res = resolved(name, c.GradeDistribution(ctx), s.seeds.GradeDistribution())
	case aggregators.DatasetRodentByBorough:
		_, res = resolved(name, c.RodentByBorough(ctx), s.seeds.RodentByBorough())
	case aggregators.DatasetNoiseByBorough:
		_, res = resolved(name, c.NoiseByBorough(ctx), s.seeds.NoiseByBorough())
	case aggregators.DatasetNoiseByType:
		_, res = resolved(name, c.NoiseByType(ctx), s.seeds.NoiseByType())
	case aggregators.DatasetCovidMonthly:
		_, res = resolved(name, c.CovidMonthly(ctx), s.seeds.CovidMonthly())
	case aggregators.DatasetCovidByBorough:
		_, res = resolved(name, c.CovidByBorough(ctx), s.seeds.CovidByBorough())
	case aggregators.DatasetRaceByBorough:
		_, res = resolved(name, c.RaceByBorough(ctx), s.seeds.RaceByBorough())
	case aggregators.DatasetTractHealth:
		lookup, err := s.TractHealth(ctx)
		if err != nil {
			return DatasetResult{}, err
		}
		res = DatasetResult{Dataset: name, Source: models.SourceLive, Data: lookup}
	default:
		return DatasetResult{}, fmt.Errorf("%w: %s", ErrUnknownDataset, name)
	}
	return res, nil
}

// TractHealth returns live tract measures; there is no seed for this dataset.
func (s *DashboardService) TractHealth(ctx context.Context) (models.TractMeasures, error) {
	lookup, ok := s.collector.TractHealth(ctx).Value()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, aggregators.DatasetTractHealth)
	}
	return lookup, nil
}

// AirQuality proxies the current AirNow report.
func (s *DashboardService) AirQuality(ctx context.Context) (models.AirQualityReport, error) {
	if s.airNow == nil {
		return models.AirQualityReport{}, aggregators.ErrNotConfigured
	}
	return s.airNow.Current(ctx)
}

// Page fans out every aggregator of a page concurrently and waits for all of them.
// Upstream failures never surface as errors; unavailable datasets carry their seed.
func (s *DashboardService) Page(ctx context.Context, page string) (PageResult, error) {
	start := time.Now()
	var (
		result PageResult
		err    error
	)
	switch page {
	case aggregators.PageFoodSafety:
		result = s.foodSafety(ctx)
	case aggregators.PageEnvironment:
		result = s.environment(ctx)
	case aggregators.PageCovid:
		result = s.covid(ctx)
	case aggregators.PageDemographics:
		result = s.demographics(ctx)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownPage, page)
	}
	if err != nil {
		return PageResult{}, err
	}

	result.Page = page
	result.GeneratedAt = s.now().UTC()
	s.observe(page, time.Since(start))
	return result, nil
}

func (s *DashboardService) observe(page string, d time.Duration) {
	count := s.latencies.Observe(page, d)
	s.logger.Debug("page composed", slog.String("page", page), slog.Duration("duration", d))
	if count%20 == 0 {
		s.logger.Info("page latency",
			slog.String("page", page),
			slog.Duration("p95", s.latencies.P95(page)),
			slog.Int("samples", count),
		)
	}
}

// LatencyP95 returns the p95 composition latency of one page, zero before its first request.
func (s *DashboardService) LatencyP95(page string) time.Duration {
	return s.latencies.P95(page)
}

// join runs fns concurrently; the group only serves as the completion barrier.
func join(ctx context.Context, fns ...func(context.Context)) {
	g, gctx := errgroup.WithContext(ctx)
	for _, fn := range fns {
		fn := fn
		g.Go(func() error {
			fn(gctx)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *DashboardService) foodSafety(ctx context.Context) PageResult {
	c := s.collector
	var (
		cuisines models.Outcome[[]models.CuisineViolations]
		scores   models.Outcome[[]models.BoroughScore]
		grades   models.Outcome[[]models.GradeSlice]
	)
	join(ctx,
		func(ctx context.Context) { cuisines = c.FoodByCuisine(ctx) },
		func(ctx context.Context) { scores = c.FoodByBorough(ctx) },
		func(ctx context.Context) { grades = c.GradeDistribution(ctx) },
	)

	_, cuisineRes := resolved(aggregators.DatasetFoodByCuisine, cuisines, s.seeds.FoodByCuisine())
	scoreRows, scoreRes := resolved(aggregators.DatasetFoodByBorough, scores, s.seeds.FoodByBorough())
	gradeRows, gradeRes := resolved(aggregators.DatasetGradeDistribution, grades, s.seeds.GradeDistribution())

	return PageResult{
		Datasets: []DatasetResult{cuisineRes, scoreRes, gradeRes},
		KPIs:     foodSafetyKPIs(gradeRows, scoreRows),
	}
}

func (s *DashboardService) environment(ctx context.Context) PageResult {
	c := s.collector
	var (
		rodents    models.Outcome[[]models.RodentActivity]
		noiseBoro  models.Outcome[[]models.BoroughComplaints]
		noiseTypes models.Outcome[[]models.ComplaintType]
	)
	join(ctx,
		func(ctx context.Context) { rodents = c.RodentByBorough(ctx) },
		func(ctx context.Context) { noiseBoro = c.NoiseByBorough(ctx) },
		func(ctx context.Context) { noiseTypes = c.NoiseByType(ctx) },
	)

	rodentRows, rodentRes := resolved(aggregators.DatasetRodentByBorough, rodents, s.seeds.RodentByBorough())
	noiseRows, noiseRes := resolved(aggregators.DatasetNoiseByBorough, noiseBoro, s.seeds.NoiseByBorough())
	_, typeRes := resolved(aggregators.DatasetNoiseByType, noiseTypes, s.seeds.NoiseByType())

	return PageResult{
		Datasets: []DatasetResult{rodentRes, noiseRes, typeRes},
		KPIs:     environmentKPIs(rodentRows, noiseRows),
	}
}

func (s *DashboardService) covid(ctx context.Context) PageResult {
	c := s.collector
	var (
		monthly   models.Outcome[[]models.CovidMonth]
		byBorough models.Outcome[[]models.CovidBorough]
	)
	join(ctx,
		func(ctx context.Context) { monthly = c.CovidMonthly(ctx) },
		func(ctx context.Context) { byBorough = c.CovidByBorough(ctx) },
	)

	_, monthlyRes := resolved(aggregators.DatasetCovidMonthly, monthly, s.seeds.CovidMonthly())
	boroughRows, boroughRes := resolved(aggregators.DatasetCovidByBorough, byBorough, s.seeds.CovidByBorough())

	return PageResult{
		Datasets: []DatasetResult{monthlyRes, boroughRes},
		KPIs:     covidKPIs(boroughRows),
	}
}

func (s *DashboardService) demographics(ctx context.Context) PageResult {
	rows, res := resolved(aggregators.DatasetRaceByBorough, s.collector.RaceByBorough(ctx), s.seeds.RaceByBorough())
	return PageResult{
		Datasets: []DatasetResult{res},
		KPIs:     demographicsKPIs(rows),
	}
}
