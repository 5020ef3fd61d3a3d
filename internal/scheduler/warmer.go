// Package scheduler keeps the response cache warm by re-running datasets on their source cadence.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/healthdash/healthfeeds/internal/aggregators"
	"github.com/healthdash/healthfeeds/internal/services"
)

// DatasetRunner resolves one dataset by name.
type DatasetRunner interface {
	Dataset(ctx context.Context, name string) (services.DatasetResult, error)
}

// Warmer schedules one cron job per dataset.
type Warmer struct {
	runner  DatasetRunner
	catalog []aggregators.DatasetInfo
	timeout time.Duration
	logger  *slog.Logger
	cron    *cron.Cron
}

// NewWarmer constructs a Warmer; jobs are registered by Start.
func NewWarmer(runner DatasetRunner, catalog []aggregators.DatasetInfo, timeout time.Duration, logger *slog.Logger) *Warmer {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	cl := cronLogger{logger: logger}
	return &Warmer{
		runner:  runner,
		catalog: catalog,
		timeout: timeout,
		logger:  logger,
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(
				cron.SkipIfStillRunning(cl),
				cron.Recover(cl),
			),
		),
	}
}

// Start registers an @every job per dataset cadence and starts the runner.
func (w *Warmer) Start() error {
	for _, d := range w.catalog {
		if d.Cadence <= 0 {
			continue
		}
		name := d.Name
		spec := fmt.Sprintf("@every %s", d.Cadence)
		if _, err := w.cron.AddFunc(spec, func() { w.warm(name) }); err != nil {
			return fmt.Errorf("schedule %s: %w", name, err)
		}
	}
	w.cron.Start()
	w.logger.Info("cache warmer started", slog.Int("jobs", len(w.cron.Entries())))
	return nil
}

// Stop waits for running jobs or until ctx is done.
func (w *Warmer) Stop(ctx context.Context) {
	done := w.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		w.logger.Warn("cache warmer shutdown timed out")
	}
}

// WarmAll runs every dataset once, sequentially.
func (w *Warmer) WarmAll(ctx context.Context) {
	for _, d := range w.catalog {
		if ctx.Err() != nil {
			return
		}
		w.warm(d.Name)
	}
}

func (w *Warmer) warm(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	start := time.Now()
	res, err := w.runner.Dataset(ctx, name)
	if err != nil {
		w.logger.Warn("cache warm failed", slog.String("dataset", name), slog.Any("error", err))
		return
	}
	w.logger.Debug("cache warmed",
		slog.String("dataset", name),
		slog.String("source", res.Source),
		slog.Duration("duration", time.Since(start)),
	)
}

// cronLogger routes cron's logr-style calls into slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, slog.Any("error", err))...)
}
