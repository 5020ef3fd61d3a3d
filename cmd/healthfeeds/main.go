package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/healthdash/healthfeeds/internal/aggregators"
	"github.com/healthdash/healthfeeds/internal/api"
	"github.com/healthdash/healthfeeds/internal/cache"
	"github.com/healthdash/healthfeeds/internal/config"
	"github.com/healthdash/healthfeeds/internal/fallback"
	"github.com/healthdash/healthfeeds/internal/metrics"
	"github.com/healthdash/healthfeeds/internal/repo"
	"github.com/healthdash/healthfeeds/internal/scheduler"
	"github.com/healthdash/healthfeeds/internal/services"
	"github.com/healthdash/healthfeeds/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting healthfeeds",
		slog.String("http", cfg.Server.HTTPAddress),
		slog.String("grpc", cfg.Server.GRPCAddress),
	)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	cacheProvider := newCache(cfg.Cache, logger)
	defer cacheProvider.Close()

	seeds, err := fallback.LoadSeeds(cfg.Seeds.Path)
	if err != nil {
		logger.Error("failed to load seeds", slog.Any("error", utils.NewAppError("main.seeds", cfg.Seeds.Path, err)))
		os.Exit(1)
	}

	fetcher := repo.NewFetcher(repo.FetcherOptions{
		Timeout:   cfg.HTTP.Timeout,
		UserAgent: cfg.HTTP.UserAgent,
		AppToken:  cfg.Sources.SocrataAppToken,
		RateLimit: cfg.HTTP.RateLimit,
		RateBurst: cfg.HTTP.RateBurst,
		Cache:     cacheProvider,
		Logger:    logger,
	})

	collector := aggregators.NewCollector(fetcher, cfg.Sources, logger)
	airNow := aggregators.NewAirNow(fetcher, cfg.Sources, logger)
	if !airNow.Configured() {
		logger.Warn("AIRNOW_API_KEY not set; /api/airnow will answer 503")
	}
	dashboard := services.NewDashboardService(logger, collector, airNow, seeds)
	catalog := aggregators.Catalog(cfg.Sources)

	if !cfg.Logging.JSON && utils.ParseLevel(cfg.Logging.Level) == slog.LevelDebug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddress,
		Handler:           api.NewRouter(api.NewAPI(dashboard, catalog, logger)),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTP.Timeout * 3,
	}

	grpcServer, err := api.NewServer(cfg.Server, dashboard)
	if err != nil {
		logger.Error("failed to create gRPC server", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		logger.Info("http server listening", slog.String("address", cfg.Server.HTTPAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server exited", slog.Any("error", err))
			stop()
		}
	}()

	go func() {
		logger.Info("gRPC server listening", slog.String("address", grpcServer.Address()))
		if serveErr := grpcServer.Start(); serveErr != nil {
			logger.Error("gRPC server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	var warmer *scheduler.Warmer
	if cfg.Warmer.Enabled {
		warmer = scheduler.NewWarmer(dashboard, catalog, cfg.Warmer.Timeout, logger)
		go warmer.WarmAll(ctx)
		if err := warmer.Start(); err != nil {
			logger.Error("failed to start cache warmer", slog.Any("error", err))
			stop()
		}
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()

	if warmer != nil {
		warmer.Stop(shutdownCtx)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("http server shutdown", slog.Any("error", err))
	}
	grpcServer.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	for _, page := range aggregators.Pages() {
		if p95 := dashboard.LatencyP95(page); p95 > 0 {
			logger.Info("page latency at shutdown", slog.String("page", page), slog.Duration("p95", p95))
		}
	}
	logger.Info("healthfeeds stopped")
}

func newCache(cfg config.CacheConfig, logger *slog.Logger) cache.Provider {
	switch cfg.Backend {
	case "none":
		return cache.NoopProvider{}
	case "valkey":
		provider, err := cache.NewValkeyProvider(cache.ValkeyConfig{
			Addr:         cfg.Addr,
			Username:     cfg.Username,
			Password:     cfg.Password,
			DB:           cfg.DB,
			Prefix:       cfg.Prefix,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			MaxRetries:   cfg.MaxRetries,
			TLS:          cfg.TLS,
		})
		if err != nil {
			logger.Warn("valkey cache unavailable, using in-memory cache", slog.Any("error", err))
			return cache.NewMemoryProvider(cfg.MaxEntries)
		}
		return provider
	default:
		return cache.NewMemoryProvider(cfg.MaxEntries)
	}
}
