package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/healthdash/healthfeeds/internal/aggregators"
	"github.com/healthdash/healthfeeds/internal/models"
	"github.com/healthdash/healthfeeds/internal/services"
)

const requestIDHeader = "X-Request-ID"

// Dashboard is the service surface consumed by the HTTP and gRPC handlers.
type Dashboard interface {
	Dataset(ctx context.Context, name string) (services.DatasetResult, error)
	Page(ctx context.Context, page string) (services.PageResult, error)
	TractHealth(ctx context.Context) (models.TractMeasures, error)
	AirQuality(ctx context.Context) (models.AirQualityReport, error)
}

// catalogEntry is the JSON shape of one catalogue row.
type catalogEntry struct {
	Name    string `json:"name"`
	Page    string `json:"page,omitempty"`
	Source  string `json:"source"`
	Cadence string `json:"cadence"`
	Seeded  bool   `json:"seeded"`
}

// API holds the HTTP handlers.
type API struct {
	dashboard Dashboard
	catalog   []catalogEntry
	logger    *slog.Logger
}

// NewAPI constructs the HTTP handlers.
func NewAPI(dashboard Dashboard, catalog []aggregators.DatasetInfo, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	entries := make([]catalogEntry, 0, len(catalog))
	for _, d := range catalog {
		entries = append(entries, catalogEntry{
			Name:    d.Name,
			Page:    d.Page,
			Source:  d.Source,
			Cadence: d.Cadence.String(),
			Seeded:  d.Seeded,
		})
	}
	return &API{dashboard: dashboard, catalog: entries, logger: logger}
}

// NewRouter builds a gin engine with request IDs, access logging and every route registered.
func NewRouter(a *API) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), accessLog(a.logger))
	a.RegisterRoutes(router)
	return router
}

// RegisterRoutes attaches the dashboard routes.
func (a *API) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", a.health)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/datasets", a.listDatasets)
		v1.GET("/datasets/:name", a.getDataset)
		v1.GET("/pages/:page", a.getPage)
	}

	router.GET("/api/airnow", a.airNow)
	router.GET("/api/places", a.places)
}

func (a *API) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (a *API) listDatasets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"datasets": a.catalog, "pages": aggregators.Pages()})
}

func (a *API) getDataset(c *gin.Context) {
	res, err := a.dashboard.Dataset(c.Request.Context(), c.Param("name"))
	switch {
	case errors.Is(err, services.ErrUnknownDataset):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case err != nil:
		a.logger.Error("dataset lookup failed", slog.String("dataset", c.Param("name")), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	default:
		c.JSON(http.StatusOK, res)
	}
}

func (a *API) getPage(c *gin.Context) {
	res, err := a.dashboard.Page(c.Request.Context(), c.Param("page"))
	switch {
	case errors.Is(err, services.ErrUnknownPage):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case err != nil:
		a.logger.Error("page composition failed", slog.String("page", c.Param("page")), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	default:
		c.JSON(http.StatusOK, res)
	}
}

func (a *API) airNow(c *gin.Context) {
	report, err := a.dashboard.AirQuality(c.Request.Context())
	switch {
	case errors.Is(err, aggregators.ErrNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": aggregators.ErrNotConfigured.Error()})
	case err != nil:
		a.logger.Warn("airnow proxy failed", slog.Any("error", err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch AirNow data", "detail": err.Error()})
	default:
		c.JSON(http.StatusOK, report)
	}
}

func (a *API) places(c *gin.Context) {
	lookup, err := a.dashboard.TractHealth(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, lookup)
}

// requestID propagates or mints an X-Request-ID.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func accessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			slog.String("request_id", c.GetString("request_id")),
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	}
}
