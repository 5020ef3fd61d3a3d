package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeLive labels aggregations that produced live data.
	OutcomeLive = "live"
	// OutcomeUnavailable labels aggregations that fell back to seed data.
	OutcomeUnavailable = "unavailable"

	// UpstreamOK labels upstream calls that returned a decodable 2xx body.
	UpstreamOK = "ok"
	// UpstreamError labels upstream calls that failed for any reason.
	UpstreamError = "error"

	// CacheHit and CacheMiss label response cache lookups.
	CacheHit  = "hit"
	CacheMiss = "miss"
)

var (
	aggregationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "healthfeeds",
			Name:      "aggregations_total",
			Help:      "Aggregator calls partitioned by dataset and outcome.",
		},
		[]string{"dataset", "outcome"},
	)

	aggregationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "healthfeeds",
			Name:      "aggregation_seconds",
			Help:      "Aggregator latency in seconds, including upstream I/O.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"dataset"},
	)

	upstreamSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "healthfeeds",
			Name:      "upstream_request_seconds",
			Help:      "Latency of outbound open-data requests.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"source", "outcome"},
	)

	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "healthfeeds",
			Name:      "cache_lookups_total",
			Help:      "Response cache lookups partitioned by result.",
		},
		[]string{"result"},
	)
)

// Register attaches healthfeeds collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		aggregationsTotal,
		aggregationSeconds,
		upstreamSeconds,
		cacheLookupsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveAggregation records one aggregator call.
func ObserveAggregation(dataset string, duration time.Duration, live bool) {
	outcome := OutcomeUnavailable
	if live {
		outcome = OutcomeLive
	}
	aggregationsTotal.WithLabelValues(dataset, outcome).Inc()
	aggregationSeconds.WithLabelValues(dataset).Observe(clamp(duration).Seconds())
}

// ObserveUpstream records one outbound request.
func ObserveUpstream(source string, duration time.Duration, err error) {
	outcome := UpstreamOK
	if err != nil {
		outcome = UpstreamError
	}
	upstreamSeconds.WithLabelValues(source, outcome).Observe(clamp(duration).Seconds())
}

// ObserveCacheLookup records a response cache hit or miss.
func ObserveCacheLookup(hit bool) {
	if hit {
		cacheLookupsTotal.WithLabelValues(CacheHit).Inc()
		return
	}
	cacheLookupsTotal.WithLabelValues(CacheMiss).Inc()
}

func clamp(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
