package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register should tolerate duplicates: %v", err)
	}
}

func TestObserveAggregationLabels(t *testing.T) {
	before := testutil.ToFloat64(aggregationsTotal.WithLabelValues("noise_by_type", OutcomeUnavailable))
	ObserveAggregation("noise_by_type", -time.Second, false)
	after := testutil.ToFloat64(aggregationsTotal.WithLabelValues("noise_by_type", OutcomeUnavailable))
	if after-before != 1 {
		t.Fatalf("expected unavailable counter to increase by 1, got %v", after-before)
	}
}

func TestObserveCacheLookup(t *testing.T) {
	hits := testutil.ToFloat64(cacheLookupsTotal.WithLabelValues(CacheHit))
	ObserveCacheLookup(true)
	ObserveUpstream("socrata", time.Millisecond, errors.New("boom"))
	if testutil.ToFloat64(cacheLookupsTotal.WithLabelValues(CacheHit))-hits != 1 {
		t.Fatalf("expected cache hit to be counted")
	}
}
