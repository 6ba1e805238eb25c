package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit_IdempotentOnSameRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Init(reg); err != nil {
		t.Fatalf("first init: %v", err)
	}
	if err := Init(reg); err != nil {
		t.Fatalf("second init must tolerate existing collectors: %v", err)
	}
	if err := Init(nil); err != nil {
		t.Fatalf("nil registerer: %v", err)
	}
}

func TestObserveHTTP_UsesStrategyLabel(t *testing.T) {
	SetStrategy("histogram")
	t.Cleanup(func() { SetStrategy("") })

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/admin/{iso}", "200", "histogram"))
	ObserveHTTP("GET", "/admin/{iso}", 200, 0.01)
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/admin/{iso}", "200", "histogram"))
	if after-before != 1 {
		t.Fatalf("counter delta got %v want 1", after-before)
	}
}

func TestResolutionAndCacheCounters(t *testing.T) {
	SetStrategy("pointcount")

	c := regionResolutions.WithLabelValues("wdpa", "not_found", "pointcount")
	before := testutil.ToFloat64(c)
	IncResolution("wdpa", "not_found")
	if got := testutil.ToFloat64(c) - before; got != 1 {
		t.Fatalf("resolution delta got %v want 1", got)
	}

	h := geostoreCacheResults.WithLabelValues("l1", "hit")
	before = testutil.ToFloat64(h)
	IncGeostoreCache("l1", true)
	if got := testutil.ToFloat64(h) - before; got != 1 {
		t.Fatalf("cache hit delta got %v want 1", got)
	}

	SetBreakerState("imageserver", 2)
	if got := testutil.ToFloat64(breakerState.WithLabelValues("imageserver")); got != 2 {
		t.Fatalf("breaker state got %v want 2", got)
	}
}
