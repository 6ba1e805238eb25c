// Package observability holds the Prometheus collectors recorded by the request path.
package observability

import (
	"errors"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var strategyLabel atomic.Value

func init() {
	strategyLabel.Store("pointcount")
}

// SetStrategy records the active region resolver for the strategy label.
func SetStrategy(s string) {
	if s == "" {
		s = "pointcount"
	}
	strategyLabel.Store(s)
}

func getStrategy() string {
	if v := strategyLabel.Load(); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "pointcount"
}

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status", "strategy"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status", "strategy"},
	)

	upstreamLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of upstream calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream", "strategy"},
	)

	upstreamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_errors_total",
			Help: "Failed upstream calls by upstream and error class.",
		},
		[]string{"upstream", "class"},
	)

	regionResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "region_resolutions_total",
			Help: "Region resolutions by region kind and outcome.",
		},
		[]string{"region", "outcome", "strategy"},
	)

	geostoreCacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geostore_cache_results_total",
			Help: "Geostore cache lookups by tier and outcome.",
		},
		[]string{"tier", "outcome"},
	)

	breakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "upstream_breaker_state",
			Help: "Circuit breaker state per upstream (0 closed, 1 half-open, 2 open).",
		},
		[]string{"upstream"},
	)
)

// Init registers every collector with reg. Collectors already present are left in place.
func Init(reg prometheus.Registerer) error {
	if reg == nil {
		return nil
	}
	for _, c := range []prometheus.Collector{
		httpRequestsTotal,
		httpRequestDurationSeconds,
		upstreamLatencySeconds,
		upstreamErrorsTotal,
		regionResolutions,
		geostoreCacheResults,
		breakerState,
	} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	s := getStrategy()
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st, s).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st, s).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(upstream, getStrategy()).Observe(durationSeconds)
}

func IncUpstreamError(upstream, class string) {
	upstreamErrorsTotal.WithLabelValues(upstream, class).Inc()
}

// IncResolution counts one region resolution. outcome is "ok" or an error class.
func IncResolution(region, outcome string) {
	regionResolutions.WithLabelValues(region, outcome, getStrategy()).Inc()
}

func IncGeostoreCache(tier string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	geostoreCacheResults.WithLabelValues(tier, outcome).Inc()
}

func SetBreakerState(upstream string, state int) {
	breakerState.WithLabelValues(upstream).Set(float64(state))
}
