package httpclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/mohammed-shakir/terrai-alerts/internal/core/config"
	"github.com/mohammed-shakir/terrai-alerts/internal/core/observability"
)

// Breaker wraps a Doer with a per-upstream circuit breaker and latency metrics.
// Only transport failures trip the breaker; HTTP status codes are left to the caller.
type Breaker struct {
	name string
	next Doer
	cb   *gobreaker.CircuitBreaker[*http.Response]
}

func NewBreaker(name string, next Doer, cfg config.BreakerCfg, log *slog.Logger) *Breaker {
	if log == nil {
		log = slog.Default()
	}
	minReq := cfg.MinRequests
	if minReq == 0 {
		minReq = 1
	}
	ratio := cfg.FailureRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 0.6
	}

	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.Requests >= minReq && float64(c.TotalFailures)/float64(c.Requests) >= ratio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.SetBreakerState(name, int(to))
			log.Warn("upstream breaker state change", "upstream", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	observability.SetBreakerState(name, int(gobreaker.StateClosed))
	return &Breaker{name: name, next: next, cb: gobreaker.NewCircuitBreaker[*http.Response](st)}
}

func (b *Breaker) Do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := b.cb.Execute(func() (*http.Response, error) {
		return b.next.Do(req)
	})
	observability.ObserveUpstreamLatency(b.name, time.Since(start).Seconds())
	if err != nil {
		class := "transport"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			class = "breaker_open"
		}
		observability.IncUpstreamError(b.name, class)
		return nil, fmt.Errorf("%s: %w", b.name, err)
	}
	return resp, nil
}

// State reports the breaker state, mainly for readiness and tests.
func (b *Breaker) State() gobreaker.State { return b.cb.State() }
