package health

import (
	"context"
	"net/http"
	"sort"
	"time"

	json "github.com/goccy/go-json"
)

// Pinger is implemented by collaborators that can report their own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

func Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

// Readiness pings every dependency and answers 503 listing the ones that failed.
func Readiness(deps map[string]Pinger, timeout time.Duration) http.HandlerFunc {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return func(w http.ResponseWriter, r *http.Request) {
		type resp struct {
			Status  string            `json:"status"`
			Failing map[string]string `json:"failing,omitempty"`
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		names := make([]string, 0, len(deps))
		for n := range deps {
			names = append(names, n)
		}
		sort.Strings(names)

		out := resp{Status: "ready"}
		for _, n := range names {
			if err := deps[n].Ping(ctx); err != nil {
				if out.Failing == nil {
					out.Failing = map[string]string{}
				}
				out.Failing[n] = err.Error()
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if len(out.Failing) > 0 {
			out.Status = "not_ready"
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
