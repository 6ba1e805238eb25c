package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestLiveness_Handler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()

	Liveness()(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "ok" {
		t.Fatalf("body=%q want ok", got)
	}
}

func TestReadiness_AllHealthy(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	rr := httptest.NewRecorder()
	Readiness(map[string]Pinger{"spatial": ok, "redis": ok}, 0)(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"status":"ready"`) {
		t.Fatalf("body=%s", rr.Body.String())
	}
}

func TestReadiness_ReportsFailing(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	bad := pingFunc(func(context.Context) error { return errors.New("dial tcp: refused") })
	rr := httptest.NewRecorder()
	Readiness(map[string]Pinger{"spatial": ok, "redis": bad}, 0)(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d want 503", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `"redis":"dial tcp: refused"`) || strings.Contains(body, `"spatial"`) {
		t.Fatalf("body=%s", body)
	}
}
