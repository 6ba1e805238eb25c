package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mohammed-shakir/terrai-alerts/internal/core/observability"
)

func scrape(t *testing.T, p *Provider) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	return rr.Body.String()
}

func TestProvider_StandardCollectorsAndBuildInfo(t *testing.T) {
	p := New(BuildInfo{Version: "test", Revision: "r", Branch: "b", BuildDate: "now"})
	body := scrape(t, p)

	if !strings.Contains(body, "go_goroutines") {
		t.Fatalf("expected go_goroutines in payload; got:\n%s", body)
	}
	if !strings.Contains(body, "process_cpu_seconds_total") && !strings.Contains(body, "process_start_time_seconds") {
		t.Fatalf("expected process_* metrics in payload; got:\n%s", body)
	}
	if !strings.Contains(body, `app_build_info{branch="b",build_date="now",revision="r",version="test"} 1`) {
		t.Fatalf("expected app_build_info in payload; got:\n%s", body)
	}
}

func TestProvider_ServesRequestPathCollectors(t *testing.T) {
	p := New(BuildInfo{})
	if err := observability.Init(p.Registerer()); err != nil {
		t.Fatalf("init: %v", err)
	}
	observability.SetStrategy("histogram")
	t.Cleanup(func() { observability.SetStrategy("") })

	observability.ObserveHTTP("GET", "/latest", 200, 0.02)
	observability.IncResolution("country", "ok")
	observability.IncUpstreamError("geostore", "not_found")

	body := scrape(t, p)
	for _, s := range []string{
		`http_requests_total{method="GET",route="/latest",status="200",strategy="histogram"}`,
		`region_resolutions_total{outcome="ok",region="country",strategy="histogram"}`,
		`upstream_errors_total{class="not_found",upstream="geostore"}`,
		`app_build_info{branch="",build_date="",revision="",version="dev"} 1`,
	} {
		if !strings.Contains(body, s) {
			t.Fatalf("expected metrics to contain %q;\n---\n%s", s, body)
		}
	}
}
