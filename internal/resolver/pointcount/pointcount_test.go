package pointcount

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/mohammed-shakir/terrai-alerts/internal/core/alertsql"
	"github.com/mohammed-shakir/terrai-alerts/internal/core/model"
	"github.com/mohammed-shakir/terrai-alerts/internal/core/period"
	"github.com/mohammed-shakir/terrai-alerts/internal/geostore"
	"github.com/mohammed-shakir/terrai-alerts/internal/spatialstore"
)

type fakeStore struct {
	rows []spatialstore.Row
	err  error
	seen []string
}

func (f *fakeStore) Execute(_ context.Context, q alertsql.Select) ([]spatialstore.Row, error) {
	s, err := q.Inline()
	if err != nil {
		return nil, err
	}
	f.seen = append(f.seen, s)
	return f.rows, f.err
}

func (f *fakeStore) Ping(context.Context) error { return nil }

type fakeGeostore map[string]*geostore.Geometry

func (f fakeGeostore) Geometry(_ context.Context, hash string) (*geostore.Geometry, error) {
	if g, ok := f[hash]; ok {
		return g, nil
	}
	return nil, fmt.Errorf("%w: %s", model.ErrRegionNotFound, hash)
}

var fixedNow = time.Date(2021, 6, 15, 12, 0, 0, 0, time.UTC)

func newTest(store *fakeStore) *Resolver {
	gs := fakeGeostore{"abc": {Hash: "abc", GeoJSON: json.RawMessage(`{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`), AreaHa: 10}}
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), store, gs, "https://carto.test/api/v2/sql", func() time.Time { return fixedNow })
}

func query(t *testing.T, text string, dates bool) model.AlertQuery {
	t.Helper()
	p, err := period.Parse(text, fixedNow)
	if err != nil {
		t.Fatalf("period: %v", err)
	}
	return model.AlertQuery{Period: p, IncludeDates: dates}
}

func TestResolve_Country(t *testing.T) {
	store := &fakeStore{rows: []spatialstore.Row{{
		"value": json.Number("17"), "area_ha": json.Number("851487700.5"),
		"min_date": "2020-01-01T00:00:00Z", "max_date": "2020-01-02T00:00:00Z",
	}}}
	r := newTest(store)

	res, err := r.Resolve(context.Background(), model.Country("bra"), query(t, "2020-1-1,2020-1-2", true))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Value != 17 || res.Period != period.Label24h {
		t.Fatalf("result got %+v", res)
	}
	if res.AreaHa == nil || *res.AreaHa != 851487700.5 {
		t.Fatalf("area got %v", res.AreaHa)
	}
	if res.MinDate != "2020-01-01" || res.MaxDate != "2020-01-02" {
		t.Fatalf("dates got %s..%s", res.MinDate, res.MaxDate)
	}
	if res.DownloadURLs == nil || !strings.HasSuffix(res.DownloadURLs.SVG, "&format=svg") {
		t.Fatalf("download urls got %+v", res.DownloadURLs)
	}
	if len(store.seen) != 1 || !strings.Contains(store.seen[0], "UPPER('bra')") {
		t.Fatalf("query got %v", store.seen)
	}
}

func TestResolve_NoRowIsZero(t *testing.T) {
	r := newTest(&fakeStore{})
	res, err := r.Resolve(context.Background(), model.ProtectedArea(555), query(t, "", false))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Value != 0 || res.DownloadURLs != nil || res.Period != "" {
		t.Fatalf("missing row must be a bare zero, got %+v", res)
	}
}

func TestResolve_WorldUsesGeostore(t *testing.T) {
	store := &fakeStore{rows: []spatialstore.Row{{"value": json.Number("3")}}}
	r := newTest(store)

	res, err := r.Resolve(context.Background(), model.World("abc"), query(t, "2020-1-1,2020-1-8", false))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Value != 3 || res.Period != period.LabelWeek || res.AreaHa != nil {
		t.Fatalf("result got %+v", res)
	}
	if !strings.Contains(store.seen[0], "ST_GeomFromGeoJSON('{\"type\":\"Polygon\"") {
		t.Fatalf("query must embed geostore geometry: %s", store.seen[0])
	}

	if _, err := r.Resolve(context.Background(), model.World("missing"), query(t, "", false)); !errors.Is(err, model.ErrRegionNotFound) {
		t.Fatalf("expected ErrRegionNotFound, got %v", err)
	}
}

func TestResolve_UseCategoryIsStrict(t *testing.T) {
	store := &fakeStore{rows: []spatialstore.Row{{"value": json.Number("1")}}}
	r := newTest(store)

	if _, err := r.Resolve(context.Background(), model.Use("unknown-category", 42), query(t, "", false)); !errors.Is(err, model.ErrInvalidUseCategory) {
		t.Fatalf("expected ErrInvalidUseCategory, got %v", err)
	}
	if len(store.seen) != 0 {
		t.Fatalf("no query may run for an unknown category")
	}
	if _, err := r.Resolve(context.Background(), model.Use("mining", 42), query(t, "", false)); err != nil {
		t.Fatalf("mining: %v", err)
	}
	if !strings.Contains(store.seen[0], `FROM "gfw_mining" WHERE cartodb_id = 42`) {
		t.Fatalf("query got %s", store.seen[0])
	}
}

func TestResolve_UpstreamErrorPropagates(t *testing.T) {
	r := newTest(&fakeStore{err: fmt.Errorf("%w: boom", model.ErrUpstreamUnavailable)})
	if _, err := r.Resolve(context.Background(), model.Province("BRA", 12), query(t, "", false)); !errors.Is(err, model.ErrUpstreamUnavailable) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestLatest_DenseYearlySeries(t *testing.T) {
	store := &fakeStore{rows: []spatialstore.Row{
		{"date": "2021-01-02T00:00:00Z", "value": json.Number("4")},
		{"date": "2020-12-31T00:00:00Z", "value": json.Number("6")},
		{"date": "2030-01-01T00:00:00Z", "value": json.Number("9")},
		{"date": "1999-01-01T00:00:00Z", "value": json.Number("9")},
	}}
	r := newTest(store)

	sum, err := r.Latest(context.Background(), 5)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if !strings.HasSuffix(store.seen[0], "LIMIT 5") {
		t.Fatalf("query got %s", store.seen[0])
	}
	if sum.MinDate != "2004-01-01" || sum.MaxDate != "2021-01-02" {
		t.Fatalf("dates got %s..%s", sum.MinDate, sum.MaxDate)
	}
	if len(sum.Counts) != 2 {
		t.Fatalf("years got %v", len(sum.Counts))
	}
	if got := sum.Counts["2020"]; len(got) != 366 || got[365] != 6 {
		t.Fatalf("2020 series wrong: len=%d last=%d", len(got), got[len(got)-1])
	}
	if got := sum.Counts["2021"]; len(got) != 365 || got[1] != 4 {
		t.Fatalf("2021 series wrong")
	}
}

func TestLatest_DefaultLimit(t *testing.T) {
	store := &fakeStore{}
	r := newTest(store)
	sum, err := r.Latest(context.Background(), 0)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if !strings.HasSuffix(store.seen[0], "LIMIT 3") {
		t.Fatalf("query got %s", store.seen[0])
	}
	if sum.MaxDate != "2004-01-01" || len(sum.Counts) != 0 {
		t.Fatalf("empty latest got %+v", sum)
	}
}

func TestLatest_UnparseableValueIsLoggedAndZero(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	store := &fakeStore{rows: []spatialstore.Row{
		{"date": "2021-01-02T00:00:00Z", "value": "n/a"},
	}}
	r := New(logger, store, fakeGeostore{}, "https://carto.test/api/v2/sql", func() time.Time { return fixedNow })

	sum, err := r.Latest(context.Background(), 1)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got := sum.Counts["2021"]; len(got) != 365 || got[1] != 0 {
		t.Fatalf("2021 series wrong: len=%d", len(got))
	}
	if !strings.Contains(buf.String(), "latest row without a numeric value") {
		t.Fatalf("expected debug log, got %q", buf.String())
	}
}
