package histogram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/mohammed-shakir/terrai-alerts/internal/core/alertsql"
	"github.com/mohammed-shakir/terrai-alerts/internal/core/esri"
	"github.com/mohammed-shakir/terrai-alerts/internal/core/model"
	"github.com/mohammed-shakir/terrai-alerts/internal/core/period"
	"github.com/mohammed-shakir/terrai-alerts/internal/geostore"
	h3mapper "github.com/mohammed-shakir/terrai-alerts/internal/mapper/h3"
	"github.com/mohammed-shakir/terrai-alerts/internal/resolver"
	"github.com/mohammed-shakir/terrai-alerts/internal/spatialstore"
)

const square = `{"type":"Polygon","coordinates":[[[-55,-5],[-54.9,-5],[-54.9,-4.9],[-55,-4.9],[-55,-5]]]}`

type fakeStore struct {
	mu   sync.Mutex
	rows []spatialstore.Row
	seen []string
}

func (f *fakeStore) Execute(_ context.Context, q alertsql.Select) ([]spatialstore.Row, error) {
	s, err := q.Inline()
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, s)
	return f.rows, nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }

type fakeGeostore struct{}

func (fakeGeostore) Geometry(_ context.Context, hash string) (*geostore.Geometry, error) {
	if hash != "abc" {
		return nil, fmt.Errorf("%w: %s", model.ErrRegionNotFound, hash)
	}
	return &geostore.Geometry{Hash: hash, GeoJSON: json.RawMessage(square), AreaHa: 42.5}, nil
}

type fakeImages struct {
	counts []int64
	err    error
	polys  []esri.Polygon
}

func (f *fakeImages) ComputeHistograms(_ context.Context, p esri.Polygon) ([]int64, error) {
	f.polys = append(f.polys, p)
	return f.counts, f.err
}

func (f *fakeImages) Histograms(context.Context) ([]int64, error) { return f.counts, f.err }

type fakeDataset struct {
	value int64
	sql   string
}

func (f *fakeDataset) Count(_ context.Context, q alertsql.Select) (int64, error) {
	s, err := q.Inline()
	f.sql = s
	return f.value, err
}

// 2020 bins 1..23 hold 1..23 alerts; everything else is zero.
func counts2020() []int64 {
	out := make([]int64, 17*23+24)
	base := 16*23 + 1
	for i := 0; i < 23; i++ {
		out[base+i] = int64(i + 1)
	}
	return out
}

type fixture struct {
	store   *fakeStore
	images  *fakeImages
	dataset *fakeDataset
	r       resolver.RegionResolver
}

func newFixture(t *testing.T, guard h3mapper.Guard) *fixture {
	t.Helper()
	f := &fixture{
		store:   &fakeStore{rows: []spatialstore.Row{{"geojson": square, "area_ha": json.Number("1000")}}},
		images:  &fakeImages{counts: counts2020()},
		dataset: &fakeDataset{value: 77},
	}
	r, err := resolver.New("histogram", resolver.Deps{
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Store:        f.store,
		Geostore:     fakeGeostore{},
		Images:       f.images,
		Dataset:      f.dataset,
		Guard:        guard,
		DownloadBase: "https://carto.test/api/v2/sql",
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	f.r = r
	return f
}

func alertQuery(t *testing.T, text string) model.AlertQuery {
	t.Helper()
	p, err := period.Parse(text, time.Now())
	if err != nil {
		t.Fatalf("period: %v", err)
	}
	return model.AlertQuery{Period: p}
}

func TestResolve_ProtectedAreaSumsBins(t *testing.T) {
	f := newFixture(t, h3mapper.Guard{})
	q := alertQuery(t, "2020-1-1,2020-2-5") // bins 1..3 of 2020
	q.IncludeDates = true

	res, err := f.r.Resolve(context.Background(), model.ProtectedArea(555), q)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Value != 1+2+3 {
		t.Fatalf("value got %d want 6", res.Value)
	}
	if res.AreaHa == nil || *res.AreaHa != 1000 {
		t.Fatalf("area got %v", res.AreaHa)
	}
	if res.Period != period.LabelWeek || res.DownloadURLs == nil {
		t.Fatalf("result got %+v", res)
	}
	if res.MinDate != "2020-01-01" || res.MaxDate != "2020-02-02" {
		t.Fatalf("dates got %s..%s", res.MinDate, res.MaxDate)
	}
	if len(f.images.polys) != 1 || f.images.polys[0].SpatialReference.WKID != 4326 {
		t.Fatalf("polygons got %+v", f.images.polys)
	}
	if !strings.Contains(f.store.seen[0], "ST_AsGeoJSON") {
		t.Fatalf("geometry query got %s", f.store.seen[0])
	}
}

func TestResolve_CountryUsesDatasetInParallel(t *testing.T) {
	f := newFixture(t, h3mapper.Guard{})
	q := alertQuery(t, "2020-1-1,2020-1-2")
	q.ConfirmedOnly = true

	res, err := f.r.Resolve(context.Background(), model.Country("bra"), q)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Value != 77 || res.Period != period.Label24h {
		t.Fatalf("result got %+v", res)
	}
	if *res.AreaHa != 1000 {
		t.Fatalf("area got %v", *res.AreaHa)
	}
	if len(f.images.polys) != 0 {
		t.Fatalf("admin regions must not hit the image server")
	}
	if !strings.Contains(f.dataset.sql, "country_id = 'BRA'") || !strings.Contains(f.dataset.sql, "confidence LIKE 'confirmed'") {
		t.Fatalf("dataset sql got %s", f.dataset.sql)
	}
}

func TestResolve_MissingGeometryIsNotFound(t *testing.T) {
	f := newFixture(t, h3mapper.Guard{})
	f.store.rows = nil
	if _, err := f.r.Resolve(context.Background(), model.Province("BRA", 99), alertQuery(t, "")); !errors.Is(err, model.ErrRegionNotFound) {
		t.Fatalf("expected ErrRegionNotFound, got %v", err)
	}

	f.store.rows = []spatialstore.Row{{"geojson": nil, "area_ha": nil}}
	if _, err := f.r.Resolve(context.Background(), model.ProtectedArea(1), alertQuery(t, "")); !errors.Is(err, model.ErrRegionNotFound) {
		t.Fatalf("marine area with null geometry: expected ErrRegionNotFound, got %v", err)
	}
}

func TestResolve_WorldAndUse(t *testing.T) {
	f := newFixture(t, h3mapper.Guard{})

	res, err := f.r.Resolve(context.Background(), model.World("abc"), alertQuery(t, "2020-12-1,2020-12-31"))
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	if res.Value != 22+23 || *res.AreaHa != 42.5 {
		t.Fatalf("world result got value=%d area=%v", res.Value, *res.AreaHa)
	}
	if _, err := f.r.Resolve(context.Background(), model.World("nope"), alertQuery(t, "")); !errors.Is(err, model.ErrRegionNotFound) {
		t.Fatalf("expected ErrRegionNotFound, got %v", err)
	}

	if _, err := f.r.Resolve(context.Background(), model.Use("birds", 7), alertQuery(t, "")); err != nil {
		t.Fatalf("birds: %v", err)
	}
	if !strings.Contains(f.store.seen[len(f.store.seen)-1], `"endemic_bird_areas"`) {
		t.Fatalf("use query got %s", f.store.seen[len(f.store.seen)-1])
	}
	if _, err := f.r.Resolve(context.Background(), model.Use("custom_table", 7), alertQuery(t, "")); err != nil {
		t.Fatalf("unknown use names pass through: %v", err)
	}
}

func TestResolve_AreaTooLarge(t *testing.T) {
	f := newFixture(t, h3mapper.Guard{})
	f.images.err = model.ErrAreaTooLarge
	if _, err := f.r.Resolve(context.Background(), model.ProtectedArea(1), alertQuery(t, "")); !errors.Is(err, model.ErrAreaTooLarge) {
		t.Fatalf("expected ErrAreaTooLarge, got %v", err)
	}

	huge := `{"type":"Polygon","coordinates":[[[-80,-30],[-40,-30],[-40,10],[-80,10],[-80,-30]]]}`
	g := newFixture(t, h3mapper.Guard{Res: 3, MaxCells: 100})
	g.store.rows = []spatialstore.Row{{"geojson": huge, "area_ha": 1.0}}
	if _, err := g.r.Resolve(context.Background(), model.ProtectedArea(1), alertQuery(t, "")); !errors.Is(err, model.ErrAreaTooLarge) {
		t.Fatalf("guard: expected ErrAreaTooLarge, got %v", err)
	}
	if len(g.images.polys) != 0 {
		t.Fatalf("guarded polygon must not reach the image server")
	}
}

func TestResolve_GuardFailureForwardsPolygon(t *testing.T) {
	f := newFixture(t, h3mapper.Guard{Res: 99, MaxCells: 10})
	res, err := f.r.Resolve(context.Background(), model.ProtectedArea(1), alertQuery(t, "2020-1-1,2020-2-2"))
	if err != nil {
		t.Fatalf("guard error must not fail the request: %v", err)
	}
	if len(f.images.polys) != 1 {
		t.Fatalf("polygon must reach the image server, calls=%d", len(f.images.polys))
	}
	if res.Value != 6 {
		t.Fatalf("value got %d want 6", res.Value)
	}
}

func TestLatest_ReshapesFullHistogram(t *testing.T) {
	f := newFixture(t, h3mapper.Guard{})
	sum, err := f.r.Latest(context.Background(), 5)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if sum.MinDate != "2004-01-01" {
		t.Fatalf("min date got %s", sum.MinDate)
	}
	if sum.MaxDate != "2021-12-31" {
		t.Fatalf("max date got %s", sum.MaxDate)
	}
	var total int64
	for year, days := range sum.Counts {
		for _, v := range days {
			if v < 0 {
				t.Fatalf("negative count in %s", year)
			}
			total += v
		}
	}
	if total != 23*24/2 {
		t.Fatalf("total got %d", total)
	}
}
