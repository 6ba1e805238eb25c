// Package resolver turns a region and period into an alert count. Strategies
// register themselves by name and are selected by configuration.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/mohammed-shakir/terrai-alerts/internal/core/alertsql"
	"github.com/mohammed-shakir/terrai-alerts/internal/core/config"
	"github.com/mohammed-shakir/terrai-alerts/internal/core/esri"
	"github.com/mohammed-shakir/terrai-alerts/internal/core/model"
	"github.com/mohammed-shakir/terrai-alerts/internal/core/period"
	"github.com/mohammed-shakir/terrai-alerts/internal/geostore"
	h3mapper "github.com/mohammed-shakir/terrai-alerts/internal/mapper/h3"
	"github.com/mohammed-shakir/terrai-alerts/internal/spatialstore"
)

const (
	DefaultLatestLimit = 3
	MaxLatestLimit     = 1000
)

type RegionResolver interface {
	Resolve(ctx context.Context, region model.Region, q model.AlertQuery) (*model.AlertResult, error)
	Latest(ctx context.Context, limit int) (*model.LatestSummary, error)
}

// HistogramSource is the raster service.
type HistogramSource interface {
	ComputeHistograms(ctx context.Context, poly esri.Polygon) ([]int64, error)
	Histograms(ctx context.Context) ([]int64, error)
}

// DatasetCounter runs pre-aggregated count queries.
type DatasetCounter interface {
	Count(ctx context.Context, q alertsql.Select) (int64, error)
}

// Deps are the collaborators a strategy may use. Unused ones may be nil.
type Deps struct {
	Config   config.Config
	Logger   *slog.Logger
	Store    spatialstore.Store
	Geostore geostore.Lookup
	Images   HistogramSource
	Dataset  DatasetCounter
	Guard    h3mapper.Guard
	// DownloadBase is the SQL API endpoint export links point at.
	DownloadBase string
	Now          func() time.Time
}

type Factory func(d Deps) (RegionResolver, error)

var reg = map[string]Factory{}

func Register(name string, f Factory) {
	reg[name] = f
}

// Names lists the registered strategies.
func Names() []string {
	out := make([]string, 0, len(reg))
	for n := range reg {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func New(name string, d Deps) (RegionResolver, error) {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if f, ok := reg[name]; ok {
		return f(d)
	}
	if f, ok := reg[config.ResolverPointCount]; ok {
		d.Logger.Warn("unknown resolver; falling back to pointcount", "resolver", name)
		return f(d)
	}
	return nil, fmt.Errorf("no factory for resolver %q and no pointcount registered", name)
}

// QueryParams maps a region and query onto template parameters.
func QueryParams(region model.Region, q model.AlertQuery) alertsql.Params {
	return alertsql.Params{
		Region:       region,
		Begin:        period.FormatDate(q.Period.Begin),
		End:          period.FormatDate(q.Period.End),
		IncludeDates: q.IncludeDates,
	}
}

// ClampLimit applies the default and upper bound to a latest() limit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLatestLimit
	case limit > MaxLatestLimit:
		return MaxLatestLimit
	default:
		return limit
	}
}
