// Package pointcount resolves regions by counting alert points in the spatial store.
package pointcount

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/mohammed-shakir/terrai-alerts/internal/core/alertsql"
	"github.com/mohammed-shakir/terrai-alerts/internal/core/config"
	"github.com/mohammed-shakir/terrai-alerts/internal/core/histogram"
	"github.com/mohammed-shakir/terrai-alerts/internal/core/model"
	"github.com/mohammed-shakir/terrai-alerts/internal/core/period"
	"github.com/mohammed-shakir/terrai-alerts/internal/geostore"
	"github.com/mohammed-shakir/terrai-alerts/internal/resolver"
	"github.com/mohammed-shakir/terrai-alerts/internal/spatialstore"
)

type Resolver struct {
	logger       *slog.Logger
	store        spatialstore.Store
	geostore     geostore.Lookup
	uses         resolver.UseTables
	downloadBase string
	now          func() time.Time
}

func init() {
	resolver.Register(config.ResolverPointCount, newResolver)
}

func newResolver(d resolver.Deps) (resolver.RegionResolver, error) {
	if d.Store == nil {
		return nil, errors.New("pointcount: spatial store is required")
	}
	if d.Geostore == nil {
		return nil, errors.New("pointcount: geostore is required")
	}
	return New(d.Logger, d.Store, d.Geostore, d.DownloadBase, d.Now), nil
}

func New(logger *slog.Logger, store spatialstore.Store, gs geostore.Lookup, downloadBase string, now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{
		logger:       logger,
		store:        store,
		geostore:     gs,
		uses:         resolver.StrictUseTables(),
		downloadBase: downloadBase,
		now:          now,
	}
}

// Resolve counts alerts inside region. ConfirmedOnly is ignored: the point
// table carries no confidence column.
func (r *Resolver) Resolve(ctx context.Context, region model.Region, q model.AlertQuery) (*model.AlertResult, error) {
	p := resolver.QueryParams(region, q)

	switch region.Kind {
	case model.RegionWorld:
		g, err := r.geostore.Geometry(ctx, region.Geostore)
		if err != nil {
			return nil, err
		}
		p.Geometry = string(g.GeoJSON)
	case model.RegionUse:
		table, err := r.uses.Table(region.Use)
		if err != nil {
			return nil, err
		}
		p.UseTable = table
	}

	sel, err := alertsql.Build(p, alertsql.Count)
	if err != nil {
		return nil, fmt.Errorf("build %s query: %w", region.Kind, err)
	}
	rows, err := r.store.Execute(ctx, sel)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &model.AlertResult{}, nil
	}

	row := rows[0]
	out := &model.AlertResult{Period: period.Label(q.Period)}
	out.Value, _ = row.Int("value")
	if a, ok := row.Float("area_ha"); ok {
		out.AreaHa = &a
	}
	if q.IncludeDates {
		if d, ok := row.Date("min_date"); ok {
			out.MinDate = period.ISODate(d)
		}
		if d, ok := row.Date("max_date"); ok {
			out.MaxDate = period.ISODate(d)
		}
	}

	urls, err := alertsql.DownloadURLs(r.downloadBase, p)
	if err != nil {
		return nil, fmt.Errorf("build download urls: %w", err)
	}
	out.DownloadURLs = urls

	r.logger.DebugContext(ctx, "pointcount resolved", "region", region.String(), "value", out.Value)
	return out, nil
}

// Latest returns the most recent limit alert days as a dense per-year daily series.
func (r *Resolver) Latest(ctx context.Context, limit int) (*model.LatestSummary, error) {
	rows, err := r.store.Execute(ctx, alertsql.Latest(resolver.ClampLimit(limit)))
	if err != nil {
		return nil, err
	}

	out := &model.LatestSummary{
		MinDate: period.ISODate(histogram.MinDate()),
		Counts:  map[string][]int64{},
	}
	currentYear := r.now().UTC().Year()
	var maxDate time.Time
	for _, row := range rows {
		d, ok := row.Date("date")
		if !ok || d.Before(histogram.MinDate()) || d.Year() > currentYear {
			continue
		}
		v, ok := row.Int("value")
		if !ok {
			r.logger.DebugContext(ctx, "latest row without a numeric value", "date", period.ISODate(d), "value", row["value"])
		}
		if v < 0 {
			v = 0
		}
		key := strconv.Itoa(d.Year())
		days, ok := out.Counts[key]
		if !ok {
			days = make([]int64, daysIn(d.Year()))
			out.Counts[key] = days
		}
		days[d.YearDay()-1] += v
		if d.After(maxDate) {
			maxDate = d
		}
	}
	if maxDate.IsZero() {
		maxDate = histogram.MinDate()
	}
	out.MaxDate = period.ISODate(maxDate)
	return out, nil
}

func daysIn(year int) int {
	return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC).YearDay()
}
