// Package histogram resolves regions against the raster image service, which
// answers with 16-day bin histograms for a polygon.
package histogram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	json "github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/terrai-alerts/internal/core/alertsql"
	"github.com/mohammed-shakir/terrai-alerts/internal/core/config"
	"github.com/mohammed-shakir/terrai-alerts/internal/core/esri"
	hist "github.com/mohammed-shakir/terrai-alerts/internal/core/histogram"
	"github.com/mohammed-shakir/terrai-alerts/internal/core/model"
	"github.com/mohammed-shakir/terrai-alerts/internal/core/period"
	"github.com/mohammed-shakir/terrai-alerts/internal/geostore"
	h3mapper "github.com/mohammed-shakir/terrai-alerts/internal/mapper/h3"
	"github.com/mohammed-shakir/terrai-alerts/internal/resolver"
	"github.com/mohammed-shakir/terrai-alerts/internal/spatialstore"
)

type Resolver struct {
	logger       *slog.Logger
	store        spatialstore.Store
	geostore     geostore.Lookup
	images       resolver.HistogramSource
	dataset      resolver.DatasetCounter
	guard        h3mapper.Guard
	uses         resolver.UseTables
	downloadBase string
}

func init() {
	resolver.Register(config.ResolverHistogram, newResolver)
}

func newResolver(d resolver.Deps) (resolver.RegionResolver, error) {
	switch {
	case d.Store == nil:
		return nil, errors.New("histogram: spatial store is required")
	case d.Geostore == nil:
		return nil, errors.New("histogram: geostore is required")
	case d.Images == nil:
		return nil, errors.New("histogram: image server is required")
	case d.Dataset == nil:
		return nil, errors.New("histogram: dataset client is required")
	}
	return &Resolver{
		logger:       d.Logger,
		store:        d.Store,
		geostore:     d.Geostore,
		images:       d.Images,
		dataset:      d.Dataset,
		guard:        d.Guard,
		uses:         resolver.LenientUseTables(),
		downloadBase: d.DownloadBase,
	}, nil
}

// area is a region geometry as GeoJSON plus its area in hectares.
type area struct {
	geojson []byte
	ha      float64
}

func (r *Resolver) Resolve(ctx context.Context, region model.Region, q model.AlertQuery) (*model.AlertResult, error) {
	p := resolver.QueryParams(region, q)
	if region.Kind == model.RegionUse {
		table, err := r.uses.Table(region.Use)
		if err != nil {
			return nil, err
		}
		p.UseTable = table
	}

	var (
		a      *area
		value  int64
		counts []int64
	)
	switch region.Kind {
	case model.RegionCountry, model.RegionProvince:
		// the raster has no confidence band, so admin counts come from the dataset
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			a, err = r.storedArea(gctx, p)
			return err
		})
		g.Go(func() error {
			var err error
			value, err = r.dataset.Count(gctx, alertsql.DatasetCount(alertsql.DatasetQuery{
				ISO:           region.ISO,
				ID1:           region.ID1,
				Begin:         q.Period.Begin,
				End:           q.Period.End,
				ConfirmedOnly: q.ConfirmedOnly,
			}))
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}

	case model.RegionWorld:
		g, err := r.geostore.Geometry(ctx, region.Geostore)
		if err != nil {
			return nil, err
		}
		a = &area{geojson: g.GeoJSON, ha: g.AreaHa}
		p.Geometry = string(g.GeoJSON)
		if counts, err = r.polygonHistogram(ctx, a.geojson); err != nil {
			return nil, err
		}
		value = hist.SumRange(counts, q.Period.Begin, q.Period.End)

	case model.RegionProtectedArea, model.RegionUse:
		var err error
		if a, err = r.storedArea(ctx, p); err != nil {
			return nil, err
		}
		if counts, err = r.polygonHistogram(ctx, a.geojson); err != nil {
			return nil, err
		}
		value = hist.SumRange(counts, q.Period.Begin, q.Period.End)

	default:
		return nil, fmt.Errorf("%w: unsupported region kind %q", model.ErrRegionNotFound, region.Kind)
	}

	out := &model.AlertResult{
		Value:  value,
		Period: period.Label(q.Period),
		AreaHa: &a.ha,
	}
	if q.IncludeDates && counts != nil {
		if first, last, ok := hist.ActiveRange(counts, q.Period.Begin, q.Period.End); ok {
			out.MinDate, out.MaxDate = period.ISODate(first), period.ISODate(last)
		}
	}
	urls, err := alertsql.DownloadURLs(r.downloadBase, p)
	if err != nil {
		return nil, fmt.Errorf("build download urls: %w", err)
	}
	out.DownloadURLs = urls

	r.logger.DebugContext(ctx, "histogram resolved", "region", region.String(), "value", out.Value)
	return out, nil
}

// Latest ignores limit: the raster service only returns the full histogram.
func (r *Resolver) Latest(ctx context.Context, _ int) (*model.LatestSummary, error) {
	counts, err := r.images.Histograms(ctx)
	if err != nil {
		return nil, err
	}
	return &model.LatestSummary{
		MinDate: period.ISODate(hist.MinDate()),
		MaxDate: period.ISODate(hist.MaxDate(counts)),
		Counts:  hist.YearlyDaily(counts),
	}, nil
}

// storedArea reads the region geometry kept alongside the alert points.
func (r *Resolver) storedArea(ctx context.Context, p alertsql.Params) (*area, error) {
	sel, err := alertsql.Geometry(p)
	if err != nil {
		return nil, fmt.Errorf("build geometry query: %w", err)
	}
	rows, err := r.store.Execute(ctx, sel)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", model.ErrRegionNotFound, p.Region.String())
	}
	gj, ok := geojsonColumn(rows[0])
	if !ok {
		return nil, fmt.Errorf("%w: %s has no geometry", model.ErrRegionNotFound, p.Region.String())
	}
	ha, _ := rows[0].Float("area_ha")
	return &area{geojson: gj, ha: ha}, nil
}

// ST_AsGeoJSON comes back as text from both backends; the SQL API may also inline it as an object.
func geojsonColumn(row spatialstore.Row) ([]byte, bool) {
	switch v := row["geojson"].(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return []byte(s), true
		}
	case []byte:
		if len(v) > 0 {
			return v, true
		}
	case map[string]any:
		b, err := json.Marshal(v)
		return b, err == nil
	}
	return nil, false
}

func (r *Resolver) polygonHistogram(ctx context.Context, geojson []byte) ([]int64, error) {
	poly, err := esri.FromGeoJSON(geojson)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrRegionNotFound, err)
	}
	// Only an oversized polygon is refused here; guard failures fall through to the raster service.
	if n, err := r.guard.Check(geojson); err != nil {
		if errors.Is(err, model.ErrAreaTooLarge) {
			r.logger.InfoContext(ctx, "area guard refused polygon", "cells", n, "err", err)
			return nil, err
		}
		r.logger.WarnContext(ctx, "area guard check failed; forwarding polygon", "err", err)
	}
	return r.images.ComputeHistograms(ctx, poly)
}
