// Package router maps the alert routes onto a region resolver and renders JSON:API responses.
package router

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/terrai-alerts/internal/core/model"
	"github.com/mohammed-shakir/terrai-alerts/internal/core/observability"
	"github.com/mohammed-shakir/terrai-alerts/internal/core/period"
	"github.com/mohammed-shakir/terrai-alerts/internal/events"
	"github.com/mohammed-shakir/terrai-alerts/internal/jsonapi"
	mylog "github.com/mohammed-shakir/terrai-alerts/internal/logger"
	"github.com/mohammed-shakir/terrai-alerts/internal/resolver"
)

type Handler struct {
	logger   *slog.Logger
	resolver resolver.RegionResolver
	events   events.Sink
	strategy string
	alerts   *jsonapi.Serializer
	latest   *jsonapi.Serializer
	now      func() time.Time
}

type Option func(*Handler)

// WithClock overrides the clock used for default periods and the latest year filter.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

func WithEvents(sink events.Sink) Option {
	return func(h *Handler) {
		if sink != nil {
			h.events = sink
		}
	}
}

func New(logger *slog.Logger, res resolver.RegionResolver, strategy string, opts ...Option) *Handler {
	h := &Handler{
		logger:   logger,
		resolver: res,
		events:   events.Discard{},
		strategy: strategy,
		now:      time.Now,
	}
	for _, o := range opts {
		o(h)
	}
	h.alerts = jsonapi.New(jsonapi.AlertsOptions)
	latest := jsonapi.LatestOptions
	latest.Now = h.now
	h.latest = jsonapi.New(latest)
	return h
}

// Routes returns the alert API, to be mounted under the API prefix.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.world)
	r.Get("/latest", h.latestHandler)
	r.Get("/admin/{iso}", h.admin)
	r.Get("/admin/{iso}/{id1}", h.admin)
	r.Get("/use/{name}/{id}", h.use)
	r.Get("/wdpa/{id}", h.wdpa)
	return r
}

func (h *Handler) admin(w http.ResponseWriter, r *http.Request) {
	p := adminParams{ISO: chi.URLParam(r, "iso"), ID1: chi.URLParam(r, "id1")}
	if err := check(p); err != nil {
		h.fail(r.Context(), w, model.RegionCountry, err)
		return
	}
	if p.ID1 == "" {
		h.serveAlert(w, r, model.Country(p.ISO))
		return
	}
	id1, err := parseID("id1", p.ID1)
	if err != nil {
		h.fail(r.Context(), w, model.RegionProvince, err)
		return
	}
	h.serveAlert(w, r, model.Province(p.ISO, id1))
}

func (h *Handler) use(w http.ResponseWriter, r *http.Request) {
	p := useParams{Name: chi.URLParam(r, "name"), ID: chi.URLParam(r, "id")}
	if err := check(p); err != nil {
		h.fail(r.Context(), w, model.RegionUse, err)
		return
	}
	id, err := parseID("id", p.ID)
	if err != nil {
		h.fail(r.Context(), w, model.RegionUse, err)
		return
	}
	h.serveAlert(w, r, model.Use(p.Name, id))
}

func (h *Handler) wdpa(w http.ResponseWriter, r *http.Request) {
	p := wdpaParams{ID: chi.URLParam(r, "id")}
	if err := check(p); err != nil {
		h.fail(r.Context(), w, model.RegionProtectedArea, err)
		return
	}
	id, err := parseID("id", p.ID)
	if err != nil {
		h.fail(r.Context(), w, model.RegionProtectedArea, err)
		return
	}
	h.serveAlert(w, r, model.ProtectedArea(id))
}

func (h *Handler) world(w http.ResponseWriter, r *http.Request) {
	p := worldParams{Geostore: r.URL.Query().Get("geostore")}
	if p.Geostore == "" {
		jsonapi.WriteError(w, http.StatusBadRequest, "GeoJSON param required")
		return
	}
	if err := check(p); err != nil {
		h.fail(r.Context(), w, model.RegionWorld, err)
		return
	}
	h.serveAlert(w, r, model.World(p.Geostore))
}

func (h *Handler) serveAlert(w http.ResponseWriter, r *http.Request, region model.Region) {
	start := time.Now()
	ctx := mylog.WithRegion(r.Context(), region.String())
	ctx = mylog.WithStrategy(ctx, h.strategy)

	q, err := readAlertParams(r).alertQuery(h.now())
	if err != nil {
		h.fail(ctx, w, region.Kind, err)
		return
	}

	res, err := h.resolver.Resolve(ctx, region, q)
	h.record(region, q, res, err, time.Since(start))
	if err != nil {
		h.fail(ctx, w, region.Kind, err)
		return
	}

	body, err := h.alerts.Alert(res)
	if err != nil {
		h.fail(ctx, w, region.Kind, err)
		return
	}
	jsonapi.Write(w, http.StatusOK, body)
}

func (h *Handler) latestHandler(w http.ResponseWriter, r *http.Request) {
	ctx := mylog.WithStrategy(r.Context(), h.strategy)
	p := latestParams{Limit: r.URL.Query().Get("limit")}
	if err := check(p); err != nil {
		h.fail(ctx, w, "", err)
		return
	}
	limit := 0
	if p.Limit != "" {
		limit, _ = strconv.Atoi(p.Limit)
	}

	sum, err := h.resolver.Latest(ctx, limit)
	observability.IncResolution("latest", outcome(err))
	if err != nil {
		h.fail(ctx, w, "", err)
		return
	}
	body, err := h.latest.Latest(sum)
	if err != nil {
		h.fail(ctx, w, "", err)
		return
	}
	jsonapi.Write(w, http.StatusOK, body)
}

func (h *Handler) record(region model.Region, q model.AlertQuery, res *model.AlertResult, err error, elapsed time.Duration) {
	oc := outcome(err)
	observability.IncResolution(string(region.Kind), oc)

	ev := events.Event{
		Strategy:   h.strategy,
		Region:     region.String(),
		Kind:       string(region.Kind),
		Period:     period.String(q.Period),
		Outcome:    oc,
		DurationMS: elapsed.Milliseconds(),
	}
	if res != nil {
		ev.Value = res.Value
	}
	h.events.Publish(ev)
}

// fail is the single place errors become HTTP responses.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, kind model.RegionKind, err error) {
	status, detail := classify(kind, err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "request failed", "err", err)
	} else {
		h.logger.DebugContext(ctx, "request rejected", "status", status, "err", err)
	}
	jsonapi.WriteError(w, status, detail)
}

func classify(kind model.RegionKind, err error) (int, string) {
	switch {
	case errors.Is(err, errInvalidParam), errors.Is(err, model.ErrInvalidPeriod):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, model.ErrAreaTooLarge):
		return http.StatusBadRequest, model.AreaTooLargeMessage
	case errors.Is(err, model.ErrInvalidUseCategory):
		return http.StatusNotFound, "Name not found"
	case errors.Is(err, model.ErrRegionNotFound):
		if kind == model.RegionWorld {
			return http.StatusNotFound, "Geostore not found"
		}
		return http.StatusNotFound, "Region not found"
	case errors.Is(err, model.ErrUpstreamUnavailable):
		return http.StatusInternalServerError, "upstream service unavailable"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrAreaTooLarge):
		return "area_too_large"
	case errors.Is(err, model.ErrInvalidUseCategory):
		return "invalid_use"
	case errors.Is(err, model.ErrRegionNotFound):
		return "not_found"
	case errors.Is(err, model.ErrUpstreamUnavailable):
		return "upstream"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
