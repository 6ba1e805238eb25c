// Package imageserver talks to the ArcGIS image service holding the alert
// raster, which answers with 16-day bin histograms.
package imageserver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/mohammed-shakir/terrai-alerts/internal/core/esri"
	"github.com/mohammed-shakir/terrai-alerts/internal/core/httpclient"
	"github.com/mohammed-shakir/terrai-alerts/internal/core/model"
)

// MosaicRule pins the analysis to a single raster so bins line up across calls.
type MosaicRule struct {
	Method        string `json:"mosaicMethod"`
	Ascending     bool   `json:"ascending"`
	Operation     string `json:"mosaicOperation"`
	LockRasterIDs []int  `json:"lockRasterIds"`
}

func LockRaster(id int) MosaicRule {
	return MosaicRule{
		Method:        "esriMosaicLockRaster",
		Ascending:     true,
		Operation:     "MT_FIRST",
		LockRasterIDs: []int{id},
	}
}

type Client struct {
	logger *slog.Logger
	http   httpclient.Doer
	base   string
	mosaic string
}

func New(logger *slog.Logger, doer httpclient.Doer, baseURL string, rasterID int) (*Client, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("parse image server url: %w", err)
	}
	rule, err := json.Marshal(LockRaster(rasterID))
	if err != nil {
		return nil, fmt.Errorf("encode mosaic rule: %w", err)
	}
	return &Client{
		logger: logger,
		http:   doer,
		base:   strings.TrimRight(baseURL, "/"),
		mosaic: string(rule),
	}, nil
}

type histogramResponse struct {
	Histograms []struct {
		Size   int       `json:"size"`
		Counts []float64 `json:"counts"`
	} `json:"histograms"`
	Error *struct {
		Code    int      `json:"code"`
		Message string   `json:"message"`
		Details []string `json:"details"`
	} `json:"error"`
}

// ComputeHistograms returns the per-bin alert counts inside poly.
// The service answers oversized polygons with a 400 or 500 error, reported as ErrAreaTooLarge.
func (c *Client) ComputeHistograms(ctx context.Context, poly esri.Polygon) ([]int64, error) {
	form := url.Values{}
	form.Set("geometry", poly.String())
	form.Set("geometryType", "esriGeometryPolygon")
	form.Set("mosaicRule", c.mosaic)
	form.Set("f", "pjson")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/computeHistograms", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, true)
}

// Histograms returns the whole-raster histogram.
func (c *Client) Histograms(ctx context.Context) ([]int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/histograms?f=pjson", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	return c.do(req, false)
}

func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"?f=pjson", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("image server status %d", resp.StatusCode)
	}
	return nil
}

// areaErrorCode reports the error codes computeHistograms uses for polygons it cannot analyse.
func areaErrorCode(code int) bool {
	return code == http.StatusBadRequest || code == http.StatusInternalServerError
}

func (c *Client) do(req *http.Request, areaBound bool) ([]int64, error) {
	req.Header.Set("Accept", "application/json")
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: image server: %w", model.ErrUpstreamUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: image server: read body: %w", model.ErrUpstreamUnavailable, err)
	}
	c.logger.DebugContext(req.Context(), "image server call done",
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration", time.Since(start).String())

	var out histogramResponse
	decodeErr := json.Unmarshal(body, &out)
	if areaBound && decodeErr == nil && out.Error != nil && areaErrorCode(out.Error.Code) {
		return nil, model.ErrAreaTooLarge
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if areaBound && resp.StatusCode == http.StatusInternalServerError {
			return nil, model.ErrAreaTooLarge
		}
		return nil, fmt.Errorf("%w: image server status %d", model.ErrUpstreamUnavailable, resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: image server: decode: %w", model.ErrUpstreamUnavailable, decodeErr)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("%w: image server error %d: %s", model.ErrUpstreamUnavailable, out.Error.Code, out.Error.Message)
	}
	if len(out.Histograms) == 0 {
		return []int64{}, nil
	}

	raw := out.Histograms[0].Counts
	counts := make([]int64, len(raw))
	for i, v := range raw {
		counts[i] = int64(math.Round(v))
	}
	return counts, nil
}
