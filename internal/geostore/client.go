// Package geostore resolves geostore hashes into GeoJSON geometries.
package geostore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/mohammed-shakir/terrai-alerts/internal/core/httpclient"
	"github.com/mohammed-shakir/terrai-alerts/internal/core/model"
)

// Geometry is the first feature geometry of a stored geojson plus its area.
type Geometry struct {
	Hash    string          `json:"hash"`
	GeoJSON json.RawMessage `json:"geojson"`
	AreaHa  float64         `json:"areaHa"`
}

// Lookup fetches a geometry by hash. Unknown hashes yield model.ErrRegionNotFound.
type Lookup interface {
	Geometry(ctx context.Context, hash string) (*Geometry, error)
}

type Client struct {
	logger *slog.Logger
	http   httpclient.Doer
	base   string
}

func New(logger *slog.Logger, doer httpclient.Doer, baseURL string) (*Client, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("parse geostore url: %w", err)
	}
	return &Client{logger: logger, http: doer, base: strings.TrimRight(baseURL, "/")}, nil
}

type geostoreResponse struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			GeoJSON struct {
				Features []struct {
					Geometry json.RawMessage `json:"geometry"`
				} `json:"features"`
			} `json:"geojson"`
			Hash   string  `json:"hash"`
			AreaHa float64 `json:"areaHa"`
		} `json:"attributes"`
	} `json:"data"`
}

func (c *Client) Geometry(ctx context.Context, hash string) (*Geometry, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return nil, fmt.Errorf("%w: empty geostore hash", model.ErrRegionNotFound)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/geostore/"+url.PathEscape(hash), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: geostore: %w", model.ErrUpstreamUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.DebugContext(ctx, "geostore lookup done",
		"hash", hash,
		"status", resp.StatusCode,
		"duration", time.Since(start).String())

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: geostore %s", model.ErrRegionNotFound, hash)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: geostore status %d", model.ErrUpstreamUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: geostore: read body: %w", model.ErrUpstreamUnavailable, err)
	}
	var out geostoreResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: geostore: decode: %w", model.ErrUpstreamUnavailable, err)
	}
	feats := out.Data.Attributes.GeoJSON.Features
	if len(feats) == 0 || len(feats[0].Geometry) == 0 || string(feats[0].Geometry) == "null" {
		return nil, fmt.Errorf("%w: geostore %s has no geometry", model.ErrRegionNotFound, hash)
	}
	return &Geometry{
		Hash:    hash,
		GeoJSON: feats[0].Geometry,
		AreaHa:  out.Data.Attributes.AreaHa,
	}, nil
}
