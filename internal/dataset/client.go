// Package dataset queries the pre-aggregated alert dataset exposed by the
// dataset query service.
package dataset

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

	"github.com/mohammed-shakir/terrai-alerts/internal/core/alertsql"
	"github.com/mohammed-shakir/terrai-alerts/internal/core/httpclient"
	"github.com/mohammed-shakir/terrai-alerts/internal/core/model"
)

type Client struct {
	logger *slog.Logger
	http   httpclient.Doer
	base   string
	id     string
}

func New(logger *slog.Logger, doer httpclient.Doer, baseURL, datasetID string) (*Client, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("parse dataset url: %w", err)
	}
	if strings.TrimSpace(datasetID) == "" {
		return nil, fmt.Errorf("dataset id is empty")
	}
	return &Client{logger: logger, http: doer, base: strings.TrimRight(baseURL, "/"), id: datasetID}, nil
}

type queryResponse struct {
	Data []struct {
		Value *float64 `json:"value"`
	} `json:"data"`
	Errors []struct {
		Status int    `json:"status"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

// Count runs q and returns the value of its first row. No rows, or a NULL sum, count as zero.
func (c *Client) Count(ctx context.Context, q alertsql.Select) (int64, error) {
	text, err := q.Inline()
	if err != nil {
		return 0, fmt.Errorf("render query: %w", err)
	}
	u := c.base + "/query/" + url.PathEscape(c.id) + "?sql=" + url.QueryEscape(text)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: dataset: %w", model.ErrUpstreamUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("%w: dataset: read body: %w", model.ErrUpstreamUnavailable, err)
	}
	c.logger.DebugContext(ctx, "dataset query done", "status", resp.StatusCode, "duration", time.Since(start).String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("%w: dataset status %d", model.ErrUpstreamUnavailable, resp.StatusCode)
	}
	var out queryResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("%w: dataset: decode: %w", model.ErrUpstreamUnavailable, err)
	}
	if len(out.Errors) > 0 {
		return 0, fmt.Errorf("%w: dataset: %s", model.ErrUpstreamUnavailable, out.Errors[0].Detail)
	}
	if len(out.Data) == 0 || out.Data[0].Value == nil {
		return 0, nil
	}
	return int64(*out.Data[0].Value), nil
}
