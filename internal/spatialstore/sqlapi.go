package spatialstore

import (
	"bytes"
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

// SQLAPI posts inline-rendered SQL to a CARTO-style SQL endpoint.
type SQLAPI struct {
	logger   *slog.Logger
	client   httpclient.Doer
	endpoint *url.URL
	apiKey   string
}

func NewSQLAPI(logger *slog.Logger, client httpclient.Doer, endpoint, apiKey string) (*SQLAPI, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("parse sql api url %q: %w", endpoint, errOrInvalid(err))
	}
	return &SQLAPI{logger: logger, client: client, endpoint: u, apiKey: apiKey}, nil
}

// Endpoint is the base URL that export links are built from.
func (s *SQLAPI) Endpoint() string { return s.endpoint.String() }

type sqlAPIResponse struct {
	Rows  []map[string]any `json:"rows"`
	Error []string         `json:"error"`
}

func (s *SQLAPI) Execute(ctx context.Context, q alertsql.Select) ([]Row, error) {
	text, err := q.Inline()
	if err != nil {
		return nil, fmt.Errorf("render query: %w", err)
	}

	form := url.Values{}
	form.Set("q", text)
	if s.apiKey != "" {
		form.Set("api_key", s.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sql api: %w", model.ErrUpstreamUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: sql api: read body: %w", model.ErrUpstreamUnavailable, err)
	}
	s.logger.DebugContext(ctx, "sql api query done",
		"status", resp.StatusCode,
		"duration", time.Since(start).String())

	var out sqlAPIResponse
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: sql api status %d: %s", model.ErrUpstreamUnavailable, resp.StatusCode, snippet(body))
	}
	if len(out.Error) > 0 {
		return nil, fmt.Errorf("%w: sql api: %s", model.ErrUpstreamUnavailable, strings.Join(out.Error, "; "))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: sql api status %d: %s", model.ErrUpstreamUnavailable, resp.StatusCode, snippet(body))
	}

	rows := make([]Row, len(out.Rows))
	for i, r := range out.Rows {
		rows[i] = Row(r)
	}
	return rows, nil
}

func (s *SQLAPI) Ping(ctx context.Context) error {
	_, err := s.Execute(ctx, alertsql.Select{Columns: []alertsql.Fragment{alertsql.Expr("1 AS ok")}})
	return err
}

func snippet(b []byte) string {
	const limit = 512
	if len(b) > limit {
		b = b[:limit]
	}
	return string(b)
}

func errOrInvalid(err error) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("missing scheme or host")
}
