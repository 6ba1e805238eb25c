// Package jsonapi renders alert results as JSON:API resource documents.
package jsonapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	json "github.com/goccy/go-json"

	"github.com/mohammed-shakir/terrai-alerts/internal/core/gridcode"
	"github.com/mohammed-shakir/terrai-alerts/internal/core/model"
)

const ContentType = "application/vnd.api+json"

// Options select the resource type and which optional attributes are emitted.
type Options struct {
	Type         string
	IncludeArea  bool
	IncludeDates bool
	// CamelCase keeps attribute keys as minDate; otherwise they are dasherised (min-date).
	CamelCase bool
	Now       func() time.Time
}

var (
	AlertsOptions = Options{Type: "terrai-alerts", IncludeArea: true, IncludeDates: true, CamelCase: true}
	LatestOptions = Options{Type: "terrai-latest", IncludeDates: true, CamelCase: true}
)

type Serializer struct {
	opts Options
}

func New(opts Options) *Serializer {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Serializer{opts: opts}
}

type resource struct {
	Type       string         `json:"type"`
	ID         string         `json:"id,omitempty"`
	Attributes map[string]any `json:"attributes"`
}

type document struct {
	Data *resource `json:"data"`
}

// Alert renders r. A nil result yields {"data":null}.
func (s *Serializer) Alert(r *model.AlertResult) ([]byte, error) {
	if r == nil {
		return json.Marshal(document{})
	}
	attrs := map[string]any{s.key("value"): r.Value}
	if r.Period != "" {
		attrs[s.key("period")] = r.Period
	}
	if s.opts.IncludeDates {
		if r.MinDate != "" {
			attrs[s.key("minDate")] = r.MinDate
		}
		if r.MaxDate != "" {
			attrs[s.key("maxDate")] = r.MaxDate
		}
	}
	if r.DownloadURLs != nil {
		attrs[s.key("downloadUrls")] = map[string]string{
			"csv":     r.DownloadURLs.CSV,
			"geojson": r.DownloadURLs.GeoJSON,
			"kml":     r.DownloadURLs.KML,
			"shp":     r.DownloadURLs.SHP,
			"svg":     r.DownloadURLs.SVG,
		}
	}
	if s.opts.IncludeArea && r.AreaHa != nil {
		attrs[s.key("areaHa")] = *r.AreaHa
	}
	return json.Marshal(document{Data: &resource{Type: s.opts.Type, Attributes: attrs}})
}

// Latest renders l. Only years between the epoch and the current year are kept.
func (s *Serializer) Latest(l *model.LatestSummary) ([]byte, error) {
	if l == nil {
		return json.Marshal(document{})
	}
	maxYear := s.opts.Now().Year()
	counts := make(map[string][]int64, len(l.Counts))
	for year, days := range l.Counts {
		y, err := strconv.Atoi(year)
		if err != nil || y < gridcode.EpochYear || y > maxYear {
			continue
		}
		counts[year] = days
	}

	attrs := map[string]any{s.key("counts"): counts}
	if s.opts.IncludeDates {
		attrs[s.key("minDate")] = l.MinDate
		attrs[s.key("maxDate")] = l.MaxDate
	}
	return json.Marshal(document{Data: &resource{Type: s.opts.Type, Attributes: attrs}})
}

func (s *Serializer) key(camel string) string {
	if s.opts.CamelCase {
		return camel
	}
	return dasherize(camel)
}

func dasherize(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Write sends body with the JSON:API content type.
func Write(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

type errorObject struct {
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

// WriteError sends {"errors":[{"status":N,"detail":"..."}]}.
func WriteError(w http.ResponseWriter, status int, detail string) {
	b, err := json.Marshal(struct {
		Errors []errorObject `json:"errors"`
	}{Errors: []errorObject{{Status: status, Detail: detail}}})
	if err != nil {
		b = []byte(`{"errors":[{"status":500,"detail":"internal server error"}]}`)
		status = http.StatusInternalServerError
	}
	Write(w, status, b)
}
