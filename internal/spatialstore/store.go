// Package spatialstore runs alert queries against the spatial database, either
// through the hosted SQL API or over a direct PostGIS connection.
package spatialstore

import (
	"context"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/mohammed-shakir/terrai-alerts/internal/core/alertsql"
)

// Store executes a query and returns its rows.
type Store interface {
	Execute(ctx context.Context, q alertsql.Select) ([]Row, error)
	Ping(ctx context.Context) error
}

// Row is one result row keyed by column name. Values keep whatever type the
// backend produced; use the typed accessors to read them.
type Row map[string]any

// Int reads an integer column. Missing or NULL columns report ok=false.
func (r Row) Int(col string) (int64, bool) {
	switch v := r[col].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float64:
		return int64(v), true
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
		if f, err := v.Float64(); err == nil {
			return int64(f), true
		}
	case []byte:
		return parseInt(string(v))
	case string:
		return parseInt(v)
	}
	return 0, false
}

func (r Row) Float(col string) (float64, bool) {
	switch v := r[col].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(string(v), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

func (r Row) String(col string) (string, bool) {
	switch v := r[col].(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	case json.Number:
		return v.String(), true
	}
	return "", false
}

// Date reads a date or timestamp column as a UTC time.
func (r Row) Date(col string) (time.Time, bool) {
	switch v := r[col].(type) {
	case time.Time:
		return v.UTC(), true
	case []byte:
		return parseDate(string(v))
	case string:
		return parseDate(v)
	}
	return time.Time{}, false
}

func parseInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f), true
	}
	return 0, false
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
