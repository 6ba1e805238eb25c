package alertsql

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/mohammed-shakir/terrai-alerts/internal/core/model"
)

// Formats are the export formats offered by the SQL API, in response order.
var Formats = []string{"csv", "geojson", "kml", "shp", "svg"}

// DownloadURLs renders the row variant of p's template once per export
// format against the SQL API at base.
func DownloadURLs(base string, p Params) (*model.DownloadURLs, error) {
	p.IncludeDates = false
	sel, err := Build(p, Rows)
	if err != nil {
		return nil, err
	}
	q, err := sel.Inline()
	if err != nil {
		return nil, fmt.Errorf("render download query: %w", err)
	}

	base = strings.TrimRight(base, "?")
	prefix := base + "?q=" + url.QueryEscape(q) + "&format="

	urls := make(map[string]string, len(Formats))
	for _, f := range Formats {
		urls[f] = prefix + f
	}
	return &model.DownloadURLs{
		CSV:     urls["csv"],
		GeoJSON: urls["geojson"],
		KML:     urls["kml"],
		SHP:     urls["shp"],
		SVG:     urls["svg"],
	}, nil
}
