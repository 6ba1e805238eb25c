// Package esri converts GeoJSON geometries into the Esri JSON polygons
// accepted by ArcGIS image services.
package esri

import (
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
)

const wgs84 = 4326

type SpatialReference struct {
	WKID int `json:"wkid"`
}

type Polygon struct {
	Type             string           `json:"type"`
	Rings            [][][]float64    `json:"rings"`
	SpatialReference SpatialReference `json:"spatialReference"`
}

// FromGeoJSON converts a Polygon or MultiPolygon geometry. MultiPolygon parts
// are flattened into a single ring list, which Esri polygons allow.
func FromGeoJSON(geojson []byte) (Polygon, error) {
	var v struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.Unmarshal(geojson, &v); err != nil {
		return Polygon{}, fmt.Errorf("parse geojson: %w", err)
	}

	var rings [][][]float64
	switch strings.TrimSpace(v.Type) {
	case "Polygon":
		if err := json.Unmarshal(v.Coordinates, &rings); err != nil {
			return Polygon{}, fmt.Errorf("parse polygon coords: %w", err)
		}
	case "MultiPolygon":
		var polys [][][][]float64
		if err := json.Unmarshal(v.Coordinates, &polys); err != nil {
			return Polygon{}, fmt.Errorf("parse multipolygon coords: %w", err)
		}
		for _, p := range polys {
			rings = append(rings, p...)
		}
	default:
		return Polygon{}, fmt.Errorf("unsupported type %q", v.Type)
	}

	if len(rings) == 0 {
		return Polygon{}, errors.New("empty polygon")
	}
	for i, ring := range rings {
		if len(ring) < 4 {
			return Polygon{}, fmt.Errorf("ring %d has <4 points", i)
		}
		for j, xy := range ring {
			if len(xy) < 2 {
				return Polygon{}, fmt.Errorf("ring %d point %d must be [x,y]", i, j)
			}
			ring[j] = xy[:2]
		}
	}

	return Polygon{
		Type:             "polygon",
		Rings:            rings,
		SpatialReference: SpatialReference{WKID: wgs84},
	}, nil
}

// String encodes p for use as a form field.
func (p Polygon) String() string {
	b, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return string(b)
}
