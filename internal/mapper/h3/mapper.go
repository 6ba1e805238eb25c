// Package h3mapper measures polygons in H3 cells so oversized analysis areas
// can be refused before they reach the raster service.
package h3mapper

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/terrai-alerts/internal/core/model"
)

// Guard rejects polygons covering more than MaxCells cells at resolution Res.
// MaxCells <= 0 disables the check.
type Guard struct {
	Res      int
	MaxCells int
}

// Check returns model.ErrAreaTooLarge when geojson covers too many cells.
func (g Guard) Check(geojson []byte) (int, error) {
	if g.MaxCells <= 0 {
		return 0, nil
	}
	n, err := CountCells(geojson, g.Res)
	if err != nil {
		return 0, err
	}
	if n > g.MaxCells {
		return n, fmt.Errorf("%w: %d cells at res %d exceed %d", model.ErrAreaTooLarge, n, g.Res, g.MaxCells)
	}
	return n, nil
}

// CountCells returns the number of distinct cells whose centres fall inside a
// GeoJSON Polygon or MultiPolygon.
func CountCells(geojson []byte, res int) (int, error) {
	if err := validateRes(res); err != nil {
		return 0, err
	}

	var hdr struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.Unmarshal(geojson, &hdr); err != nil {
		return 0, fmt.Errorf("parse geojson: %w", err)
	}

	var polys [][][][]float64 // [poly][ring][i][lon,lat]
	switch hdr.Type {
	case "Polygon":
		var rings [][][]float64
		if err := json.Unmarshal(hdr.Coordinates, &rings); err != nil {
			return 0, fmt.Errorf("parse polygon coords: %w", err)
		}
		polys = [][][][]float64{rings}
	case "MultiPolygon":
		if err := json.Unmarshal(hdr.Coordinates, &polys); err != nil {
			return 0, fmt.Errorf("parse multipolygon coords: %w", err)
		}
	default:
		return 0, fmt.Errorf("unsupported GeoJSON type: %s", hdr.Type)
	}
	if len(polys) == 0 {
		return 0, errors.New("empty geometry")
	}

	seen := make(map[h3.Cell]struct{})
	for pi, rings := range polys {
		if len(rings) == 0 {
			return 0, fmt.Errorf("polygon %d is empty", pi)
		}
		poly := h3.GeoPolygon{GeoLoop: toLoop(rings[0])}
		if len(poly.GeoLoop) < 3 {
			return 0, fmt.Errorf("polygon %d outer ring has < 3 vertices", pi)
		}
		for _, hole := range rings[1:] {
			poly.Holes = append(poly.Holes, toLoop(hole))
		}
		cells, err := h3.PolygonToCells(poly, res)
		if err != nil {
			return 0, fmt.Errorf("h3 polyfill: %w", err)
		}
		for _, c := range cells {
			seen[c] = struct{}{}
		}
	}
	return len(seen), nil
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}

// ring [[lon,lat,(z)], ...] to a loop in degrees, without the closing vertex
func toLoop(coords [][]float64) h3.GeoLoop {
	loop := make(h3.GeoLoop, 0, len(coords))
	for _, xy := range coords {
		if len(xy) < 2 {
			continue
		}
		loop = append(loop, h3.LatLng{Lat: xy[1], Lng: xy[0]})
	}
	if n := len(loop); n >= 2 && loop[0] == loop[n-1] {
		loop = loop[:n-1]
	}
	return loop
}
