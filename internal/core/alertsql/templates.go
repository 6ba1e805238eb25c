package alertsql

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/terrai-alerts/internal/core/model"
)

const (
	PointsTable    = "latin_decrease_current_points"
	CountriesTable = "gadm2_countries_simple"
	ProvincesTable = "gadm2_provinces_simple"
	WDPATable      = "wdpa_protected_areas"

	adminTolerance = 0.0001
	// gis_area is stored in km2
	wdpaAreaFactor = 100
	areaCTE        = "p"
)

// Mode selects between the aggregated count and the raw matching rows.
type Mode int

const (
	Count Mode = iota
	Rows
)

// SimplifyTier applies Tolerance to geometries with at most MaxPoints
// vertices. MaxPoints 0 matches everything; Tolerance 0 keeps the geometry.
type SimplifyTier struct {
	MaxPoints int
	Tolerance float64
}

// ProtectedAreaTiers bounds query cost on very detailed protected areas.
var ProtectedAreaTiers = []SimplifyTier{
	{MaxPoints: 18000},
	{MaxPoints: 50000, Tolerance: 0.001},
	{Tolerance: 0.005},
}

// Params are the values a region template is rendered with.
type Params struct {
	Region model.Region
	// UseTable is the resolved polygon table for RegionUse.
	UseTable string
	// Geometry is a GeoJSON geometry for RegionWorld.
	Geometry string
	// Begin and End are YYYY-M-D dates, both inclusive.
	Begin        string
	End          string
	IncludeDates bool
}

var errNoAreaTemplate = errors.New("region has no stored geometry")

// Build renders the template for p.Region.
func Build(p Params, mode Mode) (Select, error) {
	s := Select{
		From: []Fragment{Expr(PointsTable + " f")},
	}

	if p.Region.Kind == model.RegionWorld {
		if strings.TrimSpace(p.Geometry) == "" {
			return Select{}, errors.New("world template requires a geometry")
		}
		s.Where = append(s.Where,
			Expr("ST_Intersects(ST_SetSRID(ST_GeomFromGeoJSON(?), 4326), f.the_geom)", p.Geometry))
	} else {
		cte, err := regionCTE(p)
		if err != nil {
			return Select{}, err
		}
		s.With = []CTE{cte}
		s.From = append(s.From, Expr(areaCTE))
		s.Where = append(s.Where, Expr("ST_Intersects(f.the_geom, p.the_geom)"))
	}
	s.Where = append(s.Where,
		Expr("f.date >= ?", p.Begin),
		Expr("f.date <= ?", p.End),
	)

	switch mode {
	case Rows:
		s.Columns = []Fragment{Expr("f.*")}
	default:
		s.Columns = []Fragment{Expr("COUNT(f.*) AS value")}
		if p.Region.Kind != model.RegionWorld {
			s.Columns = append(s.Columns, Expr("(SELECT area_ha FROM p) AS area_ha"))
		}
		if p.IncludeDates {
			s.Columns = append(s.Columns,
				Expr("MIN(f.date) AS min_date"),
				Expr("MAX(f.date) AS max_date"),
			)
		}
	}
	return s, nil
}

// Geometry selects the stored geometry (as GeoJSON) and area of a region.
func Geometry(p Params) (Select, error) {
	if p.Region.Kind == model.RegionWorld {
		return Select{}, fmt.Errorf("%w: %s", errNoAreaTemplate, p.Region.Kind)
	}
	cte, err := regionCTE(p)
	if err != nil {
		return Select{}, err
	}
	return Select{
		With: []CTE{cte},
		Columns: []Fragment{
			Expr("ST_AsGeoJSON(p.the_geom) AS geojson"),
			Expr("p.area_ha AS area_ha"),
		},
		From: []Fragment{Expr(areaCTE)},
	}, nil
}

// Latest returns the most recent alert dates with their counts.
func Latest(limit int) Select {
	return Select{
		Columns: []Fragment{
			Expr("f.date AS date"),
			Expr("COUNT(f.*) AS value"),
		},
		From:    []Fragment{Expr(PointsTable + " f")},
		GroupBy: []string{"f.date"},
		OrderBy: []string{"f.date DESC"},
		Limit:   limit,
	}
}

func regionCTE(p Params) (CTE, error) {
	r := p.Region
	switch r.Kind {
	case model.RegionCountry:
		return CTE{Name: areaCTE, Query: Expr(
			"SELECT ST_Simplify(the_geom, "+formatFloat(adminTolerance)+") AS the_geom, area_ha FROM "+
				CountriesTable+" WHERE iso = UPPER(?) LIMIT 1", r.ISO)}, nil
	case model.RegionProvince:
		return CTE{Name: areaCTE, Query: Expr(
			"SELECT ST_Simplify(the_geom, "+formatFloat(adminTolerance)+") AS the_geom, area_ha FROM "+
				ProvincesTable+" WHERE iso = UPPER(?) AND id_1 = ? LIMIT 1", r.ISO, r.ID1)}, nil
	case model.RegionUse:
		if strings.TrimSpace(p.UseTable) == "" {
			return CTE{}, errors.New("use template requires a table")
		}
		return CTE{Name: areaCTE, Query: Expr(
			"SELECT the_geom, ST_Area(the_geom::geography) / 10000 AS area_ha FROM ? WHERE cartodb_id = ?",
			Ident(p.UseTable), r.UseID)}, nil
	case model.RegionProtectedArea:
		return CTE{Name: areaCTE, Query: Expr(
			"SELECT "+simplifyCase(ProtectedAreaTiers)+" AS the_geom, gis_area * "+strconv.Itoa(wdpaAreaFactor)+
				" AS area_ha FROM "+WDPATable+" WHERE wdpaid = ?", r.WDPAID)}, nil
	default:
		return CTE{}, fmt.Errorf("%w: %q", errNoAreaTemplate, r.Kind)
	}
}

// simplifyCase turns tiers into a CASE expression. Marine-only areas yield no geometry.
func simplifyCase(tiers []SimplifyTier) string {
	var b strings.Builder
	b.WriteString("CASE WHEN marine::numeric = 2 THEN NULL")
	for _, t := range tiers {
		geom := "the_geom"
		if t.Tolerance > 0 {
			geom = "ST_RemoveRepeatedPoints(the_geom, " + formatFloat(t.Tolerance) + ")"
		}
		if t.MaxPoints > 0 {
			b.WriteString(" WHEN ST_NPoints(the_geom) <= " + strconv.Itoa(t.MaxPoints) + " THEN " + geom)
			continue
		}
		b.WriteString(" ELSE " + geom)
	}
	b.WriteString(" END")
	return b.String()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
