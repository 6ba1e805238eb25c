package esri

import (
	"strings"
	"testing"
)

func TestFromGeoJSON_Polygon(t *testing.T) {
	in := `{"type":"Polygon","coordinates":[[[11,55],[12,55],[12,56],[11,56],[11,55]]]}`
	p, err := FromGeoJSON([]byte(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Type != "polygon" || len(p.Rings) != 1 || len(p.Rings[0]) != 5 {
		t.Fatalf("unexpected polygon: %+v", p)
	}
	if p.SpatialReference.WKID != 4326 {
		t.Fatalf("wkid got %d", p.SpatialReference.WKID)
	}
	s := p.String()
	if !strings.Contains(s, `"rings":[[[11,55],[12,55]`) || !strings.Contains(s, `"type":"polygon"`) {
		t.Fatalf("unexpected encoding %s", s)
	}
}

func TestFromGeoJSON_MultiPolygonFlattens(t *testing.T) {
	in := `{"type":"MultiPolygon","coordinates":[
		[[[0,0],[1,0],[1,1],[0,1],[0,0]]],
		[[[5,5],[6,5],[6,6],[5,6],[5,5]],[[5.2,5.2],[5.4,5.2],[5.4,5.4],[5.2,5.2]]]
	]}`
	p, err := FromGeoJSON([]byte(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Rings) != 3 {
		t.Fatalf("rings got %d want 3", len(p.Rings))
	}
}

func TestFromGeoJSON_DropsZ(t *testing.T) {
	in := `{"type":"Polygon","coordinates":[[[0,0,9],[1,0,9],[1,1,9],[0,0,9]]]}`
	p, err := FromGeoJSON([]byte(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Rings[0][0]) != 2 {
		t.Fatalf("expected 2D coordinates, got %v", p.Rings[0][0])
	}
}

func TestFromGeoJSON_Invalid(t *testing.T) {
	cases := []string{
		`not json`,
		`{"type":"Point","coordinates":[1,2]}`,
		`{"type":"Polygon","coordinates":[]}`,
		`{"type":"Polygon","coordinates":[[[0,0],[1,0],[0,0]]]}`,
	}
	for _, in := range cases {
		if _, err := FromGeoJSON([]byte(in)); err == nil {
			t.Fatalf("expected error for %s", in)
		}
	}
}
