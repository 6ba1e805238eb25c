package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/mohammed-shakir/terrai-alerts/internal/core/model"
)

func TestUseTables_Strict(t *testing.T) {
	u := StrictUseTables()
	if got, err := u.Table("oilpalm"); err != nil || got != "gfw_oil_palm" {
		t.Fatalf("oilpalm got %q, %v", got, err)
	}
	for _, name := range []string{"birds", "unknown-category", ""} {
		if _, err := u.Table(name); !errors.Is(err, model.ErrInvalidUseCategory) {
			t.Fatalf("%q: expected ErrInvalidUseCategory, got %v", name, err)
		}
	}
}

func TestUseTables_Lenient(t *testing.T) {
	u := LenientUseTables()
	if got, _ := u.Table("birds"); got != "endemic_bird_areas" {
		t.Fatalf("birds got %q", got)
	}
	if got, _ := u.Table("fiber"); got != "gfw_wood_fiber" {
		t.Fatalf("fiber got %q", got)
	}
	if got, err := u.Table("my_table"); err != nil || got != "my_table" {
		t.Fatalf("pass-through got %q, %v", got, err)
	}
	if _, err := u.Table(" "); !errors.Is(err, model.ErrInvalidUseCategory) {
		t.Fatalf("blank name must be rejected, got %v", err)
	}
	if _, err := StrictUseTables().Table("birds"); err == nil {
		t.Fatalf("lenient table must not leak into strict policy")
	}
}

type stub struct{ name string }

func (stub) Resolve(context.Context, model.Region, model.AlertQuery) (*model.AlertResult, error) {
	return &model.AlertResult{}, nil
}

func (stub) Latest(context.Context, int) (*model.LatestSummary, error) {
	return &model.LatestSummary{}, nil
}

func TestRegistry_FallsBackToPointCount(t *testing.T) {
	saved := reg
	t.Cleanup(func() { reg = saved })
	reg = map[string]Factory{
		"pointcount": func(Deps) (RegionResolver, error) { return stub{"pointcount"}, nil },
		"histogram":  func(Deps) (RegionResolver, error) { return stub{"histogram"}, nil },
	}

	r, err := New("histogram", Deps{})
	if err != nil || r.(stub).name != "histogram" {
		t.Fatalf("histogram got %v, %v", r, err)
	}
	r, err = New("nope", Deps{})
	if err != nil || r.(stub).name != "pointcount" {
		t.Fatalf("fallback got %v, %v", r, err)
	}
	if names := Names(); len(names) != 2 || names[0] != "histogram" {
		t.Fatalf("names got %v", names)
	}

	reg = map[string]Factory{}
	if _, err := New("nope", Deps{}); err == nil {
		t.Fatalf("expected error with empty registry")
	}
}

func TestClampLimit(t *testing.T) {
	cases := map[int]int{-1: 3, 0: 3, 5: 5, 1000: 1000, 5000: 1000}
	for in, want := range cases {
		if got := ClampLimit(in); got != want {
			t.Fatalf("ClampLimit(%d) got %d want %d", in, got, want)
		}
	}
}
