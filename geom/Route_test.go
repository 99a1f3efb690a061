package geom

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
)

func TestRouteLength(t *testing.T) {
	r := NewRoute(Pt(0, 0), Pt(3, 4), Pt(3, 10))
	if r.Length() != 11 {
		t.Errorf("expected 11, got %f", r.Length())
	}
	if NewRoute(Pt(1, 1)).Length() != 0 {
		t.Error("a single point has no length")
	}
	if (Route{}).Length() != 0 {
		t.Error("empty route has no length")
	}
}

func TestRouteIsImmutable(t *testing.T) {
	points := []orb.Point{{0, 0}, {1, 1}}
	r := NewRoute(points...)
	points[0][0] = 7
	if r.At(0)[0] != 0 {
		t.Error("NewRoute should copy its input")
	}

	out := r.Points()
	out[0][0] = 42
	if r.At(0)[0] != 0 {
		t.Error("Points should return a copy")
	}

	tail := r.From(1)
	longer := tail.Prepend(Pt(9, 9))
	if tail.Len() != 1 || longer.Len() != 2 || r.Len() != 2 {
		t.Error("From/Prepend should build new routes")
	}
}

func TestRouteFromClamps(t *testing.T) {
	r := NewRoute(Pt(0, 0), Pt(1, 1), Pt(2, 2))
	if r.From(5).Len() != 0 {
		t.Error("out of range should give an empty route")
	}
	if r.From(-1).Len() != 3 {
		t.Error("negative index should give the whole route")
	}
}

func TestRouteNearest(t *testing.T) {
	r := NewRoute(Pt(0, 0), Pt(10, 0), Pt(20, 0), Pt(10, 0))
	if i := r.Nearest(Pt(11, 1)); i != 1 {
		t.Errorf("first minimum should win, got %d", i)
	}
	if i := (Route{}).Nearest(Pt(0, 0)); i != -1 {
		t.Errorf("empty route should return -1, got %d", i)
	}
}

func TestRouteJSON(t *testing.T) {
	r := NewRoute(Pt(0, 0), Pt(100, 0))
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "[[0,0],[100,0]]" {
		t.Errorf("unexpected json %s", b)
	}
	var back Route
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if !back.Equal(r) {
		t.Error("round trip should keep waypoints")
	}
}
