package quad

import (
	"math/rand"
	"testing"

	"github.com/paulmach/orb"
)

type PointLikeObj struct {
	p orb.Point
}

func (o *PointLikeObj) GetPoint() orb.Point {
	return o.p
}
func (o *PointLikeObj) SetPoint(p orb.Point) {
	o.p = p
}

type RectLikeObj struct {
	b orb.Bound
}

func (o *RectLikeObj) GetBound() orb.Bound {
	return o.b
}
func (o *RectLikeObj) SetBound(b orb.Bound) {
	o.b = b
}

var floor = orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1000, 700}}

func bound(x1, y1, x2, y2 float64) orb.Bound {
	return orb.Bound{Min: orb.Point{x1, y1}, Max: orb.Point{x2, y2}}
}

func randomPoint(r *rand.Rand) orb.Point {
	return orb.Point{r.Float64() * 1000, r.Float64() * 700}
}

func TestAddPoint(t *testing.T) {
	q := NewQuad(floor, 6)
	o := &PointLikeObj{orb.Point{100, 100}}
	q.AddPoint(o)

	all := q.GetPointsIn(floor)
	if len(all) != 1 || all[0] != o {
		t.Errorf("there should be one result, there's %d", len(all))
	}
	if len(q.GetPointsIn(bound(90, 90, 110, 110))) != 1 {
		t.Error("the point should be found in a small bound")
	}
	if len(q.GetPointsIn(bound(200, 200, 300, 300))) != 0 {
		t.Error("there should be zero result")
	}
	if q.CountPoints() != 1 {
		t.Error("count should be 1")
	}
}

func TestSplitKeepsPoints(t *testing.T) {
	q := NewQuad(floor, 6)
	r := rand.New(rand.NewSource(1))
	objs := []*PointLikeObj{}
	for i := 0; i < 500; i++ {
		o := &PointLikeObj{randomPoint(r)}
		objs = append(objs, o)
		q.AddPoint(o)
	}
	if q.root.sub == nil {
		t.Fatal("the root should have been split")
	}
	if len(q.GetPointsIn(floor)) != 500 {
		t.Error("all points should be found")
	}

	query := bound(100, 100, 400, 300)
	expected := 0
	for _, o := range objs {
		if query.Contains(o.p) {
			expected++
		}
	}
	if got := len(q.GetPointsIn(query)); got != expected {
		t.Errorf("expected %d points, got %d", expected, got)
	}
}

func TestMoveAndRemovePoint(t *testing.T) {
	q := NewQuad(floor, 6)
	r := rand.New(rand.NewSource(2))
	objs := []*PointLikeObj{}
	for i := 0; i < 100; i++ {
		o := &PointLikeObj{randomPoint(r)}
		objs = append(objs, o)
		q.AddPoint(o)
	}
	for _, o := range objs {
		q.MovePoint(o, randomPoint(r))
	}
	if len(q.GetPointsIn(floor)) != 100 {
		t.Error("moving shouldn't lose points")
	}
	for _, o := range objs {
		if !q.RemovePoint(o) {
			t.Fatal("point should be found at its new position")
		}
	}
	if q.CountPoints() != 0 || len(q.GetPointsIn(floor)) != 0 {
		t.Error("tree should be empty")
	}
}

func TestRectsWithPoint(t *testing.T) {
	q := NewQuad(floor, 6)
	large := &RectLikeObj{bound(0, 0, 900, 600)}
	small := &RectLikeObj{bound(100, 100, 140, 140)}
	other := &RectLikeObj{bound(600, 400, 640, 440)}
	q.AddRect(large)
	q.AddRect(small)
	q.AddRect(other)

	res := q.GetRectsWithPoint(orb.Point{120, 120}, AcceptAll)
	if res.Cardinality() != 2 || !res.Contains(large) || !res.Contains(small) {
		t.Errorf("expected large and small, got %v", res)
	}

	onlySmall := q.GetRectsWithPoint(orb.Point{120, 120}, func(r RectLike) bool {
		return r.(*RectLikeObj) != large
	})
	if onlySmall.Cardinality() != 1 || !onlySmall.Contains(small) {
		t.Error("the acceptor should filter rects")
	}

	if q.GetRectsWithPoint(orb.Point{950, 650}, nil).Cardinality() != 0 {
		t.Error("nothing covers this point")
	}
}

func TestRectsIntersecting(t *testing.T) {
	q := NewQuad(floor, 6)
	r := rand.New(rand.NewSource(5))
	for i := 0; i < 40; i++ {
		p := randomPoint(r)
		q.AddRect(&RectLikeObj{bound(p[0], p[1], p[0]+5, p[1]+5)})
	}
	// covers only the left part of the rack
	partial := &RectLikeObj{bound(0, 0, 110, 110)}
	far := &RectLikeObj{bound(800, 500, 900, 600)}
	q.AddRect(partial)
	q.AddRect(far)

	rack := bound(100, 100, 140, 140)
	if q.GetRectsWithPoint(rack.Center(), func(each RectLike) bool { return each == partial }).Cardinality() != 0 {
		t.Fatal("the rack center is outside partial")
	}
	only := func(each RectLike) bool { return each == partial || each == far }
	res := q.GetRectsIntersecting(rack, only)
	if res.Cardinality() != 1 || !res.Contains(partial) {
		t.Errorf("expected partial only, got %v", res)
	}
	if !q.GetRectsIntersecting(bound(900, 600, 950, 650), only).Contains(far) {
		t.Error("touching borders count as intersecting")
	}
}

func TestRectOnSplitLine(t *testing.T) {
	q := NewQuad(floor, 6)
	r := rand.New(rand.NewSource(3))
	for i := 0; i < 50; i++ {
		p := randomPoint(r)
		q.AddRect(&RectLikeObj{bound(p[0], p[1], p[0]+5, p[1]+5)})
	}
	// straddles the center of the floor
	center := &RectLikeObj{bound(490, 340, 510, 360)}
	q.AddRect(center)
	if !q.GetRectsWithPoint(orb.Point{500, 350}, AcceptAll).Contains(center) {
		t.Error("rect over the split lines should be found")
	}
	if !q.GetRectsWithPoint(orb.Point{495, 345}, AcceptAll).Contains(center) {
		t.Error("rect over the split lines should be found from any quadrant")
	}
}

func TestMoveRemoveRect(t *testing.T) {
	q := NewQuad(floor, 6)
	o := &RectLikeObj{bound(100, 100, 140, 140)}
	q.AddRect(o)
	q.MoveRect(o, bound(700, 500, 740, 540))

	if q.GetRectsWithPoint(orb.Point{120, 120}, AcceptAll).Cardinality() != 0 {
		t.Error("rect should have left its old place")
	}
	if !q.GetRectsWithPoint(orb.Point{720, 520}, AcceptAll).Contains(o) {
		t.Error("rect should be at its new place")
	}
	if !q.RemoveRect(o) || q.CountRects() != 0 {
		t.Error("rect should be removed")
	}
	if q.RemoveRect(o) {
		t.Error("removing twice should fail")
	}
}
