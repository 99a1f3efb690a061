package geom

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Epsilon is the determinant magnitude under which two segments are
// treated as parallel (and therefore not intersecting)
var Epsilon = 1e-4

// Pt is a shorthand for building an orb.Point
func Pt(x, y float64) orb.Point {
	return orb.Point{x, y}
}

// Distance returns the euclidean distance between two points
func Distance(a, b orb.Point) float64 {
	return planar.Distance(a, b)
}

// Midpoint returns the middle of segment a-b
func Midpoint(a, b orb.Point) orb.Point {
	return orb.Point{(a[0] + b[0]) / 2, (a[1] + b[1]) / 2}
}

// SegmentsIntersect tells if segments p1-p2 and p3-p4 cross or touch.
// Near-parallel and degenerate segments never intersect.
func SegmentsIntersect(p1, p2, p3, p4 orb.Point) bool {
	denom := (p1[0]-p2[0])*(p3[1]-p4[1]) - (p1[1]-p2[1])*(p3[0]-p4[0])
	if math.Abs(denom) < Epsilon {
		return false
	}

	t := ((p1[0]-p3[0])*(p3[1]-p4[1]) - (p1[1]-p3[1])*(p3[0]-p4[0])) / denom
	u := -((p1[0]-p2[0])*(p1[1]-p3[1]) - (p1[1]-p2[1])*(p1[0]-p3[0])) / denom

	return t >= 0 && t <= 1 && u >= 0 && u <= 1
}

// SegmentIntersectsRect is true when the segment crosses one of the four
// edges of the rect. A segment lying entirely inside the rect doesn't count.
func SegmentIntersectsRect(p1, p2 orb.Point, r Rect) bool {
	for _, edge := range r.Edges() {
		if SegmentsIntersect(p1, p2, edge[0], edge[1]) {
			return true
		}
	}
	return false
}

// PathIsClear checks a straight leg against every obstacle and the no-go zone
func PathIsClear(p1, p2 orb.Point, obstacles []Obstacle, zone NoGoZone) bool {
	for _, o := range obstacles {
		if SegmentIntersectsRect(p1, p2, o.Rect) {
			return false
		}
	}
	if zone.Active && SegmentIntersectsRect(p1, p2, zone.Rect) {
		return false
	}
	return true
}

// SegmentMidpointDistance approximates how close two segments run by the
// distance between their midpoints
func SegmentMidpointDistance(a1, a2, b1, b2 orb.Point) float64 {
	return Distance(Midpoint(a1, a2), Midpoint(b1, b2))
}
