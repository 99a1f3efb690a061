package geom

import (
	"encoding/json"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Route is an ordered list of waypoints. A Route is never modified once
// built: every operation returning a Route allocates a new one.
type Route struct {
	points orb.LineString
}

// NewRoute builds a route from a copy of points
func NewRoute(points ...orb.Point) Route {
	ls := make(orb.LineString, len(points))
	copy(ls, points)
	return Route{points: ls}
}

// Len is the number of waypoints
func (r Route) Len() int {
	return len(r.points)
}

// IsEmpty is true for a route without waypoints
func (r Route) IsEmpty() bool {
	return len(r.points) == 0
}

// At returns waypoint i
func (r Route) At(i int) orb.Point {
	return r.points[i]
}

// First returns the first waypoint. The route must not be empty.
func (r Route) First() orb.Point {
	return r.points[0]
}

// Last returns the last waypoint. The route must not be empty.
func (r Route) Last() orb.Point {
	return r.points[len(r.points)-1]
}

// Points returns a copy of the waypoints
func (r Route) Points() []orb.Point {
	res := make([]orb.Point, len(r.points))
	copy(res, r.points)
	return res
}

// LineString returns a copy of the route as an orb geometry
func (r Route) LineString() orb.LineString {
	return orb.LineString(r.Points())
}

// From returns the tail of the route starting at waypoint i.
// Out of range indexes are clamped, so From(Len()) is empty.
func (r Route) From(i int) Route {
	if i < 0 {
		i = 0
	}
	if i > len(r.points) {
		i = len(r.points)
	}
	return NewRoute(r.points[i:]...)
}

// Prepend returns a new route made of head followed by r
func (r Route) Prepend(head ...orb.Point) Route {
	ls := make(orb.LineString, 0, len(head)+len(r.points))
	ls = append(ls, head...)
	ls = append(ls, r.points...)
	return Route{points: ls}
}

// Length is the sum of the distances between consecutive waypoints
func (r Route) Length() float64 {
	if len(r.points) < 2 {
		return 0
	}
	return planar.Length(r.points)
}

// Segments calls fn for each leg of the route
func (r Route) Segments(fn func(a, b orb.Point)) {
	for i := 0; i+1 < len(r.points); i++ {
		fn(r.points[i], r.points[i+1])
	}
}

// Equal compares waypoints exactly
func (r Route) Equal(o Route) bool {
	return r.points.Equal(o.points)
}

// Nearest returns the index of the waypoint closest to p, the first one on ties.
// It returns -1 for an empty route.
func (r Route) Nearest(p orb.Point) int {
	closest := -1
	minDistance := 0.0
	for i, wp := range r.points {
		d := Distance(p, wp)
		if closest == -1 || d < minDistance {
			minDistance = d
			closest = i
		}
	}
	return closest
}

// MarshalJSON encodes the route as a list of [x,y] pairs
func (r Route) MarshalJSON() ([]byte, error) {
	if r.points == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]orb.Point(r.points))
}

// UnmarshalJSON decodes a list of [x,y] pairs
func (r *Route) UnmarshalJSON(data []byte) error {
	var points []orb.Point
	if err := json.Unmarshal(data, &points); err != nil {
		return err
	}
	*r = NewRoute(points...)
	return nil
}
