package geom

import (
	"github.com/paulmach/orb"
)

// Rect is an axis aligned box, (X,Y) being its top-left corner
// in floor coordinates (y grows downwards)
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NewRect creates a Rect
func NewRect(x, y, w, h float64) Rect {
	return Rect{X: x, Y: y, Width: w, Height: h}
}

// IsValid is true for rects with a positive area
func (r Rect) IsValid() bool {
	return r.Width > 0 && r.Height > 0
}

// Bound converts the rect to an orb.Bound
func (r Rect) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{r.X, r.Y},
		Max: orb.Point{r.X + r.Width, r.Y + r.Height},
	}
}

// Contains tells if p lies inside the rect or on its border
func (r Rect) Contains(p orb.Point) bool {
	return r.Bound().Contains(p)
}

// Edges returns the four borders, clockwise from the top-left corner
func (r Rect) Edges() [4][2]orb.Point {
	tl := orb.Point{r.X, r.Y}
	tr := orb.Point{r.X + r.Width, r.Y}
	br := orb.Point{r.X + r.Width, r.Y + r.Height}
	bl := orb.Point{r.X, r.Y + r.Height}
	return [4][2]orb.Point{{tl, tr}, {tr, br}, {br, bl}, {bl, tl}}
}

// MoveTo returns a copy of the rect with its corner at (x,y), kept within floor
func (r Rect) MoveTo(x, y float64, floor Rect) Rect {
	r.X = clamp(x, floor.X, floor.X+floor.Width-r.Width)
	r.Y = clamp(y, floor.Y, floor.Y+floor.Height-r.Height)
	return r
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Obstacle is a rack on the floor
type Obstacle struct {
	ID string `json:"id"`
	Rect
	Dragging bool `json:"dragging,omitempty"`
}

// NoGoZone is a region routes must avoid while it's active
type NoGoZone struct {
	Rect
	Active bool `json:"active"`
}

// Environment is the static geometry a planning call works against.
// It's a snapshot: callers pass it on each call, it's never retained.
type Environment struct {
	Obstacles []Obstacle `json:"obstacles"`
	Zone      NoGoZone   `json:"noGoZone"`
}

// Clone deep-copies the obstacle slice
func (e Environment) Clone() Environment {
	obstacles := make([]Obstacle, len(e.Obstacles))
	copy(obstacles, e.Obstacles)
	return Environment{Obstacles: obstacles, Zone: e.Zone}
}

// IsClear checks a leg against the environment
func (e Environment) IsClear(p1, p2 orb.Point) bool {
	return PathIsClear(p1, p2, e.Obstacles, e.Zone)
}
