package main

import (
	"choreographer.io/FlowServer/geom"
	"github.com/paulmach/orb"
)

// Obstacle is a rack as stored in the quad
type Obstacle struct {
	geom.Obstacle
	// index keeps the layout order, planning depends on it
	index int
}

// GetBound returns the position of the rack for quads
func (o *Obstacle) GetBound() orb.Bound {
	return o.Rect.Bound()
}

// SetBound sets the position of the rack for quads
func (o *Obstacle) SetBound(b orb.Bound) {
	o.X, o.Y = b.Min[0], b.Min[1]
	o.Width, o.Height = b.Max[0]-b.Min[0], b.Max[1]-b.Min[1]
}
