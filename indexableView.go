package main

import "github.com/paulmach/orb"

// View is a websocket client watching a window of the floor
type View struct {
	id     string
	ws     *wsConn
	bound  orb.Bound
	placed bool
}

// GetBound gets our position for quads
func (v *View) GetBound() orb.Bound {
	return v.bound
}

// SetBound sets our position for quads
func (v *View) SetBound(b orb.Bound) {
	v.bound = b
}
