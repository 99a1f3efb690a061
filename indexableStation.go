package main

import "github.com/paulmach/orb"

// StationKind tells pickups from dropoffs
type StationKind string

// Station kinds
const (
	Pickup  StationKind = "pickup"
	Dropoff StationKind = "dropoff"
)

// Station is a pickup or dropoff point
type Station struct {
	ID   string
	Kind StationKind

	point orb.Point
}

// GetPoint gets our position for quads
func (s *Station) GetPoint() orb.Point {
	return s.point
}

// SetPoint sets our position for quads
func (s *Station) SetPoint(p orb.Point) {
	s.point = p
}
