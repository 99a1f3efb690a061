package main

import (
	"fmt"
	"math/rand"

	"choreographer.io/FlowServer/fleet"
	"choreographer.io/FlowServer/geom"
	"github.com/paulmach/orb"
)

var (
	// Floor is the warehouse floor, every position lives inside it
	Floor = geom.NewRect(0, 0, 1000, 700)

	// RackSize is the side of a default rack
	RackSize = 40.0
	// RackSpacing is the distance between two default racks
	RackSpacing = 60.0
	// RackColumns is the number of racks in a row of the default layout
	RackColumns = 5
	// RackCount is the number of racks in the default layout
	RackCount = 20

	// DefaultZone is the no-go zone of the default layout
	DefaultZone = geom.NoGoZone{Rect: geom.NewRect(400, 200, 100, 100), Active: true}

	// PickupCount is the number of pickup stations
	PickupCount = 15
)

// DefaultRacks returns the racks of the default shelving grid
func DefaultRacks() []geom.Obstacle {
	racks := make([]geom.Obstacle, 0, RackCount)
	for i := 0; i < RackCount; i++ {
		row := i / RackColumns
		col := i % RackColumns
		racks = append(racks, geom.Obstacle{
			ID:   fmt.Sprintf("obstacle_%d", i),
			Rect: geom.NewRect(100+float64(col)*RackSpacing, 100+float64(row)*RackSpacing, RackSize, RackSize),
		})
	}
	return racks
}

// DefaultPickups spreads pickup stations over a 3 columns grid with some jitter
func DefaultPickups(rng *rand.Rand) []orb.Point {
	points := make([]orb.Point, 0, PickupCount)
	for i := 0; i < PickupCount; i++ {
		points = append(points, orb.Point{
			50 + float64(i%3)*300 + rng.Float64()*50,
			50 + float64(i/3)*150 + rng.Float64()*50,
		})
	}
	return points
}

// DefaultDropoffs are clustered on the right side of the floor
func DefaultDropoffs() []orb.Point {
	return []orb.Point{{750, 100}, {750, 300}, {750, 500}}
}

// RandomMission picks a pickup and a dropoff
func RandomMission(rng *rand.Rand, pickups, dropoffs []orb.Point) fleet.Mission {
	return fleet.Mission{
		Start: pickups[rng.Intn(len(pickups))],
		End:   dropoffs[rng.Intn(len(dropoffs))],
	}
}
