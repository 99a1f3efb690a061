package fleet

import (
	"math"
	"math/rand"

	"choreographer.io/FlowServer/geom"
	"github.com/paulmach/orb"
)

// AngleSource provides uniform numbers in [0,1) for the detour direction.
// *rand.Rand satisfies it.
type AngleSource interface {
	Float64() float64
}

// NewAngleSource returns a seeded source
func NewAngleSource(seed int64) AngleSource {
	return rand.New(rand.NewSource(seed))
}

// FixedAngle always returns the same fraction of a full turn
type FixedAngle float64

// Float64 implements AngleSource
func (f FixedAngle) Float64() float64 {
	return float64(f)
}

// startDetour replaces the current route with a local nudge that rejoins the
// original route further away. The detour is not checked against obstacles.
// It returns true the first time the agent deviates since it was planned.
func (a *Agent) startDetour() bool {
	first := !a.hasDeviated
	a.hasDeviated = true

	p := a.position
	angle := a.angles.Float64() * 2 * math.Pi
	nudge := orb.Point{
		p[0] + math.Cos(angle)*a.kin.DetourOffset,
		p[1] + math.Sin(angle)*a.kin.DetourOffset,
	}

	rejoin := a.index
	for i := a.index; i < a.original.Len(); i++ {
		if geom.Distance(p, a.original.At(i)) > a.kin.RejoinDistance {
			rejoin = i
			break
		}
	}

	a.current = a.original.From(rejoin).Prepend(p, nudge)
	a.index = 0
	return first
}

// rejoinOriginal continues on the original route from its waypoint
// nearest to the current position
func (a *Agent) rejoinOriginal() {
	closest := a.original.Nearest(a.position)
	if closest < 0 {
		closest = 0
	}
	a.current = a.original.From(closest)
	a.index = 0
}
