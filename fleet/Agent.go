package fleet

import (
	"fmt"

	"choreographer.io/FlowServer/geom"
	"choreographer.io/FlowServer/plan"
	"github.com/paulmach/orb"
	log "github.com/sirupsen/logrus"
)

// State of an agent's motion
type State int

// Reached is terminal
const (
	Traveling State = iota
	Avoiding
	Reached
)

func (s State) String() string {
	switch s {
	case Traveling:
		return "traveling"
	case Avoiding:
		return "avoiding"
	case Reached:
		return "reached"
	}
	return "unknown"
}

// MarshalText encodes the state by name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name
func (s *State) UnmarshalText(text []byte) error {
	for _, each := range []State{Traveling, Avoiding, Reached} {
		if each.String() == string(text) {
			*s = each
			return nil
		}
	}
	return fmt.Errorf("unknown agent state %q", text)
}

// Mission is a pickup to dropoff assignment
type Mission struct {
	Start orb.Point `json:"start"`
	End   orb.Point `json:"end"`
}

// Neighbor is what an agent knows about another agent during a tick
type Neighbor struct {
	ID       int
	Position orb.Point
	Radius   float64
}

// TickResult reports what happened to an agent during one update
type TickResult struct {
	AvoidanceEntered  bool
	AvoidanceExited   bool
	DeviationOccurred bool
	Reached           bool
	Moved             float64
}

// Agent is a robot moving along its planned route
type Agent struct {
	id      int
	mission Mission

	position orb.Point
	original geom.Route
	current  geom.Route
	index    int // next unvisited waypoint of current
	traveled []orb.Point
	distance float64

	state          State
	avoidanceSince int
	hasDeviated    bool

	kin    Kinematics
	angles AngleSource
}

// NewAgent creates an agent at its mission start and plans its route
// against the original routes of existing agents
func NewAgent(id int, mission Mission, kin Kinematics, angles AngleSource, planner *plan.Planner, env geom.Environment, existing []*Agent) *Agent {
	a := &Agent{
		id:       id,
		mission:  mission,
		position: mission.Start,
		traveled: []orb.Point{mission.Start},
		kin:      kin,
		angles:   angles,
	}
	a.original = planner.Plan(mission.Start, mission.End, env, OriginalRoutes(existing, id))
	a.current = a.original
	return a
}

// OriginalRoutes collects the original routes of agents, skipping agent id
func OriginalRoutes(agents []*Agent, id int) []geom.Route {
	res := make([]geom.Route, 0, len(agents))
	for _, other := range agents {
		if other.id == id {
			continue
		}
		res = append(res, other.original)
	}
	return res
}

// Snapshot captures the positions of agents for a proximity check
func Snapshot(agents []*Agent) []Neighbor {
	res := make([]Neighbor, len(agents))
	for i, a := range agents {
		res[i] = Neighbor{ID: a.id, Position: a.position, Radius: a.kin.Radius}
	}
	return res
}

// ID returns the agent id
func (a *Agent) ID() int { return a.id }

// Mission returns the agent's mission
func (a *Agent) Mission() Mission { return a.mission }

// Position returns the current position
func (a *Agent) Position() orb.Point { return a.position }

// OriginalRoute is the route from the last full planning
func (a *Agent) OriginalRoute() geom.Route { return a.original }

// CurrentRoute is the route being followed, possibly a detour
func (a *Agent) CurrentRoute() geom.Route { return a.current }

// PathIndex is the next unvisited waypoint of the current route
func (a *Agent) PathIndex() int { return a.index }

// Traveled returns a copy of the positions visited so far
func (a *Agent) Traveled() []orb.Point {
	res := make([]orb.Point, len(a.traveled))
	copy(res, a.traveled)
	return res
}

// DistanceTraveled is the cumulated length of every move
func (a *Agent) DistanceTraveled() float64 { return a.distance }

// ReachedDestination is true once the route has been completed
func (a *Agent) ReachedDestination() bool { return a.state == Reached }

// IsAvoiding tells if an avoidance episode is running
func (a *Agent) IsAvoiding() bool { return a.state == Avoiding }

// HasDeviated is true after the first avoidance since the last planning
func (a *Agent) HasDeviated() bool { return a.hasDeviated }

// State returns the motion state
func (a *Agent) State() State { return a.state }

// Radius returns the body radius
func (a *Agent) Radius() float64 { return a.kin.Radius }

// Speed is the speed used for the next move
func (a *Agent) Speed() float64 {
	if a.state == Avoiding {
		return a.kin.AvoidSpeed
	}
	return a.kin.CruiseSpeed
}

// Update advances the agent by one tick. neighbors is the roster snapshot
// taken at the beginning of the tick and may contain the agent itself.
func (a *Agent) Update(tick int, neighbors []Neighbor) TickResult {
	res := TickResult{}
	if a.state == Reached || a.current.IsEmpty() {
		return res
	}

	needed := a.needsAvoidance(neighbors)
	if needed && a.state != Avoiding {
		a.state = Avoiding
		a.avoidanceSince = tick
		res.AvoidanceEntered = true
		res.DeviationOccurred = a.startDetour()
		log.Debugf("agent %d: avoidance started at tick %d", a.id, tick)
	} else if !needed && a.state == Avoiding {
		a.state = Traveling
		a.rejoinOriginal()
		res.AvoidanceExited = true
		log.Debugf("agent %d: avoidance ended after %d ticks", a.id, tick-a.avoidanceSince)
	}

	// waypoints we're already standing on don't cost a tick
	for a.index < a.current.Len() && a.current.At(a.index) == a.position {
		a.index++
	}
	if a.index >= a.current.Len() {
		a.state = Reached
		res.Reached = true
		return res
	}

	speed := a.Speed()
	target := a.current.At(a.index)
	remaining := geom.Distance(a.position, target)

	if remaining <= speed {
		a.position = target
		a.index++
		res.Moved = remaining
	} else {
		ratio := speed / remaining
		a.position = orb.Point{
			a.position[0] + (target[0]-a.position[0])*ratio,
			a.position[1] + (target[1]-a.position[1])*ratio,
		}
		res.Moved = speed
	}
	a.distance += res.Moved
	a.traveled = append(a.traveled, a.position)

	if a.index >= a.current.Len() {
		a.state = Reached
		res.Reached = true
		log.Debugf("agent %d: destination reached, %.1f traveled", a.id, a.distance)
	}
	return res
}

func (a *Agent) needsAvoidance(neighbors []Neighbor) bool {
	for _, n := range neighbors {
		if n.ID == a.id {
			continue
		}
		if geom.Distance(a.position, n.Position) < a.kin.Radius+n.Radius+a.kin.SafetyMargin {
			return true
		}
	}
	return false
}

// Recalculate plans again from the current position to the mission end.
// It doesn't look at the agent state: a finished agent gets a route it won't follow.
func (a *Agent) Recalculate(planner *plan.Planner, env geom.Environment, others []geom.Route) {
	a.original = planner.Plan(a.position, a.mission.End, env, others)
	a.current = a.original
	a.index = 0
	a.hasDeviated = false
}
