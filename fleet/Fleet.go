package fleet

import (
	"errors"
	"math"

	"choreographer.io/FlowServer/geom"
	"choreographer.io/FlowServer/plan"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrFleetFull is returned when adding more agents than MaxAgents
	ErrFleetFull = errors.New("fleet is full")
	// ErrDuplicateAgent is returned when an agent id is already used
	ErrDuplicateAgent = errors.New("agent id already exists")
	// ErrAgentNotFound is returned for unknown agent ids
	ErrAgentNotFound = errors.New("agent doesn't exist")
)

// Stats are the fleet wide counters and aggregates
type Stats struct {
	Agents        int     `json:"agents"`
	Ticks         int     `json:"ticks"`
	Avoidances    int     `json:"avoidances"`
	Deviations    int     `json:"deviations"`
	Avoiding      int     `json:"avoiding"`
	Reached       int     `json:"reached"`
	TotalDistance float64 `json:"totalDistance"`
	Efficiency    float64 `json:"efficiency"`
}

// TickReport sums up one fleet tick
type TickReport struct {
	Tick    int
	Results map[int]TickResult
	// NewlyReached lists agents which reached their destination during this tick
	NewlyReached []int
	// Done is true when every agent has reached its destination
	Done bool
}

// Fleet owns the agents and runs them tick after tick.
// It's not safe for concurrent use.
type Fleet struct {
	Planner    *plan.Planner
	Kinematics Kinematics
	MaxAgents  int

	agents []*Agent
	angles AngleSource
	nextID int
	tick   int

	avoidances int
	deviations int
}

// New creates an empty fleet
func New(planner *plan.Planner, kin Kinematics, angles AngleSource) *Fleet {
	return &Fleet{
		Planner:    planner,
		Kinematics: kin,
		MaxAgents:  DefaultMaxAgents,
		angles:     angles,
		nextID:     1,
	}
}

// Add creates an agent with the next free id
func (f *Fleet) Add(mission Mission, env geom.Environment) (*Agent, error) {
	for f.indexOf(f.nextID) != -1 {
		f.nextID++
	}
	return f.CreateAgent(f.nextID, mission, env)
}

// CreateAgent adds an agent with an explicit id, planned against the
// routes of the agents already in the fleet
func (f *Fleet) CreateAgent(id int, mission Mission, env geom.Environment) (*Agent, error) {
	if f.MaxAgents > 0 && len(f.agents) >= f.MaxAgents {
		return nil, ErrFleetFull
	}
	if f.indexOf(id) != -1 {
		return nil, ErrDuplicateAgent
	}
	a := NewAgent(id, mission, f.Kinematics, f.angles, f.Planner, env, f.agents)
	f.agents = append(f.agents, a)
	if id >= f.nextID {
		f.nextID = id + 1
	}
	log.Debugf("fleet: agent %d added, route of %d waypoints", id, a.original.Len())
	return a, nil
}

func (f *Fleet) indexOf(id int) int {
	for i, a := range f.agents {
		if a.id == id {
			return i
		}
	}
	return -1
}

// Get returns an agent by id
func (f *Fleet) Get(id int) (*Agent, error) {
	i := f.indexOf(id)
	if i == -1 {
		return nil, ErrAgentNotFound
	}
	return f.agents[i], nil
}

// Agents returns the agents in insertion order
func (f *Fleet) Agents() []*Agent {
	res := make([]*Agent, len(f.agents))
	copy(res, f.agents)
	return res
}

// Len is the number of agents
func (f *Fleet) Len() int {
	return len(f.agents)
}

// CurrentTick is the number of ticks run since the last reset
func (f *Fleet) CurrentTick() int {
	return f.tick
}

// Tick updates every agent once, in insertion order. Every agent sees the
// positions the roster had at the beginning of the tick.
func (f *Fleet) Tick() TickReport {
	f.tick++
	snapshot := Snapshot(f.agents)
	report := TickReport{Tick: f.tick, Results: make(map[int]TickResult, len(f.agents))}

	for _, a := range f.agents {
		res := a.Update(f.tick, snapshot)
		f.record(res)
		if res.Reached {
			report.NewlyReached = append(report.NewlyReached, a.id)
		}
		report.Results[a.id] = res
	}
	report.Done = f.Done()
	return report
}

// TickAgent updates a single agent against the current roster
func (f *Fleet) TickAgent(a *Agent) TickResult {
	res := a.Update(f.tick, Snapshot(f.agents))
	f.record(res)
	return res
}

func (f *Fleet) record(res TickResult) {
	if res.AvoidanceEntered {
		f.avoidances++
	}
	if res.DeviationOccurred {
		f.deviations++
	}
}

// Recalculate plans every agent again, in insertion order. Each agent
// sees the routes of the others as they are at the time of its own replanning.
func (f *Fleet) Recalculate(env geom.Environment) {
	for _, a := range f.agents {
		f.RecalculateAgent(a, env)
	}
}

// RecalculateAgent plans one agent again from where it stands
func (f *Fleet) RecalculateAgent(a *Agent, env geom.Environment) {
	a.Recalculate(f.Planner, env, OriginalRoutes(f.agents, a.id))
}

// Done is true when the fleet isn't empty and every agent has arrived
func (f *Fleet) Done() bool {
	if len(f.agents) == 0 {
		return false
	}
	for _, a := range f.agents {
		if !a.ReachedDestination() {
			return false
		}
	}
	return true
}

// Reset drops every agent and counter
func (f *Fleet) Reset() {
	f.agents = nil
	f.nextID = 1
	f.tick = 0
	f.avoidances = 0
	f.deviations = 0
}

// Stats computes the fleet aggregates
func (f *Fleet) Stats() Stats {
	s := Stats{
		Agents:     len(f.agents),
		Ticks:      f.tick,
		Avoidances: f.avoidances,
		Deviations: f.deviations,
	}
	for _, a := range f.agents {
		s.TotalDistance += a.distance
		if a.IsAvoiding() {
			s.Avoiding++
		}
		if a.ReachedDestination() {
			s.Reached++
		}
	}
	s.Efficiency = math.Max(0, 100-float64(s.Avoiding)/math.Max(float64(s.Agents), 1)*60)
	return s
}
