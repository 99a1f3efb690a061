package main

import (
	"errors"
	"expvar"
	"fmt"
	"math/rand"
	"net/http"
	"sort"
	"sync"
	"time"

	"choreographer.io/FlowServer/fleet"
	"choreographer.io/FlowServer/geom"
	"choreographer.io/FlowServer/plan"
	"choreographer.io/FlowServer/quad"
	set "github.com/deckarep/golang-set"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var (
	// ErrObstacleNotFound is returned when an obstacle can't be found
	ErrObstacleNotFound = errors.New("Obstacle doesn't exist")
	// ErrInvalidMission is returned for missions leaving the floor
	ErrInvalidMission = errors.New("Mission must start and end on the floor")
	// ErrInvalidTransition is returned when the simulation can't go to the requested state
	ErrInvalidTransition = errors.New("Invalid simulation state transition")

	numAgents     = expvar.NewInt("num_agent")
	numObstacles  = expvar.NewInt("num_obstacle")
	numViews      = expvar.NewInt("num_view")
	numAvoidances = expvar.NewInt("num_avoidance")
	numDeviations = expvar.NewInt("num_deviation")
	numTicks      = expvar.NewInt("num_tick")
)

// Persister is the interface you should implement to provide persistence to a Simulation
type Persister interface {
	readLayoutInto(sim *Simulation) error
	persistObstacle(o *Obstacle) error
	persistZone(zone geom.NoGoZone) error
	persistTelemetry(record *TelemetryRecord) error
	readTelemetry() ([]TelemetryRecord, error)
	persistRun(run *RunSummary) error
	close()
	BackupHandleFunc(w http.ResponseWriter, req *http.Request)
	JSONDumpHandleFunc(w http.ResponseWriter, req *http.Request)
}

// SimState is the lifecycle state of the simulation
type SimState int

// Stopped is the initial state, and the state after completion or reset
const (
	Stopped SimState = iota
	Running
	Paused
)

func (s SimState) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	case Paused:
		return "paused"
	}
	return "unknown"
}

// MarshalText encodes the state by name
func (s SimState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name
func (s *SimState) UnmarshalText(text []byte) error {
	for _, each := range []SimState{Stopped, Running, Paused} {
		if each.String() == string(text) {
			*s = each
			return nil
		}
	}
	return fmt.Errorf("unknown simulation state %q", text)
}

// SimulationConfig holds the tuning of a Simulation
type SimulationConfig struct {
	Interval   time.Duration
	Seed       int64 // 0 picks a seed from the clock
	Params     plan.Params
	Kinematics fleet.Kinematics
	MaxAgents  int
	QuadDepth  int
}

// DefaultSimulationConfig runs at about 60 ticks per second
func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		Interval:   16 * time.Millisecond,
		Params:     plan.DefaultParams(),
		Kinematics: fleet.DefaultKinematics(),
		MaxAgents:  fleet.DefaultMaxAgents,
		QuadDepth:  6,
	}
}

// AgentMove is an agent that moved or changed state during a step
type AgentMove struct {
	From    orb.Point
	Message AgentMoveMessage
}

// FleetEvent is something worth telling the outside world about
type FleetEvent struct {
	Event   string      `json:"event"`
	AgentID int         `json:"agent_id,omitempty"`
	Tick    int         `json:"tick"`
	Pos     *orb.Point  `json:"pos,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// StepResult is what changed during one step
type StepResult struct {
	Run    string
	Tick   int
	Moves  []AgentMove
	Events []FleetEvent
	// Done is true when the step completed the run
	Done bool
}

// Simulation runs a fleet on the warehouse floor and keeps the spatial
// index used by viewers. Every access to the fleet holds the lock.
type Simulation struct {
	fleet     *fleet.Fleet
	obstacles []*Obstacle
	byID      map[string]*Obstacle
	zone      geom.NoGoZone
	hasZone   bool
	pickups   []orb.Point
	dropoffs  []orb.Point
	stations  []*Station
	agents    map[int]*Agent
	v         map[string]*View
	persister Persister
	rng       *rand.Rand

	state        SimState
	interval     time.Duration
	quit         chan struct{}
	runID        uuid.UUID
	runningSince time.Time
	elapsed      time.Duration

	// OnStep is called after every step, outside of the lock
	OnStep func(StepResult)

	tree *quad.Quad
	sync.RWMutex
}

// NewSimulation creates a stopped simulation. The layout is read from
// the persister, the default racks are used when nothing was saved.
func NewSimulation(pers Persister, cfg SimulationConfig) *Simulation {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	s := &Simulation{
		byID:      make(map[string]*Obstacle),
		agents:    make(map[int]*Agent),
		v:         make(map[string]*View),
		persister: pers,
		rng:       rand.New(rand.NewSource(seed)),
		interval:  cfg.Interval,
		runID:     uuid.New(),
		tree:      quad.NewQuad(Floor.Bound(), cfg.QuadDepth),
	}
	s.fleet = fleet.New(plan.NewPlanner(cfg.Params), cfg.Kinematics, fleet.NewAngleSource(seed))
	s.fleet.MaxAgents = cfg.MaxAgents

	if err := pers.readLayoutInto(s); err != nil {
		log.Error("Can't read layout: ", err)
	}
	if len(s.obstacles) == 0 {
		log.Info("No saved layout, using the default racks")
		for i, o := range DefaultRacks() {
			if err := pers.persistObstacle(s._loadObstacle(o, i)); err != nil {
				log.Error("Can't persist default rack ", o.ID, ": ", err)
			}
		}
	}
	if !s.hasZone {
		s._loadZone(DefaultZone)
		if err := pers.persistZone(s.zone); err != nil {
			log.Error("Can't persist default no-go zone: ", err)
		}
	}

	s.pickups = DefaultPickups(s.rng)
	s.dropoffs = DefaultDropoffs()
	for i, p := range s.pickups {
		s.addStation(fmt.Sprintf("pickup_%d", i), Pickup, p)
	}
	for i, p := range s.dropoffs {
		s.addStation(fmt.Sprintf("dropoff_%d", i), Dropoff, p)
	}

	numObstacles.Set(int64(len(s.obstacles)))

	return s
}

func (s *Simulation) addStation(id string, kind StationKind, p orb.Point) {
	st := &Station{ID: id, Kind: kind, point: p}
	s.stations = append(s.stations, st)
	s.tree.AddPoint(st)
}

// _loadObstacle is used to batch load obstacles without checks
func (s *Simulation) _loadObstacle(o geom.Obstacle, index int) *Obstacle {
	s.Lock()
	defer s.Unlock()

	ob := &Obstacle{Obstacle: o, index: index}
	s.obstacles = append(s.obstacles, ob)
	sort.SliceStable(s.obstacles, func(i, j int) bool {
		return s.obstacles[i].index < s.obstacles[j].index
	})
	s.byID[o.ID] = ob
	s.tree.AddRect(ob)
	return ob
}

func (s *Simulation) _loadZone(zone geom.NoGoZone) {
	s.Lock()
	defer s.Unlock()

	s.zone = zone
	s.hasZone = true
}

// environment is a snapshot of the obstacles, in layout order
func (s *Simulation) environment() geom.Environment {
	env := geom.Environment{
		Obstacles: make([]geom.Obstacle, len(s.obstacles)),
		Zone:      s.zone,
	}
	for i, o := range s.obstacles {
		env.Obstacles[i] = o.Obstacle
	}
	return env
}

// Environment returns a copy of the current obstacles and no-go zone
func (s *Simulation) Environment() geom.Environment {
	s.RLock()
	defer s.RUnlock()
	return s.environment()
}

func (s *Simulation) addView(id string, conn *wsConn) (*View, error) {
	s.Lock()
	defer s.Unlock()

	if _, exists := s.v[id]; exists {
		return nil, ErrViewExists
	}
	v := &View{id: id, ws: conn}
	s.v[id] = v
	numViews.Add(1)
	return v, nil
}

func (s *Simulation) removeView(id string) {
	s.Lock()
	defer s.Unlock()

	v, ok := s.v[id]
	if !ok {
		log.Warn("should not remove inexisting view ", id)
		return
	}
	if v.placed {
		s.tree.RemoveRect(v)
	}
	delete(s.v, id)
	numViews.Add(-1)
}

// updateViewPosition returns the previous window of the view, placed is
// false if the view had none
func (s *Simulation) updateViewPosition(id string, b orb.Bound) (previous orb.Bound, placed bool) {
	s.Lock()
	defer s.Unlock()

	v, ok := s.v[id]
	if !ok {
		log.Error("View not found when updating position ", id)
		return orb.Bound{}, false
	}
	if !v.placed {
		v.SetBound(b)
		v.placed = true
		s.tree.AddRect(v)
		return orb.Bound{}, false
	}
	previous = v.GetBound()
	s.tree.MoveRect(v, b)
	return previous, true
}

func (s *Simulation) getPointLikeIn(b orb.Bound) set.Set {
	s.RLock()
	defer s.RUnlock()

	resultset := set.NewThreadUnsafeSet() // no need for thread safety
	for _, each := range s.tree.GetPointsIn(b) {
		resultset.Add(each)
	}
	return resultset
}

func (s *Simulation) getViewsWithPoint(p orb.Point) set.Set {
	s.RLock()
	defer s.RUnlock()

	return s.tree.GetRectsWithPoint(p, func(each quad.RectLike) bool {
		_, ok := each.(*View)
		return ok
	})
}

// getViewsIntersecting returns the views overlapping b, even partly
func (s *Simulation) getViewsIntersecting(b orb.Bound) set.Set {
	s.RLock()
	defer s.RUnlock()

	return s.tree.GetRectsIntersecting(b, func(each quad.RectLike) bool {
		_, ok := each.(*View)
		return ok
	})
}

// obstaclesAt returns the racks covering p, in layout order
func (s *Simulation) obstaclesAt(p orb.Point) []geom.Obstacle {
	s.RLock()
	defer s.RUnlock()

	found := s.tree.GetRectsWithPoint(p, func(each quad.RectLike) bool {
		_, ok := each.(*Obstacle)
		return ok
	})
	hits := make([]*Obstacle, 0, found.Cardinality())
	for each := range found.Iter() {
		hits = append(hits, each.(*Obstacle))
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].index < hits[j].index })

	res := make([]geom.Obstacle, len(hits))
	for i, o := range hits {
		res[i] = o.Obstacle
	}
	return res
}

// enterLeaveMessages builds the messages for indexed objects, reading
// their state under the lock
func (s *Simulation) enterLeaveMessages(items set.Set, enter bool) []JSONChangeMessage {
	s.RLock()
	defer s.RUnlock()

	res := make([]JSONChangeMessage, 0, items.Cardinality())
	for each := range items.Iter() {
		if each == nil {
			continue
		}
		res = append(res, each.(JSONMessageAble).enterLeaveMessage(enter))
	}
	return res
}

// addAgent creates an agent, on a random mission when mission is nil.
// A stopped simulation starts running.
func (s *Simulation) addAgent(mission *fleet.Mission) (AgentMoveMessage, error) {
	s.Lock()
	defer s.Unlock()

	var m fleet.Mission
	if mission == nil {
		m = RandomMission(s.rng, s.pickups, s.dropoffs)
	} else {
		if !Floor.Contains(mission.Start) || !Floor.Contains(mission.End) {
			return AgentMoveMessage{}, ErrInvalidMission
		}
		m = *mission
	}

	a, err := s.fleet.Add(m, s.environment())
	if err != nil {
		return AgentMoveMessage{}, err
	}
	tracked := newAgent(a)
	s.agents[tracked.ID] = tracked
	s.tree.AddPoint(tracked)
	numAgents.Add(1)

	if s.state == Stopped {
		s.start()
	}
	return tracked.moveMessage(), nil
}

func (s *Simulation) agentStates() []JSONAgentState {
	s.RLock()
	defer s.RUnlock()

	agents := s.fleet.Agents()
	res := make([]JSONAgentState, len(agents))
	for i, a := range agents {
		res[i] = agentState(a, false)
	}
	return res
}

func (s *Simulation) agentState(id int) (JSONAgentState, error) {
	s.RLock()
	defer s.RUnlock()

	a, err := s.fleet.Get(id)
	if err != nil {
		return JSONAgentState{}, err
	}
	return agentState(a, true), nil
}

// moveObstacle drags a rack, kept on the floor, and replans every agent
func (s *Simulation) moveObstacle(id string, x, y float64, dragging bool) (before, after geom.Obstacle, err error) {
	s.Lock()
	defer s.Unlock()

	o, ok := s.byID[id]
	if !ok {
		return before, after, ErrObstacleNotFound
	}
	before = o.Obstacle

	moved := o.Rect.MoveTo(x, y, Floor)
	s.tree.MoveRect(o, moved.Bound())
	o.Dragging = dragging
	s.fleet.Recalculate(s.environment())

	if err := s.persister.persistObstacle(o); err != nil {
		log.Error("Can't persist obstacle ", id, ": ", err)
	}
	return before, o.Obstacle, nil
}

// toggleZone switches the no-go zone and replans every agent
func (s *Simulation) toggleZone() geom.NoGoZone {
	s.Lock()
	defer s.Unlock()

	s.zone.Active = !s.zone.Active
	s.fleet.Recalculate(s.environment())

	if err := s.persister.persistZone(s.zone); err != nil {
		log.Error("Can't persist no-go zone: ", err)
	}
	return s.zone
}

// RunID identifies the current run
func (s *Simulation) RunID() string {
	s.RLock()
	defer s.RUnlock()
	return s.runID.String()
}

// State returns the lifecycle state
func (s *Simulation) State() SimState {
	s.RLock()
	defer s.RUnlock()
	return s.state
}

func (s *Simulation) start() {
	s.state = Running
	s.runningSince = time.Now()
	s.quit = make(chan struct{})
	go s.loop(s.quit)
	log.Info("Simulation running, run ", s.runID)
}

func (s *Simulation) halt(state SimState) {
	if s.state == Running {
		s.elapsed += time.Since(s.runningSince)
	}
	if s.quit != nil {
		close(s.quit)
		s.quit = nil
	}
	s.state = state
}

func (s *Simulation) loop(quit chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.stepFrom(quit)
		case <-quit:
			return
		}
	}
}

// Start runs a stopped simulation
func (s *Simulation) Start() error {
	s.Lock()
	defer s.Unlock()

	if s.state != Stopped {
		return ErrInvalidTransition
	}
	s.start()
	return nil
}

// Pause freezes a running simulation
func (s *Simulation) Pause() error {
	s.Lock()
	defer s.Unlock()

	if s.state != Running {
		return ErrInvalidTransition
	}
	s.halt(Paused)
	return nil
}

// Resume runs a paused simulation again, paused time isn't counted
func (s *Simulation) Resume() error {
	s.Lock()
	defer s.Unlock()

	if s.state != Paused {
		return ErrInvalidTransition
	}
	s.start()
	return nil
}

// ObstacleMove is a rack that changed place
type ObstacleMove struct {
	Before geom.Obstacle
	After  geom.Obstacle
}

// Reset stops the simulation, drops every agent and puts the racks back
// in place. It returns the removed agents and the racks that moved back.
func (s *Simulation) Reset() ([]AgentMoveMessage, []ObstacleMove) {
	s.Lock()
	defer s.Unlock()

	s.halt(Stopped)
	// a done fleet had its summary stored on completion
	if s.fleet.Len() > 0 && !s.fleet.Done() {
		s.finish("reset")
	}

	removed := make([]AgentMoveMessage, 0, len(s.agents))
	for id, a := range s.agents {
		removed = append(removed, a.moveMessage())
		s.tree.RemovePoint(a)
		delete(s.agents, id)
	}
	numAgents.Add(int64(-len(removed)))
	s.fleet.Reset()

	var restored []ObstacleMove
	for _, rack := range DefaultRacks() {
		o, ok := s.byID[rack.ID]
		if !ok || (o.Rect == rack.Rect && !o.Dragging) {
			continue
		}
		before := o.Obstacle
		s.tree.MoveRect(o, rack.Rect.Bound())
		o.Dragging = false
		if err := s.persister.persistObstacle(o); err != nil {
			log.Error("Can't persist obstacle ", o.ID, ": ", err)
		}
		restored = append(restored, ObstacleMove{Before: before, After: o.Obstacle})
	}

	s.elapsed = 0
	log.Infof("Simulation reset, %d agents removed, %d racks back in place", len(removed), len(restored))
	return removed, restored
}

// finish stores the summary of the current run and starts a new one
func (s *Simulation) finish(reason string) {
	run := &RunSummary{
		ID:       s.runID.String(),
		Reason:   reason,
		Finished: time.Now().UTC(),
		Elapsed:  s.elapsedTime().Seconds(),
		Stats:    s.fleet.Stats(),
	}
	if err := s.persister.persistRun(run); err != nil {
		log.Error("Can't persist run ", run.ID, ": ", err)
	}
	log.Infof("Run %s %s after %d ticks", run.ID, reason, run.Stats.Ticks)
	s.runID = uuid.New()
}

func (s *Simulation) elapsedTime() time.Duration {
	e := s.elapsed
	if s.state == Running {
		e += time.Since(s.runningSince)
	}
	return e
}

// Step advances every agent by one tick
func (s *Simulation) Step() StepResult {
	s.Lock()
	res := s.step()
	onStep := s.OnStep
	s.Unlock()

	if onStep != nil {
		onStep(res)
	}
	return res
}

// stepFrom is a step from the ticker goroutine: it's dropped if the
// loop was halted since the tick fired
func (s *Simulation) stepFrom(quit chan struct{}) {
	s.Lock()
	if s.quit != quit {
		s.Unlock()
		return
	}
	res := s.step()
	onStep := s.OnStep
	s.Unlock()

	if onStep != nil {
		onStep(res)
	}
}

func (s *Simulation) step() StepResult {
	res := StepResult{Run: s.runID.String()}
	report := s.fleet.Tick()
	res.Tick = report.Tick
	numTicks.Add(1)

	for _, a := range s.fleet.Agents() {
		tracked := s.agents[a.ID()]
		r := report.Results[a.ID()]
		from := tracked.point

		if a.Position() != from || a.State() != tracked.state {
			tracked.state = a.State()
			s.tree.MovePoint(tracked, a.Position())
			res.Moves = append(res.Moves, AgentMove{From: from, Message: tracked.moveMessage()})
		}

		pos := a.Position()
		if r.AvoidanceEntered {
			numAvoidances.Add(1)
			res.Events = append(res.Events, FleetEvent{Event: "avoidance", AgentID: a.ID(), Tick: report.Tick, Pos: &pos})
		}
		if r.DeviationOccurred {
			numDeviations.Add(1)
			res.Events = append(res.Events, FleetEvent{Event: "deviation", AgentID: a.ID(), Tick: report.Tick, Pos: &pos})
		}
		if r.Reached {
			res.Events = append(res.Events, FleetEvent{Event: "reached", AgentID: a.ID(), Tick: report.Tick, Pos: &pos, Data: a.DistanceTraveled()})
		}
	}

	if report.Done && s.state != Stopped {
		s.halt(Stopped)
		s.finish("completed")
		res.Done = true
	}
	return res
}

// Close stops the ticker goroutine
func (s *Simulation) Close() {
	s.Lock()
	defer s.Unlock()
	s.halt(s.state)
}

// Metrics is the dashboard of the simulation
type Metrics struct {
	fleet.Stats
	Run            string   `json:"run"`
	State          SimState `json:"state"`
	ElapsedSeconds float64  `json:"elapsedSeconds"`
	AvoidingAgents []int    `json:"avoidingAgents"`
	NoGoZoneActive bool     `json:"noGoZoneActive"`
}

func (s *Simulation) metrics() Metrics {
	s.RLock()
	defer s.RUnlock()

	avoiding := set.NewThreadUnsafeSet()
	for _, a := range s.fleet.Agents() {
		if a.IsAvoiding() {
			avoiding.Add(a.ID())
		}
	}
	ids := make([]int, 0, avoiding.Cardinality())
	for id := range avoiding.Iter() {
		ids = append(ids, id.(int))
	}
	sort.Ints(ids)

	return Metrics{
		Stats:          s.fleet.Stats(),
		Run:            s.runID.String(),
		State:          s.state,
		ElapsedSeconds: s.elapsedTime().Seconds(),
		AvoidingAgents: ids,
		NoGoZoneActive: s.zone.Active,
	}
}

// geoJSON exports the floor, the stations and the agents with their routes
func (s *Simulation) geoJSON() *geojson.FeatureCollection {
	s.RLock()
	defer s.RUnlock()

	fc := geojson.NewFeatureCollection()
	geom.EnvironmentFeatures(fc, s.environment())
	for _, st := range s.stations {
		fc.Append(geom.PointFeature(st.point, map[string]interface{}{"kind": string(st.Kind), "id": st.ID}))
	}
	for _, a := range s.fleet.Agents() {
		fc.Append(geom.PointFeature(a.Position(), map[string]interface{}{
			"kind":  "agent",
			"id":    a.ID(),
			"state": a.State().String(),
		}))
		if a.CurrentRoute().Len() > 1 {
			fc.Append(geom.RouteFeature(a.CurrentRoute(), map[string]interface{}{"kind": "route", "agent_id": a.ID()}))
		}
		if a.OriginalRoute().Len() > 1 {
			fc.Append(geom.RouteFeature(a.OriginalRoute(), map[string]interface{}{"kind": "originalRoute", "agent_id": a.ID()}))
		}
	}
	return fc
}
