package fleet

import (
	"math"
	"testing"

	"choreographer.io/FlowServer/geom"
	"choreographer.io/FlowServer/plan"
)

func newTestAgent(start, end [2]float64) *Agent {
	planner := plan.NewPlanner(plan.DefaultParams())
	m := Mission{Start: geom.Pt(start[0], start[1]), End: geom.Pt(end[0], end[1])}
	return NewAgent(1, m, DefaultKinematics(), FixedAngle(0), planner, geom.Environment{}, nil)
}

func TestAgentReachesDestination(t *testing.T) {
	a := newTestAgent([2]float64{0, 0}, [2]float64{100, 0})

	if !a.OriginalRoute().Equal(geom.NewRoute(geom.Pt(0, 0), geom.Pt(100, 0))) {
		t.Fatalf("unexpected route %v", a.OriginalRoute().Points())
	}

	moved := 0.0
	ticks := 0
	for !a.ReachedDestination() && ticks < 1000 {
		ticks++
		res := a.Update(ticks, Snapshot([]*Agent{a}))
		if res.AvoidanceEntered || res.DeviationOccurred {
			t.Fatal("a lone agent shouldn't avoid anything")
		}
		moved += res.Moved
	}

	if expected := int(math.Ceil(100 / 1.5)); ticks != expected {
		t.Errorf("expected %d ticks, got %d", expected, ticks)
	}
	if a.Position() != geom.Pt(100, 0) {
		t.Errorf("should stand on its destination, got %v", a.Position())
	}
	if math.Abs(a.DistanceTraveled()-moved) > 1e-9 {
		t.Errorf("distance %f should be the sum of moves %f", a.DistanceTraveled(), moved)
	}
	if a.DistanceTraveled() < 100-1e-9 {
		t.Errorf("distance %f shorter than the mission", a.DistanceTraveled())
	}
	if len(a.Traveled()) != ticks+1 {
		t.Errorf("history should hold the start and one position per tick, got %d", len(a.Traveled()))
	}

	// reached is terminal
	res := a.Update(ticks+1, nil)
	if res.Moved != 0 || !a.ReachedDestination() {
		t.Error("a finished agent shouldn't move")
	}
}

func TestAgentDistanceIsMonotonic(t *testing.T) {
	a := newTestAgent([2]float64{0, 0}, [2]float64{30, 40})
	last := 0.0
	for i := 1; i < 100; i++ {
		a.Update(i, nil)
		if a.DistanceTraveled() < last {
			t.Fatal("distance should never decrease")
		}
		last = a.DistanceTraveled()
	}
	if math.Abs(last-50) > 1e-9 {
		t.Errorf("expected 50, got %f", last)
	}
}

func TestAvoidanceIsEdgeTriggered(t *testing.T) {
	a := newTestAgent([2]float64{0, 0}, [2]float64{200, 0})
	nearby := []Neighbor{{ID: 2, Position: geom.Pt(20, 20), Radius: 8}}

	res := a.Update(1, nearby)
	if !res.AvoidanceEntered || !res.DeviationOccurred {
		t.Fatal("avoidance should start")
	}
	if !a.IsAvoiding() || a.Speed() != 0.5 {
		t.Error("avoiding agents slow down")
	}
	for i := 2; i < 5; i++ {
		res = a.Update(i, nearby)
		if res.AvoidanceEntered {
			t.Fatal("avoidance should only be entered once while neighbors stay nearby")
		}
	}

	res = a.Update(5, nil)
	if !res.AvoidanceExited || a.IsAvoiding() {
		t.Error("avoidance should end when nobody is nearby")
	}
	if a.Speed() != 1.5 {
		t.Error("cruise speed should be restored")
	}

	res = a.Update(6, nearby)
	if !res.AvoidanceEntered {
		t.Error("a new episode should start")
	}
	if res.DeviationOccurred {
		t.Error("deviation is reported once until the agent is planned again")
	}
}

func TestAvoidanceIgnoresSelfAndFarAgents(t *testing.T) {
	a := newTestAgent([2]float64{0, 0}, [2]float64{200, 0})
	neighbors := []Neighbor{
		{ID: 1, Position: geom.Pt(0, 0), Radius: 8},
		{ID: 2, Position: geom.Pt(0, 46), Radius: 8},
	}
	if res := a.Update(1, neighbors); res.AvoidanceEntered {
		t.Error("self and agents at the trigger distance don't count")
	}
}

func TestDetourSynthesis(t *testing.T) {
	a := newTestAgent([2]float64{0, 0}, [2]float64{200, 0})
	a.Update(1, []Neighbor{{ID: 2, Position: geom.Pt(0, 30), Radius: 8}})

	expected := geom.NewRoute(geom.Pt(0, 0), geom.Pt(40, 0), geom.Pt(200, 0))
	if !a.CurrentRoute().Equal(expected) {
		t.Errorf("unexpected detour %v", a.CurrentRoute().Points())
	}
	if !a.OriginalRoute().Equal(geom.NewRoute(geom.Pt(0, 0), geom.Pt(200, 0))) {
		t.Error("the original route must be kept")
	}
	// the first waypoint is the position itself, the agent heads for the nudge point
	if a.PathIndex() != 1 || a.Position() != geom.Pt(0.5, 0) {
		t.Errorf("expected to move towards the nudge point, index %d at %v", a.PathIndex(), a.Position())
	}
}

func TestDetourRejoinFallback(t *testing.T) {
	a := newTestAgent([2]float64{0, 0}, [2]float64{50, 0})
	a.Update(1, []Neighbor{{ID: 2, Position: geom.Pt(0, 30), Radius: 8}})

	// no waypoint is further than 80 units: rejoin at the current index
	expected := geom.NewRoute(geom.Pt(0, 0), geom.Pt(40, 0), geom.Pt(0, 0), geom.Pt(50, 0))
	if !a.CurrentRoute().Equal(expected) {
		t.Errorf("unexpected detour %v", a.CurrentRoute().Points())
	}
}

func TestRejoinNearestWaypoint(t *testing.T) {
	a := newTestAgent([2]float64{0, 0}, [2]float64{200, 0})
	a.original = geom.NewRoute(geom.Pt(0, 0), geom.Pt(100, 0), geom.Pt(100, 100), geom.Pt(200, 100))
	a.current = a.original
	a.position = geom.Pt(90, 10)
	a.state = Avoiding

	res := a.Update(1, nil)
	if !res.AvoidanceExited {
		t.Fatal("should leave avoidance")
	}
	if a.CurrentRoute().Len() != 3 || a.CurrentRoute().First() != geom.Pt(100, 0) {
		t.Errorf("should continue from the nearest waypoint, got %v", a.CurrentRoute().Points())
	}
}

func TestRecalculateIsIdempotent(t *testing.T) {
	planner := plan.NewPlanner(plan.DefaultParams())
	env := geom.Environment{Obstacles: []geom.Obstacle{{ID: "rack", Rect: geom.NewRect(80, 80, 40, 40)}}}
	a := NewAgent(1, Mission{Start: geom.Pt(0, 100), End: geom.Pt(200, 100)}, DefaultKinematics(), FixedAngle(0), planner, geom.Environment{}, nil)

	a.Update(1, []Neighbor{{ID: 2, Position: geom.Pt(0, 130), Radius: 8}})
	if !a.HasDeviated() {
		t.Fatal("should have deviated")
	}

	a.Recalculate(planner, env, nil)
	first := a.OriginalRoute()
	a.Recalculate(planner, env, nil)
	if !first.Equal(a.OriginalRoute()) {
		t.Error("recalculating twice should give the same route")
	}
	if first.Len() != 4 {
		t.Errorf("the new obstacle should be avoided, got %v", first.Points())
	}
	if a.HasDeviated() || a.PathIndex() != 0 || !a.CurrentRoute().Equal(first) {
		t.Error("recalculation resets the current route and the deviation flag")
	}
}

func TestRecalculateReachedAgent(t *testing.T) {
	planner := plan.NewPlanner(plan.DefaultParams())
	a := newTestAgent([2]float64{0, 0}, [2]float64{3, 0})
	for i := 1; i < 5; i++ {
		a.Update(i, nil)
	}
	if !a.ReachedDestination() {
		t.Fatal("should have arrived")
	}
	a.Recalculate(planner, geom.Environment{}, nil)
	if !a.ReachedDestination() {
		t.Error("recalculation doesn't revive a finished agent")
	}
	if a.Update(10, nil).Moved != 0 {
		t.Error("a finished agent doesn't follow its new route")
	}
}
