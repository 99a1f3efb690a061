package plan

import (
	"math"

	"choreographer.io/FlowServer/geom"
	"github.com/paulmach/orb"
	log "github.com/sirupsen/logrus"
)

// Bias is the side a detour goes around the blocking obstacle
type Bias int

// Detours are generated, and ties broken, in this order
const (
	Right Bias = iota
	Left
	Top
	Bottom
)

var biases = [...]Bias{Right, Left, Top, Bottom}

func (b Bias) String() string {
	switch b {
	case Right:
		return "right"
	case Left:
		return "left"
	case Top:
		return "top"
	case Bottom:
		return "bottom"
	}
	return "unknown"
}

// Candidate is a detour that passed the clearance checks
type Candidate struct {
	Route geom.Route
	Bias  Bias
	Score float64
}

// Planner computes congestion-aware routes. It holds no state besides its
// tuning and is safe to share.
type Planner struct {
	Params Params
}

// NewPlanner creates a planner with the given tuning
func NewPlanner(params Params) *Planner {
	return &Planner{Params: params}
}

// Plan returns the best route from start to end. It never fails: when no
// detour is usable the straight line is returned even if it's blocked.
func (p *Planner) Plan(start, end orb.Point, env geom.Environment, others []geom.Route) geom.Route {
	direct := geom.NewRoute(start, end)

	if env.IsClear(start, end) {
		penalty := p.CongestionPenalty(direct, others)
		if penalty >= p.Params.DirectThreshold {
			// nothing to go around, every detour would be the direct route
			log.Debugf("plan: direct route congested (%.2f) but clear, keeping it", penalty)
		}
		return direct
	}

	candidates := p.Detours(start, end, env)
	if len(candidates) == 0 {
		log.Debugf("plan: no detour from %v to %v, falling back to direct route", start, end)
		return direct
	}

	best := -1
	bestScore := math.Inf(1)
	for i := range candidates {
		c := &candidates[i]
		c.Score = p.Params.CongestionWeight*p.CongestionPenalty(c.Route, others) +
			p.Params.LengthWeight*c.Route.Length()
		if c.Score < bestScore {
			bestScore = c.Score
			best = i
		}
	}
	log.Debugf("plan: %s detour chosen (score %.2f)", candidates[best].Bias, bestScore)
	return candidates[best].Route
}

// Detours generates the usable candidate routes, at most one per bias,
// in generation order. Scores are left at zero. It returns nil when no
// obstacle crosses the direct segment.
func (p *Planner) Detours(start, end orb.Point, env geom.Environment) []Candidate {
	blocker, found := blockingRect(start, end, env)
	if !found {
		return nil
	}

	res := make([]Candidate, 0, len(biases))
	for _, bias := range biases {
		wp1, wp2 := p.waypoints(start, end, blocker, bias)
		if env.IsClear(start, wp1) && env.IsClear(wp1, wp2) && env.IsClear(wp2, end) {
			res = append(res, Candidate{Route: geom.NewRoute(start, wp1, wp2, end), Bias: bias})
		}
	}
	return res
}

// blockingRect is the first obstacle, in iteration order, crossed by the
// direct segment. The no-go zone is never gone around, it only discards
// candidates.
func blockingRect(start, end orb.Point, env geom.Environment) (geom.Rect, bool) {
	for _, o := range env.Obstacles {
		if geom.SegmentIntersectsRect(start, end, o.Rect) {
			return o.Rect, true
		}
	}
	return geom.Rect{}, false
}

func (p *Planner) waypoints(start, end orb.Point, r geom.Rect, bias Bias) (orb.Point, orb.Point) {
	m := p.Params.DetourMargin
	switch bias {
	case Right:
		x := r.X + r.Width + m
		return orb.Point{x, start[1]}, orb.Point{x, end[1]}
	case Left:
		x := r.X - m
		return orb.Point{x, start[1]}, orb.Point{x, end[1]}
	case Top:
		y := r.Y - m
		return orb.Point{start[0], y}, orb.Point{end[0], y}
	default:
		y := r.Y + r.Height + m
		return orb.Point{start[0], y}, orb.Point{end[0], y}
	}
}
