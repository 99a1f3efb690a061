package plan

import (
	"math"

	"choreographer.io/FlowServer/geom"
	"github.com/paulmach/orb"
)

// CongestionPenalty scores how much candidate crowds the routes already
// planned by other agents. The result is within [0,1].
func (p *Planner) CongestionPenalty(candidate geom.Route, others []geom.Route) float64 {
	return congestionPenalty(candidate, others, p.Params.ProximityThreshold)
}

// CongestionPenalty uses the default proximity threshold
func CongestionPenalty(candidate geom.Route, others []geom.Route) float64 {
	return congestionPenalty(candidate, others, DefaultParams().ProximityThreshold)
}

func congestionPenalty(candidate geom.Route, others []geom.Route, threshold float64) float64 {
	penalty := 0.0
	for _, other := range others {
		if other.IsEmpty() {
			continue
		}
		candidate.Segments(func(a1, a2 orb.Point) {
			other.Segments(func(b1, b2 orb.Point) {
				d := geom.SegmentMidpointDistance(a1, a2, b1, b2)
				if d < threshold {
					penalty += (threshold - d) / threshold
				}
			})
		})
	}
	return math.Min(penalty, 1.0)
}
