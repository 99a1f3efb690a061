package fleet

// Kinematics holds the motion and avoidance tuning shared by every agent
type Kinematics struct {
	// CruiseSpeed and AvoidSpeed are in floor units per tick
	CruiseSpeed float64
	AvoidSpeed  float64
	// Radius is the agent's body radius
	Radius float64
	// SafetyMargin is added to both radii to get the avoidance trigger distance
	SafetyMargin float64
	// DetourOffset is how far the avoidance nudge point is from the agent
	DetourOffset float64
	// RejoinDistance is the minimum distance of the waypoint a detour rejoins
	RejoinDistance float64
}

// DefaultKinematics returns the stock warehouse robot tuning
func DefaultKinematics() Kinematics {
	return Kinematics{
		CruiseSpeed:    1.5,
		AvoidSpeed:     0.5,
		Radius:         8,
		SafetyMargin:   30,
		DetourOffset:   40,
		RejoinDistance: 80,
	}
}

// DefaultMaxAgents caps the fleet size
const DefaultMaxAgents = 10
