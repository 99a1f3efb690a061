package plan

// Params tunes the planner. The zero value is not usable, start from DefaultParams.
type Params struct {
	// DirectThreshold: a clear direct route is taken right away if its
	// congestion penalty is below this value
	DirectThreshold float64
	// DetourMargin is the clearance kept around the blocking obstacle
	DetourMargin float64
	// ProximityThreshold is the midpoint distance under which two segments
	// are considered crowding each other
	ProximityThreshold float64
	// CongestionWeight and LengthWeight combine into the candidate score
	CongestionWeight float64
	LengthWeight     float64
}

// DefaultParams returns the stock tuning
func DefaultParams() Params {
	return Params{
		DirectThreshold:    0.3,
		DetourMargin:       25,
		ProximityThreshold: 50,
		CongestionWeight:   100,
		LengthWeight:       0.1,
	}
}
