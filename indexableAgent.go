package main

import (
	"choreographer.io/FlowServer/fleet"
	"github.com/paulmach/orb"
)

// AgentMoveMessage models a basic move message
type AgentMoveMessage struct {
	JSONChangeMessage `json:"JSONChangeMessage,omitempty"`
	ID                int         `json:"agent_id"`
	Point             orb.Point   `json:"pos"`
	State             fleet.State `json:"state"`
}

// Agent is a fleet agent as stored in the quad.
// point and state are copied from the fleet at the end of every step,
// so they can be read without touching the fleet.
type Agent struct {
	ID    int
	agent *fleet.Agent

	point orb.Point
	state fleet.State
}

func newAgent(a *fleet.Agent) *Agent {
	return &Agent{ID: a.ID(), agent: a, point: a.Position(), state: a.State()}
}

// GetPoint returns the position of the agent for quads
func (a *Agent) GetPoint() orb.Point {
	return a.point
}

// SetPoint sets the position of the agent for quads
func (a *Agent) SetPoint(p orb.Point) {
	a.point = p
}

func (a *Agent) moveMessage() AgentMoveMessage {
	return AgentMoveMessage{ID: a.ID, Point: a.point, State: a.state}
}
