package main

import (
	"errors"

	"choreographer.io/FlowServer/fleet"
	"choreographer.io/FlowServer/geom"
	"github.com/paulmach/orb"
)

var (
	// ErrInvalidViewPosition is returned for empty or reversed view windows
	ErrInvalidViewPosition = errors.New("invalid viewPosition")
)

// JSONChangeMessage tags update messages sent to clients
type JSONChangeMessage interface{}

// JSONMessageAble is the interface for objects which can produce JSON change messages
type JSONMessageAble interface {
	enterLeaveMessage(enter bool) JSONChangeMessage
}

// JSONCommand holds WS messages
type JSONCommand struct {
	// ViewPosition is [x1, y1, x2, y2] in floor coordinates
	ViewPosition *[4]float64 `json:"viewPosition"`
	Metrics      bool        `json:"metrics"`
}

func (j *JSONCommand) check() error {
	if j.ViewPosition != nil {
		v := j.ViewPosition
		if v[0] >= v[2] || v[1] >= v[3] {
			return ErrInvalidViewPosition
		}
	}
	return nil
}

func (j *JSONCommand) clear() {
	j.ViewPosition = nil
	j.Metrics = false
}

func (j *JSONCommand) viewBound() orb.Bound {
	v := j.ViewPosition
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}
}

// EnteredLeft is used to provide additional enter/leave information
type EnteredLeft struct {
	Entered bool `json:"entered,omitempty"`
	Left    bool `json:"left,omitempty"`
}

// JSONAgent describes the public view on agents
type JSONAgent struct {
	ID    int          `json:"agent_id"`
	Pos   *orb.Point   `json:"pos,omitempty"`
	State *fleet.State `json:"state,omitempty"`
}

// JSONAgentEnteredLeft is sent through the WS when an agent enters/leaves a view
type JSONAgentEnteredLeft struct {
	JSONChangeMessage `json:"JSONChangeMessage,omitempty"`
	JSONAgent
	EnteredLeft
}

func (a *Agent) enterLeaveMessage(enter bool) JSONChangeMessage {
	return agentEnterLeave(a.moveMessage(), enter)
}

func agentEnterLeave(m AgentMoveMessage, enter bool) JSONChangeMessage {
	message := &JSONAgentEnteredLeft{}
	message.ID = m.ID
	if enter {
		message.Pos = &m.Point
		message.State = &m.State
		message.Entered = true
	} else {
		message.Left = true
	}
	return message
}

// JSONStation describes pickup and dropoff stations
type JSONStation struct {
	ID   string      `json:"station_id"`
	Kind StationKind `json:"kind,omitempty"`
	Pos  *orb.Point  `json:"pos,omitempty"`
}

// JSONStationEnteredLeft holds station enter/leave messages
type JSONStationEnteredLeft struct {
	JSONChangeMessage `json:"JSONChangeMessage,omitempty"`
	JSONStation
	EnteredLeft
}

func (s *Station) enterLeaveMessage(enter bool) JSONChangeMessage {
	message := &JSONStationEnteredLeft{}
	message.ID = s.ID
	if enter {
		message.Kind = s.Kind
		message.Pos = &s.point
		message.Entered = true
	} else {
		message.Left = true
	}
	return message
}

// JSONObstacleMessage is sent to views when a rack moves
type JSONObstacleMessage struct {
	JSONChangeMessage `json:"JSONChangeMessage,omitempty"`
	Obstacle          geom.Obstacle `json:"obstacle"`
}

// JSONZoneMessage is sent to views when the no-go zone is toggled
type JSONZoneMessage struct {
	JSONChangeMessage `json:"JSONChangeMessage,omitempty"`
	Zone              geom.NoGoZone `json:"noGoZone"`
}

// JSONAgentState is the full HTTP representation of an agent
type JSONAgentState struct {
	ID            int           `json:"agent_id"`
	Pos           orb.Point     `json:"pos"`
	State         fleet.State   `json:"state"`
	Mission       fleet.Mission `json:"mission"`
	OriginalRoute geom.Route    `json:"originalRoute"`
	CurrentRoute  geom.Route    `json:"currentRoute"`
	PathIndex     int           `json:"pathIndex"`
	Distance      float64       `json:"distance"`
	HasDeviated   bool          `json:"hasDeviated"`
	Traveled      []orb.Point   `json:"traveled,omitempty"`
}

func agentState(a *fleet.Agent, withHistory bool) JSONAgentState {
	s := JSONAgentState{
		ID:            a.ID(),
		Pos:           a.Position(),
		State:         a.State(),
		Mission:       a.Mission(),
		OriginalRoute: a.OriginalRoute(),
		CurrentRoute:  a.CurrentRoute(),
		PathIndex:     a.PathIndex(),
		Distance:      a.DistanceTraveled(),
		HasDeviated:   a.HasDeviated(),
	}
	if withHistory {
		s.Traveled = a.Traveled()
	}
	return s
}
