package main

import (
	"choreographer.io/FlowServer/geom"
	set "github.com/deckarep/golang-set"
	"github.com/paulmach/orb"
)

// handleStep dispatches what changed during a step to views and webhooks
func (wsh *WSRouter) handleStep(res StepResult) {
	for _, move := range res.Moves {
		wsh.handleAgentMove(move)
	}
	for _, event := range res.Events {
		wsh.hook(res.Run, event)
	}
	if res.Done {
		wsh.hook(res.Run, FleetEvent{Event: "completed", Tick: res.Tick})
	}
}

func (wsh *WSRouter) handleAgentMove(move AgentMove) {
	agentMessage := move.Message

	beforeViews := wsh.sim.getViewsWithPoint(move.From)
	afterViews := wsh.sim.getViewsWithPoint(agentMessage.Point)

	agentleftview := beforeViews.Difference(afterViews)
	wsh.sendMessageToViews(agentEnterLeave(agentMessage, false), agentleftview)

	agentmovedinview := beforeViews.Intersect(afterViews)
	wsh.sendMessageToViews(agentMessage, agentmovedinview)

	agententeredview := afterViews.Difference(beforeViews)
	wsh.sendMessageToViews(agentEnterLeave(agentMessage, true), agententeredview)
}

func (wsh *WSRouter) handleViewMove(view *View, b orb.Bound) {
	previous, placed := wsh.sim.updateViewPosition(view.id, b)

	pointsAfter := wsh.sim.getPointLikeIn(b)

	if !placed {
		for _, message := range wsh.sim.enterLeaveMessages(pointsAfter, true) {
			view.ws.writeJSON(message)
		}
		return
	}

	pointsBefore := wsh.sim.getPointLikeIn(previous)

	removed := pointsBefore.Difference(pointsAfter)
	added := pointsAfter.Difference(pointsBefore)

	for _, message := range wsh.sim.enterLeaveMessages(removed, false) {
		view.ws.writeJSON(message)
	}
	for _, message := range wsh.sim.enterLeaveMessages(added, true) {
		view.ws.writeJSON(message)
	}
}

func (wsh *WSRouter) handleAgentAdded(agent AgentMoveMessage) {
	wsh.sendMessageToViewsWithPoint(agentEnterLeave(agent, true), agent.Point)
}

func (wsh *WSRouter) handleAgentsRemoved(agents []AgentMoveMessage) {
	for _, agent := range agents {
		wsh.sendMessageToViewsWithPoint(agentEnterLeave(agent, false), agent.Point)
	}
}

// handleObstacleMove tells the views which saw any part of the rack, before or after
func (wsh *WSRouter) handleObstacleMove(before, after geom.Obstacle) {
	views := wsh.sim.getViewsIntersecting(before.Bound())
	views = views.Union(wsh.sim.getViewsIntersecting(after.Bound()))
	wsh.sendMessageToViews(JSONObstacleMessage{Obstacle: after}, views)

	wsh.hook(wsh.sim.RunID(), FleetEvent{Event: "layout", Data: after})
}

func (wsh *WSRouter) handleZoneToggle(zone geom.NoGoZone) {
	views := wsh.sim.getViewsIntersecting(zone.Bound())
	wsh.sendMessageToViews(JSONZoneMessage{Zone: zone}, views)

	wsh.hook(wsh.sim.RunID(), FleetEvent{Event: "layout", Data: zone})
}

func (wsh *WSRouter) hook(run string, event FleetEvent) {
	if wsh.whw == nil {
		return
	}
	wsh.whw.Write(HookMessage{Run: run, Message: event})
}

func (wsh *WSRouter) sendMessageToViewsWithPoint(message JSONChangeMessage, point orb.Point) {
	views := wsh.sim.getViewsWithPoint(point)
	wsh.sendMessageToViews(message, views)
}

func (wsh *WSRouter) sendMessageToViews(message JSONChangeMessage, consumers set.Set) {
	for each := range consumers.Iter() {
		if view, ok := each.(*View); ok && view.ws != nil {
			view.ws.writeJSON(message)
		}
	}
}
