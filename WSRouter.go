package main

import (
	"encoding/json"
	"errors"
	"expvar"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	// MessageSendInterval determines how often we'll send batches of updates
	MessageSendInterval = 100 * time.Millisecond

	activeConnections = expvar.NewInt("active_connections")
)

var (
	// ErrViewExists is returned if the View ID is already used
	ErrViewExists = errors.New("View ID already exists")
	// ErrCantObserve is returned when the token can't open a view
	ErrCantObserve = errors.New("can't observe")
)

// WSError is sent to clients when something goes wrong
type WSError struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WSRouter holds what a WS handler needs to work
type WSRouter struct {
	sim *Simulation
	whw *WebhookWriter
}

// NewWSRouter returns a new WSRouter, which follows the steps of sim
func NewWSRouter(sim *Simulation, whw *WebhookWriter) *WSRouter {
	wsh := &WSRouter{sim: sim, whw: whw}

	sim.Lock()
	sim.OnStep = wsh.handleStep
	sim.Unlock()

	return wsh
}

func (wsh *WSRouter) handle(upgrader websocket.Upgrader) func(http.ResponseWriter, *http.Request) {

	// handle a new websocket Connection
	// if the token is sent and is valid, we'll proceed
	// this function runs in its own goroutine. If it ever ends, the connection is dropped
	return func(res http.ResponseWriter, req *http.Request) {
		activeConnections.Add(1)
		defer activeConnections.Add(-1)

		conn, err := upgrader.Upgrade(res, req, nil)
		if err != nil {
			log.Warn("upgrade error: ", err)
			return
		}
		defer conn.Close()

		t := req.Header.Get("X-FLOW-TOKEN")
		if t == "" {
			t = req.URL.Query().Get("token")
		}

		token, err := parseJWTToken(t)
		if err == nil && !token.Capabilities.Observe {
			err = ErrCantObserve
		}
		if err != nil {
			conn.WriteJSON(WSError{"Can't parse token, or token invalid", err.Error()})
			log.Warn("Can't parse token, or token invalid: ", err.Error())
			return
		}
		capabilities := token.Capabilities

		viewID := token.ViewID
		if viewID == "" {
			viewID = uuid.New().String()
		}
		identity := "view:" + viewID

		wsConn := newWSConn(conn)
		wsConn.Name = identity

		view, err := wsh.sim.addView(viewID, wsConn)
		if err != nil {
			wsConn.writeImmediateJSON(WSError{"Can't open view", err.Error()})
			log.Warn(identity, ": ", err.Error())
			return
		}
		log.Debug("login: ", identity)

		defer func() {
			if err := recover(); err != nil {
				log.Error(err)
			}
			log.Debug("logout: ", identity)
			wsh.sim.removeView(viewID)
			wsConn.close()
		}()

		// we'll use a single JSONCommand for this socket to limit allocations
		// command.clear() must be called before parsing a new command
		command := JSONCommand{}

		for {
			_, jsonString, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return
				}
				if websocket.IsCloseError(err, websocket.CloseMessageTooBig) {
					wsConn.writeImmediateJSON(WSError{"Message too large", "Your message size exceeds the server's limits"})
					log.Warn(identity, ": Message too large")
					return
				}
				log.Warn(identity, ": ", err.Error())
				return
			}

			command.clear()
			if err := json.Unmarshal(jsonString, &command); err != nil {
				wsConn.writeImmediateJSON(WSError{"Can't parse command (" + string(jsonString) + ")", err.Error()})
				log.Warn(identity, ": invalid JSON command")
				continue
			}

			if err := command.check(); err != nil {
				wsConn.writeImmediateJSON(WSError{"Invalid Command (" + string(jsonString) + ")", err.Error()})
				log.Warn(identity, ": invalid command")
				continue
			}

			log.Debug(identity, ": ", string(jsonString))

			if command.ViewPosition != nil {
				b := command.viewBound()
				if b.Max[0]-b.Min[0] > capabilities.MaxView[0] || b.Max[1]-b.Min[1] > capabilities.MaxView[1] {
					wsConn.writeImmediateJSON(WSError{Error: "View size error: it can't be larger than what your JWT Token allows"})
					log.Warn(identity, ": View size error")
				} else {
					wsh.handleViewMove(view, b)
				}
			}

			if command.Metrics {
				wsConn.writeImmediateJSON(struct {
					Metrics Metrics `json:"metrics"`
				}{wsh.sim.metrics()})
			}
		}
	}
}
