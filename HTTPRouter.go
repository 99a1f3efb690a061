package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"choreographer.io/FlowServer/fleet"
	"github.com/gorilla/mux"
	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
)

// HTTPError is the body of every failed request
type HTTPError struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	body := HTTPError{Error: message}
	if err != nil {
		body.Message = err.Error()
	}
	writeJSON(w, status, body)
}

func withTokenAndSim(sim *Simulation, wsh *WSRouter, fn func(http.ResponseWriter, *http.Request, *JWTToken, *Simulation, *WSRouter)) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, req *http.Request) {
		t := req.Header.Get("X-FLOW-TOKEN")
		if t == "" {
			t = req.URL.Query().Get("token")
		}
		token, err := parseJWTToken(t)
		if err == nil && !token.Capabilities.HTTP {
			err = ErrInvalidCapabilities
		}
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Can't parse token, or token invalid", err)
			log.Warn("HTTP route: can't parse token, or token without HTTP cap")
			return
		}
		fn(w, req, token, sim, wsh)
	}
}

// NewHTTPRouter returns the router for the flow http api
func NewHTTPRouter(router *mux.Router, sim *Simulation, wsh *WSRouter) *mux.Router {

	router.HandleFunc("/v1/ping", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, struct {
			Tag   string
			Build string
		}{Tag, Build})
	})

	router.HandleFunc("/v1/metrics", withTokenAndSim(sim, wsh, getMetrics)).Methods(http.MethodGet)

	router.HandleFunc("/v1/agents", withTokenAndSim(sim, wsh, listAgents)).Methods(http.MethodGet)
	router.HandleFunc("/v1/agents", withTokenAndSim(sim, wsh, addAgent)).Methods(http.MethodPost)
	router.HandleFunc("/v1/agents/{id:[0-9]+}", withTokenAndSim(sim, wsh, getAgent)).Methods(http.MethodGet)

	router.HandleFunc("/v1/obstacles", withTokenAndSim(sim, wsh, listObstacles)).Methods(http.MethodGet)
	router.HandleFunc("/v1/obstacles/at", withTokenAndSim(sim, wsh, obstaclesAt)).Methods(http.MethodGet)
	router.HandleFunc("/v1/obstacles/{id}", withTokenAndSim(sim, wsh, moveObstacle)).Methods(http.MethodPost)
	router.HandleFunc("/v1/nogozone", withTokenAndSim(sim, wsh, toggleZone)).Methods(http.MethodPost)

	router.HandleFunc("/v1/simulation", withTokenAndSim(sim, wsh, controlSimulation)).Methods(http.MethodPost)
	router.HandleFunc("/v1/geojson", withTokenAndSim(sim, wsh, getGeoJSON)).Methods(http.MethodGet)

	router.HandleFunc("/v1/telemetry", withTokenAndSim(sim, wsh, ingestTelemetry)).Methods(http.MethodPost)
	router.HandleFunc("/v1/telemetry", withTokenAndSim(sim, wsh, listTelemetry)).Methods(http.MethodGet)

	router.HandleFunc("/v1/log", setLogLevel) // doesn't need additional security, awaits bearer token

	return router
}

func getMetrics(w http.ResponseWriter, req *http.Request, token *JWTToken, sim *Simulation, wsh *WSRouter) {
	writeJSON(w, http.StatusOK, sim.metrics())
}

func listAgents(w http.ResponseWriter, req *http.Request, token *JWTToken, sim *Simulation, wsh *WSRouter) {
	writeJSON(w, http.StatusOK, sim.agentStates())
}

func getAgent(w http.ResponseWriter, req *http.Request, token *JWTToken, sim *Simulation, wsh *WSRouter) {
	id, err := strconv.Atoi(mux.Vars(req)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid agent id", err)
		return
	}
	agent, err := sim.agentState(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "Agent not found", err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

func addAgent(w http.ResponseWriter, req *http.Request, token *JWTToken, sim *Simulation, wsh *WSRouter) {
	if !token.Capabilities.Control {
		writeError(w, http.StatusForbidden, "Your token doesn't allow agent creation", nil)
		log.Warn("Agent HTTP route: token without control cap")
		return
	}

	// an empty body asks for a random mission
	var mission *fleet.Mission
	cmd := &fleet.Mission{}
	err := json.NewDecoder(req.Body).Decode(cmd)
	switch {
	case err == io.EOF:
	case err != nil:
		writeError(w, http.StatusBadRequest, "Can't parse json body", err)
		log.Warn("Agent HTTP route: Can't parse json body")
		return
	default:
		mission = cmd
	}

	agent, err := sim.addAgent(mission)
	switch {
	case errors.Is(err, fleet.ErrFleetFull):
		writeError(w, http.StatusConflict, "Can't add agent", err)
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, "Can't add agent", err)
		return
	}
	log.Info("POST /v1/agents: agent ", agent.ID, " created at ", agent.Point)
	wsh.handleAgentAdded(agent)

	state, err := sim.agentState(agent.ID)
	if err != nil {
		// reset between the two calls
		writeError(w, http.StatusConflict, "Agent was removed", err)
		return
	}
	writeJSON(w, http.StatusCreated, state)
}

func listObstacles(w http.ResponseWriter, req *http.Request, token *JWTToken, sim *Simulation, wsh *WSRouter) {
	writeJSON(w, http.StatusOK, sim.Environment())
}

func obstaclesAt(w http.ResponseWriter, req *http.Request, token *JWTToken, sim *Simulation, wsh *WSRouter) {
	x, errX := strconv.ParseFloat(req.URL.Query().Get("x"), 64)
	y, errY := strconv.ParseFloat(req.URL.Query().Get("y"), 64)
	if errX != nil || errY != nil {
		writeError(w, http.StatusBadRequest, "x and y must be numbers", nil)
		return
	}
	writeJSON(w, http.StatusOK, sim.obstaclesAt(orb.Point{x, y}))
}

// JSONObstacleMove is the body of an obstacle move
type JSONObstacleMove struct {
	X        *float64 `json:"x"`
	Y        *float64 `json:"y"`
	Dragging bool     `json:"dragging"`
}

func moveObstacle(w http.ResponseWriter, req *http.Request, token *JWTToken, sim *Simulation, wsh *WSRouter) {
	if !token.Capabilities.Layout {
		writeError(w, http.StatusForbidden, "Your token doesn't allow layout changes", nil)
		log.Warn("Obstacle HTTP route: token without layout cap")
		return
	}

	cmd := &JSONObstacleMove{}
	if err := json.NewDecoder(req.Body).Decode(cmd); err != nil || cmd.X == nil || cmd.Y == nil {
		writeError(w, http.StatusBadRequest, "Can't parse json body, x and y are required", err)
		log.Warn("Obstacle HTTP route: Can't parse json body")
		return
	}

	id := mux.Vars(req)["id"]
	before, after, err := sim.moveObstacle(id, *cmd.X, *cmd.Y, cmd.Dragging)
	if err != nil {
		writeError(w, http.StatusNotFound, "Obstacle not found", err)
		return
	}
	log.Debug("POST /v1/obstacles: ", id, " moved to ", after.X, ",", after.Y)
	wsh.handleObstacleMove(before, after)

	writeJSON(w, http.StatusOK, after)
}

func toggleZone(w http.ResponseWriter, req *http.Request, token *JWTToken, sim *Simulation, wsh *WSRouter) {
	if !token.Capabilities.Layout {
		writeError(w, http.StatusForbidden, "Your token doesn't allow layout changes", nil)
		log.Warn("No-go zone HTTP route: token without layout cap")
		return
	}

	zone := sim.toggleZone()
	log.Info("POST /v1/nogozone: active=", zone.Active)
	wsh.handleZoneToggle(zone)

	writeJSON(w, http.StatusOK, zone)
}

func controlSimulation(w http.ResponseWriter, req *http.Request, token *JWTToken, sim *Simulation, wsh *WSRouter) {
	if !token.Capabilities.Control {
		writeError(w, http.StatusForbidden, "Your token doesn't allow simulation control", nil)
		log.Warn("Simulation HTTP route: token without control cap")
		return
	}

	var err error
	action := req.URL.Query().Get("action")
	switch action {
	case "start":
		err = sim.Start()
	case "pause":
		err = sim.Pause()
	case "resume":
		err = sim.Resume()
	case "step":
		sim.Step()
	case "reset":
		removed, restored := sim.Reset()
		wsh.handleAgentsRemoved(removed)
		for _, move := range restored {
			wsh.handleObstacleMove(move.Before, move.After)
		}
	default:
		writeError(w, http.StatusBadRequest, "Unknown action "+action, nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusConflict, "Can't "+action, err)
		return
	}
	log.Info("POST /v1/simulation: ", action)

	writeJSON(w, http.StatusOK, sim.metrics())
}

func getGeoJSON(w http.ResponseWriter, req *http.Request, token *JWTToken, sim *Simulation, wsh *WSRouter) {
	b, err := sim.geoJSON().MarshalJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Can't export GeoJSON", err)
		return
	}
	w.Header().Set("Content-type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

func ingestTelemetry(w http.ResponseWriter, req *http.Request, token *JWTToken, sim *Simulation, wsh *WSRouter) {
	data := map[string]interface{}{}
	if err := json.NewDecoder(req.Body).Decode(&data); err != nil {
		writeError(w, http.StatusBadRequest, "Can't parse json body", err)
		return
	}
	record, err := sim.ingestTelemetry(data)
	switch {
	case errors.Is(err, ErrEmptyTelemetry):
		writeError(w, http.StatusBadRequest, "Can't store telemetry", err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Can't store telemetry", err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Status string `json:"status"`
		ID     string `json:"id"`
	}{"ok", record.ID})
}

func listTelemetry(w http.ResponseWriter, req *http.Request, token *JWTToken, sim *Simulation, wsh *WSRouter) {
	records, err := sim.telemetry()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Can't read telemetry", err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Rows []TelemetryRecord `json:"rows"`
	}{records})
}

func setLogLevel(w http.ResponseWriter, req *http.Request) {
	if !authorizedBearer(req) {
		w.WriteHeader(http.StatusUnauthorized)
		log.Warn("Unauthorized attempt to set log level")
		return
	}

	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		log.Warn("Wrong HTTP method to set log level")
		return
	}

	level, err := logrus.ParseLevel(req.URL.Query().Get("level"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid log level", err)
		log.Warn("Invalid log level, ", req.URL.Query().Get("level"))
		return
	}
	log.Info("Setting log level to ", level)
	log.SetLevel(level)
	w.WriteHeader(http.StatusOK)
}
