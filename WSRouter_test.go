package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialTestView(t *testing.T, sim *Simulation, caps JWTTokenCaps) *websocket.Conn {
	SecretKey = "testKey"
	MessageSendInterval = 10 * time.Millisecond

	wsh := NewWSRouter(sim, nil)
	up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(wsh.handle(up)))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + testToken(t, caps)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestWSRequiresObserve(t *testing.T) {
	sim := newTestSimulation(t)
	conn := dialTestView(t, sim, JWTTokenCaps{HTTP: true})

	res := WSError{}
	if err := conn.ReadJSON(&res); err != nil {
		t.Fatal(err)
	}
	if res.Message != ErrCantObserve.Error() {
		t.Errorf("expected an observe error, got %+v", res)
	}
}

func TestWSViewReceivesStationsAndAgents(t *testing.T) {
	sim := newTestSimulation(t)
	conn := dialTestView(t, sim, JWTTokenCaps{Observe: true})

	conn.WriteJSON(JSONCommand{ViewPosition: &[4]float64{0, 0, 1000, 700}})
	entered := []map[string]interface{}{}
	if err := conn.ReadJSON(&entered); err != nil {
		t.Fatal(err)
	}
	if len(entered) != 18 {
		t.Errorf("the whole floor shows 18 stations, got %d", len(entered))
	}

	agent, err := sim.addAgent(openMission)
	if err != nil {
		t.Fatal(err)
	}
	sim.Step()

	moves := []map[string]interface{}{}
	if err := conn.ReadJSON(&moves); err != nil {
		t.Fatal(err)
	}
	if len(moves) != 1 || moves[0]["agent_id"] != float64(agent.ID) || moves[0]["state"] != "traveling" {
		t.Errorf("expected a move of agent %d, got %v", agent.ID, moves)
	}
}

func TestWSViewSizeAndMetrics(t *testing.T) {
	sim := newTestSimulation(t)
	conn := dialTestView(t, sim, JWTTokenCaps{Observe: true, MaxView: [2]float64{100, 100}})

	conn.WriteJSON(JSONCommand{ViewPosition: &[4]float64{0, 0, 500, 500}})
	res := WSError{}
	if err := conn.ReadJSON(&res); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(res.Error, "View size error") {
		t.Errorf("expected a view size error, got %+v", res)
	}

	conn.WriteJSON(JSONCommand{ViewPosition: &[4]float64{50, 50, 10, 10}})
	res = WSError{}
	conn.ReadJSON(&res)
	if res.Message != ErrInvalidViewPosition.Error() {
		t.Errorf("expected an invalid view error, got %+v", res)
	}

	conn.WriteJSON(JSONCommand{Metrics: true})
	m := struct {
		Metrics Metrics `json:"metrics"`
	}{}
	if err := conn.ReadJSON(&m); err != nil {
		t.Fatal(err)
	}
	if m.Metrics.State != Stopped || m.Metrics.Run == "" {
		t.Errorf("unexpected metrics %+v", m.Metrics)
	}
}

// readChange reads buffered batches until a change carrying key shows up
func readChange(t *testing.T, conn *websocket.Conn, key string) map[string]interface{} {
	t.Helper()
	for {
		batch := []map[string]interface{}{}
		if err := conn.ReadJSON(&batch); err != nil {
			t.Fatalf("no %s message: %v", key, err)
		}
		for _, m := range batch {
			if _, ok := m[key]; ok {
				return m
			}
		}
	}
}

func TestWSLayoutChangesReachOverlappingViews(t *testing.T) {
	sim := newTestSimulation(t)
	conn := dialTestView(t, sim, JWTTokenCaps{Observe: true})
	wsh := &WSRouter{sim: sim}

	// sees the first pickup and the corner of obstacle_0, not its center
	conn.WriteJSON(JSONCommand{ViewPosition: &[4]float64{0, 0, 110, 110}})
	readChange(t, conn, "station_id")

	before, after, err := sim.moveObstacle("obstacle_0", 600, 500, false)
	if err != nil {
		t.Fatal(err)
	}
	wsh.handleObstacleMove(before, after)
	m := readChange(t, conn, "obstacle")
	if o := m["obstacle"].(map[string]interface{}); o["id"] != "obstacle_0" {
		t.Errorf("unexpected obstacle message %v", m)
	}

	// overlaps the bottom right corner of the zone only
	conn.WriteJSON(JSONCommand{ViewPosition: &[4]float64{480, 280, 600, 400}})
	readChange(t, conn, "left")
	wsh.handleZoneToggle(sim.toggleZone())
	m = readChange(t, conn, "noGoZone")
	if z := m["noGoZone"].(map[string]interface{}); z["active"] != false {
		t.Errorf("unexpected zone message %v", m)
	}
}
