package main

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"choreographer.io/FlowServer/fleet"
	"github.com/paulmach/orb"
)

func openBoltSimulation(t *testing.T, file string) (*Simulation, Persister) {
	cfg := DefaultSimulationConfig()
	cfg.Interval = time.Hour
	cfg.Seed = 7
	p := newBoltDBPersister(file)
	sim := NewSimulation(p, cfg)
	return sim, p
}

func TestBoltLayoutSurvivesRestart(t *testing.T) {
	file := filepath.Join(t.TempDir(), "flow.db")

	sim, p := openBoltSimulation(t, file)
	sim.moveObstacle("obstacle_12", 900, 50, false)
	sim.toggleZone()
	sim.Close()
	p.close()

	sim, p = openBoltSimulation(t, file)
	defer p.close()
	defer sim.Close()

	env := sim.Environment()
	if len(env.Obstacles) != 20 {
		t.Fatalf("expected 20 racks, got %d", len(env.Obstacles))
	}
	for i, o := range env.Obstacles {
		if o.ID != DefaultRacks()[i].ID {
			t.Fatalf("layout order lost at %d: %s", i, o.ID)
		}
	}
	if o := env.Obstacles[12]; o.X != 900 || o.Y != 50 {
		t.Errorf("obstacle_12 should have kept its place, got %+v", o)
	}
	if env.Zone.Active {
		t.Error("the zone should still be inactive")
	}
	if hits := sim.obstaclesAt(orb.Point{920, 70}); len(hits) != 1 {
		t.Error("loaded racks should be in the quad")
	}
}

func TestBoltTelemetryAndRuns(t *testing.T) {
	file := filepath.Join(t.TempDir(), "flow.db")
	sim, p := openBoltSimulation(t, file)
	defer p.close()
	defer sim.Close()

	first, err := sim.ingestTelemetry(map[string]interface{}{"battery": 0.9})
	if err != nil {
		t.Fatal(err)
	}
	sim.ingestTelemetry(map[string]interface{}{"battery": 0.8})

	records, err := sim.telemetry()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || records[0].ID != first.ID || records[0].Data["battery"] != 0.9 {
		t.Errorf("unexpected records %+v", records)
	}

	sim.addAgent(&fleet.Mission{Start: orb.Point{850, 600}, End: orb.Point{950, 600}})
	sim.Step()
	sim.Reset()

	dump := p.(*boltDBPersister).JSONDump()
	if !strings.Contains(dump, `"reason":"reset"`) {
		t.Errorf("the run summary should be dumped, got %s", dump)
	}
}

func TestBoltPrivateRoutes(t *testing.T) {
	file := filepath.Join(t.TempDir(), "flow.db")
	sim, p := openBoltSimulation(t, file)
	defer p.close()
	defer sim.Close()

	WebhookBearerToken = "secret"
	defer func() { WebhookBearerToken = "" }()

	rec := httptest.NewRecorder()
	p.JSONDumpHandleFunc(rec, httptest.NewRequest(http.MethodGet, "/api/private/jsondump", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/private/backup", nil)
	req.Header.Set("Authorization", "secret")
	rec = httptest.NewRecorder()
	p.BackupHandleFunc(rec, req)
	if rec.Code != http.StatusOK || rec.Body.Len() == 0 {
		t.Errorf("expected a backup, got %d", rec.Code)
	}
}
