package main

import (
	"net/http"

	"choreographer.io/FlowServer/geom"
)

type nullPersister struct{}

func newNullPersister() Persister {
	return &nullPersister{}
}

func (p *nullPersister) readLayoutInto(sim *Simulation) error {
	return nil
}
func (p *nullPersister) persistObstacle(o *Obstacle) error {
	return nil
}
func (p *nullPersister) persistZone(zone geom.NoGoZone) error {
	return nil
}
func (p *nullPersister) persistTelemetry(record *TelemetryRecord) error {
	return nil
}
func (p *nullPersister) readTelemetry() ([]TelemetryRecord, error) {
	return []TelemetryRecord{}, nil
}
func (p *nullPersister) persistRun(run *RunSummary) error {
	return nil
}

func (p *nullPersister) close() {}

func (p *nullPersister) BackupHandleFunc(w http.ResponseWriter, req *http.Request) {
}
func (p *nullPersister) JSONDumpHandleFunc(w http.ResponseWriter, req *http.Request) {
}
