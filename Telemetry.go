package main

import (
	"errors"
	"sort"
	"time"

	"choreographer.io/FlowServer/fleet"
	"github.com/google/uuid"
)

var (
	// ErrEmptyTelemetry is returned for records without any field
	ErrEmptyTelemetry = errors.New("Telemetry record is empty")
)

// TelemetryRecord is a free form measurement sent by a robot or a tool
type TelemetryRecord struct {
	ID       string                 `json:"id"`
	Run      string                 `json:"run"`
	Received time.Time              `json:"received"`
	Data     map[string]interface{} `json:"data"`
}

// RunSummary is stored when a run completes or is reset
type RunSummary struct {
	ID       string      `json:"id"`
	Reason   string      `json:"reason"`
	Finished time.Time   `json:"finished"`
	Elapsed  float64     `json:"elapsedSeconds"`
	Stats    fleet.Stats `json:"stats"`
}

func (s *Simulation) ingestTelemetry(data map[string]interface{}) (*TelemetryRecord, error) {
	if len(data) == 0 {
		return nil, ErrEmptyTelemetry
	}

	record := &TelemetryRecord{
		ID:       uuid.New().String(),
		Run:      s.RunID(),
		Received: time.Now().UTC(),
		Data:     data,
	}
	if err := s.persister.persistTelemetry(record); err != nil {
		return nil, err
	}
	return record, nil
}

// telemetry returns the stored records, oldest first
func (s *Simulation) telemetry() ([]TelemetryRecord, error) {
	records, err := s.persister.readTelemetry()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Received.Before(records[j].Received)
	})
	return records, nil
}
