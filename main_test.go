package main

import (
	"testing"
	"time"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(nil, envOf(nil))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HostPort != "localhost:8000" || cfg.DBFile != "flow.db" || cfg.SSL || cfg.Dev {
		t.Error("unexpected defaults", cfg)
	}
	if cfg.Simulation.Interval != DefaultSimulationConfig().Interval {
		t.Error("tick interval should default to the simulation config", cfg.Simulation.Interval)
	}
}

func TestLoadConfigEnvOverridesFlags(t *testing.T) {
	cfg, err := loadConfig([]string{"-host", "0.0.0.0:9000", "-tick", "50ms", "-seed", "3"}, envOf(map[string]string{
		"HOST_PORT":       "127.0.0.1:9100",
		"SEED":            "11",
		"ORIGIN":          "http://a.test,http://b.test",
		"DEV":             "1",
		"WEBHOOK_URL":     "http://hooks.test/flow",
		"WEBHOOK_HEADERS": `{"X-Key":"abc"}`,
		"WEBHOOK_BEARER":  "bearer",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HostPort != "127.0.0.1:9100" {
		t.Error("HOST_PORT should win over -host", cfg.HostPort)
	}
	if cfg.Simulation.Interval != 50*time.Millisecond {
		t.Error("-tick not applied", cfg.Simulation.Interval)
	}
	if cfg.Simulation.Seed != 11 {
		t.Error("SEED should win over -seed", cfg.Simulation.Seed)
	}
	if len(cfg.Origins) != 2 || cfg.Origins[1] != "http://b.test" {
		t.Error("ORIGIN not split", cfg.Origins)
	}
	if !cfg.Dev {
		t.Error("DEV not applied")
	}
	if cfg.WebhookHeaders["X-Key"] != "abc" || cfg.WebhookBearer != "bearer" {
		t.Error("webhook settings not read", cfg.WebhookHeaders, cfg.WebhookBearer)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	for _, env := range []map[string]string{
		{"TICK_INTERVAL": "fast"},
		{"TICK_INTERVAL": "0s"},
		{"SEED": "seven"},
		{"WEBHOOK_URL": "http://hooks.test", "WEBHOOK_HEADERS": "{"},
	} {
		if _, err := loadConfig(nil, envOf(env)); err == nil {
			t.Error("expected an error for", env)
		}
	}
	if _, err := loadConfig([]string{"-nope"}, envOf(nil)); err == nil {
		t.Error("unknown flag should fail")
	}
}
