package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := GetDefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Retry.Backoff < cfg.Control.PollInterval {
		t.Fatalf("backoff %v tighter than poll interval %v", cfg.Retry.Backoff, cfg.Control.PollInterval)
	}
}

func TestLoadConfigParsesYaml(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := strings.TrimSpace(`
signal:
  sample_rate_hz: 200
  window_ms: 100
  overlap: 0.5
control:
  poll_interval: 10ms
retry:
  max_attempts: 5
  backoff: 5ms
actuators:
  - id: 1
    min: -1000
    max: 500
  - id: 2
    min: 2000
    max: 8000
mqtt:
  enabled: false
`)
	if err := os.WriteFile(path, []byte(configYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Signal.WindowMs != 100 || cfg.Signal.Overlap != 0.5 {
		t.Fatalf("signal section not applied: %+v", cfg.Signal)
	}
	if cfg.Control.PollInterval != 10*time.Millisecond {
		t.Fatalf("expected poll interval 10ms, got %v", cfg.Control.PollInterval)
	}
	// backoff 被提升到不小于轮询周期
	if cfg.Retry.Backoff != 10*time.Millisecond {
		t.Fatalf("expected backoff raised to 10ms, got %v", cfg.Retry.Backoff)
	}
	if a, ok := cfg.Actuator(2); !ok || a.Max != 8000 {
		t.Fatalf("actuator 2 not loaded: %+v", a)
	}
	if cfg.Classifier.History != 6 {
		t.Fatalf("classifier history default = %d, want 6", cfg.Classifier.History)
	}
}

func TestValidateClampsClassifierHistory(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Classifier.History = 0
	if err := Validate(cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Classifier.History != 1 {
		t.Fatalf("history = %d, want 1", cfg.Classifier.History)
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := SaveConfig(GetDefaultConfig(), path); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Poses["fist"][2] != 7000 {
		t.Fatalf("fist pose lost in round trip: %v", cfg.Poses)
	}
}

func TestValidateRejectsBadInput(t *testing.T) {
	cases := map[string]func(*Config){
		"overlap":        func(c *Config) { c.Signal.Overlap = 1 },
		"inverted bound": func(c *Config) { c.Actuators[0].Min = 600 },
		"duplicate id":   func(c *Config) { c.Actuators[1].ID = 1 },
		"unknown pose":   func(c *Config) { c.Poses["wave"] = map[int]int32{1: 0} },
		"pose actuator":  func(c *Config) { c.Poses["fist"][9] = 0 },
		"no broker":      func(c *Config) { c.MQTT.Broker = "" },
	}
	for name, mutate := range cases {
		cfg := GetDefaultConfig()
		mutate(cfg)
		if err := Validate(cfg); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}
