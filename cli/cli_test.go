package cli

import (
	"os"
	"path/filepath"
	"testing"

	"myohand/config"
)

func TestParseFlagsAndApply(t *testing.T) {
	opts, err := ParseFlags([]string{"-config", "hand.yaml", "-port", "8080", "-bus", "dynamixel", "-serial", "/dev/ttyACM0"})
	if err != nil {
		t.Fatal(err)
	}
	if opts.ConfigPath != "hand.yaml" {
		t.Errorf("config path = %s", opts.ConfigPath)
	}

	cfg := config.GetDefaultConfig()
	opts.Apply(cfg)
	if cfg.Server.Port != "8080" || cfg.Bus.Type != "dynamixel" || cfg.Bus.Device != "/dev/ttyACM0" {
		t.Errorf("flags not applied: %+v %+v", cfg.Server, cfg.Bus)
	}
	if cfg.MQTT.Broker != config.GetDefaultConfig().MQTT.Broker {
		t.Errorf("unset flag overwrote broker: %s", cfg.MQTT.Broker)
	}
}

func TestEnvironmentOverridesFlags(t *testing.T) {
	t.Setenv("WEB_PORT", "9100")
	t.Setenv("MQTT_BROKER", "broker.local")
	t.Setenv("MQTT_PORT", "1884")

	opts, err := ParseFlags([]string{"-port", "8080"})
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.GetDefaultConfig()
	opts.Apply(cfg)
	if cfg.Server.Port != "9100" || cfg.MQTT.Broker != "broker.local" || cfg.MQTT.Port != 1884 {
		t.Errorf("env not applied: port=%s broker=%s mqtt_port=%d", cfg.Server.Port, cfg.MQTT.Broker, cfg.MQTT.Port)
	}
}

func TestLoadEnv(t *testing.T) {
	if err := LoadEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing file should be ignored: %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("BUS_TYPE=sim\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BUS_TYPE", "")
	os.Unsetenv("BUS_TYPE")
	if err := LoadEnv(path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("BUS_TYPE"); got != "sim" {
		t.Errorf("BUS_TYPE = %q", got)
	}
}

func TestParseFlagsRejectsUnknown(t *testing.T) {
	if _, err := ParseFlags([]string{"-can-url", "x"}); err == nil {
		t.Error("unknown flag accepted")
	}
}
