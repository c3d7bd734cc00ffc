// internal/config/validate_test.go
package config

import (
	"strings"
	"testing"
)

// helper to build a minimal valid config quickly
func minimal() *Config {
	return &Config{
		Logger: LoggerConfig{
			SerialNumber: 4175806782,
			IPAddress:    "192.168.2.156",
		},
		MQTT: MQTTConfig{Host: "broker.local"},
	}
}

// ---- tests ----

func TestValidate_Minimal(t *testing.T) {
	if err := Validate(minimal()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_DoesNotMutate(t *testing.T) {
	cfg := minimal()
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Logger.Port != 0 || cfg.Poll.IntervalS != 0 || cfg.Publisher.Kind != "" {
		t.Fatalf("validate mutated config: %+v", cfg)
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := []struct {
		name string
		mod  func(c *Config)
		want string
	}{
		{"missing ip", func(c *Config) { c.Logger.IPAddress = "" }, "ip_address"},
		{"missing serial", func(c *Config) { c.Logger.SerialNumber = 0 }, "serial_number"},
		{"port", func(c *Config) { c.Logger.Port = 70000 }, "logger.port"},
		{"attempts", func(c *Config) { c.Logger.Attempts = 11 }, "attempts"},
		{"interval", func(c *Config) { c.Poll.IntervalS = -1 }, "interval_s"},
		{"inverted range", func(c *Config) {
			c.Poll.Ranges = []RangeConfig{{First: 0x50, Last: 0x3c}}
		}, "first"},
		{"range too large", func(c *Config) {
			c.Poll.Ranges = []RangeConfig{{First: 0, Last: 0xFFFF}}
		}, "at most 125"},
		{"range over read limit", func(c *Config) {
			c.Poll.Ranges = []RangeConfig{{First: 0x3c, Last: 0x3c + 125}}
		}, "126 registers"},
		{"overlapping ranges", func(c *Config) {
			c.Poll.Ranges = []RangeConfig{{First: 0x3c, Last: 0x4f}, {First: 0x4f, Last: 0x5f}}
		}, "overlaps"},
		{"unknown group", func(c *Config) { c.Poll.MetricGroups = []string{"hybrid"} }, "hybrid"},
		{"mqtt host", func(c *Config) { c.MQTT.Host = "" }, "mqtt.host"},
		{"nats url", func(c *Config) { c.Publisher.Kind = PublisherNATS }, "nats.url"},
		{"publisher kind", func(c *Config) { c.Publisher.Kind = "kafka" }, "publisher.kind"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"max offline", func(c *Config) { c.Connectivity.MaxOfflineS = -5 }, "max_offline_s"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := minimal()
			tc.mod(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestValidate_AdjacentRangesAllowed(t *testing.T) {
	cfg := minimal()
	cfg.Poll.Ranges = DefaultRanges()

	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_NATSWithoutMQTTHost(t *testing.T) {
	cfg := minimal()
	cfg.MQTT.Host = ""
	cfg.Publisher.Kind = PublisherNATS
	cfg.NATS.URL = "nats://127.0.0.1:4222"

	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNormalize_Defaults(t *testing.T) {
	cfg := minimal()
	Normalize(cfg)

	if cfg.Logger.Port != 8899 || cfg.Logger.SlaveID != 1 {
		t.Fatalf("logger defaults: %+v", cfg.Logger)
	}
	if cfg.Logger.Attempts != 10 || cfg.Logger.TimeoutMs != 10_000 {
		t.Fatalf("transport defaults: %+v", cfg.Logger)
	}
	if cfg.Poll.IntervalS != 60 || len(cfg.Poll.Ranges) != 3 {
		t.Fatalf("poll defaults: %+v", cfg.Poll)
	}
	if len(cfg.Poll.MetricGroups) != 1 || cfg.Poll.MetricGroups[0] != "micro" {
		t.Fatalf("metric groups: %v", cfg.Poll.MetricGroups)
	}
	if cfg.Publisher.Kind != PublisherMQTT {
		t.Fatalf("publisher kind: %q", cfg.Publisher.Kind)
	}
	if cfg.MQTT.Port != 1883 || cfg.MQTT.TopicPrefix != "deye" || cfg.MQTT.KeepAliveS != 120 {
		t.Fatalf("mqtt defaults: %+v", cfg.MQTT)
	}
	if !strings.HasPrefix(cfg.MQTT.ClientID, "deye-bridge-") {
		t.Fatalf("client id: %q", cfg.MQTT.ClientID)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "console" {
		t.Fatalf("log defaults: %+v", cfg.Log)
	}
	if got := cfg.Logger.Address(); got != "192.168.2.156:8899" {
		t.Fatalf("address: %q", got)
	}
	if got := cfg.MQTT.Broker(); got != "tcp://broker.local:1883" {
		t.Fatalf("broker: %q", got)
	}
}

func TestNormalize_KeepsExplicitValues(t *testing.T) {
	cfg := minimal()
	cfg.Logger.Port = 9000
	cfg.MQTT.ClientID = "fixed"
	cfg.Poll.Ranges = []RangeConfig{{First: 1, Last: 2}}
	cfg.Log.Level = "10"
	Normalize(cfg)

	if cfg.Logger.Port != 9000 || cfg.MQTT.ClientID != "fixed" || len(cfg.Poll.Ranges) != 1 {
		t.Fatalf("explicit values overwritten: %+v", cfg)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("numeric level not mapped: %q", cfg.Log.Level)
	}
}

func TestNormalize_Nil(t *testing.T) {
	Normalize(nil)
}

func TestValidateLogger_IgnoresPublisher(t *testing.T) {
	cfg := minimal()
	cfg.MQTT.Host = ""

	if err := ValidateLogger(cfg.Logger); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected full validation to require mqtt.host")
	}
}
