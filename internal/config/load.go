// internal/config/load.go
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Environment variables overriding file values.
const (
	EnvLoggerIP     = "DEYE_LOGGER_IP_ADDRESS"
	EnvLoggerPort   = "DEYE_LOGGER_PORT"
	EnvLoggerSerial = "DEYE_LOGGER_SERIAL_NUMBER"
	EnvMQTTHost     = "MQTT_HOST"
	EnvMQTTPort     = "MQTT_PORT"
	EnvMQTTUsername = "MQTT_USERNAME"
	EnvMQTTPassword = "MQTT_PASSWORD"
	EnvMQTTPrefix   = "MQTT_TOPIC_PREFIX"
	EnvLogLevel     = "LOG_LEVEL"
	EnvReadInterval = "DEYE_DATA_READ_INTERVAL"
	EnvMetricGroups = "DEYE_METRIC_GROUPS"
	EnvWatchdog     = "WDT_ENABLE"
)

var envBindings = []struct{ key, env string }{
	{"logger.ip_address", EnvLoggerIP},
	{"logger.port", EnvLoggerPort},
	{"logger.serial_number", EnvLoggerSerial},
	{"mqtt.host", EnvMQTTHost},
	{"mqtt.port", EnvMQTTPort},
	{"mqtt.username", EnvMQTTUsername},
	{"mqtt.password", EnvMQTTPassword},
	{"mqtt.topic_prefix", EnvMQTTPrefix},
	{"log.level", EnvLogLevel},
	{"poll.interval_s", EnvReadInterval},
	{"poll.metric_groups", EnvMetricGroups},
	{"watchdog.enabled", EnvWatchdog},
}

// Load reads the YAML file at path (optional when empty) and applies
// environment overrides. It does not validate or normalize.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	v := viper.New()
	for _, b := range envBindings {
		if err := v.BindEnv(b.key, b.env); err != nil {
			return fmt.Errorf("config: bind %s: %w", b.env, err)
		}
	}

	set := func(key string) bool { return v.IsSet(key) }

	if set("logger.ip_address") {
		cfg.Logger.IPAddress = v.GetString("logger.ip_address")
	}
	if set("logger.port") {
		n, err := envUint(v, "logger.port", 16)
		if err != nil {
			return err
		}
		cfg.Logger.Port = int(n)
	}
	if set("logger.serial_number") {
		n, err := envUint(v, "logger.serial_number", 32)
		if err != nil {
			return err
		}
		cfg.Logger.SerialNumber = uint32(n)
	}
	if set("mqtt.host") {
		cfg.MQTT.Host = v.GetString("mqtt.host")
	}
	if set("mqtt.port") {
		n, err := envUint(v, "mqtt.port", 16)
		if err != nil {
			return err
		}
		cfg.MQTT.Port = int(n)
	}
	if set("mqtt.username") {
		cfg.MQTT.Username = v.GetString("mqtt.username")
	}
	if set("mqtt.password") {
		cfg.MQTT.Password = v.GetString("mqtt.password")
	}
	if set("mqtt.topic_prefix") {
		cfg.MQTT.TopicPrefix = v.GetString("mqtt.topic_prefix")
	}
	if set("log.level") {
		cfg.Log.Level = v.GetString("log.level")
	}
	if set("poll.interval_s") {
		n, err := envUint(v, "poll.interval_s", 31)
		if err != nil {
			return err
		}
		cfg.Poll.IntervalS = int(n)
	}
	if set("poll.metric_groups") {
		cfg.Poll.MetricGroups = splitList(v.GetString("poll.metric_groups"))
	}
	if set("watchdog.enabled") {
		b, err := strconv.ParseBool(strings.TrimSpace(v.GetString("watchdog.enabled")))
		if err != nil {
			return fmt.Errorf("config: %s: %w", envName("watchdog.enabled"), err)
		}
		cfg.Watchdog.Enabled = b
	}
	return nil
}

// envUint parses the bound variable as a decimal unsigned integer of
// the given bit size. Out of range or non-numeric values are errors.
func envUint(v *viper.Viper, key string, bits int) (uint64, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(v.GetString(key)), 10, bits)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", envName(key), err)
	}
	return n, nil
}

func envName(key string) string {
	for _, b := range envBindings {
		if b.key == key {
			return b.env
		}
	}
	return key
}

// splitList accepts "a,b", "a b" and "{'a','b'}".
func splitList(s string) []string {
	s = strings.Trim(s, "{}[] ")
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' '
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, `'"`)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
