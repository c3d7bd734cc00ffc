// internal/config/load_test.go
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
logger:
  serial_number: 4175806782
  ip_address: 10.0.0.5
  port: 8899
poll:
  interval_s: 30
  ranges:
    - {first: 0x3c, last: 0x4f}
  metric_groups: [micro]
mqtt:
  host: broker.local
  topic_prefix: solar
  discovery:
    enabled: true
    node_id: roof
watchdog:
  enabled: false
`

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "deye.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_File(t *testing.T) {
	cfg, err := Load(writeFile(t, sample))
	require.NoError(t, err)

	assert.Equal(t, uint32(4175806782), cfg.Logger.SerialNumber)
	assert.Equal(t, "10.0.0.5", cfg.Logger.IPAddress)
	assert.Equal(t, 30, cfg.Poll.IntervalS)
	assert.Equal(t, []RangeConfig{{First: 0x3c, Last: 0x4f}}, cfg.Poll.Ranges)
	assert.Equal(t, "solar", cfg.MQTT.TopicPrefix)
	assert.True(t, cfg.MQTT.Discovery.Enabled)
	assert.Equal(t, "roof", cfg.MQTT.Discovery.NodeID)
	require.NoError(t, Validate(cfg))
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvLoggerIP, "192.168.2.156")
	t.Setenv(EnvLoggerPort, "8900")
	t.Setenv(EnvLoggerSerial, "1234567890")
	t.Setenv(EnvMQTTHost, "mqtt.example")
	t.Setenv(EnvMQTTPort, "1884")
	t.Setenv(EnvMQTTUsername, "user")
	t.Setenv(EnvMQTTPassword, "secret")
	t.Setenv(EnvMQTTPrefix, "inverter")
	t.Setenv(EnvLogLevel, "10")
	t.Setenv(EnvReadInterval, "15")
	t.Setenv(EnvMetricGroups, "{'micro'}")
	t.Setenv(EnvWatchdog, "true")

	cfg, err := Load(writeFile(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "192.168.2.156", cfg.Logger.IPAddress)
	assert.Equal(t, 8900, cfg.Logger.Port)
	assert.Equal(t, uint32(1234567890), cfg.Logger.SerialNumber)
	assert.Equal(t, "mqtt.example", cfg.MQTT.Host)
	assert.Equal(t, 1884, cfg.MQTT.Port)
	assert.Equal(t, "user", cfg.MQTT.Username)
	assert.Equal(t, "secret", cfg.MQTT.Password)
	assert.Equal(t, "inverter", cfg.MQTT.TopicPrefix)
	assert.Equal(t, "10", cfg.Log.Level)
	assert.Equal(t, 15, cfg.Poll.IntervalS)
	assert.Equal(t, []string{"micro"}, cfg.Poll.MetricGroups)
	assert.True(t, cfg.Watchdog.Enabled)

	require.NoError(t, Validate(cfg))
	Normalize(cfg)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv(EnvLoggerIP, "10.1.1.1")
	t.Setenv(EnvLoggerSerial, "42")
	t.Setenv(EnvMQTTHost, "localhost")

	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))
}

func TestLoad_EnvRejectsBadNumbers(t *testing.T) {
	cases := []struct {
		env, value string
	}{
		{EnvLoggerSerial, "4294967297"},
		{EnvLoggerSerial, "-1"},
		{EnvLoggerPort, "eighty"},
		{EnvLoggerPort, "70000"},
		{EnvMQTTPort, "1883x"},
		{EnvReadInterval, "soon"},
		{EnvWatchdog, "maybe"},
	}

	for _, tc := range cases {
		t.Run(tc.env+"="+tc.value, func(t *testing.T) {
			t.Setenv(tc.env, tc.value)

			cfg, err := Load("")
			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.env)
		})
	}
}

func TestLoad_EnvWatchdogCapitalised(t *testing.T) {
	t.Setenv(EnvWatchdog, "True")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Watchdog.Enabled)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read")

	_, err = Load(writeFile(t, "logger:\n  unknown_key: 1\n"))
	assert.ErrorContains(t, err, "parse")
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"micro"}, splitList("micro"))
	assert.Equal(t, []string{"micro", "string"}, splitList("micro, string"))
	assert.Equal(t, []string{"micro", "string"}, splitList("{'micro','string'}"))
	assert.Empty(t, splitList(""))
}

func TestLogConfig_Logger(t *testing.T) {
	var buf bytes.Buffer
	log := LogConfig{Level: "30", Format: "json"}.Logger(&buf)

	log.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	log.Warn().Str("component", "test").Msg("shown")
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"component":"test"`)
}
