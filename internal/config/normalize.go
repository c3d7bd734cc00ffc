// internal/config/normalize.go
package config

import (
	"github.com/google/uuid"

	"github.com/tamzrod/deye-bridge/internal/sensor"
)

// Defaults.
const (
	DefaultLoggerPort   = 8899
	DefaultSlaveID      = 1
	DefaultTimeoutMs    = 10_000
	DefaultAttempts     = MaxAttempts
	DefaultIntervalS    = 60
	DefaultMQTTPort     = 1883
	DefaultTopicPrefix  = "deye"
	DefaultKeepAliveS   = 120
	DefaultHassPrefix   = "homeassistant"
	DefaultMetricsGroup = sensor.GroupMicro
)

// DefaultRanges covers the micro inverter's live registers.
func DefaultRanges() []RangeConfig {
	return []RangeConfig{
		{First: 0x3c, Last: 0x4f},
		{First: 0x50, Last: 0x5f},
		{First: 0x6d, Last: 0x74},
	}
}

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	l := &cfg.Logger
	if l.Port == 0 {
		l.Port = DefaultLoggerPort
	}
	if l.SlaveID == 0 {
		l.SlaveID = DefaultSlaveID
	}
	if l.TimeoutMs == 0 {
		l.TimeoutMs = DefaultTimeoutMs
	}
	if l.Attempts == 0 {
		l.Attempts = DefaultAttempts
	}

	p := &cfg.Poll
	if p.IntervalS == 0 {
		p.IntervalS = DefaultIntervalS
	}
	if len(p.Ranges) == 0 {
		p.Ranges = DefaultRanges()
	}
	if len(p.MetricGroups) == 0 {
		p.MetricGroups = []string{DefaultMetricsGroup}
	}

	if cfg.Publisher.Kind == "" {
		cfg.Publisher.Kind = PublisherMQTT
	}

	m := &cfg.MQTT
	if m.Port == 0 {
		m.Port = DefaultMQTTPort
	}
	if m.TopicPrefix == "" {
		m.TopicPrefix = DefaultTopicPrefix
	}
	if m.KeepAliveS == 0 {
		m.KeepAliveS = DefaultKeepAliveS
	}
	if m.ClientID == "" {
		m.ClientID = "deye-bridge-" + uuid.NewString()
	}
	if m.Discovery.Prefix == "" {
		m.Discovery.Prefix = DefaultHassPrefix
	}

	if cfg.NATS.SubjectPrefix == "" {
		cfg.NATS.SubjectPrefix = DefaultTopicPrefix
	}

	cfg.Log.Level, _ = levelName(cfg.Log.Level)
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}
