// internal/config/validate.go
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tamzrod/deye-bridge/internal/registers"
	"github.com/tamzrod/deye-bridge/internal/sensor"
)

// MaxAttempts bounds the read retry budget per exchange.
const MaxAttempts = 10

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
//
// Zero values are accepted wherever Normalize supplies a default.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if err := ValidateLogger(cfg.Logger); err != nil {
		return err
	}

	// ------------------------------------------------------------
	// POLL GEOMETRY
	// ------------------------------------------------------------

	if cfg.Poll.IntervalS < 0 {
		return fmt.Errorf("poll.interval_s must not be negative")
	}

	type span struct {
		first uint16
		last  uint16
	}
	var spans []span

	for i, r := range cfg.Poll.Ranges {
		if err := registers.CheckRange(r.First, r.Last); err != nil {
			return fmt.Errorf("poll.ranges[%d]: %w", i, err)
		}
		for _, s := range spans {
			// overlap check (inclusive)
			if !(r.Last < s.first || r.First > s.last) {
				return fmt.Errorf(
					"poll.ranges[%d]: range 0x%x-0x%x overlaps 0x%x-0x%x",
					i,
					r.First,
					r.Last,
					s.first,
					s.last,
				)
			}
		}
		spans = append(spans, span{first: r.First, last: r.Last})
	}

	for _, g := range cfg.Poll.MetricGroups {
		if !sensor.KnownGroup(g) {
			return fmt.Errorf("poll.metric_groups: unknown group %q", g)
		}
	}

	// ------------------------------------------------------------
	// PUBLISHER
	// ------------------------------------------------------------

	switch cfg.Publisher.Kind {
	case "", PublisherMQTT:
		if cfg.MQTT.Host == "" {
			return fmt.Errorf("mqtt.host is required")
		}
		if cfg.MQTT.Port < 0 || cfg.MQTT.Port > 65535 {
			return fmt.Errorf("mqtt.port %d out of range", cfg.MQTT.Port)
		}
		if cfg.MQTT.KeepAliveS < 0 {
			return fmt.Errorf("mqtt.keepalive_s must not be negative")
		}
	case PublisherNATS:
		if cfg.NATS.URL == "" {
			return fmt.Errorf("nats.url is required")
		}
	default:
		return fmt.Errorf("publisher.kind %q: expected %s or %s", cfg.Publisher.Kind, PublisherMQTT, PublisherNATS)
	}

	// ------------------------------------------------------------
	// AMBIENT
	// ------------------------------------------------------------

	if _, ok := levelName(cfg.Log.Level); !ok {
		return fmt.Errorf("log.level %q is not recognised", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("log.format %q: expected console or json", cfg.Log.Format)
	}
	if cfg.Connectivity.MaxOfflineS < 0 {
		return fmt.Errorf("connectivity.max_offline_s must not be negative")
	}

	return nil
}

// ValidateLogger checks only the logger section. The one-shot CLIs need
// nothing else.
func ValidateLogger(l LoggerConfig) error {
	if l.IPAddress == "" {
		return fmt.Errorf("logger.ip_address is required")
	}
	if l.SerialNumber == 0 {
		return fmt.Errorf("logger.serial_number is required")
	}
	if l.Port < 0 || l.Port > 65535 {
		return fmt.Errorf("logger.port %d out of range", l.Port)
	}
	if l.Attempts < 0 || l.Attempts > MaxAttempts {
		return fmt.Errorf("logger.attempts %d must be between 1 and %d", l.Attempts, MaxAttempts)
	}
	if l.TimeoutMs < 0 {
		return fmt.Errorf("logger.timeout_ms must not be negative")
	}
	return nil
}

// levelName maps a level name or a numeric level (10/20/30/40/50) to
// the canonical name. Empty maps to info.
func levelName(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return "info", true
	case "debug", "info", "warn", "error":
		return s, true
	case "warning":
		return "warn", true
	case "critical", "fatal":
		return "error", true
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return "", false
	}
	switch {
	case n <= 10:
		return "debug", true
	case n <= 20:
		return "info", true
	case n <= 30:
		return "warn", true
	default:
		return "error", true
	}
}
