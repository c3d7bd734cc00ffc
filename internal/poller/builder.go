// internal/poller/builder.go
package poller

import (
	"time"

	"github.com/rs/zerolog"

	cfg "github.com/tamzrod/deye-bridge/internal/config"
	"github.com/tamzrod/deye-bridge/internal/inverter"
	"github.com/tamzrod/deye-bridge/internal/publisher"
	"github.com/tamzrod/deye-bridge/internal/sensor"
	"github.com/tamzrod/deye-bridge/internal/solarman"
	"github.com/tamzrod/deye-bridge/internal/transport"
	"github.com/tamzrod/deye-bridge/internal/watchdog"
)

// BuildInverter wires transport and register protocol for one logger.
// Every exchange opens its own connection; nothing to close.
// feeder may be nil.
func BuildInverter(l cfg.LoggerConfig, feeder watchdog.Feeder, log zerolog.Logger) (*inverter.Client, error) {
	if feeder == nil {
		feeder = watchdog.Nop{}
	}

	tr, err := transport.New(
		transport.Config{
			Address:  l.Address(),
			Timeout:  l.Timeout(),
			Attempts: l.Attempts,
		},
		transport.WithHeartbeat(feeder.Feed),
	)
	if err != nil {
		return nil, err
	}

	return inverter.New(
		inverter.Config{
			Identity: solarman.Identity{SerialNumber: l.SerialNumber},
			SlaveID:  l.SlaveID,
		},
		tr,
		log,
	), nil
}

// Build constructs a Poller from validated, normalized configuration.
// The watchdog is fed through the transport heartbeat as well.
func Build(c *cfg.Config, pub publisher.Publisher, feeder watchdog.Feeder, log zerolog.Logger, opts ...Option) (*Poller, error) {
	client, err := BuildInverter(c.Logger, feeder, log)
	if err != nil {
		return nil, err
	}

	ranges := make([]Range, 0, len(c.Poll.Ranges))
	for _, r := range c.Poll.Ranges {
		ranges = append(ranges, Range{First: r.First, Last: r.Last})
	}

	base := []Option{WithLogger(log)}
	if feeder != nil {
		var every time.Duration
		if s, ok := feeder.(*watchdog.Systemd); ok {
			every = s.FeedInterval()
		}
		base = append(base, WithWatchdog(feeder, every))
	}

	return New(
		Config{
			Interval:   c.Poll.Interval(),
			Ranges:     ranges,
			Sensors:    sensor.Active(c.Poll.MetricGroups),
			FreeMemory: c.Poll.FreeMemory,
		},
		client,
		pub,
		append(base, opts...)...,
	)
}
