// internal/publisher/publisher.go
package publisher

import (
	"strings"
	"time"

	"github.com/tamzrod/deye-bridge/internal/sensor"
	"github.com/tamzrod/deye-bridge/internal/status"
)

// Publisher delivers one cycle's observations as a batch.
type Publisher interface {
	Publish(obs []sensor.Observation) error
	Close()
}

// StatusWriter is the delivery-only contract for cycle health.
// It receives a snapshot and writes it verbatim.
// No logic, no interpretation.
type StatusWriter interface {
	WriteStatus(s status.Snapshot) error
}

// LinkMonitor reports how long the outbound link has been down.
// Zero means connected.
type LinkMonitor interface {
	OfflineFor(now time.Time) time.Duration
}

const (
	// HealthSuffix is where the cycle health document is published.
	HealthSuffix = "logger/health"
	// AvailabilitySuffix carries "online" / "offline".
	AvailabilitySuffix = "status"

	payloadOnline  = "online"
	payloadOffline = "offline"

	defaultPublishTimeout = 5 * time.Second
)

// topic joins a prefix and a sensor suffix with '/'.
func topic(prefix, suffix string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(suffix, "/")
}

// subject maps a topic suffix onto a NATS subject.
func subject(prefix, suffix string) string {
	s := strings.ReplaceAll(strings.Trim(suffix, "/"), "/", ".")
	return strings.TrimSuffix(prefix, ".") + "." + s
}

// statusGate decides whether a snapshot must be delivered: always after
// a failed write or on first use, otherwise only on change.
type statusGate struct {
	needFull bool
	last     status.Snapshot
}

func newStatusGate() statusGate {
	return statusGate{needFull: true, last: status.Snapshot{Health: status.HealthUnknown}}
}

func (g *statusGate) due(s status.Snapshot) bool {
	return g.needFull || g.last != s
}

func (g *statusGate) done(s status.Snapshot, err error) {
	if err != nil {
		// any failure introduces doubt; re-assert on next write
		g.needFull = true
		return
	}
	g.needFull = false
	g.last = s
}
