// internal/status/tracker.go
package status

import (
	"sync"
	"time"

	"github.com/tamzrod/deye-bridge/internal/fault"
)

// Snapshot is the health of the poll loop at one instant: what a status
// writer delivers and what the health endpoint reports.
type Snapshot struct {
	Health         uint16
	LastErrorCode  uint16 // fault code of the latest failure, 0 while healthy
	SecondsInError uint16 // saturates at MaxSecondsInError
}

// Tracker folds cycle outcomes into a Snapshot.
// Safe for concurrent use: the poll loop writes, the metrics endpoint reads.
type Tracker struct {
	mu sync.Mutex

	snap       Snapshot
	errorSince time.Time
	lastOK     time.Time
}

func NewTracker() *Tracker {
	return &Tracker{snap: Snapshot{Health: HealthUnknown}}
}

// Observe records one cycle outcome at now and returns the new snapshot.
func (t *Tracker) Observe(err error, now time.Time) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err == nil {
		t.errorSince = time.Time{}
		t.lastOK = now
		t.snap = Snapshot{Health: HealthOK}
		return t.snap
	}

	if t.errorSince.IsZero() {
		t.errorSince = now
	}

	secs := now.Sub(t.errorSince) / time.Second
	if secs > MaxSecondsInError {
		secs = MaxSecondsInError
	}
	if secs < 0 {
		secs = 0
	}

	t.snap = Snapshot{
		Health:         HealthError,
		LastErrorCode:  fault.Code(err),
		SecondsInError: uint16(secs),
	}
	return t.snap
}

// Snapshot returns the current state. A healthy state older than maxAge
// is reported stale; maxAge <= 0 disables the check.
func (t *Tracker) Snapshot(now time.Time, maxAge time.Duration) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.snap
	if maxAge > 0 && s.Health == HealthOK && now.Sub(t.lastOK) > maxAge {
		s.Health = HealthStale
	}
	return s
}
