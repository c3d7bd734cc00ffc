// internal/poller/types.go
package poller

import (
	"fmt"
	"time"

	"github.com/tamzrod/deye-bridge/internal/registers"
	"github.com/tamzrod/deye-bridge/internal/sensor"
)

// Range is one inclusive register range read in a single request.
// Geometry only: no semantics.
type Range struct {
	First uint16
	Last  uint16
}

func (r Range) String() string {
	return fmt.Sprintf("0x%02x-0x%02x", r.First, r.Last)
}

// CycleResult is a snapshot produced by one poll cycle.
type CycleResult struct {
	// At is the single timestamp shared by every observation.
	At time.Time

	// Registers holds every range merged before the cycle stopped.
	Registers registers.Map

	Observations []sensor.Observation

	Err         error  // non-nil means the cycle did not read every range
	FailedRange *Range // the range that aborted the cycle, if any
}
