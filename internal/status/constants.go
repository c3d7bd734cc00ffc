// internal/status/constants.go
package status

// ---- HEALTH CODES ----

// HealthUnknown represents the boot state, before the first cycle.
const HealthUnknown uint16 = 0

// HealthOK means the last cycle read every range.
const HealthOK uint16 = 1

// HealthError means the last cycle failed on at least one range.
const HealthError uint16 = 2

// HealthStale means no cycle completed within the expected time.
const HealthStale uint16 = 3

// ---- LIMITS ----

// MaxSecondsInError is where SecondsInError saturates.
const MaxSecondsInError = 65535

// HealthName returns a stable lowercase label for a health code.
func HealthName(h uint16) string {
	switch h {
	case HealthOK:
		return "ok"
	case HealthError:
		return "error"
	case HealthStale:
		return "stale"
	default:
		return "unknown"
	}
}
