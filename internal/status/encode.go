// internal/status/encode.go
package status

import (
	"encoding/json"
	"time"
)

// Report is the wire form of a Snapshot.
type Report struct {
	Health         string `json:"health"`
	HealthCode     uint16 `json:"health_code"`
	LastErrorCode  uint16 `json:"last_error_code"`
	SecondsInError uint16 `json:"seconds_in_error"`
	At             string `json:"at"`
}

// Encode converts a Snapshot into its JSON document.
// No IO. No side effects.
func Encode(s Snapshot, at time.Time) ([]byte, error) {
	return json.Marshal(Report{
		Health:         HealthName(s.Health),
		HealthCode:     s.Health,
		LastErrorCode:  s.LastErrorCode,
		SecondsInError: s.SecondsInError,
		At:             at.UTC().Format(time.RFC3339),
	})
}
