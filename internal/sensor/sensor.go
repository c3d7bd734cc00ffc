// internal/sensor/sensor.go
package sensor

import (
	"slices"
	"strconv"
	"time"

	"github.com/tamzrod/deye-bridge/internal/registers"
)

// Sensor describes one published reading: where it lives in the register
// map, how to decode it and how Home Assistant should present it.
type Sensor struct {
	Name        string
	TopicSuffix string
	Unit        string
	DeviceClass string
	StateClass  string
	Groups      []string
	Precision   int

	// Registers lists every address decode needs.
	Registers []uint16

	decode func(registers.Map) float64
}

// Read derives the value from regs. ok is false when any needed
// register is absent.
func (s *Sensor) Read(regs registers.Map) (value float64, ok bool) {
	if s.decode == nil || !regs.Has(s.Registers...) {
		return 0, false
	}
	return s.decode(regs), true
}

// InAnyGroup reports whether the sensor belongs to one of groups.
func (s *Sensor) InAnyGroup(groups []string) bool {
	for _, g := range groups {
		if slices.Contains(s.Groups, g) {
			return true
		}
	}
	return false
}

// Format renders v with the sensor precision.
func (s *Sensor) Format(v float64) string {
	return strconv.FormatFloat(v, 'f', s.Precision, 64)
}

// Observation is one decoded reading of one cycle.
type Observation struct {
	Sensor    *Sensor
	Timestamp time.Time
	Value     float64
}

func (o Observation) ValueString() string {
	return o.Sensor.Format(o.Value)
}

// Observe reads every sensor against regs with one shared timestamp.
// Sensors that cannot derive a value are skipped.
func Observe(sensors []*Sensor, regs registers.Map, at time.Time) []Observation {
	out := make([]Observation, 0, len(sensors))
	for _, s := range sensors {
		v, ok := s.Read(regs)
		if !ok {
			continue
		}
		out = append(out, Observation{Sensor: s, Timestamp: at, Value: v})
	}
	return out
}

// ---- decoders ----

func unsigned(addr uint16, factor float64) func(registers.Map) float64 {
	return func(m registers.Map) float64 {
		return float64(m[addr].Uint16()) * factor
	}
}

// lowHigh joins two registers, low word first.
func lowHigh(lo, hi uint16, factor float64) func(registers.Map) float64 {
	return func(m registers.Map) float64 {
		v := uint32(m[hi].Uint16())<<16 | uint32(m[lo].Uint16())
		return float64(v) * factor
	}
}

// offset applies (raw - off) * factor.
func offset(addr uint16, off, factor float64) func(registers.Map) float64 {
	return func(m registers.Map) float64 {
		return (float64(m[addr].Uint16()) - off) * factor
	}
}

// product multiplies two already scaled readings.
func product(a, b func(registers.Map) float64) func(registers.Map) float64 {
	return func(m registers.Map) float64 {
		return a(m) * b(m)
	}
}
