// internal/registers/registers.go
package registers

import (
	"encoding/binary"
	"maps"
)

// Value is the raw big-endian content of one holding register.
type Value [2]byte

// Uint16 returns the register as an unsigned integer.
func (v Value) Uint16() uint16 { return binary.BigEndian.Uint16(v[:]) }

// Int16 returns the register as a two's complement integer.
func (v Value) Int16() int16 { return int16(v.Uint16()) }

// High is the first (most significant) byte on the wire.
func (v Value) High() byte { return v[0] }

// Low is the second (least significant) byte on the wire.
func (v Value) Low() byte { return v[1] }

// Map holds the registers read during one cycle, keyed by address.
type Map map[uint16]Value

// Uint16 looks up a register as an unsigned integer.
func (m Map) Uint16(addr uint16) (uint16, bool) {
	v, ok := m[addr]
	if !ok {
		return 0, false
	}
	return v.Uint16(), true
}

// Int16 looks up a register as a signed integer.
func (m Map) Int16(addr uint16) (int16, bool) {
	v, ok := m[addr]
	if !ok {
		return 0, false
	}
	return v.Int16(), true
}

// Has reports whether every address is present.
func (m Map) Has(addrs ...uint16) bool {
	for _, a := range addrs {
		if _, ok := m[a]; !ok {
			return false
		}
	}
	return true
}

// Merge copies every register of other into m.
func (m Map) Merge(other Map) {
	for k, v := range other {
		m[k] = v
	}
}

// Clone returns an independent copy; nil stays nil.
func (m Map) Clone() Map {
	return maps.Clone(m)
}
