// internal/modbuscrc/crc.go
package modbuscrc

import (
	"encoding/binary"
	"fmt"

	"github.com/sigurn/crc16"
	"github.com/tamzrod/deye-bridge/internal/fault"
)

// CRC-16/MODBUS: reflected poly 0xA001, init 0xFFFF, no final xor.
var table = crc16.MakeTable(crc16.CRC16_MODBUS)

// Checksum returns the Modbus RTU CRC of data.
func Checksum(data []byte) uint16 {
	return crc16.Checksum(data, table)
}

// Append appends the CRC of data to dst, low byte first
// (the wire order of a Modbus RTU frame).
func Append(dst []byte, data []byte) []byte {
	sum := Checksum(data)
	return append(dst, byte(sum), byte(sum>>8))
}

// Format renders a checksum as 4 zero-padded upper-case hex digits.
func Format(sum uint16) string {
	return fmt.Sprintf("%04X", sum)
}

// MismatchError reports a frame whose trailing CRC does not match its body.
type MismatchError struct {
	Expected uint16 // computed over the body
	Actual   uint16 // carried by the frame
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("modbus crc mismatch: expected 0x%s, got 0x%s", Format(e.Expected), Format(e.Actual))
}

func (e *MismatchError) Unwrap() error { return fault.ErrChecksum }

// Verify checks the little-endian CRC carried in the last two bytes of frame.
func Verify(frame []byte) error {
	if len(frame) < 2 {
		return fmt.Errorf("%w: frame shorter than crc", fault.ErrMalformed)
	}
	n := len(frame) - 2
	expected := Checksum(frame[:n])
	actual := binary.LittleEndian.Uint16(frame[n:])
	if expected != actual {
		return &MismatchError{Expected: expected, Actual: actual}
	}
	return nil
}
