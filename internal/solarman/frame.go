// internal/solarman/frame.go
package solarman

import (
	"encoding/binary"

	"github.com/tamzrod/deye-bridge/internal/modbuscrc"
)

// Identity authenticates every frame against one logger.
type Identity struct {
	SerialNumber uint32
}

// ---- frame geometry ----
//
// Request:
//   0     start        0xA5
//   1-2   length       LE, data field + inner payload + inner crc
//   3-4   control      0x10 0x45
//   5-6   prefix       0x00 0x00
//   7-10  serial       logger serial, LE
//   11-25 data field   0x02 + 14 x 0x00
//   26..  inner        Modbus RTU frame (without crc)
//   +2    inner crc    LE
//   +1    checksum     sum(frame[1:len-2]) & 0xFF
//   +1    end          0x15
//
// Response frames carry a 25 byte header instead of 26.

const (
	StartByte byte = 0xA5
	EndByte   byte = 0x15

	DataFieldLen      = 15
	RequestHeaderLen  = 11 + DataFieldLen
	ResponseHeaderLen = 25
	TrailerLen        = 2

	// ErrorFrameLen is the length of a logger-level rejection frame.
	ErrorFrameLen = 29
	// MinResponseLen holds the smallest useful inner frame (addr + fc + crc).
	MinResponseLen = ErrorFrameLen + 4
)

var controlCode = [2]byte{0x10, 0x45}

var dataField = [DataFieldLen]byte{0x02}

// BuildFrame wraps an inner Modbus payload into a logger request frame.
// The inner crc is appended here; inner must not carry one.
func BuildFrame(id Identity, inner []byte) []byte {
	n := len(inner)
	frame := make([]byte, 0, RequestHeaderLen+n+2+TrailerLen)

	frame = append(frame, StartByte)
	frame = binary.LittleEndian.AppendUint16(frame, uint16(DataFieldLen+n+2))
	frame = append(frame, controlCode[:]...)
	frame = append(frame, 0x00, 0x00)
	frame = binary.LittleEndian.AppendUint32(frame, id.SerialNumber)
	frame = append(frame, dataField[:]...)
	frame = append(frame, inner...)
	frame = modbuscrc.Append(frame, inner)

	// checksum placeholder, filled once the frame is complete
	frame = append(frame, 0x00, EndByte)
	frame[len(frame)-2] = Checksum(frame)

	return frame
}

// Checksum is the 8-bit sum of every byte between the start marker
// and the trailing checksum/end pair.
func Checksum(frame []byte) byte {
	var sum byte
	for i := 1; i < len(frame)-TrailerLen; i++ {
		sum += frame[i]
	}
	return sum
}

// UnwrapFrame validates a response frame and returns the inner Modbus
// payload including its crc.
func UnwrapFrame(frame []byte) ([]byte, error) {
	switch {
	case len(frame) == 0:
		return nil, ErrNoResponse
	case len(frame) == ErrorFrameLen:
		return nil, newLoggerError(frame[ResponseHeaderLen : len(frame)-TrailerLen])
	case len(frame) < MinResponseLen:
		return nil, ErrFrameTooShort
	case frame[0] != StartByte:
		return nil, ErrInvalidStart
	case frame[len(frame)-1] != EndByte:
		return nil, ErrInvalidEnd
	}
	return frame[ResponseHeaderLen : len(frame)-TrailerLen], nil
}
