// internal/registers/protocol.go
package registers

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/goburrow/modbus"

	"github.com/tamzrod/deye-bridge/internal/fault"
	"github.com/tamzrod/deye-bridge/internal/modbuscrc"
)

var (
	// ErrInvalidRange is a caller bug: first register after last, or more
	// registers than one read may return.
	ErrInvalidRange = errors.New("registers: invalid register range")

	ErrTruncatedResponse = fmt.Errorf("%w: modbus frame is too short or empty", fault.ErrMalformed)
	ErrWriteLength       = fmt.Errorf("%w: wrong write response frame length", fault.ErrMalformed)
	ErrWriteEcho         = fmt.Errorf("%w: returned address or count does not match sent value", fault.ErrMalformed)
)

// MaxReadCount is the most registers one read request may ask for.
const MaxReadCount = 125

const (
	// slave + function code
	addrLen = 2
	// byte count field of a read response
	byteCountLen = 1
	crcLen       = 2

	// slave + fc + address + quantity
	writeEchoLen = 6
)

// ---- read holding registers (0x03) ----

// ReadRequest builds the inner payload reading registers first..last inclusive.
func ReadRequest(slave byte, first, last uint16) ([]byte, error) {
	if err := CheckRange(first, last); err != nil {
		return nil, err
	}
	pdu := modbus.ProtocolDataUnit{
		FunctionCode: modbus.FuncCodeReadHoldingRegisters,
		Data:         dataBlock(first, last-first+1),
	}
	return encode(slave, &pdu), nil
}

// CheckRange reports whether first..last fits one read request.
func CheckRange(first, last uint16) error {
	if first > last {
		return fmt.Errorf("%w: first %d > last %d", ErrInvalidRange, first, last)
	}
	if n := int(last-first) + 1; n > MaxReadCount {
		return fmt.Errorf("%w: %d registers, at most %d per read", ErrInvalidRange, n, MaxReadCount)
	}
	return nil
}

// ParseReadResponse extracts registers first..last from an inner response
// payload (crc included). On failure the returned map is empty, never nil.
func ParseReadResponse(payload []byte, first, last uint16) (Map, error) {
	regs := make(Map)
	if err := CheckRange(first, last); err != nil {
		return regs, err
	}

	if err := exception(payload); err != nil {
		return regs, err
	}

	count := int(last-first) + 1
	dataLen := addrLen + byteCountLen + count*2

	if len(payload) < dataLen+crcLen {
		return regs, fmt.Errorf("%w: got %d bytes, want %d", ErrTruncatedResponse, len(payload), dataLen+crcLen)
	}

	// bytes past the crc carry no meaning and are ignored
	if err := modbuscrc.Verify(payload[:dataLen+crcLen]); err != nil {
		return regs, err
	}

	for i := 0; i < count; i++ {
		p := addrLen + byteCountLen + i*2
		regs[first+uint16(i)] = Value{payload[p], payload[p+1]}
	}
	return regs, nil
}

// ---- write holding register (0x10, quantity 1) ----

// WriteRequest builds the inner payload writing value into addr.
func WriteRequest(slave byte, addr, value uint16) []byte {
	data := dataBlock(addr, 1)
	data = append(data, 2)
	data = binary.BigEndian.AppendUint16(data, value)

	pdu := modbus.ProtocolDataUnit{
		FunctionCode: modbus.FuncCodeWriteMultipleRegisters,
		Data:         data,
	}
	return encode(slave, &pdu)
}

// VerifyWriteResponse accepts only an exact, crc-valid echo of addr with
// a register count of 1.
func VerifyWriteResponse(payload []byte, addr uint16) error {
	if len(payload) != writeEchoLen+crcLen {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrWriteLength, writeEchoLen+crcLen, len(payload))
	}
	if err := modbuscrc.Verify(payload); err != nil {
		return err
	}

	gotAddr := binary.BigEndian.Uint16(payload[2:4])
	gotCount := binary.BigEndian.Uint16(payload[4:6])
	if gotAddr != addr || gotCount != 1 {
		return fmt.Errorf("%w: addr got=%d want=%d, count got=%d want=1", ErrWriteEcho, gotAddr, addr, gotCount)
	}
	return nil
}

// ---- helpers ----

// exception recognises a crc-valid Modbus exception reply
// (slave, fc|0x80, code, crc).
func exception(payload []byte) error {
	const excLen = 3 + crcLen
	if len(payload) < excLen || payload[1]&0x80 == 0 {
		return nil
	}
	if err := modbuscrc.Verify(payload[:excLen]); err != nil {
		return err
	}
	return fmt.Errorf("%w: %w", fault.ErrMalformed, &modbus.ModbusError{
		FunctionCode:  payload[1] &^ 0x80,
		ExceptionCode: payload[2],
	})
}

func encode(slave byte, pdu *modbus.ProtocolDataUnit) []byte {
	out := make([]byte, 0, 2+len(pdu.Data))
	out = append(out, slave, pdu.FunctionCode)
	return append(out, pdu.Data...)
}

func dataBlock(addr, qty uint16) []byte {
	b := make([]byte, 4, 7)
	binary.BigEndian.PutUint16(b[0:2], addr)
	binary.BigEndian.PutUint16(b[2:4], qty)
	return b
}
