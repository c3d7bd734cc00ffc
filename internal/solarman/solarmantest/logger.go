// internal/solarman/solarmantest/logger.go

// Package solarmantest provides the logger side of the frame protocol
// for tests: response frame builders and an in-memory logger.
package solarmantest

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"sync"

	"github.com/tamzrod/deye-bridge/internal/modbuscrc"
	"github.com/tamzrod/deye-bridge/internal/solarman"
)

var responseControl = [2]byte{0x10, 0x15}

// ResponseFrame wraps a Modbus response (without crc) into a logger
// response frame, appending a valid inner crc.
func ResponseFrame(id solarman.Identity, inner []byte) []byte {
	return RawResponseFrame(id, modbuscrc.Append(append([]byte(nil), inner...), inner))
}

// RawResponseFrame wraps payload verbatim (payload carries its own crc).
func RawResponseFrame(id solarman.Identity, payload []byte) []byte {
	const dataField = solarman.ResponseHeaderLen - 11

	frame := make([]byte, 0, solarman.ResponseHeaderLen+len(payload)+solarman.TrailerLen)
	frame = append(frame, solarman.StartByte)
	frame = binary.LittleEndian.AppendUint16(frame, uint16(dataField+len(payload)))
	frame = append(frame, responseControl[:]...)
	frame = append(frame, 0x00, 0x00)
	frame = binary.LittleEndian.AppendUint32(frame, id.SerialNumber)

	field := make([]byte, dataField)
	field[0] = 0x02
	field[1] = 0x01
	frame = append(frame, field...)

	frame = append(frame, payload...)
	frame = append(frame, 0x00, solarman.EndByte)
	frame[len(frame)-2] = solarman.Checksum(frame)
	return frame
}

// ErrorFrame builds the 29 byte rejection frame a logger sends when it
// refuses a request.
func ErrorFrame(id solarman.Identity, code byte) []byte {
	return RawResponseFrame(id, []byte{code, 0x00})
}

// RequestInner extracts the inner Modbus frame (without crc) of a request.
func RequestInner(frame []byte) ([]byte, error) {
	if len(frame) < solarman.RequestHeaderLen+4+solarman.TrailerLen {
		return nil, errors.New("solarmantest: request too short")
	}
	if frame[0] != solarman.StartByte || frame[len(frame)-1] != solarman.EndByte {
		return nil, errors.New("solarmantest: bad request markers")
	}
	if frame[len(frame)-2] != solarman.Checksum(frame) {
		return nil, errors.New("solarmantest: bad request checksum")
	}
	payload := frame[solarman.RequestHeaderLen : len(frame)-solarman.TrailerLen]
	if err := modbuscrc.Verify(payload); err != nil {
		return nil, err
	}
	return payload[:len(payload)-2], nil
}

// RequestSerial returns the logger serial a request was addressed to.
func RequestSerial(frame []byte) uint32 {
	return binary.LittleEndian.Uint32(frame[7:11])
}

// Logger is an in-memory logger + inverter serving holding registers.
type Logger struct {
	Identity solarman.Identity
	SlaveID  byte

	mu        sync.Mutex
	registers map[uint16]uint16
	requests  int
}

// NewLogger creates a logger answering for id and slave.
func NewLogger(id solarman.Identity, slave byte) *Logger {
	return &Logger{
		Identity:  id,
		SlaveID:   slave,
		registers: make(map[uint16]uint16),
	}
}

// Set stores a register value.
func (l *Logger) Set(addr, value uint16) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.registers[addr] = value
}

// Get returns a register value (0 when never written).
func (l *Logger) Get(addr uint16) uint16 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.registers[addr]
}

// Requests returns how many frames were handled.
func (l *Logger) Requests() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.requests
}

// Send satisfies the inverter sender contract.
func (l *Logger) Send(ctx context.Context, frame []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.Handle(frame), nil
}

// Handle answers one request frame. Malformed requests get no answer.
func (l *Logger) Handle(frame []byte) []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests++

	inner, err := RequestInner(frame)
	if err != nil {
		return nil
	}
	if RequestSerial(frame) != l.Identity.SerialNumber {
		return ErrorFrame(l.Identity, solarman.CodeSerialNumberMismatch)
	}
	if inner[0] != l.SlaveID {
		return ErrorFrame(l.Identity, solarman.CodeDeviceAddressMismatch)
	}

	switch inner[1] {
	case 0x03:
		if len(inner) != 6 {
			return nil
		}
		first := binary.BigEndian.Uint16(inner[2:4])
		count := binary.BigEndian.Uint16(inner[4:6])

		resp := []byte{l.SlaveID, 0x03, byte(count * 2)}
		for i := uint16(0); i < count; i++ {
			resp = binary.BigEndian.AppendUint16(resp, l.registers[first+i])
		}
		return ResponseFrame(l.Identity, resp)

	case 0x10:
		if len(inner) < 7 {
			return nil
		}
		addr := binary.BigEndian.Uint16(inner[2:4])
		qty := binary.BigEndian.Uint16(inner[4:6])
		if int(inner[6]) != int(qty)*2 || len(inner) != 7+int(qty)*2 {
			return nil
		}
		for i := uint16(0); i < qty; i++ {
			l.registers[addr+i] = binary.BigEndian.Uint16(inner[7+2*i:])
		}

		resp := []byte{l.SlaveID, 0x10}
		resp = binary.BigEndian.AppendUint16(resp, addr)
		resp = binary.BigEndian.AppendUint16(resp, qty)
		return ResponseFrame(l.Identity, resp)

	default:
		// exception: illegal function
		return ResponseFrame(l.Identity, []byte{l.SlaveID, inner[1] | 0x80, 0x01})
	}
}

// Serve answers one request per accepted connection until ln is closed.
func (l *Logger) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go func(c net.Conn) {
			defer c.Close()
			buf := make([]byte, 1024)
			n, err := c.Read(buf)
			if err != nil {
				return
			}
			if resp := l.Handle(buf[:n]); len(resp) > 0 {
				_, _ = c.Write(resp)
			}
		}(conn)
	}
}
