// internal/solarman/errors.go
package solarman

import (
	"errors"
	"fmt"

	"github.com/tamzrod/deye-bridge/internal/fault"
)

var (
	ErrNoResponse    = fmt.Errorf("%w: no response frame", fault.ErrTransport)
	ErrFrameTooShort = fmt.Errorf("%w: response frame is too short", fault.ErrFrame)
	ErrInvalidStart  = fmt.Errorf("%w: response frame has invalid starting byte", fault.ErrFrame)
	ErrInvalidEnd    = fmt.Errorf("%w: response frame has invalid ending byte", fault.ErrFrame)

	ErrDeviceAddressMismatch = errors.New("modbus device address does not match")
	ErrSerialNumberMismatch  = errors.New("logger serial number does not match")
)

// Logger error codes carried in the first inner byte of an error frame.
const (
	CodeDeviceAddressMismatch byte = 0x05
	CodeSerialNumberMismatch  byte = 0x06
)

// LoggerError is a rejection of the outer frame by the logger itself.
type LoggerError struct {
	Code    byte
	Payload []byte
}

func newLoggerError(payload []byte) *LoggerError {
	e := &LoggerError{Payload: append([]byte(nil), payload...)}
	if len(payload) > 0 {
		e.Code = payload[0]
	}
	return e
}

func (e *LoggerError) Error() string {
	switch e.Code {
	case CodeDeviceAddressMismatch:
		return "logger error: " + ErrDeviceAddressMismatch.Error()
	case CodeSerialNumberMismatch:
		return "logger error: " + ErrSerialNumberMismatch.Error() + ", check your configuration"
	default:
		return fmt.Sprintf("logger error: unknown response error code 0x%02x, error frame %x", e.Code, e.Payload)
	}
}

func (e *LoggerError) Unwrap() []error {
	switch e.Code {
	case CodeDeviceAddressMismatch:
		return []error{fault.ErrLogger, ErrDeviceAddressMismatch}
	case CodeSerialNumberMismatch:
		return []error{fault.ErrLogger, ErrSerialNumberMismatch}
	default:
		return []error{fault.ErrLogger}
	}
}
