// internal/solarman/packager.go
package solarman

import (
	"fmt"

	"github.com/goburrow/modbus"

	"github.com/tamzrod/deye-bridge/internal/fault"
	"github.com/tamzrod/deye-bridge/internal/modbuscrc"
)

// Packager implements modbus.Packager for the logger frame, so a
// goburrow modbus.Client can talk RTU-over-logger.
type Packager struct {
	Identity Identity
	SlaveID  byte
}

var _ modbus.Packager = (*Packager)(nil)

// Encode builds a logger request frame around slave + PDU.
func (p *Packager) Encode(pdu *modbus.ProtocolDataUnit) ([]byte, error) {
	inner := make([]byte, 0, 2+len(pdu.Data))
	inner = append(inner, p.SlaveID, pdu.FunctionCode)
	inner = append(inner, pdu.Data...)
	return BuildFrame(p.Identity, inner), nil
}

// Verify checks the outer frame only; inner checks happen in Decode.
func (p *Packager) Verify(aduRequest []byte, aduResponse []byte) error {
	_, err := UnwrapFrame(aduResponse)
	return err
}

// Decode unwraps the outer frame, checks the inner crc and slave address
// and returns the PDU.
func (p *Packager) Decode(adu []byte) (*modbus.ProtocolDataUnit, error) {
	inner, err := UnwrapFrame(adu)
	if err != nil {
		return nil, err
	}
	if len(inner) < 4 {
		return nil, fmt.Errorf("%w: inner frame length %d", fault.ErrMalformed, len(inner))
	}
	if err := modbuscrc.Verify(inner); err != nil {
		return nil, err
	}
	if inner[0] != p.SlaveID {
		return nil, fmt.Errorf("%w: slave id mismatch: got=%d want=%d", fault.ErrMalformed, inner[0], p.SlaveID)
	}

	return &modbus.ProtocolDataUnit{
		FunctionCode: inner[1],
		Data:         inner[2 : len(inner)-2],
	}, nil
}
