// internal/sensor/deviceinfo.go
package sensor

import (
	"fmt"

	"github.com/tamzrod/deye-bridge/internal/registers"
)

// DeviceInfoRegisters are read one by one to identify the inverter.
var DeviceInfoRegisters = []uint16{0, 2, 3, 4, 5, 6, 7, 16, 17, 18, 20, 40}

const (
	regDeviceType      uint16 = 0
	regProtocolVersion uint16 = 2
	regSerialFirst     uint16 = 3
	regSerialLast      uint16 = 7
	regRatedPowerLow   uint16 = 16
	regRatedPowerHigh  uint16 = 17
	regRemoteLock      uint16 = 20
	regPowerRegulation uint16 = 40
)

// Device types (low byte of register 0).
const (
	DeviceString      byte = 2
	DeviceSinglePhase byte = 3
	DeviceMicro       byte = 4
	DeviceThreePhase  byte = 5
)

// DeviceInfo is the identification block of an inverter.
type DeviceInfo struct {
	DeviceType      byte
	ProtocolVersion string
	SerialNumber    string

	// RatedPower is hi*65535+lo in 0.1 W. The 65535 base (not 65536) is
	// what deployed tooling reports; keep it for comparable output.
	RatedPower float64

	RemoteLock            uint16
	ActivePowerRegulation float64 // percent
}

func (d DeviceInfo) Micro() bool { return d.DeviceType == DeviceMicro }

func (d DeviceInfo) DeviceTypeName() string {
	switch d.DeviceType {
	case DeviceString:
		return "Stringing Inverter"
	case DeviceSinglePhase:
		return "Single-phase energy storage machine"
	case DeviceMicro:
		return "Micro Inverter"
	case DeviceThreePhase:
		return "Three-phase Energy Storage Machine"
	default:
		return fmt.Sprintf("Unknown device type %d", d.DeviceType)
	}
}

func (d DeviceInfo) RemoteLockName() string {
	switch d.RemoteLock {
	case 0:
		return "OFF"
	case 2:
		return "ON"
	default:
		return "unknown"
	}
}

// Lines renders the block for humans, one fact per line.
func (d DeviceInfo) Lines() []string {
	return []string{
		d.DeviceTypeName(),
		"Communication protocol version " + d.ProtocolVersion,
		"Serial number " + d.SerialNumber,
		fmt.Sprintf("Rated power %g W", d.RatedPower),
		"Remote lock " + d.RemoteLockName(),
		fmt.Sprintf("Active power regulation %g Percent", d.ActivePowerRegulation),
	}
}

// DecodeDeviceInfo decodes the registers listed in DeviceInfoRegisters.
func DecodeDeviceInfo(regs registers.Map) (DeviceInfo, error) {
	for _, a := range DeviceInfoRegisters {
		if _, ok := regs[a]; !ok {
			return DeviceInfo{}, fmt.Errorf("device info: register %d not read", a)
		}
	}

	var d DeviceInfo
	d.DeviceType = regs[regDeviceType].Low()

	pv := regs[regProtocolVersion]
	d.ProtocolVersion = fmt.Sprintf("%d.%d", pv.Low(), pv.High())

	// two ASCII characters per register, low byte first
	serial := make([]byte, 0, 2*(regSerialLast-regSerialFirst+1))
	for a := regSerialFirst; a <= regSerialLast; a++ {
		serial = append(serial, regs[a].Low(), regs[a].High())
	}
	d.SerialNumber = string(serial)

	lo := float64(regs[regRatedPowerLow].Uint16())
	hi := float64(regs[regRatedPowerHigh].Uint16())
	d.RatedPower = (hi*65535 + lo) / 10

	d.RemoteLock = regs[regRemoteLock].Uint16()

	reg := float64(regs[regPowerRegulation].Uint16())
	if d.Micro() {
		d.ActivePowerRegulation = reg
	} else {
		d.ActivePowerRegulation = reg / 10
	}

	return d, nil
}
