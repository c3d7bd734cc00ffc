// internal/sensor/table.go
package sensor

import "fmt"

// Metric groups.
const (
	GroupMicro = "micro"
)

// Home Assistant device and state classes used by the table.
const (
	classEnergy      = "energy"
	classPower       = "power"
	classVoltage     = "voltage"
	classCurrent     = "current"
	classFrequency   = "frequency"
	classTemperature = "temperature"
	classDuration    = "duration"

	stateMeasurement     = "measurement"
	stateTotalIncreasing = "total_increasing"
)

// Micro inverter (SUN-M / SUN600-2000G3) registers.
const (
	regDayEnergy    uint16 = 0x3c
	regUptime       uint16 = 0x3e
	regTotalLow     uint16 = 0x3f
	regTotalHigh    uint16 = 0x40
	regPV1DayEnergy uint16 = 0x41
	regACVoltage    uint16 = 0x49
	regACCurrent    uint16 = 0x4c
	regACFrequency  uint16 = 0x4f
	regPowerLow     uint16 = 0x56
	regPowerHigh    uint16 = 0x57
	regRadiatorTemp uint16 = 0x5a
	regPV1Voltage   uint16 = 0x6d
)

var table = buildTable()

// All returns the full sensor table.
func All() []*Sensor {
	out := make([]*Sensor, len(table))
	for i := range table {
		out[i] = &table[i]
	}
	return out
}

// Active returns the sensors belonging to any of groups, in table order.
func Active(groups []string) []*Sensor {
	var out []*Sensor
	for i := range table {
		if table[i].InAnyGroup(groups) {
			out = append(out, &table[i])
		}
	}
	return out
}

// KnownGroup reports whether any sensor is tagged with g.
func KnownGroup(g string) bool {
	for i := range table {
		if table[i].InAnyGroup([]string{g}) {
			return true
		}
	}
	return false
}

func buildTable() []Sensor {
	micro := []string{GroupMicro}

	sensors := []Sensor{
		{
			Name: "Production today", TopicSuffix: "day_energy",
			Unit: "kWh", DeviceClass: classEnergy, StateClass: stateTotalIncreasing,
			Groups: micro, Precision: 1,
			Registers: []uint16{regDayEnergy},
			decode:    unsigned(regDayEnergy, 0.1),
		},
		{
			Name: "Total Production", TopicSuffix: "total_energy",
			Unit: "kWh", DeviceClass: classEnergy, StateClass: stateTotalIncreasing,
			Groups: micro, Precision: 1,
			Registers: []uint16{regTotalLow, regTotalHigh},
			decode:    lowHigh(regTotalLow, regTotalHigh, 0.1),
		},
		{
			Name: "AC Voltage", TopicSuffix: "ac/l1/voltage",
			Unit: "V", DeviceClass: classVoltage, StateClass: stateMeasurement,
			Groups: micro, Precision: 1,
			Registers: []uint16{regACVoltage},
			decode:    unsigned(regACVoltage, 0.1),
		},
		{
			Name: "AC Current", TopicSuffix: "ac/l1/current",
			Unit: "A", DeviceClass: classCurrent, StateClass: stateMeasurement,
			Groups: micro, Precision: 1,
			Registers: []uint16{regACCurrent},
			decode:    unsigned(regACCurrent, 0.1),
		},
		{
			Name: "AC Freq", TopicSuffix: "ac/freq",
			Unit: "Hz", DeviceClass: classFrequency, StateClass: stateMeasurement,
			Groups: micro, Precision: 2,
			Registers: []uint16{regACFrequency},
			decode:    unsigned(regACFrequency, 0.01),
		},
		{
			Name: "AC active power", TopicSuffix: "ac/active_power",
			Unit: "W", DeviceClass: classPower, StateClass: stateMeasurement,
			Groups: micro, Precision: 1,
			Registers: []uint16{regPowerLow, regPowerHigh},
			decode:    lowHigh(regPowerLow, regPowerHigh, 0.1),
		},
		{
			Name: "Radiator temperature", TopicSuffix: "radiator_temp",
			Unit: "°C", DeviceClass: classTemperature, StateClass: stateMeasurement,
			Groups: micro, Precision: 1,
			Registers: []uint16{regRadiatorTemp},
			decode:    offset(regRadiatorTemp, 1000, 0.01),
		},
		{
			Name: "Uptime", TopicSuffix: "uptime",
			Unit: "min", DeviceClass: classDuration, StateClass: stateTotalIncreasing,
			Groups: micro, Precision: 0,
			Registers: []uint16{regUptime},
			decode:    unsigned(regUptime, 1),
		},
	}

	for i := uint16(0); i < 4; i++ {
		n := i + 1
		vReg := regPV1Voltage + 2*i
		iReg := vReg + 1
		eReg := regPV1DayEnergy + i

		sensors = append(sensors,
			Sensor{
				Name: fmt.Sprintf("PV%d Voltage", n), TopicSuffix: fmt.Sprintf("dc/pv%d/voltage", n),
				Unit: "V", DeviceClass: classVoltage, StateClass: stateMeasurement,
				Groups: micro, Precision: 1,
				Registers: []uint16{vReg},
				decode:    unsigned(vReg, 0.1),
			},
			Sensor{
				Name: fmt.Sprintf("PV%d Current", n), TopicSuffix: fmt.Sprintf("dc/pv%d/current", n),
				Unit: "A", DeviceClass: classCurrent, StateClass: stateMeasurement,
				Groups: micro, Precision: 1,
				Registers: []uint16{iReg},
				decode:    unsigned(iReg, 0.1),
			},
			Sensor{
				Name: fmt.Sprintf("PV%d Power", n), TopicSuffix: fmt.Sprintf("dc/pv%d/power", n),
				Unit: "W", DeviceClass: classPower, StateClass: stateMeasurement,
				Groups: micro, Precision: 1,
				Registers: []uint16{vReg, iReg},
				decode:    product(unsigned(vReg, 0.1), unsigned(iReg, 0.1)),
			},
			Sensor{
				Name: fmt.Sprintf("PV%d Production today", n), TopicSuffix: fmt.Sprintf("dc/pv%d/day_energy", n),
				Unit: "kWh", DeviceClass: classEnergy, StateClass: stateTotalIncreasing,
				Groups: micro, Precision: 1,
				Registers: []uint16{eReg},
				decode:    unsigned(eReg, 0.1),
			},
		)
	}

	return sensors
}
