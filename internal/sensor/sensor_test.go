// internal/sensor/sensor_test.go
package sensor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/deye-bridge/internal/registers"
)

func reg(v uint16) registers.Value {
	return registers.Value{byte(v >> 8), byte(v)}
}

func find(t *testing.T, suffix string) *Sensor {
	t.Helper()
	for _, s := range All() {
		if s.TopicSuffix == suffix {
			return s
		}
	}
	t.Fatalf("no sensor with suffix %q", suffix)
	return nil
}

func TestActive(t *testing.T) {
	micro := Active([]string{GroupMicro})
	assert.Len(t, micro, len(All()))

	assert.Empty(t, Active([]string{"string"}))
	assert.Empty(t, Active(nil))

	assert.True(t, KnownGroup(GroupMicro))
	assert.False(t, KnownGroup("hybrid"))
}

func TestTable_UniqueSuffixes(t *testing.T) {
	seen := map[string]bool{}
	for _, s := range All() {
		require.NotEmpty(t, s.TopicSuffix)
		assert.False(t, seen[s.TopicSuffix], "duplicate suffix %s", s.TopicSuffix)
		seen[s.TopicSuffix] = true
	}
}

func TestTable_RegistersWithinDefaultRanges(t *testing.T) {
	inRange := func(a uint16) bool {
		return (a >= 0x3c && a <= 0x4f) || (a >= 0x50 && a <= 0x5f) || (a >= 0x6d && a <= 0x74)
	}
	for _, s := range All() {
		for _, a := range s.Registers {
			assert.True(t, inRange(a), "%s reads 0x%x outside the polled ranges", s.Name, a)
		}
	}
}

func TestDecoders(t *testing.T) {
	regs := registers.Map{
		0x3c: reg(123),    // 12.3 kWh
		0x3f: reg(0x0001), // total low
		0x40: reg(0x0001), // total high
		0x4f: reg(5001),   // 50.01 Hz
		0x5a: reg(3550),   // 25.5 C
		0x6d: reg(320),    // 32.0 V
		0x6e: reg(45),     // 4.5 A
		0x56: reg(0xFFFF), // 6553.5 W
		0x57: reg(0),
	}

	cases := map[string]float64{
		"day_energy":      12.3,
		"total_energy":    6553.7,
		"ac/freq":         50.01,
		"radiator_temp":   25.5,
		"dc/pv1/voltage":  32.0,
		"dc/pv1/current":  4.5,
		"dc/pv1/power":    144.0,
		"ac/active_power": 6553.5,
	}
	for suffix, want := range cases {
		v, ok := find(t, suffix).Read(regs)
		require.True(t, ok, suffix)
		assert.InDelta(t, want, v, 1e-9, suffix)
	}

	_, ok := find(t, "dc/pv2/power").Read(regs)
	assert.False(t, ok, "missing registers must not yield a value")
}

func TestObserve_SharedTimestampAndSkips(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	regs := registers.Map{0x3c: reg(10), 0x49: reg(2301)}

	obs := Observe(Active([]string{GroupMicro}), regs, at)
	require.Len(t, obs, 2)
	for _, o := range obs {
		assert.Equal(t, at, o.Timestamp)
	}
	assert.Equal(t, "1.0", obs[0].ValueString())
	assert.Equal(t, "230.1", obs[1].ValueString())
}

func TestDecodeDeviceInfo(t *testing.T) {
	regs := registers.Map{
		0:  reg(0x0004),
		2:  reg(0x0201),
		3:  registers.Value{'1', '2'},
		4:  registers.Value{'3', '4'},
		5:  registers.Value{'5', '6'},
		6:  registers.Value{'7', '8'},
		7:  registers.Value{'9', '0'},
		16: reg(8000),
		17: reg(0),
		18: reg(0),
		20: reg(2),
		40: reg(100),
	}

	d, err := DecodeDeviceInfo(regs)
	require.NoError(t, err)

	assert.True(t, d.Micro())
	assert.Equal(t, "Micro Inverter", d.DeviceTypeName())
	assert.Equal(t, "1.2", d.ProtocolVersion)
	assert.Equal(t, "2143658709", d.SerialNumber)
	assert.Equal(t, 800.0, d.RatedPower)
	assert.Equal(t, "ON", d.RemoteLockName())
	assert.Equal(t, 100.0, d.ActivePowerRegulation)

	// high word uses the 65535 base
	regs[17] = reg(1)
	d, err = DecodeDeviceInfo(regs)
	require.NoError(t, err)
	assert.Equal(t, (65535.0+8000)/10, d.RatedPower)

	// non micro devices report regulation in 0.1 %
	regs[0] = reg(0x0005)
	d, err = DecodeDeviceInfo(regs)
	require.NoError(t, err)
	assert.Equal(t, 10.0, d.ActivePowerRegulation)
	assert.Len(t, d.Lines(), 6)

	delete(regs, 18)
	_, err = DecodeDeviceInfo(regs)
	assert.Error(t, err)
}
