// internal/solarman/frame_test.go
package solarman_test

import (
	"encoding/binary"
	"testing"

	"github.com/goburrow/modbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/deye-bridge/internal/fault"
	"github.com/tamzrod/deye-bridge/internal/modbuscrc"
	"github.com/tamzrod/deye-bridge/internal/solarman"
	"github.com/tamzrod/deye-bridge/internal/solarman/solarmantest"
)

var testID = solarman.Identity{SerialNumber: 4175806782}

func TestBuildFrame_Layout(t *testing.T) {
	inner := []byte{0x01, 0x03, 0x00, 0x3c, 0x00, 0x14}
	frame := solarman.BuildFrame(testID, inner)

	require.Len(t, frame, solarman.RequestHeaderLen+len(inner)+2+solarman.TrailerLen)

	assert.Equal(t, solarman.StartByte, frame[0])
	assert.Equal(t, uint16(15+len(inner)+2), binary.LittleEndian.Uint16(frame[1:3]))
	assert.Equal(t, []byte{0x10, 0x45}, frame[3:5])
	assert.Equal(t, []byte{0x00, 0x00}, frame[5:7])
	assert.Equal(t, testID.SerialNumber, binary.LittleEndian.Uint32(frame[7:11]))
	assert.Equal(t, byte(0x02), frame[11])
	assert.Equal(t, make([]byte, 14), frame[12:26])
	assert.Equal(t, inner, frame[26:26+len(inner)])
	assert.Equal(t, modbuscrc.Append(nil, inner), frame[26+len(inner):28+len(inner)])
	assert.Equal(t, solarman.EndByte, frame[len(frame)-1])
}

func TestBuildFrame_SerialBytesReversed(t *testing.T) {
	// 0x12345678 renders as "12345678", reversed on the wire
	frame := solarman.BuildFrame(solarman.Identity{SerialNumber: 0x12345678}, []byte{0x01, 0x03, 0, 0, 0, 1})
	assert.Equal(t, []byte{0x78, 0x56, 0x34, 0x12}, frame[7:11])

	// short serials are zero padded, never truncated
	frame = solarman.BuildFrame(solarman.Identity{SerialNumber: 0x0ABCDE}, []byte{0x01, 0x03, 0, 0, 0, 1})
	assert.Equal(t, []byte{0xDE, 0xBC, 0x0A, 0x00}, frame[7:11])
}

func TestBuildFrame_ChecksumInvariant(t *testing.T) {
	inners := [][]byte{
		{0x01, 0x03, 0x00, 0x00, 0x00, 0x01},
		{0x01, 0x03, 0x00, 0x6d, 0x00, 0x08},
		{0x01, 0x10, 0x00, 0x28, 0x00, 0x01, 0x02, 0x00, 0x64},
		{},
	}
	for _, inner := range inners {
		frame := solarman.BuildFrame(testID, inner)

		var sum int
		for _, b := range frame[1 : len(frame)-2] {
			sum += int(b)
		}
		assert.Equal(t, byte(sum&0xFF), frame[len(frame)-2], "inner %x", inner)
	}
}

func TestUnwrapFrame_Valid(t *testing.T) {
	inner := []byte{0x01, 0x03, 0x04, 0x00, 0x0A, 0x00, 0x0B}
	frame := solarmantest.ResponseFrame(testID, inner)

	payload, err := solarman.UnwrapFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, modbuscrc.Append(append([]byte(nil), inner...), inner), payload)
}

func TestUnwrapFrame_Failures(t *testing.T) {
	valid := solarmantest.ResponseFrame(testID, []byte{0x01, 0x03, 0x02, 0x00, 0x01})

	badStart := append([]byte(nil), valid...)
	badStart[0] = 0xA4

	badEnd := append([]byte(nil), valid...)
	badEnd[len(badEnd)-1] = 0x16

	cases := []struct {
		name  string
		frame []byte
		want  error
		kind  error
	}{
		{"empty", nil, solarman.ErrNoResponse, fault.ErrTransport},
		{"short", valid[:30], solarman.ErrFrameTooShort, fault.ErrFrame},
		{"one below minimum", make([]byte, solarman.MinResponseLen-1), solarman.ErrFrameTooShort, fault.ErrFrame},
		{"bad start", badStart, solarman.ErrInvalidStart, fault.ErrFrame},
		{"bad end", badEnd, solarman.ErrInvalidEnd, fault.ErrFrame},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload, err := solarman.UnwrapFrame(tc.frame)
			assert.Nil(t, payload)
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, tc.kind)
		})
	}
}

func TestUnwrapFrame_LoggerErrors(t *testing.T) {
	cases := []struct {
		code byte
		want error
	}{
		{solarman.CodeDeviceAddressMismatch, solarman.ErrDeviceAddressMismatch},
		{solarman.CodeSerialNumberMismatch, solarman.ErrSerialNumberMismatch},
		{0x09, nil},
	}

	for _, tc := range cases {
		frame := solarmantest.ErrorFrame(testID, tc.code)
		require.Len(t, frame, solarman.ErrorFrameLen)

		_, err := solarman.UnwrapFrame(frame)

		var le *solarman.LoggerError
		require.ErrorAs(t, err, &le)
		assert.Equal(t, tc.code, le.Code)
		assert.ErrorIs(t, err, fault.ErrLogger)
		assert.Equal(t, fault.CodeLogger, fault.Code(err))
		if tc.want != nil {
			assert.ErrorIs(t, err, tc.want)
		} else {
			assert.NotErrorIs(t, err, solarman.ErrSerialNumberMismatch)
			assert.Contains(t, err.Error(), "unknown response error code 0x09")
		}
	}
}

func TestPackager_RoundTrip(t *testing.T) {
	p := &solarman.Packager{Identity: testID, SlaveID: 1}

	adu, err := p.Encode(&modbus.ProtocolDataUnit{
		FunctionCode: modbus.FuncCodeReadHoldingRegisters,
		Data:         []byte{0x00, 0x56, 0x00, 0x01},
	})
	require.NoError(t, err)

	inner, err := solarmantest.RequestInner(adu)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x03, 0x00, 0x56, 0x00, 0x01}, inner)

	resp := solarmantest.ResponseFrame(testID, []byte{0x01, 0x03, 0x02, 0x03, 0xE8})
	require.NoError(t, p.Verify(adu, resp))

	pdu, err := p.Decode(resp)
	require.NoError(t, err)
	assert.Equal(t, byte(modbus.FuncCodeReadHoldingRegisters), pdu.FunctionCode)
	assert.Equal(t, []byte{0x02, 0x03, 0xE8}, pdu.Data)
}

func TestPackager_DecodeRejects(t *testing.T) {
	p := &solarman.Packager{Identity: testID, SlaveID: 1}

	otherSlave := solarmantest.ResponseFrame(testID, []byte{0x02, 0x03, 0x02, 0x00, 0x01})
	_, err := p.Decode(otherSlave)
	assert.ErrorIs(t, err, fault.ErrMalformed)

	corrupt := solarmantest.ResponseFrame(testID, []byte{0x01, 0x03, 0x02, 0x00, 0x01})
	corrupt[solarman.ResponseHeaderLen+3] ^= 0xFF
	_, err = p.Decode(corrupt)
	assert.ErrorIs(t, err, fault.ErrChecksum)

	_, err = p.Decode(nil)
	assert.ErrorIs(t, err, solarman.ErrNoResponse)
}
