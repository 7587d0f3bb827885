// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package snapshot

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/heatmiser/pkg/dcb"
	"github.com/Thermoquad/heatmiser/pkg/device"
	"github.com/Thermoquad/heatmiser/pkg/schedule"
)

var testNow = time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)

// fakeBus serves one DCB.
type fakeBus struct {
	dcb []byte
}

func (b *fakeBus) Read(dest uint8, start, length uint16) ([]byte, error) {
	return b.dcb[start : start+length], nil
}

func (b *fakeBus) ReadAll(dest uint8) ([]byte, error) {
	return b.dcb, nil
}

func (b *fakeBus) Write(dest uint8, start uint16, payload []byte) error {
	copy(b.dcb[start:], payload)
	return nil
}

// prtDCB is a PRT in week mode at address 2.
func prtDCB(t *testing.T) []byte {
	t.Helper()
	m, err := dcb.MapFor(dcb.ModelPRT, schedule.ModeWeek)
	require.NoError(t, err)
	raw := make([]byte, m.Length())
	set := func(id dcb.FieldID, b ...byte) {
		addr, ok := m.Locate(id)
		require.True(t, ok)
		copy(raw[addr:], b)
	}
	set(dcb.DCBLength, 0, byte(len(raw)))
	set(dcb.ModelNumber, byte(dcb.ModelPRT))
	set(dcb.SwitchDiff, 1)
	set(dcb.Address, 2)
	set(dcb.FrostTemp, 12)
	set(dcb.SetRoomTemp, 20)
	set(dcb.FloorMaxLimit, 28)
	set(dcb.OnOff, 1)
	set(dcb.RemoteAirTemp, 0xFF, 0xFF)
	set(dcb.FloorTemp, 0xFF, 0xFF)
	set(dcb.AirTemp, 0, 195)
	set(dcb.CurrentTime, 3, 10, 0, 0)
	for _, id := range dcb.HeatFields(schedule.ModeWeek) {
		set(id, 7, 0, 20, 22, 0, 15, 24, 0, 12, 24, 0, 12)
	}
	return raw
}

func newDevice(t *testing.T) *device.Device {
	t.Helper()
	d, err := device.New(&fakeBus{dcb: prtDCB(t)},
		device.Settings{Name: "study", Address: 2, Model: dcb.ModelPRT, Mode: schedule.ModeWeek},
		device.Options{Logger: zerolog.Nop(), Now: func() time.Time { return testNow }})
	require.NoError(t, err)
	return d
}

func TestTake(t *testing.T) {
	d := newDevice(t)
	require.NoError(t, d.ReadAll())

	snap := Take(d, testNow)
	assert.Equal(t, "study", snap.Device)
	assert.Equal(t, "PRT", snap.Model)
	assert.Equal(t, "week", snap.Mode)
	assert.Equal(t, "SETPOINT", snap.State)
	assert.Equal(t, "set to 20 until 22:00", snap.Status)

	air, ok := snap.Field("airtemp")
	require.True(t, ok)
	require.NotNil(t, air.Number)
	assert.Equal(t, 19.5, *air.Number)
	assert.Equal(t, []byte{0, 195}, air.Raw)

	floor, ok := snap.Field("floortemp")
	require.True(t, ok)
	assert.False(t, floor.Known)
	assert.Equal(t, "unknown", floor.Text)

	_, ok = snap.Field("hotwaterdemand")
	assert.False(t, ok)

	clock, ok := snap.Field("currenttime")
	require.True(t, ok)
	assert.Nil(t, clock.Number)
	assert.Equal(t, "Wed 10:00:00", clock.Text)
}

func TestEncodeDecode(t *testing.T) {
	d := newDevice(t)
	require.NoError(t, d.ReadAll())
	snap := Take(d, testNow)

	data, err := Encode(snap)
	require.NoError(t, err)

	again, err := Encode(snap)
	require.NoError(t, err)
	assert.Equal(t, data, again)

	back, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, snap.Device, back.Device)
	assert.True(t, snap.TakenAt.Equal(back.TakenAt))
	require.Len(t, back.Fields, len(snap.Fields))
	assert.Equal(t, snap.Fields[0].Name, back.Fields[0].Name)
	assert.Equal(t, *snap.Threshold, *back.Threshold)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode(nil)
	assert.Error(t, err)

	_, err = Decode([]byte{0xFF, 0x00})
	assert.Error(t, err)
}
