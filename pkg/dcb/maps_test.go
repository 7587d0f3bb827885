// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dcb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/heatmiser/pkg/schedule"
)

// ============================================================
// Address Map Tests
// ============================================================

func TestMapLengths(t *testing.T) {
	tests := []struct {
		model  Model
		mode   schedule.Mode
		length int
	}{
		{ModelPRT, schedule.ModeWeek, 64},
		{ModelPRTE, schedule.ModeWeek, 64},
		{ModelPRTE, schedule.ModeDay, 148},
		{ModelPRTHW, schedule.ModeWeek, 97},
		{ModelPRTHW, schedule.ModeDay, 293},
	}

	for _, tt := range tests {
		t.Run(tt.model.String()+"/"+tt.mode.String(), func(t *testing.T) {
			m, err := MapFor(tt.model, tt.mode)
			require.NoError(t, err)
			require.NoError(t, m.Validate())
			assert.Equal(t, tt.length, m.Length())
		})
	}
}

func TestMapForUnsupported(t *testing.T) {
	for _, model := range []Model{ModelDT, ModelDTE, ModelTM1} {
		_, err := MapFor(model, schedule.ModeDay)
		assert.ErrorIs(t, err, ErrUnsupportedModel)
	}
}

func TestDCBAddressPRTEDay(t *testing.T) {
	m, err := MapFor(ModelPRTE, schedule.ModeDay)
	require.NoError(t, err)

	addr, ok := m.DCBAddress(24)
	assert.True(t, ok)
	assert.Equal(t, 24, addr)

	for u := 26; u <= 31; u++ {
		_, ok = m.DCBAddress(u)
		assert.False(t, ok, "unique address %d", u)
	}

	addr, ok = m.DCBAddress(32)
	assert.True(t, ok)
	assert.Equal(t, 26, addr)

	_, ok = m.DCBAddress(Fields[HotWaterDemand].Address)
	assert.False(t, ok)

	addr, ok = m.Locate(SunHeat)
	assert.True(t, ok)
	assert.Equal(t, 136, addr)

	_, ok = m.Locate(MonWater)
	assert.False(t, ok)
}

func TestLocateHotWaterDay(t *testing.T) {
	m, err := MapFor(ModelPRTHW, schedule.ModeDay)
	require.NoError(t, err)

	addr, ok := m.Locate(HotWaterDemand)
	assert.True(t, ok)
	assert.Equal(t, 36, addr)

	addr, ok = m.Locate(SunWater)
	assert.True(t, ok)
	assert.Equal(t, 277, addr)
	assert.Equal(t, m.Length(), addr+16)
}

func TestMapValidate(t *testing.T) {
	assert.ErrorIs(t, AddressMap{{25, 0}, {25, Invalid}}.Validate(), ErrBadAddressMap)
	assert.ErrorIs(t, AddressMap{{25, Invalid}}.Validate(), ErrBadAddressMap)
}

func TestParseModel(t *testing.T) {
	for in, want := range map[string]Model{"PRT-E": ModelPRTE, "prt_hw": ModelPRTHW, "PRTHW": ModelPRTHW, "prt": ModelPRT} {
		got, err := ParseModel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseModel("PRT-X")
	assert.Error(t, err)
}

func TestLookup(t *testing.T) {
	id, ok := Lookup("tempholdmins")
	require.True(t, ok)
	assert.Equal(t, TempHoldMins, id)
	assert.Equal(t, 32, Fields[id].Address)

	id, ok = Lookup("sun_water")
	require.True(t, ok)
	assert.Equal(t, 187+16*6, Fields[id].Address)

	_, ok = Lookup("nonsense")
	assert.False(t, ok)
	assert.Len(t, Names(), int(NumFields))
}

func TestSchemaAddressesIncrease(t *testing.T) {
	for i := 1; i < int(NumFields); i++ {
		prev, cur := Fields[i-1], Fields[i]
		assert.GreaterOrEqual(t, cur.Address, prev.Address+prev.Width, "%s after %s", cur.Name, prev.Name)
		assert.Equal(t, FieldID(i), cur.ID)
	}
}
