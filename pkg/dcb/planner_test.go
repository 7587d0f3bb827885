// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dcb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/heatmiser/pkg/schedule"
)

// ============================================================
// Read Planner Tests
// ============================================================

func TestPlanStraddlingGap(t *testing.T) {
	m, err := MapFor(ModelPRTE, schedule.ModeDay)
	require.NoError(t, err)

	plan := NewPlanner(DefaultCostModel()).Plan(m, []FieldID{HolidayHours, TempHoldMins})
	require.Len(t, plan.Blocks, 2)
	assert.False(t, plan.ReadAll)
	assert.Equal(t, ReadBlock{First: HolidayHours, Last: HolidayHours, Start: 24, Length: 2}, plan.Blocks[0])
	assert.Equal(t, ReadBlock{First: TempHoldMins, Last: TempHoldMins, Start: 26, Length: 2}, plan.Blocks[1])
}

func TestPlanNeverCrossesGap(t *testing.T) {
	m, err := MapFor(ModelPRTE, schedule.ModeDay)
	require.NoError(t, err)

	// Free transactions make merging always attractive.
	p := NewPlanner(CostModel{PerByte: time.Millisecond, ReadAllMargin: 0})
	plan := p.Plan(m, []FieldID{HolidayHours, TempHoldMins})
	require.False(t, plan.ReadAll)
	assert.Len(t, plan.Blocks, 2)
}

func TestPlanMergesNearbyFields(t *testing.T) {
	m, err := MapFor(ModelPRTE, schedule.ModeDay)
	require.NoError(t, err)

	plan := NewPlanner(DefaultCostModel()).Plan(m, []FieldID{HolidayHours, OnOff, SetRoomTemp})
	require.Len(t, plan.Blocks, 1)
	assert.Equal(t, ReadBlock{First: SetRoomTemp, Last: HolidayHours, Start: 18, Length: 8}, plan.Blocks[0])
}

func TestPlanSeparatesDistantFields(t *testing.T) {
	m, err := MapFor(ModelPRTE, schedule.ModeDay)
	require.NoError(t, err)

	p := NewPlanner(CostModel{PerByte: time.Millisecond, PerTransaction: time.Millisecond})
	plan := p.Plan(m, []FieldID{Vendor, HolidayHours})
	require.Len(t, plan.Blocks, 2)
	assert.Equal(t, 5*time.Millisecond, plan.Cost)
}

func TestPlanCoalescesAdjacentFields(t *testing.T) {
	m, err := MapFor(ModelPRTE, schedule.ModeDay)
	require.NoError(t, err)

	p := NewPlanner(CostModel{PerByte: time.Millisecond, PerTransaction: time.Millisecond})
	plan := p.Plan(m, []FieldID{OnOff, KeyLock, RunMode, Vendor})
	require.Len(t, plan.Blocks, 2)
	assert.Equal(t, ReadBlock{First: Vendor, Last: Vendor, Start: 2, Length: 1}, plan.Blocks[0])
	assert.Equal(t, ReadBlock{First: OnOff, Last: RunMode, Start: 21, Length: 3}, plan.Blocks[1])
}

func TestPlanFallsBackToReadAll(t *testing.T) {
	m, err := MapFor(ModelPRTE, schedule.ModeWeek)
	require.NoError(t, err)

	plan := NewPlanner(DefaultCostModel()).Plan(m, []FieldID{Vendor, AirTemp, CurrentTime, WeekendHeat})
	assert.True(t, plan.ReadAll)
	assert.Equal(t, DefaultCostModel().Read(64), plan.Cost)
}

func TestPlanSkipsAbsentAndDuplicateFields(t *testing.T) {
	m, err := MapFor(ModelPRTE, schedule.ModeDay)
	require.NoError(t, err)

	plan := NewPlanner(DefaultCostModel()).Plan(m, []FieldID{HotWaterDemand, MonWater, OnOff, OnOff})
	require.Len(t, plan.Blocks, 1)
	assert.Equal(t, OnOff, plan.Blocks[0].First)

	assert.Empty(t, NewPlanner(DefaultCostModel()).Plan(m, []FieldID{HotWaterDemand}).Blocks)
}

func TestCostModel(t *testing.T) {
	c := DefaultCostModel()
	assert.Equal(t, 2*2075*time.Microsecond+70727*time.Microsecond, c.Read(2))
}

// ============================================================
// Write Planner Tests
// ============================================================

func TestPlanWrites(t *testing.T) {
	blocks := PlanWrites([]PendingWrite{
		{Field: HolidayHours, Start: 24, Data: []byte{0, 1}},
		{Field: OnOff, Start: 21, Data: []byte{1}},
		{Field: KeyLock, Start: 22, Data: []byte{0}},
		{Field: TempHoldMins, Start: 26, Data: []byte{0, 30}},
	}, 100)

	require.Len(t, blocks, 2)
	assert.Equal(t, []FieldID{OnOff, KeyLock}, blocks[0].Fields)
	assert.Equal(t, []byte{1, 0}, blocks[0].Data)
	assert.Equal(t, []FieldID{HolidayHours, TempHoldMins}, blocks[1].Fields)
	assert.Equal(t, 24, blocks[1].Start)
	assert.Equal(t, []byte{0, 1, 0, 30}, blocks[1].Data)
}

func TestPlanWritesRespectsPayloadLimit(t *testing.T) {
	blocks := PlanWrites([]PendingWrite{
		{Field: MonHeat, Start: 64, Data: make([]byte, 12)},
		{Field: TueHeat, Start: 76, Data: make([]byte, 12)},
	}, 20)
	assert.Len(t, blocks, 2)
}
