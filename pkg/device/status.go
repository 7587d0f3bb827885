// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package device

import (
	"github.com/Thermoquad/heatmiser/pkg/dcb"
	"github.com/Thermoquad/heatmiser/pkg/schedule"
	"github.com/Thermoquad/heatmiser/pkg/thermostat"
)

// stateFields drive the state machine.
var stateFields = []dcb.FieldID{
	dcb.OnOff, dcb.FrostProtDisable, dcb.RunMode,
	dcb.HolidayHours, dcb.SetRoomTemp, dcb.TempHoldMins,
}

// CurrentState brings the state machine inputs up to date and returns
// the resulting state.
func (d *Device) CurrentState() (thermostat.State, error) {
	if err := d.ReadFields(stateFields...); err != nil {
		return thermostat.StateOff, err
	}
	return d.machine.State(), nil
}

// StatusText describes what the thermostat is doing now.
func (d *Device) StatusText() (thermostat.Status, error) {
	ids := append([]dcb.FieldID{dcb.FrostTemp}, stateFields...)
	ids = append(ids, dcb.HeatFields(d.settings.Mode)...)
	if err := d.ReadFields(ids...); err != nil {
		return thermostat.Status{}, err
	}
	return thermostat.Describe(d.registry, schedule.ClockOf(d.now())), nil
}
