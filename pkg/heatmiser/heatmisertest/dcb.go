// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package heatmisertest

import (
	"github.com/Thermoquad/heatmiser/pkg/dcb"
	"github.com/Thermoquad/heatmiser/pkg/schedule"
)

// DCB builds the control block of a healthy thermostat: switched on at
// 21 degrees, frost temperature 12, air at 20.5, no remote or floor
// sensor, clock at Wednesday 10:00:00. Every schedule day heats to 21 at
// 07:00 and 17:00 and drops to 12 at 09:00; water runs 06:00 to 08:00.
func DCB(address uint8, model dcb.Model, mode schedule.Mode) ([]byte, error) {
	m, err := dcb.MapFor(model, mode)
	if err != nil {
		return nil, err
	}
	raw := make([]byte, m.Length())

	set := func(id dcb.FieldID, b ...byte) {
		if addr, ok := m.Locate(id); ok {
			copy(raw[addr:], b)
		}
	}
	set(dcb.DCBLength, byte(len(raw)>>8), byte(len(raw)))
	set(dcb.Version, 4)
	set(dcb.ModelNumber, byte(model))
	set(dcb.SwitchDiff, 1)
	set(dcb.Address, address)
	set(dcb.ProgramMode, byte(mode))
	set(dcb.FrostTemp, 12)
	set(dcb.SetRoomTemp, 21)
	set(dcb.FloorMaxLimit, 28)
	set(dcb.OnOff, 1)
	set(dcb.RemoteAirTemp, 0xFF, 0xFF)
	set(dcb.FloorTemp, 0xFF, 0xFF)
	set(dcb.AirTemp, 0, 205)
	set(dcb.CurrentTime, 3, 10, 0, 0)
	for _, pm := range []schedule.Mode{schedule.ModeWeek, schedule.ModeDay} {
		for _, id := range dcb.HeatFields(pm) {
			set(id, 7, 0, 21, 9, 0, 12, 17, 0, 21, 24, 0, 12)
		}
		for _, id := range dcb.WaterFields(pm) {
			set(id, 6, 0, 8, 0, 24, 0, 24, 0, 24, 0, 24, 0, 24, 0, 24, 0)
		}
	}
	return raw, nil
}

// Thermostat returns a Device serving a healthy control block.
func Thermostat(address uint8, model dcb.Model, mode schedule.Mode) (*Device, error) {
	raw, err := DCB(address, model, mode)
	if err != nil {
		return nil, err
	}
	return &Device{Address: address, DCB: raw}, nil
}
