// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package thermostat tracks a thermostat's operating state from field
// changes and describes what it is doing.
package thermostat

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Thermoquad/heatmiser/pkg/dcb"
	"github.com/Thermoquad/heatmiser/pkg/schedule"
)

// State is the operating state of a thermostat.
type State int

const (
	StateOff      State = iota // off, no frost protection
	StateOffFrost              // off, frost protection active
	StateFrost                 // on, holding the frost temperature
	StateSetpoint              // on, heating to the set point
)

func (s State) String() string {
	switch s {
	case StateOff:
		return "OFF"
	case StateOffFrost:
		return "OFF_FROST"
	case StateFrost:
		return "FROST"
	case StateSetpoint:
		return "SETPOINT"
	default:
		return fmt.Sprintf("STATE(%d)", int(s))
	}
}

// Fields gives read access to a device's decoded values. *dcb.Registry
// implements it.
type Fields interface {
	Value(id dcb.FieldID) dcb.Value
	Week() schedule.Week
}

// Run modes
const (
	RunModeHeat  = 0
	RunModeFrost = 1
)

// Machine is the thermostat state machine. It is driven by field change
// notifications and never reads the bus itself.
type Machine struct {
	fields Fields
	state  State
	logger zerolog.Logger

	// OnTransition, if set, is called after every state change.
	OnTransition func(from, to State)
}

// NewMachine creates a machine in StateOff reading values from fields.
func NewMachine(fields Fields, logger zerolog.Logger) *Machine {
	return &Machine{fields: fields, state: StateOff, logger: logger}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Threshold returns the temperature the thermostat is holding, or false
// when it is off without frost protection.
func (m *Machine) Threshold() (float64, bool) {
	switch m.state {
	case StateOffFrost, StateFrost:
		return m.number(dcb.FrostTemp)
	case StateSetpoint:
		return m.number(dcb.SetRoomTemp)
	}
	return 0, false
}

// FieldChanged implements dcb.Listener.
func (m *Machine) FieldChanged(c dcb.Change) {
	if !c.Changed() {
		return
	}
	switch c.Field {
	case dcb.OnOff:
		if m.on() {
			m.switchSwap()
		} else if c.New.Known {
			m.switchOff()
		}
	case dcb.FrostProtDisable:
		m.switchOff()
	case dcb.SetRoomTemp, dcb.RunMode, dcb.HolidayHours, dcb.TempHoldMins:
		m.switchSwap()
	}
}

func (m *Machine) switchOff() {
	disabled := m.flag(dcb.FrostProtDisable)
	switch m.state {
	case StateFrost, StateSetpoint:
		if disabled {
			m.transition(StateOff)
		} else {
			m.transition(StateOffFrost)
		}
	case StateOffFrost:
		if disabled {
			m.transition(StateOff)
		}
	case StateOff:
		if !disabled {
			m.transition(StateOffFrost)
		}
	}
}

func (m *Machine) switchSwap() {
	if !m.on() {
		return
	}
	if m.frostEligible() {
		m.transition(StateSetpoint)
	} else {
		m.transition(StateFrost)
	}
}

func (m *Machine) transition(to State) {
	from := m.state
	if from == to {
		return
	}
	m.state = to
	m.logger.Debug().Stringer("from", from).Stringer("to", to).Msg("state change")
	if m.OnTransition != nil {
		m.OnTransition(from, to)
	}
}

func (m *Machine) on() bool {
	return m.flag(dcb.OnOff)
}

// frostEligible is true when no holiday is set and the run mode is heat.
func (m *Machine) frostEligible() bool {
	return m.fields.Value(dcb.HolidayHours).Int() == 0 &&
		m.fields.Value(dcb.RunMode).Int() == RunModeHeat
}

func (m *Machine) flag(id dcb.FieldID) bool {
	v := m.fields.Value(id)
	return v.Known && v.Int() == 1
}

func (m *Machine) number(id dcb.FieldID) (float64, bool) {
	v := m.fields.Value(id)
	return v.Number, v.Known
}
