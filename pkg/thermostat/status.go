// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package thermostat

import (
	"fmt"
	"strconv"

	"github.com/Thermoquad/heatmiser/pkg/dcb"
	"github.com/Thermoquad/heatmiser/pkg/schedule"
)

// Status describes what a thermostat is doing.
type Status struct {
	State     State
	Threshold *float64
	Text      string
}

// Describe derives the status from field values alone. When several
// conditions hold, holiday wins over a hold, a hold over an override and
// an override over frost mode.
func Describe(f Fields, now schedule.Clock) Status {
	value := func(id dcb.FieldID) dcb.Value { return f.Value(id) }
	on := value(dcb.OnOff).Known && value(dcb.OnOff).Int() == 1
	frostDisabled := value(dcb.FrostProtDisable).Known && value(dcb.FrostProtDisable).Int() == 1
	holiday := value(dcb.HolidayHours).Int()
	hold := value(dcb.TempHoldMins).Int()
	frost := threshold(value(dcb.FrostTemp))
	setpoint := threshold(value(dcb.SetRoomTemp))

	switch {
	case !on && frostDisabled:
		return Status{State: StateOff, Text: "off, no frost protection"}
	case !on:
		return Status{State: StateOffFrost, Threshold: frost, Text: "off, frost protection active"}
	case holiday != 0:
		return Status{State: StateFrost, Threshold: frost, Text: fmt.Sprintf("on holiday for %d hours", holiday)}
	case value(dcb.RunMode).Int() == RunModeFrost:
		return Status{State: StateFrost, Threshold: frost, Text: "frost mode"}
	}

	temp := formatTemp(setpoint)
	if hold != 0 {
		return Status{State: StateSetpoint, Threshold: setpoint,
			Text: fmt.Sprintf("held for %d minutes at %s", hold, temp)}
	}

	week := f.Week()
	next, ok := week.NextHeat(now)
	if !ok {
		return Status{State: StateSetpoint, Threshold: setpoint, Text: "set to " + temp}
	}
	until := fmt.Sprintf("%02d:%02d", next.Hour, next.Minute)

	cur, ok := week.CurrentHeat(now)
	if ok && setpoint != nil && float64(cur.Temp) == *setpoint {
		return Status{State: StateSetpoint, Threshold: setpoint,
			Text: fmt.Sprintf("set to %s until %s", temp, until)}
	}
	return Status{State: StateSetpoint, Threshold: setpoint,
		Text: fmt.Sprintf("overridden to %s until %s", temp, until)}
}

func threshold(v dcb.Value) *float64 {
	if !v.Known {
		return nil
	}
	n := v.Number
	return &n
}

func formatTemp(t *float64) string {
	if t == nil {
		return "unknown"
	}
	return strconv.FormatFloat(*t, 'f', -1, 64)
}
