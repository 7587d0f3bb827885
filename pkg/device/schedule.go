// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package device

import (
	"fmt"

	"github.com/Thermoquad/heatmiser/pkg/dcb"
	"github.com/Thermoquad/heatmiser/pkg/schedule"
)

// HeatSchedule reads the heating schedule.
func (d *Device) HeatSchedule() (schedule.Week, error) {
	if err := d.ReadFields(dcb.HeatFields(d.settings.Mode)...); err != nil {
		return schedule.Week{}, err
	}
	return d.registry.Week(), nil
}

// WaterSchedule reads the hot water schedule.
func (d *Device) WaterSchedule() (schedule.Week, error) {
	if !d.settings.Model.HasHotWater() {
		return schedule.Week{}, ErrNoHotWater
	}
	if err := d.ReadFields(dcb.WaterFields(d.settings.Mode)...); err != nil {
		return schedule.Week{}, err
	}
	return d.registry.Week(), nil
}

// SetHeatSchedule writes the heating entries of the bucket holding
// weekday (1 Monday .. 7 Sunday).
func (d *Device) SetHeatSchedule(weekday int, day schedule.HeatDay) error {
	id, err := d.bucketField(dcb.HeatFields(d.settings.Mode), weekday)
	if err != nil {
		return err
	}
	return d.SetField(id, dcb.HeatValue(day))
}

// SetWaterSchedule writes the water toggles of the bucket holding weekday.
func (d *Device) SetWaterSchedule(weekday int, day schedule.WaterDay) error {
	if !d.settings.Model.HasHotWater() {
		return ErrNoHotWater
	}
	id, err := d.bucketField(dcb.WaterFields(d.settings.Mode), weekday)
	if err != nil {
		return err
	}
	return d.SetField(id, dcb.WaterValue(day))
}

func (d *Device) bucketField(fields []dcb.FieldID, weekday int) (dcb.FieldID, error) {
	if weekday < 1 || weekday > 7 {
		return 0, fmt.Errorf("%w: weekday %d outside 1-7", dcb.ErrInvalid, weekday)
	}
	return fields[schedule.BucketFor(d.settings.Mode, weekday)], nil
}
