// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package device

import (
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/heatmiser/pkg/dcb"
	"github.com/Thermoquad/heatmiser/pkg/schedule"
)

// MaxDrift is the largest clock difference that can be corrected. Beyond
// it the device and host disagree about the day.
const MaxDrift = 24 * time.Hour

const week = 7 * 24 * time.Hour

// ErrTimeDrift is matched by every *TimeDriftError.
var ErrTimeDrift = errors.New("device: clock drift")

// TimeDriftError reports a device clock that disagrees with the host.
type TimeDriftError struct {
	Device string
	Drift  time.Duration
	Limit  time.Duration
}

// Error implements the error interface
func (e *TimeDriftError) Error() string {
	return fmt.Sprintf("device %s: clock is off by %s (limit %s)", e.Device, e.Drift, e.Limit)
}

// Is matches ErrTimeDrift.
func (e *TimeDriftError) Is(target error) bool {
	return target == ErrTimeDrift
}

// Drift returns how far clock b is ahead of clock a within one week,
// in the range (-3.5 days, 3.5 days].
func Drift(a, b schedule.Clock) time.Duration {
	d := time.Duration(b.Seconds()-a.Seconds()) * time.Second
	d %= week
	if d > week/2 {
		d -= week
	} else if d <= -week/2 {
		d += week
	}
	return d
}

// CheckTime reads the device clock and compares it with the host clock.
// A drift over MaxDrift is always an error. A drift over the tolerance is
// corrected when AutoCorrectTime is set and is an error otherwise. The
// measured drift is returned either way.
func (d *Device) CheckTime() (time.Duration, error) {
	if err := d.Refresh(dcb.CurrentTime); err != nil {
		return 0, err
	}
	v := d.registry.Value(dcb.CurrentTime)
	if !v.Known {
		return 0, fmt.Errorf("device %s: clock not available", d.settings.Name)
	}

	drift := Drift(schedule.ClockOf(d.now()), v.Clock)
	abs := drift
	if abs < 0 {
		abs = -abs
	}

	switch {
	case abs > MaxDrift:
		d.logger.Warn().Dur("drift", drift).Msg("time drift")
		return drift, &TimeDriftError{Device: d.settings.Name, Drift: drift, Limit: MaxDrift}
	case abs > d.tolerance && d.settings.AutoCorrectTime:
		d.logger.Info().Dur("drift", drift).Msg("time drift, correcting")
		return drift, d.SyncTime()
	case abs > d.tolerance:
		d.logger.Warn().Dur("drift", drift).Msg("time drift")
		return drift, &TimeDriftError{Device: d.settings.Name, Drift: drift, Limit: d.tolerance}
	}
	return drift, nil
}

// SyncTime sets the device clock to the host clock.
func (d *Device) SyncTime() error {
	return d.SetField(dcb.CurrentTime, dcb.ClockValue(schedule.ClockOf(d.now())))
}
