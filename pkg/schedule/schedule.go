// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package schedule encodes and decodes thermostat heating and hot water
// schedules and answers "what is active now" and "what happens next".
//
// A heating day holds up to four (hour, minute, temperature) entries and a
// water day up to eight (hour, minute) toggles. Unused slots carry the
// sentinel hour 24. Devices keep either seven day buckets (Mode Day) or a
// weekday and a weekend bucket (Mode Week).
package schedule

import (
	"errors"
	"fmt"
	"time"
)

// Slot geometry
const (
	SentinelHour = 24

	HeatSlots  = 4
	HeatWidth  = 3
	HeatBytes  = HeatSlots * HeatWidth
	WaterSlots = 8
	WaterWidth = 2
	WaterBytes = WaterSlots * WaterWidth

	// sentinelTemp fills the temperature of an unused heating slot.
	sentinelTemp = 12
)

var (
	ErrNotMultiple    = errors.New("schedule: length is not a multiple of the entry width")
	ErrTooManyEntries = errors.New("schedule: more entries than the day holds")
	ErrOutOfOrder     = errors.New("schedule: entries out of order")
	ErrBadLength      = errors.New("schedule: wrong encoded length")
)

// Mode is the device program mode, which decides the day buckets.
type Mode int

const (
	ModeWeek Mode = 0 // weekday and weekend buckets
	ModeDay  Mode = 1 // one bucket per weekday
)

func (m Mode) String() string {
	switch m {
	case ModeWeek:
		return "week"
	case ModeDay:
		return "day"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses "week" / "5/2" or "day" / "7".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "week", "5/2", "0":
		return ModeWeek, nil
	case "day", "7", "7day", "1":
		return ModeDay, nil
	}
	return 0, fmt.Errorf("schedule: unknown program mode %q", s)
}

// Buckets returns the number of day buckets in mode.
func Buckets(m Mode) int {
	if m == ModeDay {
		return 7
	}
	return 2
}

// BucketFor returns the bucket index holding weekday (1 Monday .. 7 Sunday).
func BucketFor(m Mode, weekday int) int {
	if m == ModeDay {
		return weekday - 1
	}
	if weekday <= 5 {
		return 0
	}
	return 1
}

// Clock is a device wall clock reading.
type Clock struct {
	Weekday int // 1 Monday .. 7 Sunday
	Hour    int
	Minute  int
	Second  int
}

// ClockOf converts t to a Clock.
func ClockOf(t time.Time) Clock {
	wd := int(t.Weekday())
	if wd == 0 {
		wd = 7
	}
	return Clock{Weekday: wd, Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
}

// Seconds returns the seconds since Monday 00:00:00.
func (c Clock) Seconds() int {
	return (((c.Weekday-1)*24+c.Hour)*60+c.Minute)*60 + c.Second
}

func (c Clock) String() string {
	return fmt.Sprintf("%s %02d:%02d:%02d", WeekdayName(c.Weekday), c.Hour, c.Minute, c.Second)
}

var weekdayNames = [...]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// WeekdayName returns the short name of weekday 1..7.
func WeekdayName(weekday int) string {
	if weekday < 1 || weekday > 7 {
		return fmt.Sprintf("day%d", weekday)
	}
	return weekdayNames[weekday-1]
}

// Pad right-pads a flat schedule of width-sized entries with sentinel
// entries until it holds slots entries.
func Pad(flat []int, width, slots int) ([]int, error) {
	if width != HeatWidth && width != WaterWidth {
		return nil, fmt.Errorf("schedule: unsupported entry width %d", width)
	}
	if len(flat)%width != 0 {
		return nil, fmt.Errorf("%w: %d values, width %d", ErrNotMultiple, len(flat), width)
	}
	if len(flat)/width > slots {
		return nil, fmt.Errorf("%w: %d entries, capacity %d", ErrTooManyEntries, len(flat)/width, slots)
	}

	out := make([]int, 0, width*slots)
	out = append(out, flat...)
	for len(out) < width*slots {
		out = append(out, SentinelHour, 0)
		if width == HeatWidth {
			out = append(out, sentinelTemp)
		}
	}
	return out, nil
}

// weekdayAt steps d days from weekday, wrapping at the week boundary.
func weekdayAt(weekday, d int) int {
	return ((weekday-1+d)%7+7)%7 + 1
}

// secondOfDay is the time of day of an entry in seconds.
func secondOfDay(hour, minute int) int {
	return (hour*60 + minute) * 60
}

func nowOfDay(c Clock) int {
	return (c.Hour*60+c.Minute)*60 + c.Second
}
