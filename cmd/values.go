// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/heatmiser/pkg/dcb"
	"github.com/Thermoquad/heatmiser/pkg/schedule"
)

// parseValue parses a command line value for field id.
//
//	number:  21, 0.5
//	clock:   now, "Wed 10:05", "3 10:05:30"
//	heat:    "07:00 21, 09:00 12", or "none"
//	water:   "06:00, 08:00", or "none"
func parseValue(id dcb.FieldID, s string, now time.Time) (dcb.Value, error) {
	s = strings.TrimSpace(s)
	switch id.Field().Kind() {
	case dcb.KindClock:
		c, err := parseClock(s, now)
		if err != nil {
			return dcb.Unknown, err
		}
		return dcb.ClockValue(c), nil
	case dcb.KindHeat:
		d, err := parseHeatDay(s)
		if err != nil {
			return dcb.Unknown, err
		}
		return dcb.HeatValue(d), nil
	case dcb.KindWater:
		d, err := parseWaterDay(s)
		if err != nil {
			return dcb.Unknown, err
		}
		return dcb.WaterValue(d), nil
	default:
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return dcb.Unknown, fmt.Errorf("%s: %q is not a number", id, s)
		}
		return dcb.Number(n), nil
	}
}

// parseWeekday accepts 1 (Monday) to 7 (Sunday) or a day name.
func parseWeekday(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 || n > 7 {
			return 0, fmt.Errorf("weekday %d outside 1-7", n)
		}
		return n, nil
	}
	lower := strings.ToLower(s)
	for wd := 1; wd <= 7; wd++ {
		name := strings.ToLower(schedule.WeekdayName(wd))
		if len(lower) >= 3 && strings.HasPrefix(lower, name) {
			return wd, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// parseTimeOfDay parses HH:MM or HH:MM:SS.
func parseTimeOfDay(s string) (hour, minute, second int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, 0, fmt.Errorf("time %q is not HH:MM", s)
	}
	vals := make([]int, 3)
	for i, p := range parts {
		v, convErr := strconv.Atoi(p)
		if convErr != nil || v < 0 {
			return 0, 0, 0, fmt.Errorf("time %q is not HH:MM", s)
		}
		vals[i] = v
	}
	return vals[0], vals[1], vals[2], nil
}

func parseClock(s string, now time.Time) (schedule.Clock, error) {
	if strings.EqualFold(s, "now") {
		return schedule.ClockOf(now), nil
	}
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return schedule.Clock{}, fmt.Errorf("clock %q is not \"<weekday> HH:MM[:SS]\"", s)
	}
	wd, err := parseWeekday(fields[0])
	if err != nil {
		return schedule.Clock{}, err
	}
	h, m, sec, err := parseTimeOfDay(fields[1])
	if err != nil {
		return schedule.Clock{}, err
	}
	return schedule.Clock{Weekday: wd, Hour: h, Minute: m, Second: sec}, nil
}

func entries(s string) []string {
	if s == "" || strings.EqualFold(s, "none") {
		return nil
	}
	var out []string
	for _, e := range strings.Split(s, ",") {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}

func parseHeatDay(s string) (schedule.HeatDay, error) {
	var flat []int
	for _, e := range entries(s) {
		fields := strings.Fields(e)
		if len(fields) != 2 {
			return schedule.HeatDay{}, fmt.Errorf("heating entry %q is not \"HH:MM TEMP\"", e)
		}
		h, m, _, err := parseTimeOfDay(fields[0])
		if err != nil {
			return schedule.HeatDay{}, err
		}
		temp, err := strconv.Atoi(strings.TrimSuffix(fields[1], "C"))
		if err != nil {
			return schedule.HeatDay{}, fmt.Errorf("heating entry %q: bad temperature", e)
		}
		flat = append(flat, h, m, temp)
	}
	return schedule.NewHeatDay(flat)
}

func parseWaterDay(s string) (schedule.WaterDay, error) {
	var flat []int
	for _, e := range entries(s) {
		h, m, _, err := parseTimeOfDay(e)
		if err != nil {
			return schedule.WaterDay{}, err
		}
		flat = append(flat, h, m)
	}
	return schedule.NewWaterDay(flat)
}
