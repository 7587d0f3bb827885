// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package schedule

// Week is a device's full schedule. Heat and Water hold Buckets(Mode) days;
// Water is nil on devices without hot water.
type Week struct {
	Mode  Mode
	Heat  []HeatDay
	Water []WaterDay
}

// NewWeek returns a week for mode with every slot unused.
func NewWeek(m Mode, water bool) Week {
	w := Week{Mode: m, Heat: make([]HeatDay, Buckets(m))}
	for i := range w.Heat {
		w.Heat[i] = EmptyHeatDay()
	}
	if water {
		w.Water = make([]WaterDay, Buckets(m))
		for i := range w.Water {
			w.Water[i] = EmptyWaterDay()
		}
	}
	return w
}

// HeatEvent is a heating entry tagged with the weekday it falls on.
type HeatEvent struct {
	Weekday int
	HeatEntry
}

// WaterEvent is a water toggle tagged with its weekday and direction.
type WaterEvent struct {
	Weekday int
	On      bool
	WaterEntry
}

func (w Week) heatEntries(weekday int) []HeatEntry {
	b := BucketFor(w.Mode, weekday)
	if b < 0 || b >= len(w.Heat) {
		return nil
	}
	return w.Heat[b].Entries()
}

func (w Week) waterEntries(weekday int) []WaterEntry {
	b := BucketFor(w.Mode, weekday)
	if b < 0 || b >= len(w.Water) {
		return nil
	}
	return w.Water[b].Entries()
}

// CurrentHeat returns the heating entry in force at now. Before the first
// entry of the day it is the last entry of the most recent earlier day.
func (w Week) CurrentHeat(now Clock) (HeatEvent, bool) {
	e, wd, _, ok := current(w.heatEntries, now)
	return HeatEvent{Weekday: wd, HeatEntry: e}, ok
}

// NextHeat returns the next heating entry after now, wrapping across days
// and the end of the week.
func (w Week) NextHeat(now Clock) (HeatEvent, bool) {
	e, wd, _, ok := next(w.heatEntries, now)
	return HeatEvent{Weekday: wd, HeatEntry: e}, ok
}

// WaterOn reports whether hot water is scheduled on at now. An even
// entry index switches on and an odd one switches off.
func (w Week) WaterOn(now Clock) bool {
	_, _, idx, ok := current(w.waterEntries, now)
	return ok && idx%2 == 0
}

// NextWater returns the next hot water toggle after now.
func (w Week) NextWater(now Clock) (WaterEvent, bool) {
	e, wd, idx, ok := next(w.waterEntries, now)
	return WaterEvent{Weekday: wd, On: idx%2 == 0, WaterEntry: e}, ok
}

type timed interface {
	at() int
}

func current[E timed](entries func(weekday int) []E, now Clock) (E, int, int, bool) {
	t := nowOfDay(now)
	today := entries(now.Weekday)
	for i := len(today) - 1; i >= 0; i-- {
		if today[i].at() <= t {
			return today[i], now.Weekday, i, true
		}
	}
	for d := 1; d <= 7; d++ {
		wd := weekdayAt(now.Weekday, -d)
		if es := entries(wd); len(es) > 0 {
			return es[len(es)-1], wd, len(es) - 1, true
		}
	}
	var zero E
	return zero, 0, -1, false
}

func next[E timed](entries func(weekday int) []E, now Clock) (E, int, int, bool) {
	t := nowOfDay(now)
	for i, e := range entries(now.Weekday) {
		if e.at() > t {
			return e, now.Weekday, i, true
		}
	}
	for d := 1; d <= 7; d++ {
		wd := weekdayAt(now.Weekday, d)
		if es := entries(wd); len(es) > 0 {
			return es[0], wd, 0, true
		}
	}
	var zero E
	return zero, 0, -1, false
}
