// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package schedule

import "fmt"

// HeatEntry switches the target temperature at a time of day.
type HeatEntry struct {
	Hour   int
	Minute int
	Temp   int
}

// Unused reports whether e is a sentinel slot.
func (e HeatEntry) Unused() bool {
	return e.Hour == SentinelHour
}

func (e HeatEntry) at() int {
	return secondOfDay(e.Hour, e.Minute)
}

func (e HeatEntry) String() string {
	return fmt.Sprintf("%02d:%02d %dC", e.Hour, e.Minute, e.Temp)
}

// HeatDay is one bucket of heating entries, sentinel padded.
type HeatDay [HeatSlots]HeatEntry

// EmptyHeatDay returns a day with every slot unused.
func EmptyHeatDay() HeatDay {
	var d HeatDay
	for i := range d {
		d[i] = HeatEntry{Hour: SentinelHour, Temp: sentinelTemp}
	}
	return d
}

// NewHeatDay builds a day from flat (hour, minute, temp) triples, padding
// unused slots and checking that the entries are in order.
func NewHeatDay(flat []int) (HeatDay, error) {
	padded, err := Pad(flat, HeatWidth, HeatSlots)
	if err != nil {
		return HeatDay{}, err
	}
	var d HeatDay
	for i := range d {
		d[i] = HeatEntry{Hour: padded[i*3], Minute: padded[i*3+1], Temp: padded[i*3+2]}
	}
	if err := d.Validate(); err != nil {
		return HeatDay{}, err
	}
	return d, nil
}

// DecodeHeat decodes the 12 byte wire form of a heating day.
func DecodeHeat(b []byte) (HeatDay, error) {
	if len(b) != HeatBytes {
		return HeatDay{}, fmt.Errorf("%w: heating day is %d bytes, got %d", ErrBadLength, HeatBytes, len(b))
	}
	var d HeatDay
	for i := range d {
		d[i] = HeatEntry{Hour: int(b[i*3]), Minute: int(b[i*3+1]), Temp: int(b[i*3+2])}
	}
	return d, nil
}

// Encode returns the 12 byte wire form of d.
func (d HeatDay) Encode() []byte {
	b := make([]byte, 0, HeatBytes)
	for _, e := range d {
		b = append(b, byte(e.Hour), byte(e.Minute), byte(e.Temp))
	}
	return b
}

// Flat returns d as flat (hour, minute, temp) triples.
func (d HeatDay) Flat() []int {
	out := make([]int, 0, HeatBytes)
	for _, e := range d {
		out = append(out, e.Hour, e.Minute, e.Temp)
	}
	return out
}

// Entries returns the used entries of d.
func (d HeatDay) Entries() []HeatEntry {
	var out []HeatEntry
	for _, e := range d {
		if !e.Unused() {
			out = append(out, e)
		}
	}
	return out
}

// Validate checks that used entries come first in strictly increasing time
// order.
func (d HeatDay) Validate() error {
	times := make([]timeSlot, len(d))
	for i, e := range d {
		times[i] = timeSlot{e.Hour, e.Minute}
	}
	return validateOrder(times)
}

type timeSlot struct{ hour, minute int }

func validateOrder(slots []timeSlot) error {
	last := -1
	unused := false
	for i, s := range slots {
		if s.hour == SentinelHour {
			unused = true
			continue
		}
		if unused {
			return fmt.Errorf("%w: slot %d used after an unused slot", ErrOutOfOrder, i)
		}
		at := secondOfDay(s.hour, s.minute)
		if at <= last {
			return fmt.Errorf("%w: slot %d at %02d:%02d is not after the previous entry", ErrOutOfOrder, i, s.hour, s.minute)
		}
		last = at
	}
	return nil
}
