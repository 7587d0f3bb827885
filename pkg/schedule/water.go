// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package schedule

import "fmt"

// WaterEntry toggles hot water at a time of day. Entries alternate on, off,
// on, off through the day.
type WaterEntry struct {
	Hour   int
	Minute int
}

// Unused reports whether e is a sentinel slot.
func (e WaterEntry) Unused() bool {
	return e.Hour == SentinelHour
}

func (e WaterEntry) at() int {
	return secondOfDay(e.Hour, e.Minute)
}

func (e WaterEntry) String() string {
	return fmt.Sprintf("%02d:%02d", e.Hour, e.Minute)
}

// WaterDay is one bucket of hot water toggles, sentinel padded.
type WaterDay [WaterSlots]WaterEntry

// EmptyWaterDay returns a day with every slot unused.
func EmptyWaterDay() WaterDay {
	var d WaterDay
	for i := range d {
		d[i] = WaterEntry{Hour: SentinelHour}
	}
	return d
}

// NewWaterDay builds a day from flat (hour, minute) pairs.
func NewWaterDay(flat []int) (WaterDay, error) {
	padded, err := Pad(flat, WaterWidth, WaterSlots)
	if err != nil {
		return WaterDay{}, err
	}
	var d WaterDay
	for i := range d {
		d[i] = WaterEntry{Hour: padded[i*2], Minute: padded[i*2+1]}
	}
	if err := d.Validate(); err != nil {
		return WaterDay{}, err
	}
	return d, nil
}

// DecodeWater decodes the 16 byte wire form of a water day.
func DecodeWater(b []byte) (WaterDay, error) {
	if len(b) != WaterBytes {
		return WaterDay{}, fmt.Errorf("%w: water day is %d bytes, got %d", ErrBadLength, WaterBytes, len(b))
	}
	var d WaterDay
	for i := range d {
		d[i] = WaterEntry{Hour: int(b[i*2]), Minute: int(b[i*2+1])}
	}
	return d, nil
}

// Encode returns the 16 byte wire form of d.
func (d WaterDay) Encode() []byte {
	b := make([]byte, 0, WaterBytes)
	for _, e := range d {
		b = append(b, byte(e.Hour), byte(e.Minute))
	}
	return b
}

// Flat returns d as flat (hour, minute) pairs.
func (d WaterDay) Flat() []int {
	out := make([]int, 0, WaterBytes)
	for _, e := range d {
		out = append(out, e.Hour, e.Minute)
	}
	return out
}

// Entries returns the used entries of d.
func (d WaterDay) Entries() []WaterEntry {
	var out []WaterEntry
	for _, e := range d {
		if !e.Unused() {
			out = append(out, e)
		}
	}
	return out
}

// Validate checks that used entries come first in strictly increasing time
// order.
func (d WaterDay) Validate() error {
	times := make([]timeSlot, len(d))
	for i, e := range d {
		times[i] = timeSlot{e.Hour, e.Minute}
	}
	return validateOrder(times)
}
