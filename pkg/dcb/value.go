// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dcb

import (
	"fmt"
	"strconv"
	"time"

	"github.com/Thermoquad/heatmiser/pkg/schedule"
)

// Kind is the shape of a decoded value.
type Kind int

const (
	KindNumber Kind = iota
	KindClock
	KindHeat
	KindWater
)

// Value is a decoded field value. Only the member matching the field's Kind
// is meaningful. The zero Value is unknown.
type Value struct {
	Known  bool
	Number float64
	Clock  schedule.Clock
	Heat   schedule.HeatDay
	Water  schedule.WaterDay
}

// Unknown is the value of a field that has not been read or is absent.
var Unknown = Value{}

// Number returns a known numeric value.
func Number(n float64) Value {
	return Value{Known: true, Number: n}
}

// ClockValue returns a known time value.
func ClockValue(c schedule.Clock) Value {
	return Value{Known: true, Clock: c}
}

// HeatValue returns a known heating schedule value.
func HeatValue(d schedule.HeatDay) Value {
	return Value{Known: true, Heat: d}
}

// WaterValue returns a known water schedule value.
func WaterValue(d schedule.WaterDay) Value {
	return Value{Known: true, Water: d}
}

// Int returns the numeric value truncated to an int.
func (v Value) Int() int {
	return int(v.Number)
}

// Format renders v as the given kind.
func (v Value) Format(k Kind) string {
	if !v.Known {
		return "unknown"
	}
	switch k {
	case KindClock:
		return v.Clock.String()
	case KindHeat:
		return fmt.Sprint(v.Heat.Entries())
	case KindWater:
		return fmt.Sprint(v.Water.Entries())
	default:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	}
}

// FieldValue is the cached state of one field on one device.
type FieldValue struct {
	Value     Value
	Raw       []byte
	ReadAt    time.Time
	WrittenAt time.Time

	// Expected, when set, is the value the device must report.
	Expected *Value
}

// Updated returns the later of the read and write times.
func (fv *FieldValue) Updated() time.Time {
	if fv.WrittenAt.After(fv.ReadAt) {
		return fv.WrittenAt
	}
	return fv.ReadAt
}

// Change is emitted after a field is decoded or a write to it is
// acknowledged.
type Change struct {
	Field FieldID
	Old   Value
	New   Value
}

// Changed reports whether the value differs from before.
func (c Change) Changed() bool {
	return c.Old != c.New
}

// Listener receives field changes.
type Listener interface {
	FieldChanged(c Change)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(c Change)

// FieldChanged calls f(c).
func (f ListenerFunc) FieldChanged(c Change) {
	f(c)
}
