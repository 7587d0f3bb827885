// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dcb

import (
	"fmt"
	"math"

	"github.com/Thermoquad/heatmiser/pkg/schedule"
)

const (
	noSensor        = 0xFFFF
	floorLimitFlag  = 0x80
	versionBitsMask = 0x7F
)

// decode turns raw DCB bytes into a value and checks it against the
// field's read ranges.
func decode(f *Field, raw []byte) (Value, error) {
	if len(raw) != f.Width {
		return Unknown, &DataError{Field: f.ID, Raw: raw,
			Message: fmt.Sprintf("expected %d bytes, got %d", f.Width, len(raw))}
	}

	var v Value
	var slots []int
	switch f.Width {
	case 1:
		v = Number(float64(raw[0]) / float64(f.Divisor))
		slots = []int{int(raw[0])}
	case 2:
		n := int(raw[0])<<8 | int(raw[1])
		if f.NoSensor && n == noSensor {
			return Unknown, nil
		}
		v = Number(float64(n) / float64(f.Divisor))
		slots = []int{n}
	case 4:
		v = ClockValue(schedule.Clock{
			Weekday: int(raw[0]), Hour: int(raw[1]), Minute: int(raw[2]), Second: int(raw[3]),
		})
		slots = bytesToInts(raw)
	case schedule.HeatBytes:
		day, err := schedule.DecodeHeat(raw)
		if err != nil {
			return Unknown, &DataError{Field: f.ID, Raw: raw, Message: err.Error()}
		}
		v = HeatValue(day)
		slots = day.Flat()
	case schedule.WaterBytes:
		day, err := schedule.DecodeWater(raw)
		if err != nil {
			return Unknown, &DataError{Field: f.ID, Raw: raw, Message: err.Error()}
		}
		v = WaterValue(day)
		slots = day.Flat()
	default:
		return Unknown, &DataError{Field: f.ID, Raw: raw, Message: fmt.Sprintf("unsupported width %d", f.Width)}
	}

	if msg := checkSlots(f, slots, f.Enum); msg != "" {
		return Unknown, &DataError{Field: f.ID, Raw: raw, Message: msg}
	}
	return v, nil
}

// splitVersion separates the floor limit flag packed into the version byte
// of models without hot water.
func splitVersion(raw byte) (version int, floorLimit bool) {
	return int(raw & versionBitsMask), raw&floorLimitFlag != 0
}

// encode validates a caller value and returns its wire bytes.
func encode(f *Field, v Value) ([]byte, error) {
	if !v.Known {
		return nil, &ValidationError{Field: f.ID, Type: ValidationKind, Message: "cannot write an unknown value"}
	}

	switch f.Kind() {
	case KindClock:
		raw := []byte{byte(v.Clock.Weekday), byte(v.Clock.Hour), byte(v.Clock.Minute), byte(v.Clock.Second)}
		c := []int{v.Clock.Weekday, v.Clock.Hour, v.Clock.Minute, v.Clock.Second}
		if err := validate(f, c); err != nil {
			return nil, err
		}
		return raw, nil
	case KindHeat:
		if err := v.Heat.Validate(); err != nil {
			return nil, &ValidationError{Field: f.ID, Type: ValidationRange, Message: err.Error()}
		}
		if err := validate(f, v.Heat.Flat()); err != nil {
			return nil, err
		}
		return v.Heat.Encode(), nil
	case KindWater:
		if err := v.Water.Validate(); err != nil {
			return nil, &ValidationError{Field: f.ID, Type: ValidationRange, Message: err.Error()}
		}
		if err := validate(f, v.Water.Flat()); err != nil {
			return nil, err
		}
		return v.Water.Encode(), nil
	}

	scaled := v.Number * float64(f.Divisor)
	if scaled != math.Trunc(scaled) {
		return nil, &ValidationError{Field: f.ID, Type: ValidationKind,
			Message: fmt.Sprintf("%v is not a whole number", v.Number),
			Details: map[string]interface{}{"value": v.Number}}
	}
	n := int(scaled)
	if err := validate(f, []int{n}); err != nil {
		return nil, err
	}

	limit := 1<<(8*f.Width) - 1
	if n < 0 || n > limit {
		return nil, &ValidationError{Field: f.ID, Type: ValidationRange,
			Message: fmt.Sprintf("%d does not fit in %d bytes", n, f.Width),
			Details: map[string]interface{}{"value": n}}
	}
	if f.Width == 1 {
		return []byte{byte(n)}, nil
	}
	return []byte{byte(n >> 8), byte(n)}, nil
}

// validate checks caller slots against the write codes or ranges.
func validate(f *Field, slots []int) error {
	enum := f.Enum
	if f.Writes != nil {
		enum = f.Writes
	}
	if msg := checkSlots(f, slots, enum); msg != "" {
		return &ValidationError{Field: f.ID, Type: ValidationRange, Message: msg,
			Details: map[string]interface{}{"value": slots}}
	}
	return nil
}

// checkSlots validates each slot against an enumeration, or else against
// the field's ranges cycled across slot positions.
func checkSlots(f *Field, slots []int, enum []int) string {
	if enum != nil {
		for _, s := range slots {
			if !contains(enum, s) {
				return fmt.Sprintf("%d is not one of %v", s, enum)
			}
		}
		return ""
	}
	if len(f.Ranges) == 0 {
		return ""
	}
	for i, s := range slots {
		r := f.Ranges[i%len(f.Ranges)]
		if s < r.Min || s > r.Max {
			return fmt.Sprintf("slot %d value %d outside %d-%d", i, s, r.Min, r.Max)
		}
	}
	return ""
}

func contains(set []int, v int) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func bytesToInts(b []byte) []int {
	out := make([]int, len(b))
	for i, v := range b {
		out[i] = int(v)
	}
	return out
}
