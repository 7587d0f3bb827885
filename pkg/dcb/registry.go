// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dcb

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Thermoquad/heatmiser/pkg/schedule"
)

// Registry holds one device's field values. It is not safe for concurrent
// use; a Device owns its Registry exclusively.
type Registry struct {
	model   Model
	mode    schedule.Mode
	amap    AddressMap
	values  [NumFields]FieldValue
	ages    MaxAges
	logger  zerolog.Logger
	floor   bool
	targets []Listener
}

// NewRegistry creates a registry for a model in a program mode. The model,
// program mode and DCB length are expected to match what the device
// reports.
func NewRegistry(model Model, mode schedule.Mode, logger zerolog.Logger) (*Registry, error) {
	amap, err := MapFor(model, mode)
	if err != nil {
		return nil, err
	}
	if err := amap.Validate(); err != nil {
		return nil, err
	}

	r := &Registry{
		model:  model,
		mode:   mode,
		amap:   amap,
		ages:   DefaultMaxAges(),
		logger: logger,
	}
	r.Expect(ModelNumber, Number(float64(model)))
	r.Expect(ProgramMode, Number(float64(mode)))
	r.Expect(DCBLength, Number(float64(amap.Length())))
	return r, nil
}

// Model returns the device model.
func (r *Registry) Model() Model { return r.model }

// Mode returns the program mode.
func (r *Registry) Mode() schedule.Mode { return r.mode }

// Map returns the address map in use.
func (r *Registry) Map() AddressMap { return r.amap }

// SetMaxAges replaces the freshness budgets.
func (r *Registry) SetMaxAges(ages MaxAges) { r.ages = ages }

// Expect constrains a field to a fixed value.
func (r *Registry) Expect(id FieldID, v Value) {
	r.values[id].Expected = &v
}

// Listen registers a listener. Listeners are called in registration order.
func (r *Registry) Listen(l Listener) {
	r.targets = append(r.targets, l)
}

// Present reports whether the field exists on this device.
func (r *Registry) Present(id FieldID) bool {
	_, ok := r.amap.Locate(id)
	return ok
}

// Value returns the cached value of a field.
func (r *Registry) Value(id FieldID) Value {
	return r.values[id].Value
}

// State returns a copy of the cached state of a field.
func (r *Registry) State(id FieldID) FieldValue {
	return r.values[id]
}

// FloorLimiting reports the floor limit flag carried in the version byte.
func (r *Registry) FloorLimiting() bool {
	return r.floor
}

// IsFresh reports whether a field holds a known value younger than its
// freshness budget.
func (r *Registry) IsFresh(id FieldID, now time.Time) bool {
	fv := &r.values[id]
	if !fv.Value.Known {
		return false
	}
	return now.Sub(fv.Updated()) <= r.ages.For(id.Field().Age)
}

// Stale returns the fields in ids that are present but not fresh.
func (r *Registry) Stale(ids []FieldID, now time.Time) []FieldID {
	var out []FieldID
	for _, id := range ids {
		if r.Present(id) && !r.IsFresh(id, now) {
			out = append(out, id)
		}
	}
	return out
}

// Invalidate forgets the cached value of a field.
func (r *Registry) Invalidate(id FieldID) {
	old := r.values[id].Value
	r.values[id].Value = Unknown
	r.values[id].Raw = nil
	r.values[id].ReadAt = time.Time{}
	r.emit(Change{Field: id, Old: old, New: Unknown})
}

// DecodeBlock applies DCB bytes read from start. Every present field lying
// wholly inside the block is decoded. Fields that fail validation keep
// their previous value; all failures are returned joined.
func (r *Registry) DecodeBlock(start int, data []byte, now time.Time) error {
	var errs []error
	for id := FieldID(0); id < NumFields; id++ {
		addr, ok := r.amap.Locate(id)
		if !ok {
			continue
		}
		f := id.Field()
		if addr < start || addr+f.Width > start+len(data) {
			continue
		}
		if err := r.apply(id, data[addr-start:addr-start+f.Width], now); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DecodeAll applies a complete DCB from a read-all response.
func (r *Registry) DecodeAll(data []byte, now time.Time) error {
	if want := r.amap.Length(); len(data) != want {
		return &DataError{Field: DCBLength,
			Message: fmt.Sprintf("read-all returned %d bytes, %s %s DCB is %d", len(data), r.model, r.mode, want)}
	}
	return r.DecodeBlock(0, data, now)
}

func (r *Registry) apply(id FieldID, raw []byte, now time.Time) error {
	f := id.Field()
	v, err := decode(f, raw)
	if err != nil {
		r.logger.Warn().Str("field", f.Name).Hex("raw", raw).Err(err).Msg("decode failed")
		return err
	}
	if id == Version && !r.model.HasHotWater() {
		version, floor := splitVersion(raw[0])
		v = Number(float64(version))
		r.floor = floor
	}

	fv := &r.values[id]
	old := fv.Value
	fv.Value = v
	fv.Raw = append(fv.Raw[:0], raw...)
	fv.ReadAt = now

	r.emit(Change{Field: id, Old: old, New: v})

	if fv.Expected != nil && v.Known && v != *fv.Expected {
		return &UnexpectedValueError{Field: id, Expected: fv.Expected.Format(f.Kind()), Got: v.Format(f.Kind())}
	}
	return nil
}

// Encode validates a value for writing and returns its DCB address and
// wire bytes.
func (r *Registry) Encode(id FieldID, v Value) (int, []byte, error) {
	if !id.Valid() {
		return 0, nil, fmt.Errorf("%w: %d", ErrUnknownField, int(id))
	}
	f := id.Field()
	if !f.Writable {
		return 0, nil, fmt.Errorf("%w: %s", ErrReadOnly, f.Name)
	}
	addr, ok := r.amap.Locate(id)
	if !ok {
		return 0, nil, fmt.Errorf("%w: %s on %s %s", ErrNotPresent, f.Name, r.model, r.mode)
	}
	raw, err := encode(f, v)
	if err != nil {
		return 0, nil, err
	}
	return addr, raw, nil
}

// AckWrite updates the cache after the device acknowledged a write of v.
//
// Hot water demand is written with program/on/off codes but read back as
// off/on: writing "program" leaves the state to the schedule, so the cache
// is invalidated, and writing "off" caches the read code for off.
func (r *Registry) AckWrite(id FieldID, v Value, now time.Time) {
	fv := &r.values[id]
	if id == HotWaterDemand {
		switch v.Int() {
		case HotWaterProgram:
			r.Invalidate(id)
			fv.WrittenAt = now
			return
		case HotWaterOff:
			v = Number(0)
		}
	}

	old := fv.Value
	fv.Value = v
	fv.WrittenAt = now
	if raw, err := encode(id.Field(), v); err == nil {
		fv.Raw = raw
	}
	r.emit(Change{Field: id, Old: old, New: v})
}

func (r *Registry) emit(c Change) {
	for _, l := range r.targets {
		l.FieldChanged(c)
	}
}

// Week assembles the cached schedule fields into a Week. Buckets whose
// fields are unknown are left empty.
func (r *Registry) Week() schedule.Week {
	w := schedule.NewWeek(r.mode, r.model.HasHotWater())
	for i, id := range HeatFields(r.mode) {
		if v := r.values[id].Value; v.Known {
			w.Heat[i] = v.Heat
		}
	}
	if w.Water != nil {
		for i, id := range WaterFields(r.mode) {
			if v := r.values[id].Value; v.Known {
				w.Water[i] = v.Water
			}
		}
	}
	return w
}
