// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package snapshot captures a device's cached field values in a form that
// can be stored, printed or shipped as CBOR or JSON.
package snapshot

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/Thermoquad/heatmiser/pkg/dcb"
	"github.com/Thermoquad/heatmiser/pkg/device"
	"github.com/Thermoquad/heatmiser/pkg/schedule"
	"github.com/Thermoquad/heatmiser/pkg/thermostat"
)

// Field is one field's cached state.
type Field struct {
	Name   string    `cbor:"1,keyasint" json:"name"`
	Known  bool      `cbor:"2,keyasint" json:"known"`
	Text   string    `cbor:"3,keyasint" json:"text"`
	Number *float64  `cbor:"4,keyasint,omitempty" json:"number,omitempty"`
	Raw    []byte    `cbor:"5,keyasint,omitempty" json:"raw,omitempty"`
	ReadAt time.Time `cbor:"6,keyasint" json:"read_at"`
}

// Snapshot is a device's state at one moment.
type Snapshot struct {
	Device    string    `cbor:"1,keyasint" json:"device"`
	Address   uint8     `cbor:"2,keyasint" json:"address"`
	Model     string    `cbor:"3,keyasint" json:"model"`
	Mode      string    `cbor:"4,keyasint" json:"program_mode"`
	TakenAt   time.Time `cbor:"5,keyasint" json:"taken_at"`
	State     string    `cbor:"6,keyasint" json:"state"`
	Status    string    `cbor:"7,keyasint" json:"status"`
	Threshold *float64  `cbor:"8,keyasint,omitempty" json:"threshold,omitempty"`
	Fields    []Field   `cbor:"9,keyasint" json:"fields"`
}

var encMode cbor.EncMode

func init() {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	var err error
	encMode, err = opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("snapshot: cbor options: %v", err))
	}
}

// Take captures the cached values of every field present on d. Nothing is
// read from the bus.
func Take(d *device.Device, now time.Time) Snapshot {
	r := d.Registry()
	s := d.Settings()
	status := thermostat.Describe(r, schedule.ClockOf(now))

	snap := Snapshot{
		Device:    s.Name,
		Address:   s.Address,
		Model:     r.Model().String(),
		Mode:      r.Mode().String(),
		TakenAt:   now,
		State:     status.State.String(),
		Status:    status.Text,
		Threshold: status.Threshold,
	}
	for id := dcb.FieldID(0); id < dcb.NumFields; id++ {
		if !r.Present(id) {
			continue
		}
		fv := r.State(id)
		f := Field{
			Name:   id.String(),
			Known:  fv.Value.Known,
			Text:   fv.Value.Format(id.Field().Kind()),
			Raw:    fv.Raw,
			ReadAt: fv.Updated(),
		}
		if fv.Value.Known && id.Field().Kind() == dcb.KindNumber {
			n := fv.Value.Number
			f.Number = &n
		}
		snap.Fields = append(snap.Fields, f)
	}
	return snap
}

// Field returns the named field.
func (s Snapshot) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Encode returns the deterministic CBOR encoding of s.
func Encode(s Snapshot) ([]byte, error) {
	data, err := encMode.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode: %w", err)
	}
	return data, nil
}

// Decode parses a CBOR snapshot.
func Decode(data []byte) (Snapshot, error) {
	if len(data) == 0 {
		return Snapshot{}, fmt.Errorf("snapshot: empty CBOR payload")
	}
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: decode: %w", err)
	}
	return s, nil
}
