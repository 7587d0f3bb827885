// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package device ties the protocol layers together into one object per
// physical thermostat, and a Network of them sharing one bus.
package device

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Thermoquad/heatmiser/pkg/dcb"
	"github.com/Thermoquad/heatmiser/pkg/heatmiser"
	"github.com/Thermoquad/heatmiser/pkg/schedule"
	"github.com/Thermoquad/heatmiser/pkg/thermostat"
)

// Bus runs transactions against devices. *heatmiser.Client implements it.
type Bus interface {
	Read(dest uint8, start, length uint16) ([]byte, error)
	ReadAll(dest uint8) ([]byte, error)
	Write(dest uint8, start uint16, payload []byte) error
}

// Settings identify and describe one thermostat.
type Settings struct {
	Name            string
	LongName        string
	Address         uint8
	Model           dcb.Model
	Mode            schedule.Mode
	AutoCorrectTime bool
}

// Options tune a Device. The zero value gives the defaults.
type Options struct {
	Cost           *dcb.CostModel
	MaxAges        *dcb.MaxAges
	DriftTolerance time.Duration
	Logger         zerolog.Logger
	Now            func() time.Time
}

// DefaultDriftTolerance is the clock difference tolerated before a device
// clock counts as drifted.
const DefaultDriftTolerance = 50 * time.Second

// ErrNoHotWater is returned for water schedule calls on heating-only
// models.
var ErrNoHotWater = errors.New("device: model has no hot water control")

// Device is one thermostat on the bus.
type Device struct {
	settings  Settings
	bus       Bus
	registry  *dcb.Registry
	machine   *thermostat.Machine
	planner   *dcb.Planner
	logger    zerolog.Logger
	now       func() time.Time
	tolerance time.Duration
}

// New creates a device. Nothing is read until a value is asked for.
func New(bus Bus, s Settings, opts Options) (*Device, error) {
	if !heatmiser.IsSlaveAddress(s.Address) {
		return nil, fmt.Errorf("%w: %s at %d", heatmiser.ErrInvalidAddress, s.Name, s.Address)
	}
	if s.Name == "" {
		s.Name = fmt.Sprintf("stat%d", s.Address)
	}
	logger := opts.Logger.With().Str("device", s.Name).Uint8("address", s.Address).Logger()

	registry, err := dcb.NewRegistry(s.Model, s.Mode, logger)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", s.Name, err)
	}
	registry.Expect(dcb.Address, dcb.Number(float64(s.Address)))
	if opts.MaxAges != nil {
		registry.SetMaxAges(*opts.MaxAges)
	}

	cost := dcb.DefaultCostModel()
	if opts.Cost != nil {
		cost = *opts.Cost
	}

	d := &Device{
		settings:  s,
		bus:       bus,
		registry:  registry,
		planner:   dcb.NewPlanner(cost),
		logger:    logger,
		now:       opts.Now,
		tolerance: opts.DriftTolerance,
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.tolerance <= 0 {
		d.tolerance = DefaultDriftTolerance
	}

	d.machine = thermostat.NewMachine(registry, logger)
	registry.Listen(d.machine)
	return d, nil
}

// Name returns the short name.
func (d *Device) Name() string { return d.settings.Name }

// Settings returns the device settings.
func (d *Device) Settings() Settings { return d.settings }

// Registry gives access to the cached field values.
func (d *Device) Registry() *dcb.Registry { return d.registry }

// Listen registers a listener for field changes on this device.
func (d *Device) Listen(l dcb.Listener) { d.registry.Listen(l) }

// OnTransition sets the function called after every state change.
func (d *Device) OnTransition(fn func(from, to thermostat.State)) {
	d.machine.OnTransition = fn
}

// ReadField returns a field's value, reading it from the device unless the
// cached value is fresh. Fields absent on this model read as unknown.
func (d *Device) ReadField(id dcb.FieldID) (dcb.Value, error) {
	if err := d.ReadFields(id); err != nil {
		return dcb.Unknown, err
	}
	return d.registry.Value(id), nil
}

// ReadFields brings the given fields up to date, reading only those whose
// cached values are stale.
func (d *Device) ReadFields(ids ...dcb.FieldID) error {
	for _, id := range ids {
		if !id.Valid() {
			return fmt.Errorf("%w: %d", dcb.ErrUnknownField, int(id))
		}
	}
	stale := d.registry.Stale(ids, d.now())
	if len(stale) == 0 {
		return nil
	}
	return d.read(stale)
}

// Refresh reads the given fields regardless of freshness.
func (d *Device) Refresh(ids ...dcb.FieldID) error {
	return d.read(ids)
}

func (d *Device) read(ids []dcb.FieldID) error {
	plan := d.planner.Plan(d.registry.Map(), ids)
	if plan.ReadAll {
		return d.ReadAll()
	}

	var errs []error
	for _, b := range plan.Blocks {
		data, err := d.bus.Read(d.settings.Address, uint16(b.Start), uint16(b.Length))
		if err != nil {
			return fmt.Errorf("device %s: read %s..%s: %w", d.settings.Name, b.First, b.Last, err)
		}
		if err := d.registry.DecodeBlock(b.Start, data, d.now()); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("device %s: %w", d.settings.Name, errors.Join(errs...))
	}
	return nil
}

// ReadAll reads and decodes the device's entire DCB.
func (d *Device) ReadAll() error {
	data, err := d.bus.ReadAll(d.settings.Address)
	if err != nil {
		return fmt.Errorf("device %s: read all: %w", d.settings.Name, err)
	}
	if err := d.registry.DecodeAll(data, d.now()); err != nil {
		return fmt.Errorf("device %s: %w", d.settings.Name, err)
	}
	return nil
}

// FieldWrite is a value to write to a field.
type FieldWrite struct {
	Field dcb.FieldID
	Value dcb.Value
}

// SetField writes one field.
func (d *Device) SetField(id dcb.FieldID, v dcb.Value) error {
	return d.SetFields(FieldWrite{Field: id, Value: v})
}

// SetFields validates every value before writing any, then writes them in
// as few transactions as adjacency allows. The cache is updated for each
// acknowledged block.
func (d *Device) SetFields(writes ...FieldWrite) error {
	pending := make([]dcb.PendingWrite, 0, len(writes))
	values := make(map[dcb.FieldID]dcb.Value, len(writes))
	for _, w := range writes {
		addr, raw, err := d.registry.Encode(w.Field, w.Value)
		if err != nil {
			return err
		}
		if _, dup := values[w.Field]; dup {
			return fmt.Errorf("device %s: %s written twice", d.settings.Name, w.Field)
		}
		values[w.Field] = w.Value
		pending = append(pending, dcb.PendingWrite{Field: w.Field, Start: addr, Data: raw})
	}

	for _, b := range dcb.PlanWrites(pending, heatmiser.MaxWritePayload) {
		if err := d.bus.Write(d.settings.Address, uint16(b.Start), b.Data); err != nil {
			return fmt.Errorf("device %s: write %v: %w", d.settings.Name, b.Fields, err)
		}
		now := d.now()
		for _, id := range b.Fields {
			d.registry.AckWrite(id, values[id], now)
		}
	}
	return nil
}
