// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package device

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Thermoquad/heatmiser/pkg/dcb"
	"github.com/Thermoquad/heatmiser/pkg/heatmiser"
)

// Broadcaster writes to every device at once. *heatmiser.Client
// implements it.
type Broadcaster interface {
	Broadcast(start uint16, payload []byte) error
}

// Network is the set of devices on one bus, visited in a fixed order.
type Network struct {
	bus     Broadcaster
	devices []*Device
	byName  map[string]*Device
	logger  zerolog.Logger
}

// NewNetwork creates an empty network.
func NewNetwork(bus Broadcaster, logger zerolog.Logger) *Network {
	return &Network{bus: bus, byName: make(map[string]*Device), logger: logger}
}

// Add appends a device. Names and addresses must be unique.
func (n *Network) Add(d *Device) error {
	if _, dup := n.byName[d.Name()]; dup {
		return fmt.Errorf("device name %q used twice", d.Name())
	}
	for _, other := range n.devices {
		if other.settings.Address == d.settings.Address {
			return fmt.Errorf("%w: %s and %s share address %d",
				heatmiser.ErrInvalidAddress, other.Name(), d.Name(), d.settings.Address)
		}
	}
	n.devices = append(n.devices, d)
	n.byName[d.Name()] = d
	return nil
}

// Devices returns the devices in polling order.
func (n *Network) Devices() []*Device {
	return n.devices
}

// Device looks a device up by name.
func (n *Network) Device(name string) (*Device, bool) {
	d, ok := n.byName[name]
	return d, ok
}

// Result is the outcome of one device's part in a network-wide call.
type Result struct {
	Name string
	Err  error
}

// ForEach calls fn on every device in order. A failure on one device does
// not stop the others.
func (n *Network) ForEach(fn func(d *Device) error) []Result {
	results := make([]Result, 0, len(n.devices))
	for _, d := range n.devices {
		err := fn(d)
		if err != nil {
			n.logger.Warn().Str("device", d.Name()).Err(err).Msg("device failed")
		}
		results = append(results, Result{Name: d.Name(), Err: err})
	}
	return results
}

// Failures returns the failed results joined into one error, or nil.
func Failures(results []Result) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Name, r.Err))
		}
	}
	return errors.Join(errs...)
}

// Broadcast writes one field on every device in a single transaction. All
// devices must hold the field at the same DCB address. Caches are updated
// without an acknowledgement, since broadcasts get none.
func (n *Network) Broadcast(id dcb.FieldID, v dcb.Value) error {
	if len(n.devices) == 0 {
		return nil
	}

	addr := -1
	var raw []byte
	for _, d := range n.devices {
		a, r, err := d.registry.Encode(id, v)
		if err != nil {
			return fmt.Errorf("device %s: %w", d.Name(), err)
		}
		if addr >= 0 && a != addr {
			return fmt.Errorf("%s is at DCB address %d on %s but %d on others", id, a, d.Name(), addr)
		}
		addr, raw = a, r
	}

	if err := n.bus.Broadcast(uint16(addr), raw); err != nil {
		return err
	}
	for _, d := range n.devices {
		d.registry.AckWrite(id, v, d.now())
	}
	return nil
}
