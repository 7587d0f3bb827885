// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"fmt"

	"github.com/Thermoquad/heatmiser/pkg/dcb"
	"github.com/Thermoquad/heatmiser/pkg/heatmiser"
	"github.com/Thermoquad/heatmiser/pkg/schedule"
)

// Validate checks the configuration. Zero values stand for defaults and
// are accepted. It does not mutate cfg.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: missing")
	}

	s := cfg.Serial
	if s.MasterAddress != 0 && !heatmiser.IsMasterAddress(s.MasterAddress) {
		return fmt.Errorf("serial: master_address 0x%02X outside 0x%02X-0x%02X",
			s.MasterAddress, heatmiser.MasterAddressMin, heatmiser.MasterAddressMax)
	}
	if s.Baud < 0 {
		return fmt.Errorf("serial: baud %d is negative", s.Baud)
	}
	for name, v := range map[string]int{
		"timeout_ms":               s.TimeoutMs,
		"first_byte_timeout_ms":    s.FirstByteTimeoutMs,
		"min_remainder_timeout_ms": s.MinRemainderTimeoutMs,
		"bus_reset_ms":             s.BusResetMs,
		"broadcast_spacing_ms":     s.BroadcastSpacingMs,
		"read_attempts":            s.ReadAttempts,
		"write_attempts":           s.WriteAttempts,
	} {
		if v < 0 {
			return fmt.Errorf("serial: %s %d is negative", name, v)
		}
	}
	if s.TimeoutMs > 0 && s.FirstByteTimeoutMs > s.TimeoutMs {
		return fmt.Errorf("serial: first_byte_timeout_ms %d exceeds timeout_ms %d",
			s.FirstByteTimeoutMs, s.TimeoutMs)
	}

	p := cfg.Planner
	if p.PerByteUs < 0 || p.PerTransactionUs < 0 || p.BusResetMs < 0 || p.ReadAllMarginMs < 0 {
		return fmt.Errorf("planner: costs must not be negative")
	}

	names := make(map[string]uint8)
	addresses := make(map[uint8]string)
	for i, d := range cfg.Devices {
		label := d.Name
		if label == "" {
			label = fmt.Sprintf("devices[%d]", i)
		}
		if !heatmiser.IsSlaveAddress(d.Address) {
			return fmt.Errorf("device %q: address %d outside %d-%d",
				label, d.Address, heatmiser.SlaveAddressMin, heatmiser.SlaveAddressMax)
		}
		if prev, dup := addresses[d.Address]; dup {
			return fmt.Errorf("device %q: address %d already used by %q", label, d.Address, prev)
		}
		addresses[d.Address] = label

		if d.Name != "" {
			if _, dup := names[d.Name]; dup {
				return fmt.Errorf("device %q: name used twice", d.Name)
			}
			names[d.Name] = d.Address
		}

		model, err := dcb.ParseModel(d.Model)
		if err != nil {
			return fmt.Errorf("device %q: %w", label, err)
		}
		if !model.Supported() {
			return fmt.Errorf("device %q: %w: %s", label, dcb.ErrUnsupportedModel, model)
		}
		if d.ProgramMode != "" {
			if _, err := schedule.ParseMode(d.ProgramMode); err != nil {
				return fmt.Errorf("device %q: %w", label, err)
			}
		}
	}

	// Default names are statN; they must not collide with explicit names.
	for _, d := range cfg.Devices {
		if d.Name != "" {
			continue
		}
		if addr, taken := names[fmt.Sprintf("stat%d", d.Address)]; taken {
			return fmt.Errorf("device at address %d: default name stat%d is used by the device at %d",
				d.Address, d.Address, addr)
		}
	}

	if cfg.Poll.IntervalMs < 0 {
		return fmt.Errorf("poll: interval_ms %d is negative", cfg.Poll.IntervalMs)
	}
	if cfg.Poll.TimeCheckEvery < 0 {
		return fmt.Errorf("poll: time_check_every %d is negative", cfg.Poll.TimeCheckEvery)
	}
	for _, name := range cfg.Poll.Fields {
		if _, ok := dcb.Lookup(name); !ok {
			return fmt.Errorf("poll: %w: %q", dcb.ErrUnknownField, name)
		}
	}

	if cfg.MQTT.Username != "" && cfg.MQTT.Broker == "" {
		return fmt.Errorf("mqtt: username set without a broker")
	}
	return nil
}
