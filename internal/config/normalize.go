// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Thermoquad/heatmiser/pkg/dcb"
	"github.com/Thermoquad/heatmiser/pkg/device"
	"github.com/Thermoquad/heatmiser/pkg/heatmiser"
	"github.com/Thermoquad/heatmiser/pkg/schedule"
)

// Defaults
const (
	DefaultBaud         = 4800
	DefaultPollInterval = time.Minute
	DefaultTopicPrefix  = "heatmiser"
	DefaultNamespace    = "heatmiser."
)

// Normalize fills in defaults. It must only be called after Validate.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	s := &cfg.Serial
	if s.Baud == 0 {
		s.Baud = DefaultBaud
	}
	if s.MasterAddress == 0 {
		s.MasterAddress = heatmiser.DefaultMasterAddress
	}
	timing := heatmiser.DefaultTiming()
	defaultMs(&s.TimeoutMs, timing.Timeout)
	defaultMs(&s.FirstByteTimeoutMs, timing.FirstByteTimeout)
	defaultMs(&s.MinRemainderTimeoutMs, timing.MinRemainderTimeout)
	defaultMs(&s.BusResetMs, timing.BusResetTime)
	defaultMs(&s.BroadcastSpacingMs, timing.BroadcastSpacing)
	if s.ReadAttempts == 0 {
		s.ReadAttempts = heatmiser.DefaultReadAttempts
	}
	if s.WriteAttempts == 0 {
		s.WriteAttempts = heatmiser.DefaultWriteAttempts
	}

	cost := dcb.DefaultCostModel()
	p := &cfg.Planner
	if p.PerByteUs == 0 {
		p.PerByteUs = int(cost.PerByte / time.Microsecond)
	}
	if p.PerTransactionUs == 0 {
		p.PerTransactionUs = int(cost.PerTransaction / time.Microsecond)
	}
	defaultMs(&p.BusResetMs, cost.BusReset)
	defaultMs(&p.ReadAllMarginMs, cost.ReadAllMargin)

	for i := range cfg.Devices {
		d := &cfg.Devices[i]
		if d.Name == "" {
			d.Name = fmt.Sprintf("stat%d", d.Address)
		}
		if d.ProgramMode == "" {
			d.ProgramMode = schedule.ModeWeek.String()
		}
	}

	if cfg.Poll.IntervalMs == 0 {
		cfg.Poll.IntervalMs = int(DefaultPollInterval / time.Millisecond)
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultNamespace
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = DefaultTopicPrefix
	}
}

func defaultMs(v *int, d time.Duration) {
	if *v == 0 {
		*v = int(d / time.Millisecond)
	}
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// Timing returns the bus timing.
func (s SerialConfig) Timing() heatmiser.Timing {
	return heatmiser.Timing{
		Timeout:             ms(s.TimeoutMs),
		FirstByteTimeout:    ms(s.FirstByteTimeoutMs),
		MinRemainderTimeout: ms(s.MinRemainderTimeoutMs),
		BusResetTime:        ms(s.BusResetMs),
		BroadcastSpacing:    ms(s.BroadcastSpacingMs),
	}
}

// ClientConfig returns the bus client configuration.
func (s SerialConfig) ClientConfig(logger zerolog.Logger, observer heatmiser.Observer) heatmiser.ClientConfig {
	return heatmiser.ClientConfig{
		Master:        s.MasterAddress,
		ReadAttempts:  s.ReadAttempts,
		WriteAttempts: s.WriteAttempts,
		Timing:        s.Timing(),
		Logger:        logger,
		Observer:      observer,
	}
}

// CostModel returns the planner cost model.
func (p PlannerConfig) CostModel() dcb.CostModel {
	return dcb.CostModel{
		PerByte:        time.Duration(p.PerByteUs) * time.Microsecond,
		PerTransaction: time.Duration(p.PerTransactionUs) * time.Microsecond,
		BusReset:       ms(p.BusResetMs),
		ReadAllMargin:  ms(p.ReadAllMarginMs),
	}
}

// Settings converts a device entry into device settings.
func (d DeviceConfig) Settings() (device.Settings, error) {
	model, err := dcb.ParseModel(d.Model)
	if err != nil {
		return device.Settings{}, err
	}
	mode, err := schedule.ParseMode(d.ProgramMode)
	if err != nil {
		return device.Settings{}, err
	}
	return device.Settings{
		Name:            d.Name,
		LongName:        d.LongName,
		Address:         d.Address,
		Model:           model,
		Mode:            mode,
		AutoCorrectTime: d.AutoCorrectTime,
	}, nil
}

// Interval returns the poll interval.
func (p PollConfig) Interval() time.Duration {
	return ms(p.IntervalMs)
}

// FieldIDs resolves the configured poll field names.
func (p PollConfig) FieldIDs() ([]dcb.FieldID, error) {
	ids := make([]dcb.FieldID, 0, len(p.Fields))
	for _, name := range p.Fields {
		id, ok := dcb.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", dcb.ErrUnknownField, name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
