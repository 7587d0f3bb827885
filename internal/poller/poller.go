// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package poller reads every device on a network at a fixed interval and
// hands the results to the history store, the MQTT publisher and the
// metrics recorder. A device that fails is reported and skipped; the
// others are still polled.
package poller

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/Thermoquad/heatmiser/internal/publish"
	"github.com/Thermoquad/heatmiser/internal/snapshot"
	"github.com/Thermoquad/heatmiser/internal/store"
	"github.com/Thermoquad/heatmiser/pkg/dcb"
	"github.com/Thermoquad/heatmiser/pkg/device"
	"github.com/Thermoquad/heatmiser/pkg/thermostat"
)

// History stores readings. *store.Store implements it.
type History interface {
	RecordReading(r store.Reading) error
	RecordTransition(t store.Transition) error
	SaveSnapshot(s snapshot.Snapshot) error
}

// Publisher sends state out. *publish.Publisher implements it.
type Publisher interface {
	PublishState(s publish.State) error
	PublishField(device, field, text string) error
}

// Metrics records polled values. *metrics.Recorder implements it.
type Metrics interface {
	Field(device, field string, value float64)
	Poll(device string, err error)
}

// Config is the runtime config the poller needs.
type Config struct {
	Interval time.Duration
	// Fields are refreshed on every cycle.
	Fields []dcb.FieldID
	// TimeCheckEvery checks device clocks every that many cycles. Zero
	// disables the check.
	TimeCheckEvery int
}

// Sinks are the optional outputs. Nil members are skipped.
type Sinks struct {
	History   History
	Publisher Publisher
	Metrics   Metrics
}

// Poller is a clock-driven reader of a whole network.
type Poller struct {
	cfg     Config
	network *device.Network
	sinks   Sinks
	logger  zerolog.Logger
	now     func() time.Time
	cycle   int
}

// New creates a poller and hooks state transitions into the history.
func New(cfg Config, network *device.Network, sinks Sinks, logger zerolog.Logger) (*Poller, error) {
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if len(network.Devices()) == 0 {
		return nil, errors.New("poller: no devices configured")
	}
	p := &Poller{cfg: cfg, network: network, sinks: sinks, logger: logger, now: time.Now}

	if sinks.History != nil {
		for _, d := range network.Devices() {
			name := d.Name()
			d.OnTransition(func(from, to thermostat.State) {
				err := sinks.History.RecordTransition(store.Transition{
					Device: name, From: from.String(), To: to.String(), At: p.now(),
				})
				if err != nil {
					p.logger.Warn().Err(err).Str("device", name).Msg("history write failed")
				}
			})
		}
	}
	return p, nil
}

// Run polls once straight away and then on every tick until ctx ends.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.PollOnce()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.PollOnce()
		}
	}
}

// PollOnce performs exactly one poll cycle over every device.
func (p *Poller) PollOnce() []device.Result {
	checkTime := p.cfg.TimeCheckEvery > 0 && p.cycle%p.cfg.TimeCheckEvery == 0
	p.cycle++

	results := p.network.ForEach(func(d *device.Device) error {
		err := p.pollDevice(d, checkTime)
		if p.sinks.Metrics != nil {
			p.sinks.Metrics.Poll(d.Name(), err)
		}
		return err
	})
	p.logger.Debug().Int("devices", len(results)).Msg("poll cycle done")
	return results
}

func (p *Poller) pollDevice(d *device.Device, checkTime bool) error {
	name := d.Name()
	state := publish.State{Name: name, LongName: d.Settings().LongName, Address: d.Settings().Address}

	err := p.read(d, &state, checkTime)
	state.Time = p.now()
	if err != nil {
		state.Error = err.Error()
	}

	if p.sinks.Publisher != nil {
		if perr := p.sinks.Publisher.PublishState(state); perr != nil {
			p.logger.Warn().Err(perr).Str("device", name).Msg("publish failed")
		}
	}
	if p.sinks.History != nil && err == nil {
		if serr := p.sinks.History.SaveSnapshot(snapshot.Take(d, state.Time)); serr != nil {
			p.logger.Warn().Err(serr).Str("device", name).Msg("history write failed")
		}
	}
	return err
}

func (p *Poller) read(d *device.Device, state *publish.State, checkTime bool) error {
	name := d.Name()
	if len(p.cfg.Fields) > 0 {
		if err := d.Refresh(p.cfg.Fields...); err != nil {
			return err
		}
	}
	status, err := d.StatusText()
	if err != nil {
		return err
	}
	state.State = status.State.String()
	state.Status = status.Text
	state.Threshold = status.Threshold

	reg := d.Registry()
	now := p.now()
	for _, id := range p.cfg.Fields {
		if !reg.Present(id) {
			continue
		}
		v := reg.Value(id)
		reading := store.Reading{Device: name, Field: id.String(), Text: v.Format(id.Field().Kind()), ReadAt: now}
		if v.Known && id.Field().Kind() == dcb.KindNumber {
			n := v.Number
			reading.Value = &n
			if state.Fields == nil {
				state.Fields = make(map[string]float64)
			}
			state.Fields[id.String()] = n
			if p.sinks.Metrics != nil {
				p.sinks.Metrics.Field(name, id.String(), n)
			}
		}
		if p.sinks.History != nil {
			if err := p.sinks.History.RecordReading(reading); err != nil {
				p.logger.Warn().Err(err).Str("device", name).Msg("history write failed")
			}
		}
		if p.sinks.Publisher != nil {
			if err := p.sinks.Publisher.PublishField(name, reading.Field, reading.Text); err != nil {
				p.logger.Warn().Err(err).Str("device", name).Msg("publish failed")
			}
		}
	}

	if checkTime {
		if _, err := d.CheckTime(); err != nil {
			return err
		}
	}
	return nil
}
