// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"go.bug.st/serial"

	"github.com/Thermoquad/heatmiser/internal/config"
	"github.com/Thermoquad/heatmiser/pkg/device"
	"github.com/Thermoquad/heatmiser/pkg/heatmiser"
)

// SerialOpener returns an opener for a serial port at baud, 8N1.
func SerialOpener(name string, baud int) heatmiser.Opener {
	return func() (heatmiser.Port, error) {
		mode := &serial.Mode{
			BaudRate: baud,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		}

		port, err := serial.Open(name, mode)
		if err != nil {
			return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
		}
		return port, nil
	}
}

// loadConfig reads --config, applies the flag overrides and the ad hoc
// device, then validates and normalizes the result.
func loadConfig() (*config.Config, error) {
	cfg := &config.Config{}
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if portName != "" {
		cfg.Serial.Port = portName
	}
	if baudRate != 0 {
		cfg.Serial.Baud = baudRate
	}
	if deviceAddress != 0 {
		cfg.Devices = append(cfg.Devices, config.DeviceConfig{
			Address:     deviceAddress,
			Model:       deviceModel,
			ProgramMode: deviceMode,
		})
	}

	if cfg.Serial.Port == "" {
		return nil, errors.New("either --port or serial.port in --config must be specified")
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	config.Normalize(cfg)
	return cfg, nil
}

// session is an open bus with its devices.
type session struct {
	cfg     *config.Config
	client  *heatmiser.Client
	network *device.Network
	info    string
}

// openSession loads the configuration and opens a session on it.
func openSession(observer heatmiser.Observer) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newSession(cfg, observer)
}

// newSession builds the client and network. The port itself opens on the
// first transaction.
func newSession(cfg *config.Config, observer heatmiser.Observer) (*session, error) {
	if len(cfg.Devices) == 0 {
		return nil, errors.New("no devices: use --address or list devices in --config")
	}

	busLogger := logger.With().Str("port", cfg.Serial.Port).Logger()
	client, err := heatmiser.NewClient(SerialOpener(cfg.Serial.Port, cfg.Serial.Baud),
		cfg.Serial.ClientConfig(busLogger, observer))
	if err != nil {
		return nil, err
	}

	cost := cfg.Planner.CostModel()
	network := device.NewNetwork(client, logger)
	for _, dc := range cfg.Devices {
		settings, err := dc.Settings()
		if err != nil {
			return nil, err
		}
		d, err := device.New(client, settings, device.Options{
			Cost:   &cost,
			Logger: logger.With().Str("device", settings.Name).Logger(),
		})
		if err != nil {
			return nil, err
		}
		if err := network.Add(d); err != nil {
			return nil, err
		}
	}

	return &session{
		cfg:     cfg,
		client:  client,
		network: network,
		info:    fmt.Sprintf("Serial: %s @ %d baud", cfg.Serial.Port, cfg.Serial.Baud),
	}, nil
}

func (s *session) Close() {
	if err := s.client.Close(); err != nil {
		logger.Warn().Err(err).Msg("close failed")
	}
}

// device finds a device by name, or by bus address.
func (s *session) device(ref string) (*device.Device, error) {
	if d, ok := s.network.Device(ref); ok {
		return d, nil
	}
	if addr, err := strconv.Atoi(ref); err == nil {
		for _, d := range s.network.Devices() {
			if int(d.Settings().Address) == addr {
				return d, nil
			}
		}
	}
	return nil, fmt.Errorf("unknown device %q", ref)
}

// devices resolves refs, or returns every device when refs is empty.
func (s *session) devices(refs []string) ([]*device.Device, error) {
	if len(refs) == 0 {
		return s.network.Devices(), nil
	}
	out := make([]*device.Device, 0, len(refs))
	for _, ref := range refs {
		d, err := s.device(ref)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// forEach runs fn on devices in order, carrying on past failures.
func forEach(devices []*device.Device, fn func(d *device.Device) error) error {
	results := make([]device.Result, 0, len(devices))
	for _, d := range devices {
		err := fn(d)
		if err != nil {
			logger.Warn().Str("device", d.Name()).Err(err).Msg("device failed")
		}
		results = append(results, device.Result{Name: d.Name(), Err: err})
	}
	return device.Failures(results)
}
