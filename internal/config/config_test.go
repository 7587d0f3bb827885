// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/heatmiser/pkg/dcb"
	"github.com/Thermoquad/heatmiser/pkg/heatmiser"
	"github.com/Thermoquad/heatmiser/pkg/schedule"
)

const sample = `
serial:
  port: /dev/ttyUSB0
  bus_reset_ms: 150
devices:
  - name: hall
    long_name: Hallway
    address: 3
    model: PRT-E
    program_mode: day
    auto_correct_time: true
  - address: 4
    model: prthw
poll:
  interval_ms: 30000
  fields: [airtemp, heatingdemand]
mqtt:
  broker: tcp://localhost:1883
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "heatmiser.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// ============================================================
// Load Tests
// ============================================================

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))
	Normalize(cfg)

	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
	assert.Equal(t, DefaultBaud, cfg.Serial.Baud)
	assert.Equal(t, uint8(heatmiser.DefaultMasterAddress), cfg.Serial.MasterAddress)

	timing := cfg.Serial.Timing()
	assert.Equal(t, 150*time.Millisecond, timing.BusResetTime)
	assert.Equal(t, heatmiser.DefaultTiming().Timeout, timing.Timeout)
	assert.Equal(t, dcb.DefaultCostModel(), cfg.Planner.CostModel())

	require.Len(t, cfg.Devices, 2)
	hall, err := cfg.Devices[0].Settings()
	require.NoError(t, err)
	assert.Equal(t, "Hallway", hall.LongName)
	assert.Equal(t, dcb.ModelPRTE, hall.Model)
	assert.Equal(t, schedule.ModeDay, hall.Mode)
	assert.True(t, hall.AutoCorrectTime)

	tank, err := cfg.Devices[1].Settings()
	require.NoError(t, err)
	assert.Equal(t, "stat4", tank.Name)
	assert.Equal(t, dcb.ModelPRTHW, tank.Model)
	assert.Equal(t, schedule.ModeWeek, tank.Mode)

	assert.Equal(t, 30*time.Second, cfg.Poll.Interval())
	ids, err := cfg.Poll.FieldIDs()
	require.NoError(t, err)
	assert.Equal(t, []dcb.FieldID{dcb.AirTemp, dcb.HeatingDemand}, ids)
	assert.Equal(t, DefaultTopicPrefix, cfg.MQTT.TopicPrefix)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, "serial:\n  prot: /dev/ttyUSB0\n"))
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

// ============================================================
// Validate Tests
// ============================================================

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{Devices: []DeviceConfig{{Name: "hall", Address: 3, Model: "PRT"}}}
	}

	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"master address", func(c *Config) { c.Serial.MasterAddress = 0x10 }},
		{"negative timeout", func(c *Config) { c.Serial.TimeoutMs = -1 }},
		{"first byte over total", func(c *Config) {
			c.Serial.TimeoutMs = 100
			c.Serial.FirstByteTimeoutMs = 200
		}},
		{"negative cost", func(c *Config) { c.Planner.PerByteUs = -5 }},
		{"address zero", func(c *Config) { c.Devices[0].Address = 0 }},
		{"address too high", func(c *Config) { c.Devices[0].Address = 33 }},
		{"duplicate address", func(c *Config) {
			c.Devices = append(c.Devices, DeviceConfig{Name: "landing", Address: 3, Model: "PRT"})
		}},
		{"duplicate name", func(c *Config) {
			c.Devices = append(c.Devices, DeviceConfig{Name: "hall", Address: 4, Model: "PRT"})
		}},
		{"default name collision", func(c *Config) {
			c.Devices[0].Name = "stat4"
			c.Devices = append(c.Devices, DeviceConfig{Address: 4, Model: "PRT"})
		}},
		{"unknown model", func(c *Config) { c.Devices[0].Model = "XYZ" }},
		{"unsupported model", func(c *Config) { c.Devices[0].Model = "TM1" }},
		{"unknown mode", func(c *Config) { c.Devices[0].ProgramMode = "fortnight" }},
		{"unknown poll field", func(c *Config) { c.Poll.Fields = []string{"humidity"} }},
		{"negative interval", func(c *Config) { c.Poll.IntervalMs = -1 }},
		{"mqtt user without broker", func(c *Config) { c.MQTT.Username = "me" }},
	}

	require.NoError(t, Validate(valid()))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestValidateDoesNotMutate(t *testing.T) {
	cfg := &Config{Devices: []DeviceConfig{{Address: 3, Model: "PRT"}}}
	require.NoError(t, Validate(cfg))
	assert.Empty(t, cfg.Devices[0].Name)
	assert.Zero(t, cfg.Serial.Baud)
}
