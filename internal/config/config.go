// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the YAML configuration describing the serial bus,
// the thermostats on it and the optional poll outputs.
//
// Callers run Load, then Validate, then Normalize. Validate never mutates
// the configuration; Normalize fills in defaults and must only run on a
// configuration that passed Validate.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Serial  SerialConfig   `yaml:"serial"`
	Planner PlannerConfig  `yaml:"planner"`
	Devices []DeviceConfig `yaml:"devices"`
	Poll    PollConfig     `yaml:"poll"`
	Store   StoreConfig    `yaml:"store"`
	Metrics MetricsConfig  `yaml:"metrics"`
	MQTT    MQTTConfig     `yaml:"mqtt"`
}

// ---- SERIAL ----

type SerialConfig struct {
	Port          string `yaml:"port"`
	Baud          int    `yaml:"baud"`
	MasterAddress uint8  `yaml:"master_address"`

	TimeoutMs             int `yaml:"timeout_ms"`
	FirstByteTimeoutMs    int `yaml:"first_byte_timeout_ms"`
	MinRemainderTimeoutMs int `yaml:"min_remainder_timeout_ms"`
	BusResetMs            int `yaml:"bus_reset_ms"`
	BroadcastSpacingMs    int `yaml:"broadcast_spacing_ms"`

	ReadAttempts  int `yaml:"read_attempts"`
	WriteAttempts int `yaml:"write_attempts"`
}

// ---- PLANNER ----

// PlannerConfig overrides the read cost model. Zero keeps the default.
type PlannerConfig struct {
	PerByteUs        int `yaml:"per_byte_us"`
	PerTransactionUs int `yaml:"per_transaction_us"`
	BusResetMs       int `yaml:"bus_reset_ms"`
	ReadAllMarginMs  int `yaml:"read_all_margin_ms"`
}

// ---- DEVICES ----

type DeviceConfig struct {
	Name            string `yaml:"name"`
	LongName        string `yaml:"long_name,omitempty"`
	Address         uint8  `yaml:"address"`
	Model           string `yaml:"model"`
	ProgramMode     string `yaml:"program_mode"`
	AutoCorrectTime bool   `yaml:"auto_correct_time,omitempty"`
}

// ---- POLL ----

type PollConfig struct {
	IntervalMs int `yaml:"interval_ms"`
	// Fields are read on every cycle in addition to the state fields.
	Fields []string `yaml:"fields"`
	// TimeCheckEvery runs a clock check every that many cycles. Zero
	// disables it.
	TimeCheckEvery int `yaml:"time_check_every"`
}

// ---- OUTPUTS ----

type StoreConfig struct {
	Path string `yaml:"path"`
}

type MetricsConfig struct {
	StatsdAddr       string   `yaml:"statsd_addr"`
	Namespace        string   `yaml:"namespace"`
	Tags             []string `yaml:"tags"`
	PrometheusListen string   `yaml:"prometheus_listen"`
}

type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	TopicPrefix string `yaml:"topic_prefix"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	Retain      bool   `yaml:"retain"`
}

// Load reads and parses a configuration file. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses configuration YAML.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	return &cfg, nil
}
