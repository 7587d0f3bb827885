// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package publish sends device state to an MQTT broker.
//
// Each device gets a retained JSON state document on <prefix>/<name>/state
// and one plain text topic per polled field on <prefix>/<name>/<field>.
package publish

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Client is the subset of mqtt.Client the publisher uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Config configures the broker connection.
type Config struct {
	Broker      string
	TopicPrefix string
	Username    string
	Password    string
	Retain      bool
}

// Timeout bounds each publish and the initial connect.
const Timeout = 5 * time.Second

// ErrTimeout is returned when the broker does not confirm in time.
var ErrTimeout = errors.New("publish: timed out")

// Publisher publishes device state.
type Publisher struct {
	client Client
	prefix string
	retain bool
	logger zerolog.Logger
}

// State is the JSON document published for a device.
type State struct {
	Name      string             `json:"name"`
	LongName  string             `json:"long_name,omitempty"`
	Address   uint8              `json:"address"`
	State     string             `json:"state"`
	Status    string             `json:"status"`
	Threshold *float64           `json:"threshold,omitempty"`
	Fields    map[string]float64 `json:"fields,omitempty"`
	Error     string             `json:"error,omitempty"`
	Time      time.Time          `json:"time"`
}

// Connect connects to the broker. Each process gets a unique client id.
// If the first connection attempt fails the client keeps retrying in the
// background and the error is only logged.
func Connect(cfg Config, logger zerolog.Logger) *Publisher {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetClientID("heatmiser-" + uuid.NewString())
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		logger.Info().Str("broker", cfg.Broker).Msg("Connected to MQTT broker")
	})
	opts.SetConnectionLostHandler(func(c mqtt.Client, err error) {
		logger.Warn().Err(err).Msg("MQTT connection lost")
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); !token.WaitTimeout(Timeout) || token.Error() != nil {
		logger.Warn().Err(token.Error()).Msg("Could not connect to MQTT initially, will retry in background")
	}
	return New(client, cfg.TopicPrefix, cfg.Retain, logger)
}

// New creates a publisher on an existing client.
func New(client Client, prefix string, retain bool, logger zerolog.Logger) *Publisher {
	return &Publisher{client: client, prefix: prefix, retain: retain, logger: logger}
}

// Topic returns the topic for a device and leaf.
func (p *Publisher) Topic(device, leaf string) string {
	return fmt.Sprintf("%s/%s/%s", p.prefix, device, leaf)
}

// PublishState publishes a device's state document.
func (p *Publisher) PublishState(s State) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("publish: encode %s: %w", s.Name, err)
	}
	return p.publish(p.Topic(s.Name, "state"), payload)
}

// PublishField publishes one field's text value.
func (p *Publisher) PublishField(device, field, text string) error {
	return p.publish(p.Topic(device, field), []byte(text))
}

func (p *Publisher) publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, 0, p.retain, payload)
	if !token.WaitTimeout(Timeout) {
		return fmt.Errorf("%w: %s", ErrTimeout, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	p.logger.Debug().Str("topic", topic).Int("bytes", len(payload)).Msg("published")
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
