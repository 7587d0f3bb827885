// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package publish

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================
// Test Helpers
// ============================================================

type fakeToken struct {
	done chan struct{}
	err  error
	late bool
}

func newToken(err error, late bool) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err, late: late}
	if !late {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool                       { <-t.done; return true }
func (t *fakeToken) WaitTimeout(d time.Duration) bool { return !t.late }
func (t *fakeToken) Done() <-chan struct{}            { return t.done }
func (t *fakeToken) Error() error                     { return t.err }

type message struct {
	topic    string
	retained bool
	payload  []byte
}

type fakeClient struct {
	sent         []message
	err          error
	late         bool
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.sent = append(c.sent, message{topic: topic, retained: retained, payload: payload.([]byte)})
	return newToken(c.err, c.late)
}

func (c *fakeClient) Disconnect(quiesce uint) {
	c.disconnected = true
}

// ============================================================
// Publish Tests
// ============================================================

func TestPublishState(t *testing.T) {
	client := &fakeClient{}
	p := New(client, "home/heat", true, zerolog.Nop())

	threshold := 21.0
	at := time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)
	require.NoError(t, p.PublishState(State{
		Name: "hall", Address: 3, State: "SETPOINT", Status: "set to 21 until 17:00",
		Threshold: &threshold, Fields: map[string]float64{"airtemp": 20.5}, Time: at,
	}))

	require.Len(t, client.sent, 1)
	msg := client.sent[0]
	assert.Equal(t, "home/heat/hall/state", msg.topic)
	assert.True(t, msg.retained)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.payload, &doc))
	assert.Equal(t, "SETPOINT", doc["state"])
	assert.Equal(t, 21.0, doc["threshold"])
	assert.Equal(t, 20.5, doc["fields"].(map[string]interface{})["airtemp"])
	assert.NotContains(t, doc, "error")
}

func TestPublishField(t *testing.T) {
	client := &fakeClient{}
	p := New(client, "heatmiser", false, zerolog.Nop())

	require.NoError(t, p.PublishField("hall", "airtemp", "20.5"))
	assert.Equal(t, "heatmiser/hall/airtemp", client.sent[0].topic)
	assert.Equal(t, []byte("20.5"), client.sent[0].payload)
	assert.False(t, client.sent[0].retained)

	p.Close()
	assert.True(t, client.disconnected)
}

func TestPublishErrors(t *testing.T) {
	client := &fakeClient{err: errors.New("not connected")}
	p := New(client, "heatmiser", false, zerolog.Nop())
	assert.ErrorContains(t, p.PublishField("hall", "airtemp", "20"), "not connected")

	client = &fakeClient{late: true}
	p = New(client, "heatmiser", false, zerolog.Nop())
	assert.ErrorIs(t, p.PublishField("hall", "airtemp", "20"), ErrTimeout)
}
