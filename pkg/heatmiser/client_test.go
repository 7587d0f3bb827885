// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package heatmiser_test

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/heatmiser/pkg/heatmiser"
	"github.com/Thermoquad/heatmiser/pkg/heatmiser/heatmisertest"
)

// ============================================================
// Test Helpers
// ============================================================

func fastConfig(logger zerolog.Logger) heatmiser.ClientConfig {
	cfg := heatmiser.DefaultClientConfig()
	cfg.Timing = heatmiser.Timing{
		Timeout:             50 * time.Millisecond,
		FirstByteTimeout:    10 * time.Millisecond,
		MinRemainderTimeout: 10 * time.Millisecond,
	}
	cfg.Logger = logger
	return cfg
}

func newClient(t *testing.T, port *heatmisertest.Port, logger zerolog.Logger) *heatmiser.Client {
	t.Helper()
	client, err := heatmiser.NewClient(port.Open(nil), fastConfig(logger))
	require.NoError(t, err)
	return client
}

type recordingObserver struct {
	mu           sync.Mutex
	transactions []string
	attempts     []int
	retries      int
	failures     int
}

func (o *recordingObserver) ObserveTransaction(op string, dest uint8, attempts int, elapsed time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transactions = append(o.transactions, op)
	o.attempts = append(o.attempts, attempts)
	if err != nil {
		o.failures++
	}
}

func (o *recordingObserver) ObserveRetry(op string, dest uint8, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.retries++
}

// ============================================================
// Transaction Tests
// ============================================================

func TestClientRead(t *testing.T) {
	dev := &heatmisertest.Device{Address: 5, DCB: []byte{0, 1, 2, 3, 4, 5, 6, 7}}
	port := &heatmisertest.Port{Handler: dev.Handle}
	client := newClient(t, port, zerolog.Nop())

	data, err := client.Read(5, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 3, 4}, data)
	assert.Equal(t, []byte{5, 10, 0x81, 0, 2, 0, 3, 0}, port.Written[0][:8])
}

func TestClientReadAll(t *testing.T) {
	dcb := make([]byte, 64)
	for i := range dcb {
		dcb[i] = byte(i)
	}
	dev := &heatmisertest.Device{Address: 3, DCB: dcb}
	port := &heatmisertest.Port{Handler: dev.Handle, Chunk: 16}
	client := newClient(t, port, zerolog.Nop())

	data, err := client.ReadAll(3)
	require.NoError(t, err)
	assert.Equal(t, dcb, data)
}

func TestClientWrite(t *testing.T) {
	dev := &heatmisertest.Device{Address: 5, DCB: make([]byte, 40)}
	port := &heatmisertest.Port{Handler: dev.Handle}
	client := newClient(t, port, zerolog.Nop())

	require.NoError(t, client.Write(5, 34, []byte{255}))
	assert.Equal(t, []byte{5, 11, 0x81, 1, 34, 0, 1, 0, 255, 222, 138}, port.Written[0])
	assert.Equal(t, byte(255), dev.DCB[34])
}

func TestClientBroadcast(t *testing.T) {
	devA := &heatmisertest.Device{Address: 1, DCB: make([]byte, 50)}
	devB := &heatmisertest.Device{Address: 2, DCB: make([]byte, 50)}
	port := &heatmisertest.Port{Handler: func(frame []byte) []byte {
		a := devA.Handle(frame)
		b := devB.Handle(frame)
		return append(a, b...)
	}}
	client := newClient(t, port, zerolog.Nop())

	require.NoError(t, client.Broadcast(43, []byte{3, 10, 0, 0}))
	assert.Equal(t, []byte{3, 10, 0, 0}, devA.DCB[43:47])
	assert.Equal(t, []byte{3, 10, 0, 0}, devB.DCB[43:47])
	assert.Equal(t, 0, port.Pending())
}

func TestClientRejectsBadArguments(t *testing.T) {
	port := &heatmisertest.Port{}
	client := newClient(t, port, zerolog.Nop())

	_, err := client.Read(0, 0, 1)
	assert.ErrorIs(t, err, heatmiser.ErrInvalidAddress)

	err = client.Write(33, 0, []byte{1})
	assert.ErrorIs(t, err, heatmiser.ErrInvalidAddress)

	err = client.Write(5, 0, make([]byte, 101))
	assert.ErrorIs(t, err, heatmiser.ErrPayloadTooLarge)

	assert.Empty(t, port.Written)
}

func TestNewClientRejectsMaster(t *testing.T) {
	cfg := heatmiser.DefaultClientConfig()
	cfg.Master = 0x10
	_, err := heatmiser.NewClient((&heatmisertest.Port{}).Open(nil), cfg)
	assert.ErrorIs(t, err, heatmiser.ErrInvalidAddress)
}

// ============================================================
// Retry Tests
// ============================================================

func TestClientRetriesThenSucceeds(t *testing.T) {
	dev := &heatmisertest.Device{Address: 5, DCB: make([]byte, 40)}
	calls := 0
	port := &heatmisertest.Port{Handler: func(frame []byte) []byte {
		calls++
		if calls == 1 {
			return nil
		}
		return dev.Handle(frame)
	}}
	var logs bytes.Buffer
	obs := &recordingObserver{}
	cfg := fastConfig(zerolog.New(&logs))
	cfg.Observer = obs
	client, err := heatmiser.NewClient(port.Open(nil), cfg)
	require.NoError(t, err)

	require.NoError(t, client.Write(5, 21, []byte{1}))
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, strings.Count(logs.String(), `"message":"retry"`))
	assert.Equal(t, 1, obs.retries)
	assert.Equal(t, []int{2}, obs.attempts)
	assert.Equal(t, 0, obs.failures)
}

func TestClientWriteExhaustsRetries(t *testing.T) {
	port := &heatmisertest.Port{}
	var logs bytes.Buffer
	client := newClient(t, port, zerolog.New(&logs))

	err := client.Write(5, 21, []byte{1})
	var re *heatmiser.RetriesExhaustedError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, 3, re.Attempts)
	assert.Equal(t, "write", re.Op)
	assert.ErrorIs(t, err, heatmiser.ErrNoResponse)
	assert.Len(t, port.Written, 3)
	assert.Equal(t, 2, strings.Count(logs.String(), `"message":"retry"`))
}

func TestClientReadExhaustsRetries(t *testing.T) {
	port := &heatmisertest.Port{}
	client := newClient(t, port, zerolog.Nop())

	_, err := client.Read(5, 0, 4)
	var re *heatmiser.RetriesExhaustedError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, 2, re.Attempts)
	assert.Len(t, port.Written, 2)
}

func TestClientFlushesAfterBadCRC(t *testing.T) {
	dev := &heatmisertest.Device{Address: 5, DCB: []byte{9, 8, 7, 6}}
	calls := 0
	port := &heatmisertest.Port{Handler: func(frame []byte) []byte {
		calls++
		reply := dev.Handle(frame)
		if calls == 1 {
			reply[len(reply)-1] ^= 0xFF
			return append(reply, 0x55, 0x55)
		}
		return reply
	}}
	client := newClient(t, port, zerolog.Nop())

	data, err := client.Read(5, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 8, 7, 6}, data)
	assert.Equal(t, 1, port.Resets)
}

func TestClientDoesNotRetryTransportFault(t *testing.T) {
	opens := 0
	port := &heatmisertest.Port{ReadErr: errors.New("i/o error")}
	client, err := heatmiser.NewClient(port.Open(&opens), fastConfig(zerolog.Nop()))
	require.NoError(t, err)

	_, err = client.Read(5, 0, 1)
	var te *heatmiser.TransportError
	require.True(t, errors.As(err, &te))
	assert.Len(t, port.Written, 1)
	assert.True(t, port.Closed)

	port.ReadErr = nil
	dev := &heatmisertest.Device{Address: 5, DCB: []byte{42}}
	port.Handler = dev.Handle
	data, err := client.Read(5, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{42}, data)
	assert.Equal(t, 2, opens)
}

func TestClientSerialisesCallers(t *testing.T) {
	dev := &heatmisertest.Device{Address: 5, DCB: make([]byte, 16)}
	port := &heatmisertest.Port{Handler: dev.Handle}
	client := newClient(t, port, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, client.Write(5, uint16(i), []byte{byte(i)}))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 8, dev.Writes)
	for i := 0; i < 8; i++ {
		assert.Equal(t, byte(i), dev.DCB[i])
	}
}
