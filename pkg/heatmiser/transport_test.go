// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package heatmiser

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================
// Test Helpers
// ============================================================

// scriptPort replays queued read chunks. An empty chunk reads as a timeout.
type scriptPort struct {
	chunks   [][]byte
	written  [][]byte
	timeouts []time.Duration
	readErr  error
	resets   int
	closed   bool
}

func (p *scriptPort) Read(b []byte) (int, error) {
	if p.readErr != nil {
		return 0, p.readErr
	}
	if len(p.chunks) == 0 {
		return 0, nil
	}
	n := copy(b, p.chunks[0])
	p.chunks = p.chunks[1:]
	return n, nil
}

func (p *scriptPort) Write(b []byte) (int, error) {
	p.written = append(p.written, append([]byte(nil), b...))
	return len(b), nil
}

func (p *scriptPort) Close() error {
	p.closed = true
	return nil
}

func (p *scriptPort) SetReadTimeout(t time.Duration) error {
	p.timeouts = append(p.timeouts, t)
	return nil
}

func (p *scriptPort) ResetInputBuffer() error {
	p.resets++
	return nil
}

// fakeClock advances only when slept on.
type fakeClock struct {
	now   time.Time
	slept []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
}

func newTestTransport(port *scriptPort, opens *int) (*Transport, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)}
	tr := NewTransport(func() (Port, error) {
		*opens++
		port.closed = false
		return port, nil
	}, DefaultTiming(), zerolog.Nop())
	tr.now = clock.Now
	tr.sleep = clock.Sleep
	return tr, clock
}

// ============================================================
// Bus Timing Tests
// ============================================================

func TestSendOpensLazily(t *testing.T) {
	port := &scriptPort{}
	opens := 0
	tr, _ := newTestTransport(port, &opens)
	assert.Equal(t, 0, opens)

	require.NoError(t, tr.Send([]byte{1, 2, 3}))
	require.NoError(t, tr.Send([]byte{4}))
	assert.Equal(t, 1, opens)
	assert.Equal(t, [][]byte{{1, 2, 3}, {4}}, port.written)
}

func TestSendWaitsForBusReset(t *testing.T) {
	port := &scriptPort{chunks: [][]byte{writeAck(0x81, 5)}}
	opens := 0
	tr, clock := newTestTransport(port, &opens)

	require.NoError(t, tr.Send([]byte{1}))
	_, err := tr.Receive()
	require.NoError(t, err)

	clock.now = clock.now.Add(30 * time.Millisecond)
	require.NoError(t, tr.Send([]byte{2}))
	require.Len(t, clock.slept, 1)
	assert.Equal(t, 70*time.Millisecond, clock.slept[0])
}

func TestSendNoWaitAfterQuietBus(t *testing.T) {
	port := &scriptPort{chunks: [][]byte{writeAck(0x81, 5)}}
	opens := 0
	tr, clock := newTestTransport(port, &opens)

	require.NoError(t, tr.Send([]byte{1}))
	_, err := tr.Receive()
	require.NoError(t, err)

	clock.now = clock.now.Add(time.Second)
	require.NoError(t, tr.Send([]byte{2}))
	assert.Empty(t, clock.slept)
}

func TestHoldOffDelaysNextSend(t *testing.T) {
	port := &scriptPort{}
	opens := 0
	tr, clock := newTestTransport(port, &opens)

	require.NoError(t, tr.Send([]byte{1}))
	tr.HoldOff(tr.Timing().BroadcastSpacing)
	require.NoError(t, tr.Send([]byte{2}))
	require.Len(t, clock.slept, 1)
	assert.Equal(t, 200*time.Millisecond, clock.slept[0])
}

// ============================================================
// Receive Tests
// ============================================================

func TestReceiveNoResponse(t *testing.T) {
	port := &scriptPort{}
	opens := 0
	tr, _ := newTestTransport(port, &opens)

	frame, err := tr.Receive()
	require.NoError(t, err)
	assert.Empty(t, frame)
	assert.Equal(t, []time.Duration{100 * time.Millisecond}, port.timeouts)
}

func TestReceiveAssemblesChunks(t *testing.T) {
	full := readResponse(0x81, 5, 0, []byte{1, 2, 3, 4})
	port := &scriptPort{chunks: [][]byte{full[:1], full[1:6], full[6:]}}
	opens := 0
	tr, _ := newTestTransport(port, &opens)

	frame, err := tr.Receive()
	require.NoError(t, err)
	assert.Equal(t, full, frame)
	assert.Equal(t, 100*time.Millisecond, port.timeouts[0])
	assert.Equal(t, 800*time.Millisecond, port.timeouts[1])
}

func TestReceiveStopsAtDeclaredLength(t *testing.T) {
	full := writeAck(0x81, 5)
	port := &scriptPort{chunks: [][]byte{full, {0xEE, 0xEE}}}
	opens := 0
	tr, _ := newTestTransport(port, &opens)

	frame, err := tr.Receive()
	require.NoError(t, err)
	assert.Equal(t, full, frame)
	assert.Len(t, port.chunks, 1)
}

func TestReceivePartialFrame(t *testing.T) {
	full := readResponse(0x81, 5, 0, []byte{1, 2, 3, 4})
	port := &scriptPort{chunks: [][]byte{full[:5], {}}}
	opens := 0
	tr, _ := newTestTransport(port, &opens)

	frame, err := tr.Receive()
	require.NoError(t, err)
	assert.Equal(t, full[:5], frame)
}

func TestReceiveFloorsRemainderTimeout(t *testing.T) {
	full := readResponse(0x81, 5, 0, []byte{1, 2})
	port := &scriptPort{chunks: [][]byte{full[:3], full[3:]}}
	opens := 0
	tr, clock := newTestTransport(port, &opens)

	// The first byte took almost the whole budget.
	tr.now = func() time.Time {
		ts := clock.now
		clock.now = clock.now.Add(750 * time.Millisecond)
		return ts
	}

	frame, err := tr.Receive()
	require.NoError(t, err)
	assert.Equal(t, full, frame)
	assert.Equal(t, 100*time.Millisecond, port.timeouts[1])
}

func TestReceiveFaultClosesPort(t *testing.T) {
	port := &scriptPort{readErr: errors.New("device unplugged")}
	opens := 0
	tr, _ := newTestTransport(port, &opens)

	_, err := tr.Receive()
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "read", te.Op)
	assert.True(t, port.closed)
	assert.False(t, Retryable(err))

	port.readErr = nil
	require.NoError(t, tr.Send([]byte{1}))
	assert.Equal(t, 2, opens)
}

func TestOpenFailure(t *testing.T) {
	tr := NewTransport(func() (Port, error) {
		return nil, errors.New("no such device")
	}, DefaultTiming(), zerolog.Nop())

	err := tr.Send([]byte{1})
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "open", te.Op)
}

// ============================================================
// Flush Tests
// ============================================================

func TestFlushDiscardsInput(t *testing.T) {
	port := &scriptPort{chunks: [][]byte{{1, 2}, {3}}}
	opens := 0
	tr, _ := newTestTransport(port, &opens)
	require.NoError(t, tr.Send([]byte{0}))

	require.NoError(t, tr.Flush())
	assert.Empty(t, port.chunks)
	assert.Equal(t, 1, port.resets)
}

func TestFlushWithoutPort(t *testing.T) {
	port := &scriptPort{}
	opens := 0
	tr, _ := newTestTransport(port, &opens)
	require.NoError(t, tr.Flush())
	assert.Equal(t, 0, opens)
}
