// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package heatmiser

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Port is the serial line the transport talks through. go.bug.st/serial's
// Port satisfies it.
//
// Read must return (0, nil) when the read timeout expires with nothing
// received.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// Opener opens the serial port. It is called lazily before the first send
// and again after a serial fault has closed the port.
type Opener func() (Port, error)

// Timing holds the bus timing parameters.
type Timing struct {
	// Timeout is the total time allowed to receive one response.
	Timeout time.Duration
	// FirstByteTimeout bounds the wait for the first byte of a response.
	FirstByteTimeout time.Duration
	// MinRemainderTimeout floors the time allowed for the rest of a frame.
	MinRemainderTimeout time.Duration
	// BusResetTime is the quiet interval required after a receive before
	// the next send.
	BusResetTime time.Duration
	// BroadcastSpacing is added to the send gate after a broadcast write.
	BroadcastSpacing time.Duration
}

// DefaultTiming returns timing suited to a 4800 baud bus.
func DefaultTiming() Timing {
	return Timing{
		Timeout:             800 * time.Millisecond,
		FirstByteTimeout:    100 * time.Millisecond,
		MinRemainderTimeout: 100 * time.Millisecond,
		BusResetTime:        100 * time.Millisecond,
		BroadcastSpacing:    200 * time.Millisecond,
	}
}

// Transport moves raw frames over the bus and enforces bus timing. It is
// not safe for concurrent use; Client serialises access to it.
type Transport struct {
	open   Opener
	port   Port
	timing Timing
	logger zerolog.Logger

	now   func() time.Time
	sleep func(time.Duration)

	lastReceive time.Time
	nextSend    time.Time
}

// NewTransport creates a transport. The port is not opened until needed.
func NewTransport(open Opener, timing Timing, logger zerolog.Logger) *Transport {
	return &Transport{
		open:   open,
		timing: timing,
		logger: logger,
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// Timing returns the transport's bus timing.
func (t *Transport) Timing() Timing {
	return t.timing
}

func (t *Transport) ensureOpen() error {
	if t.port != nil {
		return nil
	}
	port, err := t.open()
	if err != nil {
		return &TransportError{Op: "open", Err: err}
	}
	t.port = port
	t.logger.Debug().Msg("port opened")
	return nil
}

// fault closes the port after a serial error so the next call reopens it.
func (t *Transport) fault(op string, err error) error {
	if t.port != nil {
		if cerr := t.port.Close(); cerr != nil {
			t.logger.Debug().Err(cerr).Msg("close after fault")
		}
		t.port = nil
	}
	t.logger.Warn().Str("op", op).Err(err).Msg("port closed")
	return &TransportError{Op: op, Err: err}
}

// Send transmits one frame, first waiting for the bus to settle.
func (t *Transport) Send(frame []byte) error {
	if err := t.ensureOpen(); err != nil {
		return err
	}

	gate := t.lastReceive.Add(t.timing.BusResetTime)
	if t.nextSend.After(gate) {
		gate = t.nextSend
	}
	if wait := gate.Sub(t.now()); wait > 0 {
		t.sleep(wait)
	}

	for written := 0; written < len(frame); {
		n, err := t.port.Write(frame[written:])
		if err != nil {
			return t.fault("write", err)
		}
		if n == 0 {
			return t.fault("write", io.ErrShortWrite)
		}
		written += n
	}
	return nil
}

// HoldOff pushes the next send back by d from now. It is used after a
// broadcast, which gets no reply to time the bus reset from.
func (t *Transport) HoldOff(d time.Duration) {
	next := t.now().Add(d)
	if next.After(t.nextSend) {
		t.nextSend = next
	}
}

// Receive reads one response frame. An empty result means nothing arrived
// within the first-byte timeout. A partial frame is returned as received
// and left to VerifyResponse to reject.
func (t *Transport) Receive() ([]byte, error) {
	if err := t.ensureOpen(); err != nil {
		return nil, err
	}
	defer func() { t.lastReceive = t.now() }()

	start := t.now()
	buf := make([]byte, MaxFrameSize)

	if err := t.port.SetReadTimeout(t.timing.FirstByteTimeout); err != nil {
		return nil, t.fault("set timeout", err)
	}
	n, err := t.port.Read(buf)
	if err != nil {
		return nil, t.fault("read", err)
	}
	if n == 0 {
		return nil, nil
	}

	deadline := start.Add(t.timing.Timeout)
	late := false
	for n < t.expectedSize(buf[:n]) {
		remaining := deadline.Sub(t.now())
		if remaining < t.timing.MinRemainderTimeout {
			if late {
				break
			}
			late = remaining <= 0
			remaining = t.timing.MinRemainderTimeout
		}
		if err := t.port.SetReadTimeout(remaining); err != nil {
			return nil, t.fault("set timeout", err)
		}
		m, err := t.port.Read(buf[n:])
		if err != nil {
			return nil, t.fault("read", err)
		}
		if m == 0 {
			break
		}
		n += m
	}

	if size := t.expectedSize(buf[:n]); n > size && size >= WriteAckSize {
		t.logger.Debug().Int("bytes", n-size).Msg("discarded trailing bytes")
		n = size
	}

	frame := make([]byte, n)
	copy(frame, buf[:n])
	return frame, nil
}

// expectedSize is the number of bytes to wait for given what has arrived.
func (t *Transport) expectedSize(got []byte) int {
	if len(got) < 3 {
		return 3
	}
	size := declaredLength(got)
	if size > MaxFrameSize {
		return MaxFrameSize
	}
	return size
}

// Flush discards anything left in the input buffer.
func (t *Transport) Flush() error {
	if t.port == nil {
		return nil
	}
	if err := t.port.SetReadTimeout(t.timing.MinRemainderTimeout); err != nil {
		return t.fault("set timeout", err)
	}
	discarded := 0
	buf := make([]byte, MaxFrameSize)
	for {
		n, err := t.port.Read(buf)
		if err != nil {
			return t.fault("read", err)
		}
		if n == 0 {
			break
		}
		discarded += n
	}
	if err := t.port.ResetInputBuffer(); err != nil {
		return t.fault("reset input", err)
	}
	if discarded > 0 {
		t.logger.Debug().Int("bytes", discarded).Msg("flushed input")
	}
	t.lastReceive = t.now()
	return nil
}

// Close closes the port if it is open.
func (t *Transport) Close() error {
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	if err != nil {
		return fmt.Errorf("heatmiser: close port: %w", err)
	}
	return nil
}
