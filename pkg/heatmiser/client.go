// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package heatmiser

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Default attempt counts
const (
	DefaultReadAttempts  = 2
	DefaultWriteAttempts = 3
)

// Observer receives a callback for every finished transaction and every
// retry. internal/metrics provides the production implementation.
type Observer interface {
	ObserveTransaction(op string, dest uint8, attempts int, elapsed time.Duration, err error)
	ObserveRetry(op string, dest uint8, err error)
}

// ClientConfig configures a Client.
type ClientConfig struct {
	Master        uint8
	ReadAttempts  int
	WriteAttempts int
	Timing        Timing
	Logger        zerolog.Logger
	Observer      Observer
}

// DefaultClientConfig returns the defaults: master 0x81, two read attempts,
// three write attempts, default timing and no logging.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Master:        DefaultMasterAddress,
		ReadAttempts:  DefaultReadAttempts,
		WriteAttempts: DefaultWriteAttempts,
		Timing:        DefaultTiming(),
		Logger:        zerolog.Nop(),
	}
}

// Client runs read and write transactions on the bus, retrying transient
// response failures. It is safe for concurrent use; transactions are
// serialised.
type Client struct {
	mu        sync.Mutex
	transport *Transport
	master    uint8
	reads     int
	writes    int
	logger    zerolog.Logger
	observer  Observer
}

// NewClient creates a client that opens its port with open.
func NewClient(open Opener, cfg ClientConfig) (*Client, error) {
	if !IsMasterAddress(cfg.Master) {
		return nil, fmt.Errorf("%w: master 0x%02X outside 0x%02X-0x%02X",
			ErrInvalidAddress, cfg.Master, MasterAddressMin, MasterAddressMax)
	}
	if cfg.ReadAttempts < 1 {
		cfg.ReadAttempts = DefaultReadAttempts
	}
	if cfg.WriteAttempts < 1 {
		cfg.WriteAttempts = DefaultWriteAttempts
	}

	return &Client{
		transport: NewTransport(open, cfg.Timing, cfg.Logger),
		master:    cfg.Master,
		reads:     cfg.ReadAttempts,
		writes:    cfg.WriteAttempts,
		logger:    cfg.Logger,
		observer:  cfg.Observer,
	}, nil
}

// Master returns the client's own bus address.
func (c *Client) Master() uint8 {
	return c.master
}

// Timing returns the bus timing in use.
func (c *Client) Timing() Timing {
	return c.transport.Timing()
}

// Read reads length bytes of dest's DCB starting at start and returns them.
func (c *Client) Read(dest uint8, start, length uint16) ([]byte, error) {
	if err := checkSlave(dest); err != nil {
		return nil, err
	}
	frame, err := FormFrame(dest, c.master, FunctionRead, start, length, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.transact("read", dest, c.reads, frame, Expectation{
		Source: dest, Dest: c.master, Function: FunctionRead, Length: int(length),
	})
	if err != nil {
		return nil, err
	}
	return resp.Payload, nil
}

// ReadAll reads dest's entire DCB.
func (c *Client) ReadAll(dest uint8) ([]byte, error) {
	if err := checkSlave(dest); err != nil {
		return nil, err
	}
	frame, err := FormFrame(dest, c.master, FunctionRead, ReadAllStart, ReadAllLength, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.transact("read all", dest, c.reads, frame, Expectation{
		Source: dest, Dest: c.master, Function: FunctionRead, Length: UnknownLength,
	})
	if err != nil {
		return nil, err
	}
	return resp.Payload, nil
}

// Write writes payload into dest's DCB at start and waits for the
// acknowledgement.
func (c *Client) Write(dest uint8, start uint16, payload []byte) error {
	if err := checkSlave(dest); err != nil {
		return err
	}
	frame, err := FormFrame(dest, c.master, FunctionWrite, start, uint16(len(payload)), payload)
	if err != nil {
		return err
	}
	_, err = c.transact("write", dest, c.writes, frame, Expectation{
		Source: dest, Dest: c.master, Function: FunctionWrite, Length: 0,
	})
	return err
}

// Broadcast writes payload at start on every device. No device replies, so
// the next send is held off by the broadcast spacing.
func (c *Client) Broadcast(start uint16, payload []byte) error {
	frame, err := FormFrame(BroadcastAddress, c.master, FunctionWrite, start, uint16(len(payload)), payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	began := c.transport.now()
	err = c.transport.Send(frame)
	if err == nil {
		c.transport.HoldOff(c.transport.timing.BroadcastSpacing)
	}
	c.observe("broadcast", BroadcastAddress, 1, c.transport.now().Sub(began), err)
	return err
}

// Close releases the serial port.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transport.Close()
}

func (c *Client) transact(op string, dest uint8, attempts int, frame []byte, exp Expectation) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	began := c.transport.now()
	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := c.roundTrip(frame, exp)
		if err == nil {
			c.observe(op, dest, attempt, c.transport.now().Sub(began), nil)
			return resp, nil
		}
		if !Retryable(err) {
			c.observe(op, dest, attempt, c.transport.now().Sub(began), err)
			return nil, err
		}
		last = err

		if errors.Is(err, ErrBadCRC) {
			if ferr := c.transport.Flush(); ferr != nil {
				c.observe(op, dest, attempt, c.transport.now().Sub(began), ferr)
				return nil, ferr
			}
		}

		if attempt < attempts {
			c.logger.Warn().
				Str("op", op).
				Uint8("dest", dest).
				Int("attempt", attempt).
				Int("max_attempts", attempts).
				Err(err).
				Msg("retry")
			if c.observer != nil {
				c.observer.ObserveRetry(op, dest, err)
			}
		}
	}

	err := &RetriesExhaustedError{Op: op, Dest: dest, Attempts: attempts, Last: last}
	c.observe(op, dest, attempts, c.transport.now().Sub(began), err)
	return nil, err
}

func (c *Client) roundTrip(frame []byte, exp Expectation) (*Response, error) {
	if err := c.transport.Send(frame); err != nil {
		return nil, err
	}
	c.logger.Trace().Hex("tx", frame).Msg("frame")
	raw, err := c.transport.Receive()
	if err != nil {
		return nil, err
	}
	c.logger.Trace().Hex("rx", raw).Msg("frame")
	if err := VerifyResponse(exp, raw); err != nil {
		return nil, err
	}
	return ParseResponse(raw)
}

func (c *Client) observe(op string, dest uint8, attempts int, elapsed time.Duration, err error) {
	if c.observer != nil {
		c.observer.ObserveTransaction(op, dest, attempts, elapsed, err)
	}
}

func checkSlave(dest uint8) error {
	if !IsSlaveAddress(dest) {
		return fmt.Errorf("%w: %d outside %d-%d", ErrInvalidAddress, dest, SlaveAddressMin, SlaveAddressMax)
	}
	return nil
}
