// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package heatmisertest provides an in-memory serial port and a scripted
// bus device for testing code built on package heatmiser.
package heatmisertest

import (
	"sync"
	"time"

	"github.com/Thermoquad/heatmiser/pkg/heatmiser"
)

// Port is an in-memory heatmiser.Port. Every write is handed to Handler and
// whatever it returns becomes readable.
type Port struct {
	mu sync.Mutex

	// Handler answers a written frame. A nil return means no reply.
	Handler func(frame []byte) []byte
	// Chunk limits the bytes returned per Read. Zero means no limit.
	Chunk int
	// Trailing bytes are appended to every reply to simulate line noise.
	Trailing []byte

	// ReadErr and WriteErr, when set, are returned by Read and Write.
	ReadErr  error
	WriteErr error

	Written  [][]byte
	Timeouts []time.Duration
	Resets   int
	Closed   bool

	pending []byte
}

// Open returns an Opener that always hands out p and counts the opens.
func (p *Port) Open(count *int) heatmiser.Opener {
	return func() (heatmiser.Port, error) {
		if count != nil {
			*count++
		}
		p.mu.Lock()
		p.Closed = false
		p.mu.Unlock()
		return p, nil
	}
}

func (p *Port) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ReadErr != nil {
		return 0, p.ReadErr
	}
	n := len(p.pending)
	if p.Chunk > 0 && n > p.Chunk {
		n = p.Chunk
	}
	n = copy(b, p.pending[:n])
	p.pending = p.pending[n:]
	return n, nil
}

func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.WriteErr != nil {
		return 0, p.WriteErr
	}
	frame := append([]byte(nil), b...)
	p.Written = append(p.Written, frame)
	if p.Handler != nil {
		if reply := p.Handler(frame); reply != nil {
			p.pending = append(p.pending, reply...)
			p.pending = append(p.pending, p.Trailing...)
		}
	}
	return len(b), nil
}

func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	p.pending = nil
	return nil
}

func (p *Port) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Timeouts = append(p.Timeouts, t)
	return nil
}

func (p *Port) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Resets++
	p.pending = nil
	return nil
}

// Pending returns the number of unread bytes.
func (p *Port) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}
