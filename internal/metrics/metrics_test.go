// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/heatmiser/pkg/heatmiser"
)

// ============================================================
// Test Helpers
// ============================================================

type fakePusher struct {
	mu     sync.Mutex
	names  []string
	tags   [][]string
	closed bool
	err    error
}

func (p *fakePusher) record(name string, tags []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.names = append(p.names, name)
	p.tags = append(p.tags, tags)
	return p.err
}

func (p *fakePusher) Incr(name string, tags []string, rate float64) error {
	return p.record(name, tags)
}

func (p *fakePusher) Gauge(name string, value float64, tags []string, rate float64) error {
	return p.record(name, tags)
}

func (p *fakePusher) Timing(name string, value time.Duration, tags []string, rate float64) error {
	return p.record(name, tags)
}

func (p *fakePusher) Close() error {
	p.closed = true
	return nil
}

func noResponse() error {
	frameErr := heatmiser.VerifyResponse(heatmiser.Expectation{Source: 3}, nil)
	return frameErr
}

// ============================================================
// Reason Tests
// ============================================================

func TestReason(t *testing.T) {
	assert.Equal(t, ReasonOK, Reason(nil))
	assert.Equal(t, ReasonNoResponse, Reason(noResponse()))
	assert.Equal(t, ReasonExhausted, Reason(&heatmiser.RetriesExhaustedError{Op: "read", Dest: 3, Attempts: 2, Last: noResponse()}))
	assert.Equal(t, ReasonTransport, Reason(&heatmiser.TransportError{Op: "write", Err: io.ErrClosedPipe}))
	assert.Equal(t, ReasonOther, Reason(errors.New("boom")))

	bad := heatmiser.AppendCRC([]byte{0x81, 7, 0, 3, 1})
	bad[5] ^= 0xFF
	assert.Equal(t, ReasonCRC, Reason(heatmiser.VerifyResponse(heatmiser.Expectation{Source: 3, Dest: 0x81}, bad)))
}

// ============================================================
// Recorder Tests
// ============================================================

func TestRecorderTransactions(t *testing.T) {
	pusher := &fakePusher{}
	r := NewWithPusher(pusher, zerolog.Nop())

	r.ObserveRetry("read", 3, noResponse())
	r.ObserveTransaction("read", 3, 2, 150*time.Millisecond, nil)
	r.ObserveTransaction("write", 4, 3, 2*time.Second,
		&heatmiser.RetriesExhaustedError{Op: "write", Dest: 4, Attempts: 3, Last: noResponse()})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.transactions.WithLabelValues("read", ReasonOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.transactions.WithLabelValues("write", ReasonExhausted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.retries.WithLabelValues("read", ReasonNoResponse)))

	stats := r.Statistics()
	assert.Equal(t, uint64(2), stats.Transactions)
	assert.Equal(t, uint64(1), stats.Succeeded)
	assert.Equal(t, uint64(1), stats.Failed)
	assert.Equal(t, uint64(1), stats.Retries)
	assert.Equal(t, uint64(2), stats.NoResponse)

	assert.Contains(t, pusher.names, "transaction")
	assert.Contains(t, pusher.names, "transaction.duration")
	assert.Contains(t, pusher.names, "retry")
	assert.Contains(t, pusher.tags[0], "reason:no_response")
}

func TestRecorderFieldsAndPolls(t *testing.T) {
	r := NewWithPusher(nil, zerolog.Nop())

	r.Field("hall", "airtemp", 20.5)
	r.Poll("hall", nil)
	r.Poll("attic", errors.New("no response"))

	assert.Equal(t, 20.5, testutil.ToFloat64(r.fields.WithLabelValues("hall", "airtemp")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.polls.WithLabelValues("attic", "error")))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `heatmiser_field_value{device="hall",field="airtemp"} 20.5`)
	assert.Contains(t, body, "heatmiser_polls_total")

	assert.NoError(t, r.Close())
}

func TestRecorderPushFailureIsLogged(t *testing.T) {
	pusher := &fakePusher{err: errors.New("agent down")}
	var buf strings.Builder
	r := NewWithPusher(pusher, zerolog.New(&buf))

	r.Poll("hall", nil)
	assert.Contains(t, buf.String(), "Failed to emit metric")

	require.NoError(t, r.Close())
	assert.True(t, pusher.closed)
}

// ============================================================
// Statistics Tests
// ============================================================

func TestStatisticsSummary(t *testing.T) {
	start := time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)
	s := NewStatistics(start)

	s.Transaction("read", 100*time.Millisecond, nil, start)
	s.Transaction("broadcast", 10*time.Millisecond, nil, start)
	s.Retry(&heatmiser.TransportError{Op: "read", Err: io.EOF}, start)
	s.Transaction("read", 100*time.Millisecond, &heatmiser.TransportError{Op: "read", Err: io.EOF}, start)

	now := start.Add(10 * time.Second)
	out := s.Summary(now)
	assert.Contains(t, out, "Transactions:           3")
	assert.Contains(t, out, "Broadcasts:             1")
	assert.Contains(t, out, "Serial Faults:        2")
	assert.InDelta(t, 0.3, s.TransactionRate, 1e-9)
	assert.InDelta(t, 0.1, s.ErrorRate, 1e-9)

	s.Reset(now)
	assert.Zero(t, s.Transactions)
	assert.Equal(t, now, s.StartTime)
}
