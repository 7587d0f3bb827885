// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package metrics instruments bus traffic and polled readings. Every
// observation updates in-process Statistics, Prometheus collectors and,
// when configured, a DogStatsD client.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/heatmiser/pkg/heatmiser"
)

// Pusher is the subset of *statsd.Client the recorder uses.
type Pusher interface {
	Incr(name string, tags []string, rate float64) error
	Gauge(name string, value float64, tags []string, rate float64) error
	Timing(name string, value time.Duration, tags []string, rate float64) error
	Close() error
}

// Config configures a Recorder.
type Config struct {
	StatsdAddr string
	Namespace  string
	Tags       []string
}

// Recorder implements heatmiser.Observer. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	stats  *Statistics
	pusher Pusher
	logger zerolog.Logger
	now    func() time.Time

	registry     *prometheus.Registry
	transactions *prometheus.CounterVec
	retries      *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	fields       *prometheus.GaugeVec
	polls        *prometheus.CounterVec
}

var _ heatmiser.Observer = (*Recorder)(nil)

// New creates a recorder. A DogStatsD client is created when cfg names an
// agent address; failure to create it is logged and metrics carry on
// without it.
func New(cfg Config, logger zerolog.Logger) *Recorder {
	var pusher Pusher
	if cfg.StatsdAddr != "" {
		client, err := statsd.New(cfg.StatsdAddr,
			statsd.WithNamespace(cfg.Namespace),
			statsd.WithTags(cfg.Tags))
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to create DogStatsD client")
		} else {
			pusher = client
			logger.Info().
				Str("addr", cfg.StatsdAddr).
				Str("namespace", cfg.Namespace).
				Strs("tags", cfg.Tags).
				Msg("Datadog metrics initialized")
		}
	}
	return NewWithPusher(pusher, logger)
}

// NewWithPusher creates a recorder pushing to p, which may be nil.
func NewWithPusher(p Pusher, logger zerolog.Logger) *Recorder {
	r := &Recorder{
		stats:    NewStatistics(time.Now()),
		pusher:   p,
		logger:   logger,
		now:      time.Now,
		registry: prometheus.NewRegistry(),
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "heatmiser_transactions_total",
			Help: "Bus transactions by operation and outcome.",
		}, []string{"op", "result"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "heatmiser_retries_total",
			Help: "Retried transaction attempts by operation and reason.",
		}, []string{"op", "reason"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "heatmiser_transaction_seconds",
			Help:    "Bus transaction duration including retries.",
			Buckets: []float64{0.05, 0.1, 0.2, 0.4, 0.8, 1.6, 3.2},
		}, []string{"op"}),
		fields: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "heatmiser_field_value",
			Help: "Last polled numeric field value.",
		}, []string{"device", "field"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "heatmiser_polls_total",
			Help: "Device poll cycles by outcome.",
		}, []string{"device", "result"}),
	}
	r.registry.MustRegister(r.transactions, r.retries, r.latency, r.fields, r.polls)
	return r
}

// ObserveTransaction implements heatmiser.Observer.
func (r *Recorder) ObserveTransaction(op string, dest uint8, attempts int, elapsed time.Duration, err error) {
	result := Reason(err)

	r.mu.Lock()
	r.stats.Transaction(op, elapsed, err, r.now())
	r.mu.Unlock()

	r.transactions.WithLabelValues(op, result).Inc()
	r.latency.WithLabelValues(op).Observe(elapsed.Seconds())

	tags := []string{"op:" + op, "dest:" + strconv.Itoa(int(dest)), "result:" + result}
	r.push("timing", func(p Pusher) error { return p.Timing("transaction.duration", elapsed, tags, 1) })
	r.push("incr", func(p Pusher) error { return p.Incr("transaction", tags, 1) })
}

// ObserveRetry implements heatmiser.Observer.
func (r *Recorder) ObserveRetry(op string, dest uint8, err error) {
	reason := Reason(err)

	r.mu.Lock()
	r.stats.Retry(err, r.now())
	r.mu.Unlock()

	r.retries.WithLabelValues(op, reason).Inc()
	tags := []string{"op:" + op, "dest:" + strconv.Itoa(int(dest)), "reason:" + reason}
	r.push("incr", func(p Pusher) error { return p.Incr("retry", tags, 1) })
}

// Field records a polled numeric value.
func (r *Recorder) Field(device, field string, value float64) {
	r.fields.WithLabelValues(device, field).Set(value)
	tags := []string{"device:" + device, "field:" + field}
	r.push("gauge", func(p Pusher) error { return p.Gauge("field."+field, value, tags, 1) })
}

// Poll records the outcome of one device poll cycle.
func (r *Recorder) Poll(device string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.polls.WithLabelValues(device, result).Inc()
	tags := []string{"device:" + device, "result:" + result}
	r.push("incr", func(p Pusher) error { return p.Incr("poll", tags, 1) })
}

// Statistics returns a copy of the bus statistics.
func (r *Recorder) Statistics() Statistics {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := *r.stats
	s.CalculateRates(r.now())
	return s
}

// Summary returns the formatted bus statistics.
func (r *Recorder) Summary() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats.Summary(r.now())
}

// Handler serves the Prometheus metrics.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry exposes the Prometheus registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Close flushes and closes the DogStatsD client.
func (r *Recorder) Close() error {
	if r.pusher == nil {
		return nil
	}
	return r.pusher.Close()
}

func (r *Recorder) push(kind string, fn func(p Pusher) error) {
	if r.pusher == nil {
		return
	}
	if err := fn(r.pusher); err != nil {
		r.logger.Warn().Err(err).Str("kind", kind).Msg("Failed to emit metric")
	}
}
