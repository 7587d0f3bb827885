// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/heatmiser/internal/metrics"
	"github.com/Thermoquad/heatmiser/internal/poller"
	"github.com/Thermoquad/heatmiser/internal/publish"
	"github.com/Thermoquad/heatmiser/internal/store"
	"github.com/Thermoquad/heatmiser/pkg/device"
)

var (
	pollInterval      time.Duration
	pollMetricsListen string
	pollOnce          bool
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Poll every thermostat on a fixed interval",
	Long: `Run as a daemon, reading every configured thermostat on each poll cycle.

Each cycle reads the thermostat state fields plus poll.fields, then:
  - records readings and state transitions in SQLite (store.path)
  - publishes a JSON state document per device over MQTT (mqtt.broker)
  - pushes DogStatsD metrics (metrics.statsd_addr)
  - updates Prometheus gauges served on metrics.prometheus_listen

A thermostat that fails to answer is reported and skipped; the others are
still polled. Stop with Ctrl+C; bus statistics are logged on exit.`,
	RunE: runPoll,
}

func init() {
	rootCmd.AddCommand(pollCmd)
	pollCmd.Flags().DurationVar(&pollInterval, "interval", 0, "Poll interval (overrides poll.interval_ms)")
	pollCmd.Flags().StringVar(&pollMetricsListen, "metrics-listen", "", "Prometheus listen address (overrides metrics.prometheus_listen)")
	pollCmd.Flags().BoolVar(&pollOnce, "once", false, "Poll once and exit")
}

func runPoll(cmd *cobra.Command, args []string) error {
	// Metrics first, so the bus client can report to them
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rec := metrics.New(metrics.Config{
		StatsdAddr: cfg.Metrics.StatsdAddr,
		Namespace:  cfg.Metrics.Namespace,
		Tags:       cfg.Metrics.Tags,
	}, logger)
	defer rec.Close()

	s, err := newSession(cfg, rec)
	if err != nil {
		return err
	}
	defer s.Close()

	fields, err := s.cfg.Poll.FieldIDs()
	if err != nil {
		return err
	}
	interval := s.cfg.Poll.Interval()
	if pollInterval > 0 {
		interval = pollInterval
	}

	sinks := poller.Sinks{Metrics: rec}

	if s.cfg.Store.Path != "" {
		st, err := store.Open(s.cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()
		sinks.History = st
		logger.Info().Str("path", s.cfg.Store.Path).Msg("History store opened")
	}

	if s.cfg.MQTT.Broker != "" {
		pub := publish.Connect(publish.Config{
			Broker:      s.cfg.MQTT.Broker,
			TopicPrefix: s.cfg.MQTT.TopicPrefix,
			Username:    s.cfg.MQTT.Username,
			Password:    s.cfg.MQTT.Password,
			Retain:      s.cfg.MQTT.Retain,
		}, logger)
		defer pub.Close()
		sinks.Publisher = pub
	}

	listen := s.cfg.Metrics.PrometheusListen
	if pollMetricsListen != "" {
		listen = pollMetricsListen
	}
	if listen != "" {
		srv := serveMetrics(listen, rec)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn().Err(err).Msg("metrics server shutdown")
			}
		}()
	}

	p, err := poller.New(poller.Config{
		Interval:       interval,
		Fields:         fields,
		TimeCheckEvery: s.cfg.Poll.TimeCheckEvery,
	}, s.network, sinks, logger)
	if err != nil {
		return err
	}

	if pollOnce {
		results := p.PollOnce()
		fmt.Fprint(cmd.OutOrStdout(), rec.Summary())
		return device.Failures(results)
	}

	logger.Info().
		Str("connection", s.info).
		Int("devices", len(s.network.Devices())).
		Dur("interval", interval).
		Msg("Polling started")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	p.Run(ctx)

	logger.Info().Msg("Polling stopped")
	fmt.Fprint(cmd.OutOrStdout(), rec.Summary())
	return nil
}

func serveMetrics(addr string, rec *metrics.Recorder) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", rec.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()
	logger.Info().Str("addr", addr).Msg("Prometheus metrics listening")
	return srv
}
