// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/heatmiser/internal/metrics"
	"github.com/Thermoquad/heatmiser/internal/poller"
	"github.com/Thermoquad/heatmiser/internal/publish"
	"github.com/Thermoquad/heatmiser/pkg/dcb"
	"github.com/Thermoquad/heatmiser/pkg/device"
)

var monitorInterval time.Duration

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive TUI for watching and adjusting thermostats",
	Long: `Watch every configured thermostat in a terminal UI.

The thermostats are polled on a fixed interval. The table shows each
device's state and air temperature; the statistics box tracks bus
transactions, retries and errors.

Keys:
  up/down  select a thermostat
  s        set the selected thermostat's target temperature
  r        poll now
  q        quit`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", 30*time.Second, "Poll interval")
}

//////////////////////////////////////////////////////////////
// Worker
//////////////////////////////////////////////////////////////

// setpointRequest asks the worker to write a new target temperature.
type setpointRequest struct {
	device string
	temp   float64
}

// monitorWorker owns the bus. Every device call happens on its goroutine.
type monitorWorker struct {
	network  *device.Network
	poller   *poller.Poller
	refresh  chan struct{}
	setpoint chan setpointRequest
	p        *tea.Program
}

func (w *monitorWorker) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		results := w.poller.PollOnce()
		w.p.Send(pollDoneMsg{at: time.Now(), failed: len(results) - countOK(results)})

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.refresh:
		case req := <-w.setpoint:
			w.p.Send(w.applySetpoint(req))
		}
	}
}

func (w *monitorWorker) applySetpoint(req setpointRequest) setpointResultMsg {
	msg := setpointResultMsg{device: req.device, temp: req.temp}
	d, ok := w.network.Device(req.device)
	if !ok {
		msg.err = fmt.Errorf("unknown device %q", req.device)
		return msg
	}
	msg.err = d.SetField(dcb.SetRoomTemp, dcb.Number(req.temp))
	return msg
}

func countOK(results []device.Result) int {
	n := 0
	for _, r := range results {
		if r.Err == nil {
			n++
		}
	}
	return n
}

// tuiPublisher forwards polled state to the TUI.
type tuiPublisher struct {
	p *tea.Program
}

func (t tuiPublisher) PublishState(s publish.State) error {
	t.p.Send(stateMsg(s))
	return nil
}

func (t tuiPublisher) PublishField(device, field, text string) error {
	return nil
}

// logForwarder turns log lines into TUI event log entries.
type logForwarder struct {
	p *tea.Program
}

func (f *logForwarder) Write(b []byte) (int, error) {
	if f.p != nil {
		f.p.Send(logMsg(strings.TrimSpace(string(b))))
	}
	return len(b), nil
}

//////////////////////////////////////////////////////////////
// Command
//////////////////////////////////////////////////////////////

func runMonitor(cmd *cobra.Command, args []string) error {
	// The TUI owns the terminal, so logs go to the event log
	fwd := &logForwarder{}
	logger = zerolog.New(zerolog.ConsoleWriter{
		Out:          fwd,
		NoColor:      true,
		PartsExclude: []string{zerolog.TimestampFieldName},
	}).Level(logger.GetLevel())

	rec := metrics.NewWithPusher(nil, logger)
	s, err := openSession(rec)
	if err != nil {
		return err
	}
	defer s.Close()

	fields, err := s.cfg.Poll.FieldIDs()
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		fields = []dcb.FieldID{dcb.AirTemp, dcb.HeatingDemand}
	}

	w := &monitorWorker{
		network:  s.network,
		refresh:  make(chan struct{}, 1),
		setpoint: make(chan setpointRequest, 1),
	}

	names := make([]string, 0, len(s.network.Devices()))
	for _, d := range s.network.Devices() {
		names = append(names, d.Name())
	}
	m := initialMonitorModel(s.info, names, rec, w.refresh, w.setpoint)

	p := tea.NewProgram(m, tea.WithAltScreen())
	w.p = p
	fwd.p = p

	w.poller, err = poller.New(poller.Config{
		Interval:       monitorInterval,
		Fields:         fields,
		TimeCheckEvery: s.cfg.Poll.TimeCheckEvery,
	}, s.network, poller.Sinks{Publisher: tuiPublisher{p: p}, Metrics: rec}, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.run(ctx, monitorInterval)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}
