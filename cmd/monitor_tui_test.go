// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/heatmiser/internal/metrics"
	"github.com/Thermoquad/heatmiser/internal/publish"
)

// ============================================================
// Test Helpers
// ============================================================

type fakeStats struct {
	stats metrics.Statistics
}

func (f fakeStats) Statistics() metrics.Statistics { return f.stats }

func newTestMonitor() (monitorModel, chan struct{}, chan setpointRequest) {
	refresh := make(chan struct{}, 1)
	setpoint := make(chan setpointRequest, 1)
	stats := fakeStats{stats: metrics.Statistics{Transactions: 4, Succeeded: 3, Failed: 1}}
	m := initialMonitorModel("Serial: /dev/null @ 4800 baud", []string{"hall", "attic"}, stats, refresh, setpoint)
	return m, refresh, setpoint
}

func update(t *testing.T, m monitorModel, msg tea.Msg) (monitorModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	mm, ok := next.(monitorModel)
	require.True(t, ok)
	return mm, cmd
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// ============================================================
// Formatting Tests
// ============================================================

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0 seconds"},
		{time.Second, "1 second"},
		{90 * time.Second, "1 minute and 30 seconds"},
		{2*time.Hour + 1*time.Minute + 5*time.Second, "2 hours, 1 minute and 5 seconds"},
		{49 * time.Hour, "2 days and 1 hour"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.in), tt.in.String())
	}
}

func TestRowsBeforeAndAfterPoll(t *testing.T) {
	m, _, _ := newTestMonitor()
	rows := m.rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "waiting for first poll", rows[0][3])

	m, _ = update(t, m, stateMsg(publish.State{
		Name: "hall", Address: 3, State: "SETPOINT", Status: "set to 21 until 22:00",
		Fields: map[string]float64{"airtemp": 20.46, "heatingdemand": 1},
	}))
	rows = m.rows()
	assert.Equal(t, []string{"hall", "3", "SETPOINT", "set to 21 until 22:00", "20.5", "on", ""}, []string(rows[0]))
	assert.Equal(t, "waiting for first poll", rows[1][3])
}

// ============================================================
// Event Tests
// ============================================================

func TestStateChangesAreLogged(t *testing.T) {
	m, _, _ := newTestMonitor()
	m, _ = update(t, m, stateMsg(publish.State{Name: "hall", State: "SETPOINT"}))
	assert.Empty(t, m.errorLog)

	m, _ = update(t, m, stateMsg(publish.State{Name: "hall", State: "FROST"}))
	require.Len(t, m.errorLog, 1)
	assert.Equal(t, "hall: SETPOINT -> FROST", m.errorLog[0].message)

	m, _ = update(t, m, stateMsg(publish.State{Name: "attic", Error: "no response"}))
	require.Len(t, m.errorLog, 2)
	assert.True(t, m.errorLog[1].isError)

	// Same error again is not repeated
	m, _ = update(t, m, stateMsg(publish.State{Name: "attic", Error: "no response"}))
	assert.Len(t, m.errorLog, 2)
}

func TestTickReadsStatistics(t *testing.T) {
	m, _, _ := newTestMonitor()
	m, cmd := update(t, m, monitorTickMsg(time.Now()))
	assert.NotNil(t, cmd)
	assert.Equal(t, uint64(4), m.current.Transactions)
}

func TestLogTrimmed(t *testing.T) {
	m, _, _ := newTestMonitor()
	for i := 0; i < m.maxLogEntries+10; i++ {
		m, _ = update(t, m, logMsg("WRN retry"))
	}
	assert.Len(t, m.errorLog, m.maxLogEntries)
	assert.True(t, m.errorLog[0].isError)
}

// ============================================================
// Key Tests
// ============================================================

func TestRefreshKey(t *testing.T) {
	m, refresh, _ := newTestMonitor()
	_, _ = update(t, m, key("r"))
	select {
	case <-refresh:
	default:
		t.Fatal("refresh not requested")
	}
}

func TestSetpointEntry(t *testing.T) {
	m, _, setpoint := newTestMonitor()

	m, _ = update(t, m, key("s"))
	require.True(t, m.editing)
	for _, r := range "19" {
		m, _ = update(t, m, key(string(r)))
	}
	m, cmd := update(t, m, key("enter"))
	assert.False(t, m.editing)
	require.NotNil(t, cmd)

	assert.Nil(t, cmd())
	req := <-setpoint
	assert.Equal(t, setpointRequest{device: "hall", temp: 19}, req)

	m, _ = update(t, m, setpointResultMsg{device: "hall", temp: 19, err: errors.New("no ack")})
	last := m.errorLog[len(m.errorLog)-1]
	assert.True(t, last.isError)
	assert.Contains(t, last.message, "no ack")
}

func TestSetpointRejectsBadInput(t *testing.T) {
	m, _, setpoint := newTestMonitor()

	m, _ = update(t, m, key("s"))
	m, _ = update(t, m, key("x"))
	m, cmd := update(t, m, key("enter"))
	assert.Nil(t, cmd)
	assert.Empty(t, setpoint)
	assert.Contains(t, m.errorLog[len(m.errorLog)-1].message, "Invalid temperature")
}

func TestEscapeCancelsEntry(t *testing.T) {
	m, _, _ := newTestMonitor()
	m, _ = update(t, m, key("s"))
	m, _ = update(t, m, key("esc"))
	assert.False(t, m.editing)

	_, cmd := update(t, m, key("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
