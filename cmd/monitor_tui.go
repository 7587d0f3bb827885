// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/heatmiser/internal/metrics"
	"github.com/Thermoquad/heatmiser/internal/publish"
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// logEntry is one line of the event log
type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// statsSource is the part of metrics.Recorder the TUI reads.
type statsSource interface {
	Statistics() metrics.Statistics
}

// monitorModel is the Bubble Tea model for the monitor TUI
type monitorModel struct {
	connInfo string
	started  time.Time

	// Devices in bus order and their last polled state
	names  []string
	states map[string]publish.State
	table  table.Model

	// Setpoint entry
	input   textinput.Model
	editing bool

	stats    statsSource
	current  metrics.Statistics
	lastPoll time.Time

	errorLog      []logEntry
	maxLogEntries int

	refresh  chan<- struct{}
	setpoint chan<- setpointRequest

	width    int
	height   int
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type monitorTickMsg time.Time

type stateMsg publish.State

type logMsg string

type pollDoneMsg struct {
	at     time.Time
	failed int
}

type setpointResultMsg struct {
	device string
	temp   float64
	err    error
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialMonitorModel(connInfo string, names []string, stats statsSource,
	refresh chan<- struct{}, setpoint chan<- setpointRequest) monitorModel {
	ti := textinput.New()
	ti.Placeholder = "21"
	ti.CharLimit = 4
	ti.Width = 6

	t := table.New(
		table.WithColumns(monitorColumns()),
		table.WithFocused(true),
		table.WithHeight(len(names)+1),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("12"))
	t.SetStyles(styles)

	m := monitorModel{
		connInfo:      connInfo,
		started:       time.Now(),
		names:         names,
		states:        make(map[string]publish.State),
		table:         t,
		input:         ti,
		stats:         stats,
		errorLog:      make([]logEntry, 0),
		maxLogEntries: 100,
		refresh:       refresh,
		setpoint:      setpoint,
		width:         80,
		height:        24,
	}
	m.table.SetRows(m.rows())
	return m
}

func monitorColumns() []table.Column {
	return []table.Column{
		{Title: "Device", Width: 14},
		{Title: "Addr", Width: 4},
		{Title: "State", Width: 9},
		{Title: "Status", Width: 30},
		{Title: "Air", Width: 6},
		{Title: "Demand", Width: 6},
		{Title: "Error", Width: 24},
	}
}

// rows renders the device table. Devices not yet polled show dashes.
func (m monitorModel) rows() []table.Row {
	rows := make([]table.Row, 0, len(m.names))
	for _, name := range m.names {
		st, ok := m.states[name]
		if !ok {
			rows = append(rows, table.Row{name, "-", "-", "waiting for first poll", "-", "-", ""})
			continue
		}
		rows = append(rows, table.Row{
			name,
			strconv.Itoa(int(st.Address)),
			orDash(st.State),
			orDash(st.Status),
			fieldText(st.Fields, "airtemp", "%.1f"),
			demandText(st.Fields),
			st.Error,
		})
	}
	return rows
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func fieldText(fields map[string]float64, name, format string) string {
	v, ok := fields[name]
	if !ok {
		return "-"
	}
	return fmt.Sprintf(format, v)
}

func demandText(fields map[string]float64) string {
	v, ok := fields["heatingdemand"]
	switch {
	case !ok:
		return "-"
	case v != 0:
		return "on"
	default:
		return "off"
	}
}

// formatDuration formats d as a human-friendly string such as
// "1 hour, 2 minutes and 3 seconds".
func formatDuration(d time.Duration) string {
	seconds := int64(d / time.Second)
	if seconds <= 0 {
		return "0 seconds"
	}

	units := []struct {
		name string
		size int64
	}{
		{"day", 24 * 3600},
		{"hour", 3600},
		{"minute", 60},
		{"second", 1},
	}
	var parts []string
	for _, u := range units {
		n := seconds / u.size
		seconds %= u.size
		if n == 0 {
			continue
		}
		if n == 1 {
			parts = append(parts, "1 "+u.name)
		} else {
			parts = append(parts, fmt.Sprintf("%d %ss", n, u.name))
		}
	}

	if len(parts) == 1 {
		return parts[0]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(monitorTickCmd(), textinput.Blink)
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case monitorTickMsg:
		if m.stats != nil {
			m.current = m.stats.Statistics()
		}
		return m, monitorTickCmd()

	case stateMsg:
		prev, seen := m.states[msg.Name]
		m.states[msg.Name] = publish.State(msg)
		switch {
		case msg.Error != "" && prev.Error != msg.Error:
			m.addLogEntry(fmt.Sprintf("%s: %s", msg.Name, msg.Error), true)
		case msg.Error == "" && seen && prev.State != msg.State && msg.State != "":
			m.addLogEntry(fmt.Sprintf("%s: %s -> %s", msg.Name, orDash(prev.State), msg.State), false)
		}
		m.table.SetRows(m.rows())

	case pollDoneMsg:
		m.lastPoll = msg.at
		if m.stats != nil {
			m.current = m.stats.Statistics()
		}

	case setpointResultMsg:
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("%s: set %g failed: %v", msg.device, msg.temp, msg.err), true)
		} else {
			m.addLogEntry(fmt.Sprintf("%s: target set to %g", msg.device, msg.temp), false)
		}

	case logMsg:
		text := string(msg)
		m.addLogEntry(text, strings.Contains(text, "WRN") || strings.Contains(text, "ERR"))
	}

	if m.editing {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m monitorModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.editing {
		switch msg.String() {
		case "esc":
			m.editing = false
			m.input.Blur()
			m.input.Reset()
			return m, nil
		case "enter":
			return m.submitSetpoint()
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "r":
		select {
		case m.refresh <- struct{}{}:
			m.addLogEntry("Poll requested", false)
		default:
		}
		return m, nil

	case "s":
		if m.selected() == "" {
			return m, nil
		}
		m.editing = true
		cmd := m.input.Focus()
		return m, cmd
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m monitorModel) selected() string {
	row := m.table.SelectedRow()
	if len(row) == 0 {
		return ""
	}
	return row[0]
}

func (m monitorModel) submitSetpoint() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.input.Value())
	m.editing = false
	m.input.Blur()
	m.input.Reset()

	temp, err := strconv.ParseFloat(value, 64)
	if err != nil {
		m.addLogEntry(fmt.Sprintf("Invalid temperature %q", value), true)
		return m, nil
	}

	req := setpointRequest{device: m.selected(), temp: temp}
	m.addLogEntry(fmt.Sprintf("%s: setting target to %g", req.device, temp), false)
	ch := m.setpoint
	return m, func() tea.Msg {
		ch <- req
		return nil
	}
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	m.errorLog = append(m.errorLog, logEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	// Keep only last N entries
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("HEATMISER - MONITOR"))
	s.WriteString("\n")
	lastPoll := "never"
	if !m.lastPoll.IsZero() {
		lastPoll = m.lastPoll.Format("15:04:05")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Up %s | Last poll %s | s: set target  r: poll  q: quit",
		m.connInfo, formatDuration(time.Since(m.started)), lastPoll)))
	s.WriteString("\n\n")

	// Devices
	s.WriteString(boxStyle.Render(m.table.View()))
	s.WriteString("\n")
	if m.editing {
		s.WriteString(statsLabelStyle.Render(fmt.Sprintf("Target for %s: ", m.selected())))
		s.WriteString(m.input.View())
		s.WriteString(headerStyle.Render("  (enter to write, esc to cancel)"))
		s.WriteString("\n")
	}
	s.WriteString("\n")

	// Statistics
	st := m.current
	var okPercent float64
	if st.Transactions > 0 {
		okPercent = float64(st.Succeeded) * 100.0 / float64(st.Transactions)
	}
	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Transactions:"), statsValueStyle.Render(fmt.Sprintf("%d", st.Transactions)),
		statsLabelStyle.Render("OK:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", st.Succeeded, okPercent)),
		statsLabelStyle.Render("Failed:"), errorStyle.Render(fmt.Sprintf("%d", st.Failed)),
		statsLabelStyle.Render("Retries:"), warningStyle.Render(fmt.Sprintf("%d", st.Retries)),
	))
	if st.NoResponse > 0 || st.CRCErrors > 0 || st.TransportErrors > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			statsLabelStyle.Render("No response:"), errorStyle.Render(fmt.Sprintf("%d", st.NoResponse)),
			statsLabelStyle.Render("CRC:"), errorStyle.Render(fmt.Sprintf("%d", st.CRCErrors)),
			statsLabelStyle.Render("Serial:"), errorStyle.Render(fmt.Sprintf("%d", st.TransportErrors)),
		))
	}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.2f tx/s", st.TransactionRate)),
		statsLabelStyle.Render("Error Rate:"), func() string {
			if st.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.2f err/s", st.ErrorRate))
			}
			return statsValueStyle.Render(fmt.Sprintf("%.2f err/s", st.ErrorRate))
		}(),
	))
	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - len(m.names) - 16
	if logHeight < 5 {
		logHeight = 5
	}
	startIdx := len(m.errorLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	logContent := strings.Builder{}
	if len(m.errorLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.errorLog); i++ {
			entry := m.errorLog[i]
			timestamp := entry.timestamp.Format("15:04:05")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	width := m.width - 4
	if width < 20 {
		width = 20
	}
	s.WriteString(boxStyle.Width(width).Render(logContent.String()))

	return s.String()
}
