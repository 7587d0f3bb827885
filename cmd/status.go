// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Thermoquad/heatmiser/pkg/device"
	"github.com/Thermoquad/heatmiser/pkg/thermostat"
)

var statusCmd = &cobra.Command{
	Use:   "status [device...]",
	Short: "Show the heating state of thermostats",
	Long: `Read the state fields of each thermostat and describe what it is doing,
for example "set to 21 until 22:00" or "frost protection at 12".

Without arguments every configured thermostat is shown. A failing device
is reported and the others are still read.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

var stateColors = map[thermostat.State]lipgloss.Color{
	thermostat.StateOff:      lipgloss.Color("241"),
	thermostat.StateOffFrost: lipgloss.Color("12"),
	thermostat.StateFrost:    lipgloss.Color("14"),
	thermostat.StateSetpoint: lipgloss.Color("10"),
}

func runStatus(cmd *cobra.Command, args []string) error {
	s, err := openSession(nil)
	if err != nil {
		return err
	}
	defer s.Close()

	devices, err := s.devices(args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	styled := false
	if f, ok := out.(*os.File); ok {
		styled = term.IsTerminal(int(f.Fd()))
	}

	return forEach(devices, func(d *device.Device) error {
		status, err := d.StatusText()
		if err != nil {
			printStatusLine(out, d, "ERROR", err.Error(), styled, lipgloss.Color("9"))
			return err
		}
		printStatusLine(out, d, status.State.String(), status.Text, styled, stateColors[status.State])
		return nil
	})
}

func printStatusLine(w io.Writer, d *device.Device, state, text string, styled bool, color lipgloss.Color) {
	settings := d.Settings()
	name := settings.Name
	if settings.LongName != "" {
		name = fmt.Sprintf("%s (%s)", settings.Name, settings.LongName)
	}
	stateText := fmt.Sprintf("%-9s", state)
	if styled {
		name = lipgloss.NewStyle().Bold(true).Render(name)
		stateText = lipgloss.NewStyle().Foreground(color).Bold(true).Render(stateText)
	}
	fmt.Fprintf(w, "%s [%d %s]\n  %s %s\n", name, settings.Address, settings.Model, stateText, text)
}
