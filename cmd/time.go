// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/heatmiser/pkg/device"
)

var timeCmd = &cobra.Command{
	Use:   "time",
	Short: "Check or set thermostat clocks",
}

var timeCheckCmd = &cobra.Command{
	Use:   "check [device...]",
	Short: "Compare thermostat clocks with the host clock",
	Long: `Read each thermostat's clock and report how far it is from the host clock.

A drift beyond the tolerance is an error, unless the device has
auto_correct_time set in the configuration, in which case the clock is set.
A drift of more than a day is never corrected, since the device and host
then disagree about the weekday.`,
	RunE: runTimeCheck,
}

var timeSyncCmd = &cobra.Command{
	Use:   "sync [device...]",
	Short: "Set thermostat clocks to the host clock",
	RunE:  runTimeSync,
}

func init() {
	rootCmd.AddCommand(timeCmd)
	timeCmd.AddCommand(timeCheckCmd, timeSyncCmd)
}

func runTimeCheck(cmd *cobra.Command, args []string) error {
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
	return forEach(devices, func(d *device.Device) error {
		drift, err := d.CheckTime()
		if err != nil {
			fmt.Fprintf(out, "%-12s %v\n", d.Name()+":", err)
			return err
		}
		fmt.Fprintf(out, "%-12s drift %s\n", d.Name()+":", drift)
		return nil
	})
}

func runTimeSync(cmd *cobra.Command, args []string) error {
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
	return forEach(devices, func(d *device.Device) error {
		if err := d.SyncTime(); err != nil {
			return err
		}
		fmt.Fprintf(out, "%-12s clock set\n", d.Name()+":")
		return nil
	})
}
