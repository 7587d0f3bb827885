// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/heatmiser/pkg/dcb"
	"github.com/Thermoquad/heatmiser/pkg/device"
)

var pingCount int

var pingCmd = &cobra.Command{
	Use:   "ping [device...]",
	Short: "Check that thermostats answer on the bus",
	Long: `Read the model field of each thermostat and report the round trip time.

Useful for checking wiring, addressing and baud rate. Use --log-level trace
to see every frame sent and received.

Exit codes:
  0 - every thermostat answered
  1 - at least one did not`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVarP(&pingCount, "count", "n", 1, "Pings per thermostat")
}

func runPing(cmd *cobra.Command, args []string) error {
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
	fmt.Fprintf(out, "%s\n\n", s.info)
	return forEach(devices, func(d *device.Device) error {
		for i := 0; i < pingCount; i++ {
			start := time.Now()
			v, err := pingOnce(d)
			if err != nil {
				fmt.Fprintf(out, "%-12s FAILED: %v\n", d.Name()+":", err)
				return err
			}
			fmt.Fprintf(out, "%-12s %s in %s\n", d.Name()+":", dcb.Model(v.Int()), time.Since(start).Round(time.Millisecond))
		}
		return nil
	})
}

func pingOnce(d *device.Device) (dcb.Value, error) {
	if err := d.Refresh(dcb.ModelNumber); err != nil {
		return dcb.Unknown, err
	}
	return d.Registry().Value(dcb.ModelNumber), nil
}
