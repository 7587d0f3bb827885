// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/heatmiser/pkg/device"
)

var setCmd = &cobra.Command{
	Use:   "set <device|all> <field> <value> [<field> <value>...]",
	Short: "Write fields on a thermostat",
	Long: `Write one or more fields on a thermostat.

Values are checked against the field's allowed range before anything is
sent. Writes to adjacent fields are merged into one transaction.

With "all" as the device, a single field is broadcast to every thermostat
on the bus. Broadcasts get no acknowledgement.

Value formats:
  number:  setroomtemp 21
  clock:   currenttime now, currenttime "Wed 10:05"
  heat:    mon_heat "07:00 21, 09:00 12, 17:00 21, 22:00 12"
  water:   mon_water "06:00, 08:00"`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) < 3 || len(args)%2 != 1 {
			return fmt.Errorf("expected a device and field/value pairs, got %d arguments", len(args))
		}
		return nil
	},
	RunE: runSet,
}

func init() {
	rootCmd.AddCommand(setCmd)
}

func runSet(cmd *cobra.Command, args []string) error {
	now := time.Now()
	var writes []device.FieldWrite
	for i := 1; i < len(args); i += 2 {
		ids, err := lookupFields(args[i : i+1])
		if err != nil {
			return err
		}
		v, err := parseValue(ids[0], args[i+1], now)
		if err != nil {
			return err
		}
		writes = append(writes, device.FieldWrite{Field: ids[0], Value: v})
	}

	s, err := openSession(nil)
	if err != nil {
		return err
	}
	defer s.Close()

	if args[0] == "all" {
		if len(writes) != 1 {
			return fmt.Errorf("broadcast takes one field, got %d", len(writes))
		}
		if err := s.network.Broadcast(writes[0].Field, writes[0].Value); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "broadcast %s to %d devices\n", writes[0].Field, len(s.network.Devices()))
		return nil
	}

	d, err := s.device(args[0])
	if err != nil {
		return err
	}
	if err := d.SetFields(writes...); err != nil {
		return err
	}
	for _, w := range writes {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s = %s\n", d.Name(), w.Field, w.Value.Format(w.Field.Field().Kind()))
	}
	return nil
}
