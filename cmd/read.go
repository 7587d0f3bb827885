// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/heatmiser/pkg/dcb"
)

var readRefresh bool

var readCmd = &cobra.Command{
	Use:   "read <device> <field...>",
	Short: "Read fields from a thermostat",
	Long: `Read one or more fields from a thermostat and print their values.

Fields are read in as few bus transactions as the planner can manage, or
with a single read-all when that is cheaper. Fields the model does not
carry print as "absent"; sensors that are not fitted print as "unknown".

Field names: ` + strings.Join(dcb.Names(), ", "),
	Args: cobra.MinimumNArgs(2),
	RunE: runRead,
}

func init() {
	rootCmd.AddCommand(readCmd)
	readCmd.Flags().BoolVar(&readRefresh, "refresh", true, "Read from the device even if cached")
}

func lookupFields(names []string) ([]dcb.FieldID, error) {
	ids := make([]dcb.FieldID, 0, len(names))
	for _, name := range names {
		id, ok := dcb.Lookup(strings.ToLower(name))
		if !ok {
			return nil, fmt.Errorf("%w: %q", dcb.ErrUnknownField, name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func runRead(cmd *cobra.Command, args []string) error {
	ids, err := lookupFields(args[1:])
	if err != nil {
		return err
	}

	s, err := openSession(nil)
	if err != nil {
		return err
	}
	defer s.Close()

	d, err := s.device(args[0])
	if err != nil {
		return err
	}

	if readRefresh {
		err = d.Refresh(ids...)
	} else {
		err = d.ReadFields(ids...)
	}
	if err != nil {
		return err
	}

	reg := d.Registry()
	out := cmd.OutOrStdout()
	for _, id := range ids {
		text := "absent"
		if reg.Present(id) {
			text = reg.Value(id).Format(id.Field().Kind())
		}
		fmt.Fprintf(out, "%-18s %s\n", id.String()+":", text)
	}
	return nil
}
