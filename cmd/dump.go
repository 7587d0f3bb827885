// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/heatmiser/internal/config"
	"github.com/Thermoquad/heatmiser/internal/snapshot"
	"github.com/Thermoquad/heatmiser/internal/store"
)

var (
	dumpFormat    string
	dumpOutput    string
	dumpFromStore bool
)

var dumpCmd = &cobra.Command{
	Use:   "dump <device>",
	Short: "Read a thermostat's whole DCB and print every field",
	Long: `Read the complete DCB of a thermostat in one read-all transaction and
print a snapshot of every field the model carries.

Formats:
  text  one line per field (default)
  json  indented JSON
  cbor  deterministic CBOR, as stored by the poll daemon

With --from-store the last snapshot saved by "heatmiser poll" is printed
instead, without touching the bus.`,
	Args: cobra.ExactArgs(1),
	RunE: runDump,
}

func init() {
	rootCmd.AddCommand(dumpCmd)
	dumpCmd.Flags().StringVarP(&dumpFormat, "format", "f", "text", "Output format (text, json, cbor)")
	dumpCmd.Flags().StringVarP(&dumpOutput, "output", "o", "", "Write to a file instead of stdout")
	dumpCmd.Flags().BoolVar(&dumpFromStore, "from-store", false, "Print the last stored snapshot")
}

func runDump(cmd *cobra.Command, args []string) error {
	switch dumpFormat {
	case "text", "json", "cbor":
	default:
		return fmt.Errorf("unknown format %q (use text, json or cbor)", dumpFormat)
	}

	var (
		snap snapshot.Snapshot
		err  error
	)
	if dumpFromStore {
		snap, err = storedSnapshot(args[0])
	} else {
		snap, err = liveSnapshot(args[0])
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if dumpOutput != "" {
		f, err := os.Create(dumpOutput)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", dumpOutput, err)
		}
		defer f.Close()
		out = f
	}
	return writeSnapshot(out, snap, dumpFormat)
}

func liveSnapshot(ref string) (snapshot.Snapshot, error) {
	s, err := openSession(nil)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	defer s.Close()

	d, err := s.device(ref)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	if err := d.ReadAll(); err != nil {
		return snapshot.Snapshot{}, err
	}
	return snapshot.Take(d, time.Now()), nil
}

func storedSnapshot(name string) (snapshot.Snapshot, error) {
	if configPath == "" {
		return snapshot.Snapshot{}, errors.New("--from-store needs --config with store.path")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	if cfg.Store.Path == "" {
		return snapshot.Snapshot{}, errors.New("store.path is not configured")
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	defer st.Close()
	return st.Snapshot(name)
}

func writeSnapshot(w io.Writer, snap snapshot.Snapshot, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	case "cbor":
		data, err := snapshot.Encode(snap)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}

	fmt.Fprintf(w, "%s  address %d  %s  %s mode\n", snap.Device, snap.Address, snap.Model, snap.Mode)
	fmt.Fprintf(w, "taken %s\n", snap.TakenAt.Format(time.RFC3339))
	fmt.Fprintf(w, "state %s: %s\n\n", snap.State, snap.Status)
	for _, f := range snap.Fields {
		fmt.Fprintf(w, "  %-18s %s\n", f.Name+":", f.Text)
	}
	return nil
}
