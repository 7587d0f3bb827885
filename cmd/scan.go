// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/heatmiser/internal/config"
	"github.com/Thermoquad/heatmiser/pkg/dcb"
	"github.com/Thermoquad/heatmiser/pkg/heatmiser"
	"github.com/Thermoquad/heatmiser/pkg/schedule"
)

// scanLength covers the header fields up to and including programmode,
// which sit at the same DCB offsets on every model.
const scanLength = 17

var (
	scanFrom uint8
	scanTo   uint8
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Find thermostats on the bus",
	Long: `Probe each slave address in turn and report the thermostats that answer,
with their model and program mode.

Addresses that do not answer are skipped after one attempt. The devices
found are printed as a devices section ready for the configuration file.

Exit codes:
  0 - at least one thermostat found
  1 - none found, or the port could not be opened`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().Uint8Var(&scanFrom, "from", heatmiser.SlaveAddressMin, "First address to probe")
	scanCmd.Flags().Uint8Var(&scanTo, "to", heatmiser.SlaveAddressMax, "Last address to probe")
}

func runScan(cmd *cobra.Command, args []string) error {
	if !heatmiser.IsSlaveAddress(scanFrom) || !heatmiser.IsSlaveAddress(scanTo) || scanFrom > scanTo {
		return fmt.Errorf("%w: scan range %d-%d", heatmiser.ErrInvalidAddress, scanFrom, scanTo)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	busCfg := cfg.Serial.ClientConfig(logger, nil)
	busCfg.ReadAttempts = 1
	client, err := heatmiser.NewClient(SerialOpener(cfg.Serial.Port, cfg.Serial.Baud), busCfg)
	if err != nil {
		return err
	}
	defer client.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Scanning %d-%d on %s @ %d baud\n\n", scanFrom, scanTo, cfg.Serial.Port, cfg.Serial.Baud)

	var found []config.DeviceConfig
	for addr := int(scanFrom); addr <= int(scanTo); addr++ {
		dc, err := probe(client, uint8(addr))
		switch {
		case errors.Is(err, heatmiser.ErrNoResponse):
			continue
		case err != nil:
			var te *heatmiser.TransportError
			if errors.As(err, &te) {
				return err
			}
			fmt.Fprintf(out, "  %2d: %v\n", addr, err)
			continue
		}
		fmt.Fprintf(out, "  %2d: %s, %s mode\n", addr, dc.Model, dc.ProgramMode)
		found = append(found, dc)
	}

	if len(found) == 0 {
		return errors.New("no thermostats found")
	}

	data, err := yaml.Marshal(map[string][]config.DeviceConfig{"devices": found})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%s", data)
	return nil
}

// probe reads the header of one device and describes it.
func probe(client *heatmiser.Client, addr uint8) (config.DeviceConfig, error) {
	data, err := client.Read(addr, 0, scanLength)
	if err != nil {
		return config.DeviceConfig{}, err
	}

	model := dcb.Model(data[dcb.ModelNumber.Field().Address])
	if !model.Supported() {
		return config.DeviceConfig{}, fmt.Errorf("%w: %s", dcb.ErrUnsupportedModel, model)
	}
	mode := schedule.Mode(data[dcb.ProgramMode.Field().Address])
	if mode != schedule.ModeWeek && mode != schedule.ModeDay {
		return config.DeviceConfig{}, fmt.Errorf("%w: program mode %d", dcb.ErrBadData, mode)
	}

	return config.DeviceConfig{
		Name:        fmt.Sprintf("stat%d", addr),
		Address:     addr,
		Model:       model.String(),
		ProgramMode: mode.String(),
	}, nil
}
