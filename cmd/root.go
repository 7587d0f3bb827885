// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/heatmiser/internal/logging"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// Configuration flags
	configPath string
	logLevel   string

	// Ad hoc device flags, used when no configuration file names devices
	deviceAddress uint8
	deviceModel   string
	deviceMode    string

	logger = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "heatmiser",
	Short: "Heatmiser V3 thermostat bus master",
	Long: `heatmiser - Read and control Heatmiser V3 thermostats over an RS-485 bus.

Devices come from the configuration file, or from the --address, --model and
--mode flags for a single thermostat. Commands take a device name, or the
device's bus address.

Connection:
  Serial:  --port /dev/ttyUSB0 [--baud 4800]
  Config:  --config heatmiser.yaml (flags override serial.port and serial.baud)`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logging.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logger = logging.Init(level)
		return nil
	},
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 0, "Baud rate (default 4800)")

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.PersistentFlags().Uint8Var(&deviceAddress, "address", 0, "Bus address of a single thermostat (1-32)")
	rootCmd.PersistentFlags().StringVar(&deviceModel, "model", "PRT", "Model of the --address thermostat (PRT, PRT-E, PRT-HW)")
	rootCmd.PersistentFlags().StringVar(&deviceMode, "mode", "week", "Program mode of the --address thermostat (week, day)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
