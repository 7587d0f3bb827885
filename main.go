// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// heatmiser - Heatmiser V3 Thermostat Bus Master
//
// A CLI tool for reading, configuring and polling Heatmiser PRT family
// thermostats over an RS-485 serial bus.

package main

import (
	"os"

	"github.com/Thermoquad/heatmiser/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
