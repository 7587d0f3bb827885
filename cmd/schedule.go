// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/heatmiser/pkg/schedule"
)

var scheduleWater bool

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Read or write heating and hot water schedules",
}

var scheduleGetCmd = &cobra.Command{
	Use:   "get <device>",
	Short: "Print a thermostat's schedule",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleGet,
}

var scheduleSetCmd = &cobra.Command{
	Use:   "set <device> <weekday> <entries>",
	Short: "Write the schedule of one day",
	Long: `Write the schedule of the day bucket holding weekday (1-7 or mon-sun).

On thermostats in week mode, Monday to Friday share one bucket and
Saturday and Sunday share another.

Heating entries are "HH:MM TEMP" separated by commas, up to four per day:
  heatmiser schedule set hall mon "07:00 21, 09:00 12, 17:00 21, 22:00 12"

Hot water entries (--water) are on/off toggle times, up to eight per day:
  heatmiser schedule set hall mon --water "06:00, 08:00"

Use "none" to clear the day.`,
	Args: cobra.ExactArgs(3),
	RunE: runScheduleSet,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.AddCommand(scheduleGetCmd, scheduleSetCmd)
	scheduleCmd.PersistentFlags().BoolVar(&scheduleWater, "water", false, "Use the hot water schedule")
}

// bucketLabel names the weekdays a bucket covers.
func bucketLabel(m schedule.Mode, bucket int) string {
	if m == schedule.ModeWeek {
		if bucket == 0 {
			return "Mon-Fri"
		}
		return "Sat-Sun"
	}
	return schedule.WeekdayName(bucket + 1)
}

func printWeek(w io.Writer, week schedule.Week, water bool) {
	if water {
		for i, day := range week.Water {
			var parts []string
			for j, e := range day.Entries() {
				dir := "on"
				if j%2 == 1 {
					dir = "off"
				}
				parts = append(parts, fmt.Sprintf("%s %s", e, dir))
			}
			printDay(w, bucketLabel(week.Mode, i), parts)
		}
		return
	}
	for i, day := range week.Heat {
		var parts []string
		for _, e := range day.Entries() {
			parts = append(parts, e.String())
		}
		printDay(w, bucketLabel(week.Mode, i), parts)
	}
}

func printDay(w io.Writer, label string, parts []string) {
	if len(parts) == 0 {
		parts = []string{"(none)"}
	}
	fmt.Fprintf(w, "  %-8s %s\n", label+":", strings.Join(parts, "   "))
}

func runScheduleGet(cmd *cobra.Command, args []string) error {
	s, err := openSession(nil)
	if err != nil {
		return err
	}
	defer s.Close()

	d, err := s.device(args[0])
	if err != nil {
		return err
	}

	var week schedule.Week
	if scheduleWater {
		week, err = d.WaterSchedule()
	} else {
		week, err = d.HeatSchedule()
	}
	if err != nil {
		return err
	}

	kind := "heating"
	if scheduleWater {
		kind = "hot water"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s schedule (%s mode)\n", d.Name(), kind, week.Mode)
	printWeek(cmd.OutOrStdout(), week, scheduleWater)
	return nil
}

func runScheduleSet(cmd *cobra.Command, args []string) error {
	weekday, err := parseWeekday(args[1])
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

	if scheduleWater {
		day, err := parseWaterDay(args[2])
		if err != nil {
			return err
		}
		err = d.SetWaterSchedule(weekday, day)
		if err != nil {
			return err
		}
	} else {
		day, err := parseHeatDay(args[2])
		if err != nil {
			return err
		}
		err = d.SetHeatSchedule(weekday, day)
		if err != nil {
			return err
		}
	}

	bucket := schedule.BucketFor(d.Settings().Mode, weekday)
	fmt.Fprintf(cmd.OutOrStdout(), "%s: wrote %s\n", d.Name(), bucketLabel(d.Settings().Mode, bucket))
	return nil
}
