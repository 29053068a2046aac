package cmd

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/a-schulz/esp32-temperature-sensor/pkg/measurement"
	"github.com/a-schulz/esp32-temperature-sensor/pkg/monitor"
	"github.com/a-schulz/esp32-temperature-sensor/pkg/source"
)

var latestCmd = &cobra.Command{
	Use:          "latest",
	Short:        "Print the current dashboard state as JSON",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), viper.GetDuration("poll.timeout"))
		defer cancel()
		backend, err := source.Open(ctx, sourceConfig())
		if err != nil {
			return err
		}
		defer backend.Close()
		mon := monitor.New(backend, monitorConfig())
		if err := mon.Fetch(ctx); err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(mon.Snapshot())
	},
}

var historyCmd = &cobra.Command{
	Use:          "history <location> <temperature|humidity>",
	Short:        "Print the chart series of one sensor as JSON",
	Args:         cobra.ExactArgs(2),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, err := measurement.ParseType(args[1])
		if err != nil {
			return err
		}
		hours, err := cmd.Flags().GetInt("hours")
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		backend, err := source.Open(ctx, sourceConfig())
		if err != nil {
			return err
		}
		defer backend.Close()
		mon := monitor.New(backend, monitorConfig())
		ms, err := mon.History(ctx, args[0], typ, hours)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(measurement.ChartPoints(ms))
	},
}

func init() {
	historyCmd.Flags().Int("hours", monitor.DefaultHistoryHours, "how many hours back to read")
	rootCmd.AddCommand(latestCmd)
	rootCmd.AddCommand(historyCmd)
}
