package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/swelljoe/devotional/internal/devotional"
)

var daykeyCmd = &cobra.Command{
	Use:   "daykey",
	Short: "Print the day key for a moment",
	Long:  "Print the day key and next rollover for now, or for the RFC3339 time given with --at.",
	Args:  cobra.NoArgs,
	RunE:  runDayKey,
}

var daykeyAt string

func init() {
	rootCmd.AddCommand(daykeyCmd)
	daykeyCmd.Flags().StringVar(&daykeyAt, "at", "", "RFC3339 timestamp (default now)")
}

func runDayKey(cmd *cobra.Command, args []string) error {
	rollover, err := devotional.NewRollover(globalConfig.Devotional.Timezone, globalConfig.Devotional.RolloverHour)
	if err != nil {
		return err
	}

	now := time.Now()
	if daykeyAt != "" {
		if now, err = time.Parse(time.RFC3339, daykeyAt); err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
	}

	next := rollover.Next(now)
	fmt.Fprintf(cmd.OutOrStdout(), "%s\nnext rollover: %s\n", rollover.Key(now), next.In(rollover.Location).Format(time.RFC3339))
	return nil
}
