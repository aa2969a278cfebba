package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/swelljoe/devotional/internal/devotional"
)

var todayCmd = &cobra.Command{
	Use:   "today",
	Short: "Print today's verse",
	Long:  "Print today's verse from the cache, fetching it if this is the first request of the day.",
	Args:  cobra.NoArgs,
	RunE:  runToday,
}

var withContext bool

func init() {
	rootCmd.AddCommand(todayCmd)
	todayCmd.Flags().BoolVar(&withContext, "context", false, "Also generate and print the verse's context")
}

func runToday(cmd *cobra.Command, args []string) error {
	a, err := newApp(globalConfig)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rec, key, err := a.cache.Today(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", devotional.UserMessage(devotional.KindOf(err)), err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  %s\n\n%s\n", key, rec.Reference, rec.Text)

	if !withContext {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, globalConfig.Gemini.Timeout)
	defer cancel()
	if err := a.cache.EnrichIfMissing(ctx, rec, key); err != nil {
		return fmt.Errorf("%s: %w", devotional.UserMessage(devotional.KindOf(err)), err)
	}
	fmt.Fprintf(out, "\n%s\n", rec.Enrichment)
	return nil
}
