package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/swelljoe/devotional/internal/config"
	"github.com/swelljoe/devotional/internal/logger"
)

var globalConfig *config.Config

var envFile string

var rootCmd = &cobra.Command{
	Use:   "devotional",
	Short: "A verse of the day with context, weather and sermons",
	Long: `My Daily Devotional serves one verse per day, rolling over each morning
at a fixed hour in a reference time zone, with AI-generated context,
local weather and the latest sermons.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" {
			return nil
		}

		var files []string
		if envFile != "" {
			files = append(files, envFile)
		}
		cfg, err := config.Load(files...)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		globalConfig = cfg

		if err := logger.Init(cfg.LogLevel); err != nil {
			return fmt.Errorf("failed to init logger: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		_ = logger.Sync()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to a .env file (default .env if present)")
}
