package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/swelljoe/devotional/internal/devotional"
	"github.com/swelljoe/devotional/internal/handlers"
	"github.com/swelljoe/devotional/internal/logger"
	"github.com/swelljoe/devotional/internal/scheduler"
	"github.com/swelljoe/devotional/internal/sermons"
	"github.com/swelljoe/devotional/internal/weather"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server",
	Long:  "Serve the devotional site and API, warming each day's verse at the rollover.",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var noWarm bool

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&noWarm, "no-warm", false, "Skip loading today's verse at startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := globalConfig
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	// Views outlive requests; they are only cancelled at shutdown.
	daily := devotional.NewDaily(ctx, a.cache, devotional.WithRetryAfter(cfg.Devotional.RetryAfter))
	defer daily.Close()

	weatherClient := weather.NewClient(cfg.Weather.APIURL, cfg.Weather.GeocodeURL, cfg.HTTP.UserAgent, cfg.HTTP.Timeout)
	sermonClient := sermons.NewClient(cfg.YouTube.APIKey, cfg.YouTube.ChannelID, cfg.YouTube.APIURL, cfg.HTTP.Timeout)
	if !cfg.HasYouTube() {
		logger.Info("YouTube not configured, sermons page uses the built-in list")
	}

	deps := handlers.Deps{
		Daily:       daily,
		Chapters:    a.verses,
		Weather:     weather.NewService(weatherClient, a.db, cfg.Weather.CacheTTL),
		Sermons:     sermons.NewService(sermonClient, a.db),
		BasePath:    cfg.BasePath,
		ContextWait: cfg.Devotional.ContextWait,
	}
	if a.dbOK {
		deps.DB = a.db
	}
	h := handlers.New(deps)

	sched := scheduler.New(daily, a.db, a.cache.Rollover().CronSpec())
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	if !noWarm {
		go func() {
			if err := daily.Warm(ctx); err != nil {
				logger.Warn("startup warm-up failed", zap.Error(err))
			}
		}()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", "http://localhost"+srv.Addr+cfg.BasePath+"/"),
			zap.String("day", a.cache.DayKey().String()),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
