package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/swelljoe/devotional/internal/config"
	"github.com/swelljoe/devotional/internal/db"
	"github.com/swelljoe/devotional/internal/devotional"
	"github.com/swelljoe/devotional/internal/gemini"
	"github.com/swelljoe/devotional/internal/logger"
	"github.com/swelljoe/devotional/internal/verse"
)

// app bundles the collaborators shared by the subcommands.
type app struct {
	cfg    *config.Config
	db     *db.DB
	dbOK   bool
	verses *verse.Client
	gemini *gemini.Client
	cache  *devotional.Cache
}

func newApp(cfg *config.Config) (*app, error) {
	rollover, err := devotional.NewRollover(cfg.Devotional.Timezone, cfg.Devotional.RolloverHour)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, dbOK: true}

	a.db, err = db.NewDB(cfg.DatabasePath)
	if err != nil {
		logger.Warn("database open failed, continuing with an in-memory cache",
			zap.String("path", cfg.DatabasePath), zap.Error(err))
		a.dbOK = false
		if a.db, err = db.NewDB(":memory:"); err != nil {
			return nil, fmt.Errorf("open in-memory cache: %w", err)
		}
	} else {
		logger.Info("database opened", zap.String("path", cfg.DatabasePath))
	}

	a.verses = verse.NewClient(cfg.Verse.APIURL, cfg.HTTP.UserAgent, cfg.HTTP.Timeout)
	a.gemini = gemini.NewClient(cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.APIURL, cfg.Gemini.Timeout)
	if !a.gemini.Configured() {
		logger.Warn("GEMINI_API_KEY not set, context generation disabled")
	}

	a.cache = devotional.NewCache(a.db, a.verses,
		devotional.WithRollover(rollover),
		devotional.WithPrefix(cfg.Devotional.StoragePrefix),
		devotional.WithEnricher(a.gemini),
	)
	return a, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		logger.Warn("database close failed", zap.Error(err))
	}
}
