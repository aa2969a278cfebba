package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/swelljoe/devotional/internal/logger"
)

const (
	defaultPurgeSpec  = "@hourly"
	defaultJobTimeout = 2 * time.Minute
)

// Warmer loads the current day's record ahead of the first reader.
type Warmer interface {
	Warm(ctx context.Context) error
}

// Purger drops expired cache entries.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Scheduler runs the rollover warm-up and expired entry purge jobs.
type Scheduler struct {
	warmer    Warmer
	purger    Purger
	cron      *cron.Cron
	log       *zap.Logger
	timeout   time.Duration
	warmSpec  string
	purgeSpec string
	enabled   bool
}

// Option customises the Scheduler.
type Option func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithPurgeSchedule overrides the cron specification for the purge job.
func WithPurgeSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.purgeSpec = spec
		}
	}
}

// WithJobTimeout bounds each job run.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New constructs a Scheduler. warmSpec is normally Rollover.CronSpec(). A nil
// dependency skips its job.
func New(warmer Warmer, purger Purger, warmSpec string, opts ...Option) *Scheduler {
	s := &Scheduler{
		warmer:    warmer,
		purger:    purger,
		timeout:   defaultJobTimeout,
		warmSpec:  warmSpec,
		purgeSpec: defaultPurgeSpec,
		log:       logger.WithModule("scheduler"),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.cron == nil {
		s.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	s.enabled = s.warmer != nil || s.purger != nil
	return s
}

// Start registers the jobs and launches the cron scheduler if any job is enabled.
func (s *Scheduler) Start() error {
	if !s.enabled {
		return nil
	}

	if s.warmer != nil && s.warmSpec != "" {
		if _, err := s.cron.AddFunc(s.warmSpec, s.runWarm); err != nil {
			return err
		}
	}

	if s.purger != nil {
		if _, err := s.cron.AddFunc(s.purgeSpec, s.runPurge); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.log.Info("scheduler started", zap.String("warm", s.warmSpec), zap.String("purge", s.purgeSpec))
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

func (s *Scheduler) runWarm() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.warmer.Warm(ctx); err != nil {
		s.log.Warn("rollover warm-up failed", zap.Error(err))
		return
	}
	s.log.Info("rollover warm-up complete")
}

func (s *Scheduler) runPurge() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	n, err := s.purger.PurgeExpired(ctx)
	if err != nil {
		s.log.Warn("cache purge failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Debug("purged expired cache entries", zap.Int64("count", n))
	}
}

// RunOnce executes every configured job sequentially.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if s.warmer != nil {
		if err := s.warmer.Warm(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if s.purger != nil {
		if _, err := s.purger.PurgeExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}
