package devotional

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultRetryAfter = time.Minute

// Daily owns the current day's View for a long-running process. A new view replaces
// the old one when the day key changes, or when the old one failed at least retryAfter
// ago. Failed enrichment is retried on the same view after the same delay.
type Daily struct {
	cache      *Cache
	base       context.Context
	retryAfter time.Duration
	log        *zap.Logger

	mu   sync.Mutex
	view *View
	key  DayKey
}

// DailyOption customises Daily.
type DailyOption func(*Daily)

// WithRetryAfter sets the minimum delay before a failed load or enrichment is retried.
func WithRetryAfter(d time.Duration) DailyOption {
	return func(daily *Daily) {
		if d > 0 {
			daily.retryAfter = d
		}
	}
}

// NewDaily creates a coordinator. Loads and enrichment run under ctx, not under the
// context of whichever caller happened to trigger them.
func NewDaily(ctx context.Context, cache *Cache, opts ...DailyOption) *Daily {
	d := &Daily{
		cache:      cache,
		base:       ctx,
		retryAfter: defaultRetryAfter,
		log:        cache.log.With(zap.String("component", "daily")),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Cache returns the underlying cache.
func (d *Daily) Cache() *Cache { return d.cache }

// Current returns today's view, starting or replacing it as needed, and waits for its
// primary load under ctx. The view is returned even when its load failed.
func (d *Daily) Current(ctx context.Context) (*View, error) {
	v := d.acquire()

	if _, err := v.Wait(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return v, err
	}

	if v.EnrichmentErr() != nil && d.cache.Now().Sub(v.EnrichedAt()) >= d.retryAfter {
		if v.RetryEnrichment() {
			d.log.Info("retrying context generation", zap.String("day", string(v.Key())))
		}
	}
	return v, nil
}

func (d *Daily) acquire() *View {
	key := d.cache.DayKey()
	now := d.cache.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if v := d.view; v != nil && d.key == key {
		failedLongAgo := v.State() == StateFailed && now.Sub(v.FinishedAt()) >= d.retryAfter
		if !failedLongAgo {
			return v
		}
		d.log.Info("replacing failed view", zap.String("day", string(key)))
	}

	if d.view != nil {
		d.view.Close()
	}
	v := NewView(d.base, d.cache)
	d.view = v
	d.key = key
	go func() {
		if _, err := v.startAt(d.base, key); err != nil && !errors.Is(err, ErrViewClosed) {
			d.log.Warn("day record load failed", zap.String("day", string(key)), zap.Error(err))
		}
	}()
	return v
}

// Warm loads today's record ahead of the first reader.
func (d *Daily) Warm(ctx context.Context) error {
	_, err := d.Current(ctx)
	return err
}

// Close closes the active view.
func (d *Daily) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.view != nil {
		d.view.Close()
		d.view = nil
	}
}
