package devotional

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/swelljoe/devotional/internal/logger"
	"github.com/swelljoe/devotional/internal/metrics"
)

// DefaultPrefix namespaces day records in the store.
const DefaultPrefix = "votd_"

var errEmptyEnrichment = errors.New("enricher returned empty text")

// Cache resolves the current devotional day and loads, fetches, evicts and enriches
// its record. It holds no per-view state and is safe for concurrent use; a *Record
// passed to EnrichIfMissing must not be shared across goroutines.
type Cache struct {
	store    Store
	verses   VerseSource
	enricher Enricher
	clock    Clock
	rollover Rollover
	prefix   string
	log      *zap.Logger
}

// Option customises the Cache.
type Option func(*Cache)

// WithClock overrides the clock used to resolve the day key.
func WithClock(clock Clock) Option {
	return func(c *Cache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithRollover overrides the reference zone and rollover hour.
func WithRollover(r Rollover) Option {
	return func(c *Cache) {
		if r.Location != nil {
			c.rollover = r
		}
	}
}

// WithPrefix overrides the storage key prefix.
func WithPrefix(prefix string) Option {
	return func(c *Cache) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// WithEnricher sets the commentary generator. Without one, enrichment reports ConfigurationMissing.
func WithEnricher(e Enricher) Option {
	return func(c *Cache) {
		c.enricher = e
	}
}

// WithLogger overrides the module logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Cache) {
		if log != nil {
			c.log = log
		}
	}
}

// NewCache constructs a Cache over store and verses.
func NewCache(store Store, verses VerseSource, opts ...Option) *Cache {
	c := &Cache{
		store:    store,
		verses:   verses,
		clock:    SystemClock,
		rollover: DefaultRollover(),
		prefix:   DefaultPrefix,
		log:      logger.WithModule("devotional"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DayKey resolves the current day key from the injected clock.
func (c *Cache) DayKey() DayKey {
	return c.rollover.Key(c.clock.Now())
}

// Rollover returns the configured rollover.
func (c *Cache) Rollover() Rollover { return c.rollover }

// Now returns the injected clock's time.
func (c *Cache) Now() time.Time { return c.clock.Now() }

// StorageKey returns the store key for a day.
func (c *Cache) StorageKey(key DayKey) string {
	return c.prefix + string(key)
}

// Lookup reads a stored record without fetching. A stored value that cannot be
// decoded is reported as missing.
func (c *Cache) Lookup(ctx context.Context, key DayKey) (*Record, bool, error) {
	raw, ok, err := c.store.Get(ctx, c.StorageKey(key))
	if err != nil || !ok {
		return nil, false, err
	}
	rec, err := decodeRecord(raw)
	if err != nil {
		metrics.CacheLookups.WithLabelValues("corrupt").Inc()
		c.log.Warn("discarding unreadable day record", zap.String("day", string(key)), zap.Error(err))
		return nil, false, nil
	}
	return rec, true, nil
}

// LoadOrFetch returns the stored record for key, or fetches, stores and returns a new
// one. A hit makes no network call; a miss makes exactly one.
func (c *Cache) LoadOrFetch(ctx context.Context, key DayKey) (*Record, error) {
	rec, ok, err := c.Lookup(ctx, key)
	if err != nil {
		// Storage trouble must not hide the verse; fall through to a fetch.
		c.log.Warn("day record lookup failed", zap.String("day", string(key)), zap.Error(err))
	}
	if ok {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return rec, nil
	}
	metrics.CacheLookups.WithLabelValues("miss").Inc()

	v, err := c.verses.RandomVerse(ctx)
	if err != nil {
		metrics.PrimaryFetches.WithLabelValues("failure").Inc()
		return nil, &Error{Kind: FetchFailure, Op: "fetch", Err: err}
	}
	metrics.PrimaryFetches.WithLabelValues("success").Inc()

	rec = &Record{
		Text:      strings.TrimSpace(v.Text),
		Reference: strings.TrimSpace(v.Reference),
	}
	if err := c.persist(ctx, key, rec); err != nil {
		c.log.Warn("failed to store day record", zap.String("day", string(key)), zap.Error(err))
	}
	c.log.Info("fetched day record", zap.String("day", string(key)), zap.String("reference", rec.Reference))
	return rec, nil
}

// EvictStale removes every record under the prefix whose day is not current and
// returns how many were removed. Failed deletes are collected and do not stop the scan.
func (c *Cache) EvictStale(ctx context.Context, current DayKey) (int, error) {
	keys, err := c.store.Keys(ctx, c.prefix)
	if err != nil {
		return 0, &Error{Kind: LocationOrStorageUnavailable, Op: "evict", Err: err}
	}

	keep := c.StorageKey(current)
	var (
		removed int
		errs    error
	)
	for _, k := range keys {
		if k == keep {
			continue
		}
		if err := c.store.Delete(ctx, k); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		metrics.EvictedRecords.Add(float64(removed))
		c.log.Info("evicted stale day records", zap.Int("count", removed), zap.String("current", string(current)))
	}
	if errs != nil {
		return removed, &Error{Kind: LocationOrStorageUnavailable, Op: "evict", Err: errs}
	}
	return removed, nil
}

// EnrichIfMissing attaches commentary to rec and rewrites the whole record under key.
// It does nothing when rec already has commentary. On failure rec is left unchanged,
// nothing is stored, and a classified *Error is returned.
func (c *Cache) EnrichIfMissing(ctx context.Context, rec *Record, key DayKey) error {
	if rec == nil || rec.HasEnrichment() {
		return nil
	}

	if c.enricher == nil {
		metrics.Enrichments.WithLabelValues(ConfigurationMissing.String()).Inc()
		return &Error{Kind: ConfigurationMissing, Op: "enrich", Err: ErrConfigurationMissing}
	}
	if cfg, ok := c.enricher.(configurable); ok && !cfg.Configured() {
		metrics.Enrichments.WithLabelValues(ConfigurationMissing.String()).Inc()
		return &Error{Kind: ConfigurationMissing, Op: "enrich", Err: ErrConfigurationMissing}
	}

	text, err := c.enricher.VerseContext(ctx, rec.Reference, rec.Text)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errEmptyEnrichment
	}
	if err != nil {
		classified := classifyEnrichment(err)
		metrics.Enrichments.WithLabelValues(classified.Kind.String()).Inc()
		c.log.Warn("context generation failed",
			zap.String("day", string(key)),
			zap.Stringer("kind", classified.Kind),
			zap.Error(err),
		)
		return classified
	}

	rec.Enrichment = strings.TrimSpace(text)
	metrics.Enrichments.WithLabelValues("success").Inc()
	if err := c.persist(ctx, key, rec); err != nil {
		c.log.Warn("failed to store enriched day record", zap.String("day", string(key)), zap.Error(err))
	}
	return nil
}

// Today runs one resolution cycle: resolve the key, evict stale records, then load or fetch.
func (c *Cache) Today(ctx context.Context) (*Record, DayKey, error) {
	key := c.DayKey()
	if _, err := c.EvictStale(ctx, key); err != nil {
		c.log.Warn("eviction failed", zap.Error(err))
	}
	rec, err := c.LoadOrFetch(ctx, key)
	return rec, key, err
}

func (c *Cache) persist(ctx context.Context, key DayKey, rec *Record) error {
	raw, err := rec.encode()
	if err != nil {
		return err
	}
	return c.store.Set(ctx, c.StorageKey(key), raw)
}
