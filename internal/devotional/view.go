package devotional

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is the lifecycle of a View.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// View is one consumer's lifetime over the day's record. Start moves it from idle to
// loading exactly once; the primary record is available as soon as it is ready, and
// enrichment runs as a supervised task that Close cancels. Results that arrive after
// Close are dropped.
type View struct {
	id     string
	cache  *Cache
	base   context.Context
	cancel context.CancelFunc
	log    *zap.Logger

	mu         sync.Mutex
	state      State
	key        DayKey
	record     *Record
	err        error
	enrich     *Task
	enrichErr  error
	enrichedAt time.Time
	finishedAt time.Time
	closed     bool
	loaded     chan struct{}
}

// NewView creates an idle view. Enrichment tasks run under parent until Close.
func NewView(parent context.Context, cache *Cache) *View {
	base, cancel := context.WithCancel(parent)
	id := uuid.NewString()
	return &View{
		id:     id,
		cache:  cache,
		base:   base,
		cancel: cancel,
		log:    cache.log.With(zap.String("view", id)),
		loaded: make(chan struct{}),
	}
}

// ID identifies the view in logs.
func (v *View) ID() string { return v.id }

// Start resolves the day key, evicts stale records and loads or fetches the record.
// Only the first call does any work; later calls return ErrAlreadyStarted. A failed
// load leaves the view in StateFailed for good.
func (v *View) Start(ctx context.Context) (*Record, error) {
	return v.startAt(ctx, v.cache.DayKey())
}

// startAt is Start with the day key already resolved by the caller.
func (v *View) startAt(ctx context.Context, key DayKey) (*Record, error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil, ErrViewClosed
	}
	if v.state != StateIdle {
		v.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	v.state = StateLoading
	v.key = key
	v.mu.Unlock()

	if _, err := v.cache.EvictStale(ctx, key); err != nil {
		v.log.Warn("eviction failed", zap.Error(err))
	}
	rec, err := v.cache.LoadOrFetch(ctx, key)

	v.mu.Lock()
	defer v.mu.Unlock()
	defer close(v.loaded)

	v.finishedAt = v.cache.Now()
	if err != nil {
		v.state = StateFailed
		v.err = err
		return nil, err
	}

	v.state = StateReady
	v.record = rec
	if !rec.HasEnrichment() && !v.closed {
		v.startEnrichmentLocked()
	}
	return rec.Clone(), nil
}

// startEnrichmentLocked launches the enrichment task. v.mu must be held.
func (v *View) startEnrichmentLocked() {
	key := v.key
	working := v.record.Clone()
	v.enrichErr = nil

	v.enrich = StartTask(v.base, func(ctx context.Context) error {
		err := v.cache.EnrichIfMissing(ctx, working, key)

		v.mu.Lock()
		defer v.mu.Unlock()
		v.enrichedAt = v.cache.Now()
		if v.closed {
			v.log.Debug("dropping enrichment result for closed view")
			return ErrViewClosed
		}
		if err != nil {
			v.enrichErr = err
			return err
		}
		v.record = working
		return nil
	})
}

// RetryEnrichment starts a new enrichment attempt if the view is ready, the record
// still lacks commentary and no attempt is in flight. It reports whether one started.
func (v *View) RetryEnrichment() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed || v.state != StateReady || v.record.HasEnrichment() {
		return false
	}
	if v.enrich != nil && !v.enrich.Finished() {
		return false
	}
	v.startEnrichmentLocked()
	return true
}

// Wait blocks until the primary load has finished or ctx ends.
func (v *View) Wait(ctx context.Context) (*Record, error) {
	select {
	case <-v.loaded:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.err != nil {
		return nil, v.err
	}
	return v.record.Clone(), nil
}

// WaitEnrichment blocks until the primary load and any in-flight enrichment finish,
// or ctx ends. It returns the current record together with the enrichment error, or
// ctx's error when it gave up while enrichment was still pending.
func (v *View) WaitEnrichment(ctx context.Context) (*Record, error) {
	if _, err := v.Wait(ctx); err != nil {
		return nil, err
	}

	v.mu.Lock()
	task := v.enrich
	v.mu.Unlock()

	if task != nil {
		select {
		case <-task.Done():
		case <-ctx.Done():
			return v.Record(), ctx.Err()
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	return v.record.Clone(), v.enrichErr
}

// Close cancels any in-flight enrichment. Late results no longer touch the view.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	v.cancel()
	if v.state == StateIdle {
		v.state = StateFailed
		v.err = ErrViewClosed
		close(v.loaded)
	}
}

// Key returns the resolved day key, empty before Start.
func (v *View) Key() DayKey {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.key
}

// State returns the current lifecycle state.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Record returns a copy of the current record, nil until ready.
func (v *View) Record() *Record {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.record.Clone()
}

// Err returns the primary load error.
func (v *View) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

// EnrichmentErr returns the error of the last finished enrichment attempt.
func (v *View) EnrichmentErr() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.enrichErr
}

// Enrichment returns the current enrichment task, nil if none was started.
func (v *View) Enrichment() *Task {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.enrich
}

// FinishedAt returns when the primary load completed.
func (v *View) FinishedAt() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.finishedAt
}

// EnrichedAt returns when the last enrichment attempt completed.
func (v *View) EnrichedAt() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.enrichedAt
}

// Closed reports whether Close was called.
func (v *View) Closed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}
