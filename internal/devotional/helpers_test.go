package devotional

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/swelljoe/devotional/internal/db"
	"github.com/swelljoe/devotional/internal/verse"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeVerses struct {
	calls atomic.Int32
	err   error
	verse verse.Verse
}

func (f *fakeVerses) RandomVerse(ctx context.Context) (*verse.Verse, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	v := f.verse
	if v.Text == "" {
		v = verse.Verse{Text: "For God so loved the world", Reference: "John 3:16"}
	}
	return &v, nil
}

// fakeEnricher returns text or err. When release is set, it waits for the channel
// (or ctx, if honorCtx) before answering.
type fakeEnricher struct {
	calls    atomic.Int32
	text     string
	err      error
	release  chan struct{}
	started  chan struct{}
	honorCtx bool

	mu        sync.Mutex
	reference string
	verseText string
}

func (f *fakeEnricher) VerseContext(ctx context.Context, reference, text string) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.reference, f.verseText = reference, text
	f.mu.Unlock()

	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.release != nil {
		if f.honorCtx {
			select {
			case <-f.release:
			case <-ctx.Done():
				return "", ctx.Err()
			}
		} else {
			<-f.release
		}
	}
	if f.err != nil {
		return "", f.err
	}
	if f.text == "" {
		return "A word of encouragement.", nil
	}
	return f.text, nil
}

type unconfiguredEnricher struct{ fakeEnricher }

func (u *unconfiguredEnricher) Configured() bool { return false }

func newTestStore(t *testing.T) *db.DB {
	t.Helper()
	store, err := db.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// eastern returns a time at the given wall clock in America/New_York.
func eastern(t *testing.T, y int, m time.Month, d, hh, mm int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return time.Date(y, m, d, hh, mm, 0, 0, loc)
}

func newTestCache(t *testing.T, store Store, verses VerseSource, clock Clock, opts ...Option) *Cache {
	t.Helper()
	base := []Option{WithClock(clock), WithRollover(DefaultRollover())}
	return NewCache(store, verses, append(base, opts...)...)
}

// failingDeleteStore wraps a Store and fails Delete for one key.
type failingDeleteStore struct {
	Store
	failKey string
}

func (s *failingDeleteStore) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		if k == s.failKey {
			return errors.New("disk on fire")
		}
	}
	return s.Store.Delete(ctx, keys...)
}

// brokenStore fails every operation.
type brokenStore struct{}

var errBroken = errors.New("store unavailable")

func (brokenStore) Get(context.Context, string) (string, bool, error) { return "", false, errBroken }
func (brokenStore) Set(context.Context, string, string) error { return errBroken }
func (brokenStore) Delete(context.Context, ...string) error { return errBroken }
func (brokenStore) Keys(context.Context, string) ([]string, error) { return nil, errBroken }
