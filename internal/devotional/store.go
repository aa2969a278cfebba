package devotional

import (
	"context"
	"time"

	"github.com/swelljoe/devotional/internal/verse"
)

// Store is the durable key-value storage shared by every view.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// VerseSource fetches the primary content.
type VerseSource interface {
	RandomVerse(ctx context.Context) (*verse.Verse, error)
}

// Enricher generates commentary for a verse.
type Enricher interface {
	VerseContext(ctx context.Context, reference, text string) (string, error)
}

// configurable is implemented by enrichers that can report missing credentials
// without making a request.
type configurable interface {
	Configured() bool
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)
