package sermons

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/swelljoe/devotional/internal/logger"
)

const (
	cacheKey = "sermons_latest"
	cacheTTL = time.Hour

	// FailureMessage is shown when the API call fails and the built-in list is used.
	FailureMessage = "Unable to load latest sermons. Please check configuration."
)

// Source records where a listing came from.
type Source string

const (
	SourceYouTube  Source = "youtube"
	SourceFallback Source = "fallback"
)

// Listing is what the sermons page renders.
type Listing struct {
	Videos []Video `json:"videos"`
	Source Source  `json:"source"`
	Error  string  `json:"error,omitempty"`
}

// Store is the expiring key/value storage the service caches into.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetTTL(ctx context.Context, key, value string, ttl time.Duration) error
}

// Service lists sermons, falling back to a fixed list when YouTube is unavailable.
type Service struct {
	client *Client
	store  Store
	log    *zap.Logger
}

// NewService creates a sermon service. A nil store disables caching.
func NewService(client *Client, store Store) *Service {
	return &Service{
		client: client,
		store:  store,
		log:    logger.WithModule("sermons"),
	}
}

// Fallback returns the built-in sermon list.
func Fallback() []Video {
	return []Video{
		{
			ID:    "tE1CjTjJgGk",
			Title: "Waiting on God | Dr. Charles Stanley",
			Date:  time.Date(2023, time.October, 15, 10, 0, 0, 0, time.UTC),
		},
		{
			ID:    "P0_yT5-yV_Y",
			Title: "When You Feel Like Giving Up | Dr. Tony Evans",
			Date:  time.Date(2023, time.October, 8, 10, 0, 0, 0, time.UTC),
		},
		{
			ID:    "video3",
			Title: "Finding Peace in the Storm (Mock)",
			Date:  time.Date(2023, time.October, 1, 10, 0, 0, 0, time.UTC),
		},
	}
}

// List never fails: a missing configuration yields the fallback silently, an API
// failure yields the fallback with FailureMessage.
func (s *Service) List(ctx context.Context) Listing {
	if !s.client.Configured() {
		s.log.Debug("youtube not configured, using fallback list")
		return Listing{Videos: Fallback(), Source: SourceFallback}
	}

	if videos, ok := s.cached(ctx); ok {
		return Listing{Videos: videos, Source: SourceYouTube}
	}

	videos, err := s.client.Latest(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.log.Debug("sermon lookup canceled")
		} else {
			s.log.Warn("youtube API error", zap.Error(err))
		}
		return Listing{Videos: Fallback(), Source: SourceFallback, Error: FailureMessage}
	}

	if s.store != nil {
		if data, err := json.Marshal(videos); err == nil {
			if err := s.store.SetTTL(ctx, cacheKey, string(data), cacheTTL); err != nil {
				s.log.Warn("failed to cache sermons", zap.Error(err))
			}
		}
	}
	return Listing{Videos: videos, Source: SourceYouTube}
}

func (s *Service) cached(ctx context.Context) ([]Video, bool) {
	if s.store == nil {
		return nil, false
	}
	raw, ok, err := s.store.Get(ctx, cacheKey)
	if err != nil {
		s.log.Warn("sermon cache error", zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var videos []Video
	if err := json.Unmarshal([]byte(raw), &videos); err != nil {
		return nil, false
	}
	return videos, true
}
