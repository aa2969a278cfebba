package sermons

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swelljoe/devotional/internal/db"
)

const searchJSON = `{
  "items": [
    {"id": {"videoId": "abc123"}, "snippet": {"title": "God&#39;s Faithfulness &amp; Grace", "publishedAt": "2024-02-04T15:00:00Z"}},
    {"id": {"channelId": "UCxyz"}, "snippet": {"title": "channel result", "publishedAt": "2024-02-01T15:00:00Z"}},
    {"id": {"videoId": "def456"}, "snippet": {"title": "Sunday Service", "publishedAt": "2024-01-28T15:00:00Z"}}
  ]
}`

func newSearchServer(t *testing.T, status int, body string, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		q := r.URL.Query()
		assert.Equal(t, "key-1", q.Get("key"))
		assert.Equal(t, "UC123", q.Get("channelId"))
		assert.Equal(t, "snippet,id", q.Get("part"))
		assert.Equal(t, "date", q.Get("order"))
		assert.Equal(t, "9", q.Get("maxResults"))
		assert.Equal(t, "video", q.Get("type"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLatestUnescapesTitles(t *testing.T) {
	var calls atomic.Int32
	srv := newSearchServer(t, http.StatusOK, searchJSON, &calls)

	videos, err := NewClient("key-1", "UC123", srv.URL, time.Second).Latest(context.Background())
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.Equal(t, "abc123", videos[0].ID)
	assert.Equal(t, "God's Faithfulness & Grace", videos[0].Title)
	assert.Equal(t, time.Date(2024, time.February, 4, 15, 0, 0, 0, time.UTC), videos[0].Date.UTC())
	assert.Equal(t, "def456", videos[1].ID)
}

func TestLatestAPIError(t *testing.T) {
	var calls atomic.Int32
	srv := newSearchServer(t, http.StatusForbidden, `{"error":{"code":403,"message":"quotaExceeded"}}`, &calls)

	_, err := NewClient("key-1", "UC123", srv.URL, time.Second).Latest(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "youtube API error: 403: quotaExceeded", apiErr.Error())
}

func TestLatestNotConfigured(t *testing.T) {
	_, err := NewClient("", "UC123", "", 0).Latest(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestListUnconfiguredUsesFallbackSilently(t *testing.T) {
	listing := NewService(NewClient("key-1", "", "", 0), nil).List(context.Background())

	assert.Equal(t, SourceFallback, listing.Source)
	assert.Empty(t, listing.Error)
	require.Len(t, listing.Videos, 3)
	assert.Equal(t, "tE1CjTjJgGk", listing.Videos[0].ID)
	assert.Equal(t, "Finding Peace in the Storm (Mock)", listing.Videos[2].Title)
}

func TestListAPIFailureUsesFallbackWithMessage(t *testing.T) {
	var calls atomic.Int32
	srv := newSearchServer(t, http.StatusInternalServerError, `oops`, &calls)

	listing := NewService(NewClient("key-1", "UC123", srv.URL, time.Second), nil).List(context.Background())

	assert.Equal(t, SourceFallback, listing.Source)
	assert.Equal(t, FailureMessage, listing.Error)
	assert.Equal(t, Fallback(), listing.Videos)
}

func TestListCachesResults(t *testing.T) {
	var calls atomic.Int32
	srv := newSearchServer(t, http.StatusOK, searchJSON, &calls)
	store, err := db.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := NewService(NewClient("key-1", "UC123", srv.URL, time.Second), store)
	first := svc.List(context.Background())
	second := svc.List(context.Background())

	assert.Equal(t, SourceYouTube, first.Source)
	assert.Equal(t, first.Videos[0].ID, second.Videos[0].ID)
	assert.Equal(t, first.Videos[0].Title, second.Videos[0].Title)
	assert.EqualValues(t, 1, calls.Load())
}

func TestServiceWithoutStoreSkipsCache(t *testing.T) {
	var calls atomic.Int32
	srv := newSearchServer(t, http.StatusOK, searchJSON, &calls)
	svc := NewService(NewClient("key-1", "UC123", srv.URL, time.Second), nil)

	for i := 0; i < 2; i++ {
		listing := svc.List(context.Background())
		require.Len(t, listing.Videos, 2)
		assert.Equal(t, SourceYouTube, listing.Source)
	}
	assert.EqualValues(t, 2, calls.Load())
}
