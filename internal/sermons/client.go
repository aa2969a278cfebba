package sermons

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultSearchURL = "https://www.googleapis.com/youtube/v3/search"
	maxResults       = 9
)

// ErrNotConfigured is returned when the API key or channel ID is missing.
var ErrNotConfigured = errors.New("youtube API key or channel ID missing")

// Video is one sermon entry.
type Video struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Date  time.Time `json:"date"`
}

// APIError is a non-success response from the YouTube Data API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("youtube API error: %d", e.StatusCode)
	}
	return fmt.Sprintf("youtube API error: %d: %s", e.StatusCode, e.Message)
}

// Client handles YouTube Data API search requests
type Client struct {
	APIKey     string
	ChannelID  string
	SearchURL  string
	HTTPClient *http.Client
}

// NewClient creates a YouTube client. An empty searchURL uses the public endpoint.
func NewClient(apiKey, channelID, searchURL string, timeout time.Duration) *Client {
	if searchURL == "" {
		searchURL = defaultSearchURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		APIKey:    apiKey,
		ChannelID: channelID,
		SearchURL: searchURL,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Configured reports whether both the API key and channel ID are set.
func (c *Client) Configured() bool {
	return c != nil && c.APIKey != "" && c.ChannelID != ""
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title       string    `json:"title"`
			PublishedAt time.Time `json:"publishedAt"`
		} `json:"snippet"`
	} `json:"items"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Latest fetches the channel's newest videos, newest first.
func (c *Client) Latest(ctx context.Context) ([]Video, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	params := url.Values{}
	params.Set("key", c.APIKey)
	params.Set("channelId", c.ChannelID)
	params.Set("part", "snippet,id")
	params.Set("order", "date")
	params.Set("maxResults", strconv.Itoa(maxResults))
	params.Set("type", "video")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.SearchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var er errorResponse
		if json.Unmarshal(body, &er) == nil {
			apiErr.Message = er.Error.Message
		}
		return nil, apiErr
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, err
	}

	videos := make([]Video, 0, len(sr.Items))
	for _, item := range sr.Items {
		if item.ID.VideoID == "" {
			continue
		}
		videos = append(videos, Video{
			ID:    item.ID.VideoID,
			Title: html.UnescapeString(item.Snippet.Title),
			Date:  item.Snippet.PublishedAt,
		})
	}
	return videos, nil
}
