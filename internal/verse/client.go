package verse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://bible-api.com"

// StatusError reports a non-success response from the verse API.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("verse API error: %d %s", e.StatusCode, e.Status)
}

// Verse is a single passage as returned by the random verse endpoint.
type Verse struct {
	Text      string `json:"text"`
	Reference string `json:"reference"`
}

// ChapterVerse is one numbered verse inside a chapter.
type ChapterVerse struct {
	BookID   string `json:"book_id"`
	BookName string `json:"book_name"`
	Chapter  int    `json:"chapter"`
	Verse    int    `json:"verse"`
	Text     string `json:"text"`
}

// Chapter is a full chapter lookup.
type Chapter struct {
	Reference string         `json:"reference"`
	Verses    []ChapterVerse `json:"verses"`
	Text      string         `json:"text"`
}

// Client handles verse API interactions
type Client struct {
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
}

// NewClient creates a verse API client. An empty baseURL uses bible-api.com.
func NewClient(baseURL, userAgent string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		UserAgent: userAgent,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	return io.ReadAll(resp.Body)
}

// RandomVerse fetches a random verse. The text is trimmed of surrounding whitespace.
func (c *Client) RandomVerse(ctx context.Context) (*Verse, error) {
	data, err := c.get(ctx, c.BaseURL+"/?random=verse")
	if err != nil {
		return nil, err
	}

	var v Verse
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode verse: %w", err)
	}

	v.Text = strings.TrimSpace(v.Text)
	v.Reference = strings.TrimSpace(v.Reference)
	if v.Text == "" || v.Reference == "" {
		return nil, errors.New("verse API returned an empty verse")
	}
	return &v, nil
}

// GetChapter fetches a passage by reference, e.g. "John 3".
func (c *Client) GetChapter(ctx context.Context, reference string) (*Chapter, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, errors.New("chapter reference is required")
	}

	data, err := c.get(ctx, c.BaseURL+"/"+url.PathEscape(reference))
	if err != nil {
		return nil, err
	}

	var ch Chapter
	if err := json.Unmarshal(data, &ch); err != nil {
		return nil, fmt.Errorf("failed to decode chapter: %w", err)
	}
	for i := range ch.Verses {
		ch.Verses[i].Text = strings.TrimSpace(ch.Verses[i].Text)
	}
	return &ch, nil
}

// ChapterReference strips the verse part of a reference: "John 3:16" becomes "John 3".
// References without a verse part are returned unchanged.
func ChapterReference(reference string) string {
	reference = strings.TrimSpace(reference)
	if idx := strings.LastIndex(reference, ":"); idx != -1 {
		return strings.TrimSpace(reference[:idx])
	}
	return reference
}
