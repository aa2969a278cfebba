package gemini

import (
	"bytes"
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

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.0-flash"
)

// ErrMissingAPIKey is returned before any request when no API key is configured.
var ErrMissingAPIKey = errors.New("GEMINI_API_KEY is not set in environment variables")

// APIError is a non-success response from the generateContent endpoint.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("gemini API error: %d", e.StatusCode)
	if e.Status != "" {
		msg += " " + e.Status
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// RateLimited reports whether the response was a quota or rate limit rejection.
func (e *APIError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.Status == "RESOURCE_EXHAUSTED"
}

// Client calls the Gemini generateContent REST endpoint.
type Client struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a Gemini client. Empty model and baseURL fall back to defaults.
func NewClient(apiKey, model, baseURL string, timeout time.Duration) *Client {
	if model == "" {
		model = defaultModel
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		APIKey:  strings.TrimSpace(apiKey),
		Model:   model,
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c != nil && c.APIKey != ""
}

// VersePrompt builds the devotional context prompt for a verse.
func VersePrompt(reference, text string) string {
	return fmt.Sprintf(
		"Provide a detailed, spiritual, and historical context for the Bible verse: %s - %q. "+
			"Explain its meaning and application for a daily devotional. "+
			"Keep the tone encouraging and instructional. Limit the response to around 500 words.",
		reference, text,
	)
}

// VerseContext generates devotional commentary for a verse.
func (c *Client) VerseContext(ctx context.Context, reference, text string) (string, error) {
	return c.Generate(ctx, VersePrompt(reference, text))
}

// Generate sends a single-turn prompt and returns the concatenated text of the first candidate.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c == nil || c.APIKey == "" {
		return "", ErrMissingAPIKey
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.BaseURL, url.PathEscape(c.Model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload errorResponse
		if json.Unmarshal(data, &payload) == nil {
			apiErr.Status = payload.Error.Status
			apiErr.Message = payload.Error.Message
		}
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return "", apiErr
	}

	var out generateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if reason := out.PromptFeedback.BlockReason; reason != "" {
		return "", fmt.Errorf("prompt blocked: %s", reason)
	}
	if len(out.Candidates) == 0 {
		return "", errors.New("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	result := strings.TrimSpace(sb.String())
	if result == "" {
		return "", errors.New("gemini returned an empty response")
	}
	return result, nil
}
