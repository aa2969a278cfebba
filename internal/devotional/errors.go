package devotional

import (
	"errors"
	"regexp"
	"strings"
)

// Kind classifies failures for the presentation layer.
type Kind int

const (
	KindUnknown Kind = iota
	FetchFailure
	EnrichmentFailure
	EnrichmentRateLimited
	ConfigurationMissing
	LocationOrStorageUnavailable
)

func (k Kind) String() string {
	switch k {
	case FetchFailure:
		return "fetch_failure"
	case EnrichmentFailure:
		return "enrichment_failure"
	case EnrichmentRateLimited:
		return "enrichment_rate_limited"
	case ConfigurationMissing:
		return "configuration_missing"
	case LocationOrStorageUnavailable:
		return "location_or_storage_unavailable"
	default:
		return "unknown"
	}
}

var (
	// ErrAlreadyStarted is returned by View.Start after the first call.
	ErrAlreadyStarted = errors.New("devotional: view already started")
	// ErrViewClosed is returned when a closed view is used.
	ErrViewClosed = errors.New("devotional: view closed")
	// ErrConfigurationMissing marks an enricher without credentials.
	ErrConfigurationMissing = errors.New("devotional: enrichment is not configured")
)

// Error is a classified failure of a cache operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := "devotional: " + e.Op + ": " + e.Kind.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// UserMessage is the text shown to a reader for a failure kind.
func UserMessage(k Kind) string {
	switch k {
	case FetchFailure:
		return "Failed to load verse."
	case EnrichmentRateLimited:
		return "The context service is busy right now. Please try again later."
	case EnrichmentFailure:
		return "Failed to generate context."
	case ConfigurationMissing:
		return "Context generation is not configured."
	case LocationOrStorageUnavailable:
		return "Unable to load weather."
	default:
		return "Something went wrong."
	}
}

var rateLimitPhrases = []string{
	"rate limit",
	"rate-limit",
	"ratelimit",
	"too many requests",
	"resource_exhausted",
	"resource exhausted",
	"quota",
}

// rateLimitStatus matches 429 only as a status code, not inside ports or IDs.
var rateLimitStatus = regexp.MustCompile(`\b(?:http|status|code|error)\W{0,3}429\b`)

// rateLimiter is implemented by upstream errors that know their own status.
type rateLimiter interface {
	RateLimited() bool
}

// IsRateLimit reports whether err is an upstream rate limit. Structured errors
// decide first; plain errors are matched on their message.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var rl rateLimiter
	if errors.As(err, &rl) && rl.RateLimited() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, phrase := range rateLimitPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return rateLimitStatus.MatchString(msg)
}

// classifyEnrichment maps a raw enricher error to its Kind.
func classifyEnrichment(err error) *Error {
	kind := EnrichmentFailure
	switch {
	case errors.Is(err, ErrConfigurationMissing):
		kind = ConfigurationMissing
	case IsRateLimit(err):
		kind = EnrichmentRateLimited
	}
	return &Error{Kind: kind, Op: "enrich", Err: err}
}
