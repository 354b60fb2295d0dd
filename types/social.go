package types

import (
	"context"
	"time"
)

// Post is a single content item on the external platform. IDs are opaque
// strings that sort by recency within one author's timeline.
type Post struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	AuthorID string `json:"author_id,omitempty"`
}

// RateLimitInfo carries the throttle state the API reports alongside
// responses and 429 errors.
type RateLimitInfo struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	Reset     time.Time `json:"reset"`
}

type TimelineOptions struct {
	SinceID    string
	MaxResults int
}

// APIError is a failed call to the social network. StatusCode distinguishes
// rate limiting (429) and duplicate content (409) from generic failures;
// RateLimit is set for 429 responses that include a reset instant.
type APIError struct {
	StatusCode int
	Message    string
	RateLimit  *RateLimitInfo
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return Errorf(ErrClientRequestFailed, "status %d", e.StatusCode).Error()
	}
	return Errorf(ErrClientRequestFailed, "status %d: %s", e.StatusCode, e.Message).Error()
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.StatusCode == 429
	case ErrDuplicateContent:
		return e.StatusCode == 409
	case ErrClientRequestFailed:
		return true
	}
	return false
}

// ResetTime returns the signaled rate-limit reset, or the zero time when the
// API supplied none.
func (e *APIError) ResetTime() time.Time {
	if e.RateLimit == nil {
		return time.Time{}
	}
	return e.RateLimit.Reset
}

// SocialClient is the capability set required from the social network.
type SocialClient interface {
	FetchTimeline(ctx context.Context, userID string, opts TimelineOptions) ([]Post, *RateLimitInfo, error)
	Publish(ctx context.Context, text, inReplyTo string) (string, error)
	Close()
}

// GenerationClient is the text-generation API, treated as a black box that
// returns free text or fails.
type GenerationClient interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
	Close()
}
