package types

import (
	"context"
)

// Freshness tags a fetch result so callers can tell a live batch from a
// stale cached fallback without inspecting logs.
type Freshness int

const (
	FreshnessLive Freshness = iota
	FreshnessCached
)

func (f Freshness) String() string {
	if f == FreshnessCached {
		return "cached"
	}
	return "live"
}

// FetchResult is an ordered batch of posts for one account, newest first as
// the API returns them; callers walk it in reverse to process oldest first.
type FetchResult struct {
	Posts     []Post
	Freshness Freshness
}

// ContentFetcher retrieves posts newer than sinceID for one tracked account.
// Errors keep their class: errors.Is(err, ErrRateLimited) holds when the
// terminal failure was the rate limiter and no cached fallback existed.
type ContentFetcher interface {
	Fetch(ctx context.Context, account Account, sinceID string) (*FetchResult, error)
}

// ReplyGenerator produces short-form text. Both methods degrade to a fixed
// fallback string on failure and never return an error.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, sourceText string) string
	GenerateOriginal(ctx context.Context) string
}

// Publisher posts text to the platform with bounded rate-limit retries.
// A false return means the item was given up on; the caller decides whether
// to defer it to a later cycle.
type Publisher interface {
	PublishReply(ctx context.Context, postID, text string) bool
	PublishOriginal(ctx context.Context, text string) bool
}

// CheckpointStore persists per-account fetch cursors and the round-robin
// index across restarts. Missing state is a cold start, not an error.
type CheckpointStore interface {
	LoadCheckpoints() (map[string]string, error)
	SaveCheckpoints(map[string]string) error
	LoadCursor() (int, error)
	SaveCursor(int) error
}

// Account is one tracked account: the config handle used as checkpoint key
// and the platform user id used for timeline fetches. An empty UserID means
// the mapping is missing and the account is skipped.
type Account struct {
	Handle string `yaml:"handle" json:"handle" validate:"required"`
	UserID string `yaml:"user_id" json:"user_id"`
}
