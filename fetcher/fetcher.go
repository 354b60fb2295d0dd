package fetcher

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-social-bot/types"
	"github.com/saiset-co/sai-social-bot/utils"
)

const postsKeyPrefix = "posts_"

// Fetcher pulls an account's new posts from the social API and keeps the last
// successful batch cached. A rate-limited fetch with a known reset instant
// waits it out and retries once; any terminal failure is answered from the
// cache when possible, tagged stale, so a flaky upstream degrades the cycle
// instead of breaking it.
type Fetcher struct {
	logger     types.Logger
	client     types.SocialClient
	cache      types.CacheManager
	maxResults int
	cacheTTL   time.Duration

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewFetcher(logger types.Logger, client types.SocialClient, cache types.CacheManager, config *types.BotConfig) *Fetcher {
	return &Fetcher{
		logger:     logger,
		client:     client,
		cache:      cache,
		maxResults: config.MaxResults,
		cacheTTL:   config.PostsCacheTTL,
		sleep:      sleepContext,
	}
}

// Fetch returns posts for account strictly newer than sinceID, newest first.
func (f *Fetcher) Fetch(ctx context.Context, account types.Account, sinceID string) (*types.FetchResult, error) {
	opts := types.TimelineOptions{
		SinceID:    sinceID,
		MaxResults: f.maxResults,
	}

	posts, rateLimit, err := f.client.FetchTimeline(ctx, account.UserID, opts)

	if err != nil && types.IsError(err, types.ErrRateLimited) {
		wait := waitUntilReset(rateLimit, time.Now())
		if wait > 0 {
			f.logger.Info("Fetch rate limited, waiting for reset",
				zap.String("account", account.Handle),
				zap.Duration("wait", wait))

			if sleepErr := f.sleep(ctx, wait); sleepErr != nil {
				return nil, sleepErr
			}

			posts, _, err = f.client.FetchTimeline(ctx, account.UserID, opts)
		}
	}

	if err != nil {
		if cached, found := f.loadCached(account.UserID); found {
			f.logger.Warn("Fetch failed, serving cached posts",
				zap.String("account", account.Handle),
				zap.Int("posts", len(cached)),
				zap.Error(err))

			return &types.FetchResult{
				Posts:     cached,
				Freshness: types.FreshnessCached,
			}, nil
		}

		return nil, err
	}

	if len(posts) > 0 {
		if cacheErr := f.cache.Set(postsKeyPrefix+account.UserID, posts, f.cacheTTL); cacheErr != nil {
			f.logger.Warn("Failed to cache fetched posts",
				zap.String("account", account.Handle),
				zap.Error(cacheErr))
		}
	}

	return &types.FetchResult{
		Posts:     posts,
		Freshness: types.FreshnessLive,
	}, nil
}

func (f *Fetcher) loadCached(userID string) ([]types.Post, bool) {
	value, found := f.cache.Get(postsKeyPrefix + userID)
	if !found {
		return nil, false
	}

	// The file backend hands back decoded JSON, not the original slice.
	var posts []types.Post
	if err := utils.Remarshal(value, &posts); err != nil {
		f.logger.Warn("Discarding undecodable cached posts", zap.String("user_id", userID), zap.Error(err))
		return nil, false
	}

	if len(posts) == 0 {
		return nil, false
	}

	return posts, true
}

func waitUntilReset(rateLimit *types.RateLimitInfo, now time.Time) time.Duration {
	if rateLimit == nil || rateLimit.Reset.IsZero() {
		return 0
	}
	return rateLimit.Reset.Sub(now)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ types.ContentFetcher = (*Fetcher)(nil)
