package bot

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-social-bot/types"
)

// cycleState is the mutable state of one reply pass: the per-account
// checkpoint map and the round-robin cursor. It is loaded at cycle start and
// persisted at commit points, never held between cycles.
type cycleState struct {
	checkpoints map[string]string
	cursor      int
}

// ReplyCycle runs one polling pass over the configured accounts in rotated
// order. Checkpoints are advanced and persisted before any reply goes out, so
// a crash mid-cycle never causes a post to be reprocessed. A rate-limited
// fetch halts the whole pass with the cursor still pointing at the affected
// account; every other per-account failure just moves on.
type ReplyCycle struct {
	logger      types.Logger
	fetcher     types.ContentFetcher
	generator   types.ReplyGenerator
	publisher   types.Publisher
	checkpoints types.CheckpointStore
	cache       types.CacheManager
	config      *types.BotConfig

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewReplyCycle(
	logger types.Logger,
	fetcher types.ContentFetcher,
	generator types.ReplyGenerator,
	publisher types.Publisher,
	checkpoints types.CheckpointStore,
	cache types.CacheManager,
	config *types.BotConfig,
) *ReplyCycle {
	return &ReplyCycle{
		logger:      logger,
		fetcher:     fetcher,
		generator:   generator,
		publisher:   publisher,
		checkpoints: checkpoints,
		cache:       cache,
		config:      config,
		sleep:       sleepContext,
	}
}

// Run executes one full pass. It never returns an error: every failure mode
// is logged and resolved inside the pass, and the next pass is the retry.
func (rc *ReplyCycle) Run(ctx context.Context) {
	accounts := rc.config.Accounts
	if len(accounts) == 0 {
		rc.logger.Warn("No accounts configured, skipping reply cycle")
		return
	}

	state, err := rc.loadState(len(accounts))
	if err != nil {
		rc.logger.ErrorWithErrStack("Failed to load cycle state", err)
		return
	}

	defer rc.sweepCache()

	rc.logger.Debug("Reply cycle started",
		zap.Int("accounts", len(accounts)),
		zap.Int("cursor", state.cursor))

	for i := 0; i < len(accounts); i++ {
		if ctx.Err() != nil {
			return
		}

		idx := (state.cursor + i) % len(accounts)
		account := accounts[idx]

		if rc.processAccount(ctx, state, account) {
			// Rate limited: resume at this account next cycle.
			rc.saveCursor(idx)
			return
		}

		rc.saveCursor((idx + 1) % len(accounts))
	}
}

// processAccount handles one account and reports whether the cycle must halt.
func (rc *ReplyCycle) processAccount(ctx context.Context, state *cycleState, account types.Account) bool {
	if account.UserID == "" {
		rc.logger.Error("Skipping account without user id mapping",
			zap.String("account", account.Handle),
			zap.Error(types.ErrAccountUnmapped))
		return false
	}

	result, err := rc.fetcher.Fetch(ctx, account, state.checkpoints[account.Handle])
	if err != nil {
		if types.IsError(err, types.ErrRateLimited) {
			rc.logger.Warn("Fetch rate limited, halting cycle",
				zap.String("account", account.Handle),
				zap.Error(err))
			return true
		}

		rc.logger.Error("Fetch failed, skipping account",
			zap.String("account", account.Handle),
			zap.Error(err))
		return false
	}

	posts := result.Posts
	if len(posts) == 0 {
		rc.logger.Debug("No new posts", zap.String("account", account.Handle))
		return false
	}

	rc.logger.Info("New posts fetched",
		zap.String("account", account.Handle),
		zap.Int("posts", len(posts)),
		zap.String("freshness", result.Freshness.String()))

	// Commit the checkpoint before replying so these posts are never
	// fetched again, even if every reply below fails.
	state.checkpoints[account.Handle] = posts[0].ID
	if err := rc.checkpoints.SaveCheckpoints(state.checkpoints); err != nil {
		rc.logger.Error("Failed to persist checkpoints",
			zap.String("account", account.Handle),
			zap.Error(err))
	}

	rc.replyToPosts(ctx, account, posts)

	return false
}

// replyToPosts works oldest-first so conversation threads read naturally.
// The first exhausted-retries publish defers the account's remaining posts to
// a later cycle.
func (rc *ReplyCycle) replyToPosts(ctx context.Context, account types.Account, posts []types.Post) {
	for i := len(posts) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			return
		}

		post := posts[i]
		text := rc.generator.GenerateReply(ctx, post.Text)

		if !rc.publisher.PublishReply(ctx, post.ID, text) {
			rc.logger.Warn("Reply publish failed, deferring remaining posts",
				zap.String("account", account.Handle),
				zap.String("post_id", post.ID),
				zap.Int("deferred", i))
			return
		}

		rc.logger.Info("Replied to post",
			zap.String("account", account.Handle),
			zap.String("post_id", post.ID))

		if i > 0 && rc.config.ReplyDelay > 0 {
			if err := rc.sleep(ctx, rc.config.ReplyDelay); err != nil {
				return
			}
		}
	}
}

func (rc *ReplyCycle) loadState(accountCount int) (*cycleState, error) {
	checkpoints, err := rc.checkpoints.LoadCheckpoints()
	if err != nil {
		return nil, err
	}

	cursor, err := rc.checkpoints.LoadCursor()
	if err != nil {
		return nil, err
	}

	// The account list may have shrunk since the cursor was written.
	if cursor >= accountCount {
		cursor = 0
	}

	return &cycleState{
		checkpoints: checkpoints,
		cursor:      cursor,
	}, nil
}

func (rc *ReplyCycle) saveCursor(index int) {
	if err := rc.checkpoints.SaveCursor(index); err != nil {
		rc.logger.Error("Failed to persist cursor", zap.Int("cursor", index), zap.Error(err))
	}
}

func (rc *ReplyCycle) sweepCache() {
	if err := rc.cache.Cleanup(); err != nil {
		rc.logger.Warn("Cache sweep failed", zap.Error(err))
	}
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
