package bot

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-social-bot/publisher"
	"github.com/saiset-co/sai-social-bot/types"
	"github.com/saiset-co/sai-social-bot/utils"
)

// OriginalPoster decides on each check whether enough time has passed since
// the last original post. The threshold is redrawn uniformly from the
// configured hour range on every check, so the effective posting interval is
// a range, not a constant.
type OriginalPoster struct {
	logger    types.Logger
	generator types.ReplyGenerator
	publisher types.Publisher
	cache     types.CacheManager
	config    *types.BotConfig

	// randFloat is swapped out in tests.
	randFloat func() float64
	now       func() time.Time
}

func NewOriginalPoster(
	logger types.Logger,
	generator types.ReplyGenerator,
	pub types.Publisher,
	cache types.CacheManager,
	config *types.BotConfig,
) *OriginalPoster {
	return &OriginalPoster{
		logger:    logger,
		generator: generator,
		publisher: pub,
		cache:     cache,
		config:    config,
		randFloat: rand.Float64,
		now:       time.Now,
	}
}

// Run performs one check-and-maybe-post invocation.
func (op *OriginalPoster) Run(ctx context.Context) {
	elapsed := op.hoursSinceLastPost()
	threshold := op.drawThreshold()

	op.logger.Debug("Original post check",
		zap.Float64("hours_since_last", elapsed),
		zap.Float64("threshold_hours", threshold))

	if elapsed < threshold {
		return
	}

	op.logger.Info("Posting a new original post",
		zap.Float64("hours_since_last", elapsed))

	text := op.generator.GenerateOriginal(ctx)

	if !op.publisher.PublishOriginal(ctx, text) {
		op.logger.Warn("Original post publish failed")
	}
}

// hoursSinceLastPost reads the timestamp recorded by the publisher. A missing
// or unreadable entry counts as "never posted".
func (op *OriginalPoster) hoursSinceLastPost() float64 {
	value, found := op.cache.Get(publisher.LastPostTimeKey)
	if !found {
		return float64(op.now().UnixMilli()) / float64(time.Hour.Milliseconds())
	}

	var lastMillis int64
	if err := utils.Remarshal(value, &lastMillis); err != nil || lastMillis <= 0 {
		op.logger.Warn("Unreadable last post time, treating as never posted", zap.Error(err))
		return float64(op.now().UnixMilli()) / float64(time.Hour.Milliseconds())
	}

	return float64(op.now().UnixMilli()-lastMillis) / float64(time.Hour.Milliseconds())
}

func (op *OriginalPoster) drawThreshold() float64 {
	minHours := op.config.MinPostGapHours
	maxHours := op.config.MaxPostGapHours
	if maxHours <= minHours {
		return minHours
	}
	return minHours + op.randFloat()*(maxHours-minHours)
}
