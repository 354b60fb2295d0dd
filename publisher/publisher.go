package publisher

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-social-bot/types"
)

// LastPostTimeKey is the cache entry holding the epoch-ms timestamp of the
// last successful original post. The original-post scheduler reads it to
// decide whether the randomized gap has elapsed.
const LastPostTimeKey = "last_post_time"

// Publisher posts text through the social client with rate-limit-aware
// retries. Only rate-limit errors are retried, up to the configured bound.
// When the API signals a future reset the wait is that reset plus the margin,
// floored at the previously slept wait; without one the previous wait doubles,
// starting from the initial backoff. Duplicate-content on an original post
// earns one regeneration and one more try. Everything else fails immediately.
// Outcomes are booleans: the schedulers decide what a failure costs.
type Publisher struct {
	logger         types.Logger
	client         types.SocialClient
	generator      types.ReplyGenerator
	cache          types.CacheManager
	maxRetries     int
	initialBackoff time.Duration
	resetMargin    time.Duration

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewPublisher(logger types.Logger, client types.SocialClient, generator types.ReplyGenerator, cache types.CacheManager, config *types.PublisherConfig) *Publisher {
	return &Publisher{
		logger:         logger,
		client:         client,
		generator:      generator,
		cache:          cache,
		maxRetries:     config.MaxRetries,
		initialBackoff: config.InitialBackoff,
		resetMargin:    config.ResetMargin,
		sleep:          sleepContext,
	}
}

func (p *Publisher) PublishReply(ctx context.Context, postID, text string) bool {
	return p.publish(ctx, text, postID, false)
}

func (p *Publisher) PublishOriginal(ctx context.Context, text string) bool {
	return p.publish(ctx, text, "", true)
}

func (p *Publisher) publish(ctx context.Context, text, inReplyTo string, regenerable bool) bool {
	var slept time.Duration
	regenerated := false

	for attempt := 0; ; {
		id, err := p.client.Publish(ctx, text, inReplyTo)
		if err == nil {
			p.logger.Info("Published post",
				zap.String("id", id),
				zap.String("in_reply_to", inReplyTo))

			if inReplyTo == "" {
				p.recordPostTime()
			}

			return true
		}

		switch {
		case types.IsError(err, types.ErrRateLimited):
			attempt++
			if attempt > p.maxRetries {
				p.logger.Warn("Publish retry bound exceeded, giving up",
					zap.Int("max_retries", p.maxRetries))
				return false
			}

			delay := p.initialBackoff
			if slept > 0 {
				delay = slept * 2
			}
			if reset := resetDelay(err, p.resetMargin); reset > 0 {
				delay = reset
				if slept > delay {
					delay = slept
				}
			}

			p.logger.Info("Publish rate limited, backing off",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", p.maxRetries),
				zap.Duration("wait", delay))

			if sleepErr := p.sleep(ctx, delay); sleepErr != nil {
				p.logger.Warn("Publish backoff interrupted", zap.Error(sleepErr))
				return false
			}

			slept = delay

		case types.IsError(err, types.ErrDuplicateContent):
			if !regenerable || regenerated {
				p.logger.Warn("Duplicate content, giving up", zap.Error(err))
				return false
			}

			p.logger.Info("Duplicate content, regenerating and retrying once")
			regenerated = true
			text = p.generator.GenerateOriginal(ctx)

		default:
			p.logger.Error("Publish failed", zap.Error(err))
			return false
		}
	}
}

func (p *Publisher) recordPostTime() {
	// Default TTL on purpose: an expired entry reads as "never posted",
	// which only makes the next original post come sooner.
	if err := p.cache.Set(LastPostTimeKey, time.Now().UnixMilli(), 0); err != nil {
		p.logger.Warn("Failed to record last post time", zap.Error(err))
	}
}

func resetDelay(err error, margin time.Duration) time.Duration {
	var apiErr *types.APIError
	if !errors.As(err, &apiErr) || apiErr.RateLimit == nil || apiErr.RateLimit.Reset.IsZero() {
		return 0
	}
	return time.Until(apiErr.RateLimit.Reset) + margin
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

var _ types.Publisher = (*Publisher)(nil)
