package generator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"strings"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-social-bot/types"
)

const replyKeyPrefix = "reply_"

// Generator produces reply and original post text through the generation API.
// Replies are cached by source-text hash so repeated encounters with the same
// post never cost a second generation call. Failures degrade to fallback text,
// never to an error: a broken generation backend must not stall a cycle.
type Generator struct {
	logger types.Logger
	llm    types.GenerationClient
	cache  types.CacheManager
	config *types.BotConfig
}

func NewGenerator(logger types.Logger, llm types.GenerationClient, cache types.CacheManager, config *types.BotConfig) *Generator {
	return &Generator{
		logger: logger,
		llm:    llm,
		cache:  cache,
		config: config,
	}
}

func (g *Generator) GenerateReply(ctx context.Context, sourceText string) string {
	trimmed := strings.TrimSpace(sourceText)
	key := replyCacheKey(trimmed)

	if value, found := g.cache.Get(key); found {
		if cached, ok := value.(string); ok && cached != "" {
			g.logger.Debug("Reply served from cache", zap.String("key", key))
			return cached
		}
	}

	prompt := fmt.Sprintf("Generate a brief, thoughtful reply (1-2 sentences) to this post: %q", trimmed)

	raw, err := g.llm.Generate(ctx, g.config.ReplyPersona, prompt)
	if err != nil {
		g.logger.Warn("Reply generation failed, using fallback", zap.Error(err))
		return g.config.ReplyFallback
	}

	reply := Format(raw)

	if err := g.cache.Set(key, reply, g.config.ReplyCacheTTL); err != nil {
		g.logger.Warn("Failed to cache reply", zap.String("key", key), zap.Error(err))
	}

	return reply
}

func (g *Generator) GenerateOriginal(ctx context.Context) string {
	topic := g.pickTopic()

	prompt := fmt.Sprintf("Generate a brief, casual post (1-2 sentences) about %s that sounds like a real human wrote it. Make it engaging and potentially spark conversation.", topic)

	raw, err := g.llm.Generate(ctx, g.config.PostPersona, prompt)
	if err != nil {
		g.logger.Warn("Original post generation failed, using fallback", zap.String("topic", topic), zap.Error(err))
		return fmt.Sprintf("Just thinking about %s today.\n\nThoughts?", topic)
	}

	return Format(raw)
}

func (g *Generator) pickTopic() string {
	if len(g.config.Topics) == 0 {
		return "the usual"
	}
	return g.config.Topics[rand.IntN(len(g.config.Topics))]
}

func replyCacheKey(trimmedText string) string {
	sum := sha256.Sum256([]byte(trimmedText))
	return replyKeyPrefix + hex.EncodeToString(sum[:])
}

var _ types.ReplyGenerator = (*Generator)(nil)
