package config

import (
	"context"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/saiset-co/sai-social-bot/types"
)

type Loader struct {
	validator *validator.Validate
}

func NewLoader() *Loader {
	return &Loader{
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (l *Loader) LoadFromFile(ctx context.Context, configPath string) (*types.ServiceConfig, error) {
	if configPath == "" {
		return nil, types.ErrConfigNotFound
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, types.WrapError(err, "file not found: "+configPath)
	}

	data, err := l.readFileWithTimeout(ctx, configPath)
	if err != nil {
		return nil, types.WrapError(err, "failed to read config file")
	}

	config := l.Defaults()

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, types.WrapError(err, "failed to parse YAML config")
	}

	creds := &types.Credentials{}
	if err := env.Parse(creds); err != nil {
		return nil, types.WrapError(err, "failed to read credentials from environment")
	}
	config.Credentials = creds

	if err := l.validator.Struct(config); err != nil {
		return nil, types.WrapError(err, "config validation failed")
	}

	return config, nil
}

func (l *Loader) readFileWithTimeout(ctx context.Context, filepath string) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}

	resultChan := make(chan result, 1)

	go func() {
		data, err := os.ReadFile(filepath)
		resultChan <- result{data: data, err: err}
	}()

	select {
	case res := <-resultChan:
		return res.data, res.err
	case <-ctx.Done():
		return nil, types.WrapError(ctx.Err(), "file read timeout")
	}
}

// Defaults mirrors the behavior of the original deployment: 15m polling,
// max 5 posts per fetch, 1h post cache, 7d reply cache, 60s publish backoff
// with a 5s reset margin, and a 14-24h randomized original-post window.
func (l *Loader) Defaults() *types.ServiceConfig {
	return &types.ServiceConfig{
		Logger: &types.LoggerConfig{
			Level:  "debug",
			Format: "console",
			Output: "stdout",
		},
		Cache: &types.CacheConfig{
			Type:            "file",
			Dir:             "./cache",
			DefaultTTL:      24 * time.Hour,
			CleanupInterval: 5 * time.Minute,
		},
		Checkpoint: &types.CheckpointConfig{
			Dir: "./state",
		},
		Cron: &types.CronConfig{
			Timezone:   "UTC",
			JobTimeout: 30 * time.Minute,
		},
		Metrics: &types.MetricsConfig{
			Enabled:   false,
			Namespace: "sai_social_bot",
			Listen:    ":9090",
			Path:      "/metrics",
		},
		Social: &types.SocialConfig{
			Timeout: 30 * time.Second,
			CircuitBreaker: &types.CircuitBreakerConfig{
				Enabled: false,
			},
		},
		Generation: &types.GenerationConfig{
			Timeout: 60 * time.Second,
		},
		Bot: &types.BotConfig{
			PollInterval:          15 * time.Minute,
			OriginalCheckInterval: 30 * time.Minute,
			MaxResults:            5,
			ReplyDelay:            5 * time.Second,
			PostsCacheTTL:         time.Hour,
			ReplyCacheTTL:         7 * 24 * time.Hour,
			MinPostGapHours:       14,
			MaxPostGapHours:       24,
			ReplyFallback:         "Cool post!",
		},
		Publisher: &types.PublisherConfig{
			MaxRetries:     3,
			InitialBackoff: time.Minute,
			ResetMargin:    5 * time.Second,
		},
	}
}
