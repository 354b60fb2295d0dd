package types

import (
	"time"
)

type ConfigManager interface {
	Load() error
	GetConfig() *ServiceConfig
	GetValue(path string, defaultValue interface{}) interface{}
}

type ServiceConfig struct {
	Name        string            `yaml:"name" json:"name" validate:"required"`
	Version     string            `yaml:"version" json:"version" validate:"required"`
	Logger      *LoggerConfig     `yaml:"logger" json:"logger"`
	Cache       *CacheConfig      `yaml:"cache" json:"cache"`
	Checkpoint  *CheckpointConfig `yaml:"checkpoint" json:"checkpoint"`
	Cron        *CronConfig       `yaml:"cron" json:"cron"`
	Metrics     *MetricsConfig    `yaml:"metrics" json:"metrics"`
	Social      *SocialConfig     `yaml:"social" json:"social"`
	Generation  *GenerationConfig `yaml:"generation" json:"generation"`
	Bot         *BotConfig        `yaml:"bot" json:"bot"`
	Publisher   *PublisherConfig  `yaml:"publisher" json:"publisher"`
	Credentials *Credentials      `yaml:"-" json:"-"`
}

type LoggerConfig struct {
	Level  string `yaml:"level" json:"level" validate:"required"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
	File   string `yaml:"file" json:"file"`
}

type CacheConfig struct {
	Type            string        `yaml:"type" json:"type" validate:"required,oneof=file memory"`
	Dir             string        `yaml:"dir" json:"dir"`
	DefaultTTL      time.Duration `yaml:"default_ttl" json:"default_ttl" validate:"min=0"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval" validate:"min=0"`
}

type CheckpointConfig struct {
	Dir string `yaml:"dir" json:"dir" validate:"required"`
}

type CronConfig struct {
	Timezone   string        `yaml:"timezone" json:"timezone" validate:"required"`
	JobTimeout time.Duration `yaml:"job_timeout" json:"job_timeout"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Namespace string `yaml:"namespace" json:"namespace"`
	Listen    string `yaml:"listen" json:"listen"`
	Path      string `yaml:"path" json:"path"`
}

type SocialConfig struct {
	BaseURL        string                `yaml:"base_url" json:"base_url" validate:"required,url"`
	Timeout        time.Duration         `yaml:"timeout" json:"timeout"`
	CircuitBreaker *CircuitBreakerConfig `yaml:"circuit_breaker" json:"circuit_breaker"`
}

type CircuitBreakerConfig struct {
	Enabled          bool          `yaml:"enabled" json:"enabled"`
	FailureThreshold int           `yaml:"failure_threshold" json:"failure_threshold"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout" json:"recovery_timeout"`
	HalfOpenRequests int           `yaml:"half_open_requests" json:"half_open_requests"`
}

type GenerationConfig struct {
	BaseURL string        `yaml:"base_url" json:"base_url" validate:"required,url"`
	Model   string        `yaml:"model" json:"model" validate:"required"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

type BotConfig struct {
	Accounts              []Account     `yaml:"accounts" json:"accounts" validate:"required,min=1,dive"`
	PollInterval          time.Duration `yaml:"poll_interval" json:"poll_interval" validate:"min=1s"`
	OriginalCheckInterval time.Duration `yaml:"original_check_interval" json:"original_check_interval" validate:"min=1s"`
	MaxResults            int           `yaml:"max_results" json:"max_results" validate:"min=1,max=100"`
	ReplyDelay            time.Duration `yaml:"reply_delay" json:"reply_delay" validate:"min=0"`
	PostsCacheTTL         time.Duration `yaml:"posts_cache_ttl" json:"posts_cache_ttl" validate:"min=0"`
	ReplyCacheTTL         time.Duration `yaml:"reply_cache_ttl" json:"reply_cache_ttl" validate:"min=0"`
	MinPostGapHours       float64       `yaml:"min_post_gap_hours" json:"min_post_gap_hours" validate:"min=0"`
	MaxPostGapHours       float64       `yaml:"max_post_gap_hours" json:"max_post_gap_hours" validate:"gtefield=MinPostGapHours"`
	ReplyPersona          string        `yaml:"reply_persona" json:"reply_persona"`
	PostPersona           string        `yaml:"post_persona" json:"post_persona"`
	Topics                []string      `yaml:"topics" json:"topics"`
	ReplyFallback         string        `yaml:"reply_fallback" json:"reply_fallback"`
}

type PublisherConfig struct {
	MaxRetries     int           `yaml:"max_retries" json:"max_retries" validate:"min=0"`
	InitialBackoff time.Duration `yaml:"initial_backoff" json:"initial_backoff" validate:"min=0"`
	ResetMargin    time.Duration `yaml:"reset_margin" json:"reset_margin" validate:"min=0"`
}

// Credentials are read from the process environment only, never from the
// config file.
type Credentials struct {
	SocialBearerToken string `env:"SOCIAL_BEARER_TOKEN"`
	GenerationAPIKey  string `env:"GENERATION_API_KEY"`
}
