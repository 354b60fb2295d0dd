package types

import (
	"errors"
	"fmt"
)

var (
	ErrConfigNotFound       = errors.New("config not found")
	ErrConfigInvalidPath    = errors.New("config invalid path")
	ErrConfigParseFailed    = errors.New("config parse failed")
	ErrConfigIsNil          = errors.New("config is nil")
	ErrConfigValidateFailed = errors.New("config validate failed")
)

var (
	ErrCacheKeyEmpty        = errors.New("cache key empty")
	ErrCacheTypeUnknown     = errors.New("cache type unknown")
	ErrCacheOperationFailed = errors.New("cache operation failed")
)

var (
	ErrCronIsRunning         = errors.New("cron is running")
	ErrCronSchedulerStopped  = errors.New("cron scheduler stopped")
	ErrCronJobExists         = errors.New("cron job exists")
	ErrCronExpressionInvalid = errors.New("cron expression invalid")
	ErrCronJobFailed         = errors.New("cron job failed")
	ErrCronJobNameIsEmpty    = errors.New("cron job name is empty")
	ErrCronJobIsNil          = errors.New("cron job is nil")
	ErrCronJobTimeout        = errors.New("cron job timeout")
)

var (
	ErrMetricsTypeUnknown = errors.New("metrics type unknown")
	ErrMetricsStartFailed = errors.New("metrics start failed")
	ErrMetricsIsDisabled  = errors.New("metrics manager is disabled")
)

var (
	ErrClientRequestFailed   = errors.New("client request failed")
	ErrClientResponseInvalid = errors.New("client response invalid")
	ErrClientNotRunning      = errors.New("client not running")
	ErrCircuitBreakerOpen    = errors.New("circuit breaker open")
)

// Error classes the schedulers and the publisher dispatch on. API errors from
// the social network map onto these through APIError.Is.
var (
	ErrRateLimited      = errors.New("rate limited")
	ErrDuplicateContent = errors.New("duplicate content")
	ErrGenerationFailed = errors.New("generation failed")
	ErrNoCachedPosts    = errors.New("no cached posts available")
	ErrAccountUnmapped  = errors.New("account has no user id mapping")
)

var (
	ErrCheckpointLoadFailed = errors.New("checkpoint load failed")
	ErrCheckpointSaveFailed = errors.New("checkpoint save failed")
)

var (
	ErrLogFileIsEmpty     = errors.New("log file is empty")
	ErrLogFileWrongFormat = errors.New("log file wrong format")
	ErrLoggerTypeUnknown  = errors.New("logger type unknown")
)

var (
	ErrServiceIsNotRunning   = errors.New("service is not running")
	ErrServiceAlreadyRunning = errors.New("service already running")
	ErrComponentStartFailed  = errors.New("component start failed")
	ErrComponentStopFailed   = errors.New("component stop failed")
)

func Errorf(baseErr error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", baseErr, fmt.Sprintf(format, args...))
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func NewErrorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

func IsError(err, target error) bool {
	return errors.Is(err, target)
}
