package social

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-social-bot/types"
)

type BreakerState int32

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker guards an upstream API from sustained failure storms. It is
// disabled by default so it never interferes with the schedulers' own
// rate-limit handling; deployments that want it opt in via config.
type CircuitBreaker struct {
	logger           types.Logger
	name             string
	enabled          bool
	failureThreshold int
	recoveryTimeout  time.Duration
	halfOpenRequests int

	mu              sync.Mutex
	state           BreakerState
	failures        int
	halfOpenInUse   int
	lastFailureTime time.Time
	stopped         bool
}

func NewCircuitBreaker(config *types.CircuitBreakerConfig, logger types.Logger, name string) *CircuitBreaker {
	breaker := &CircuitBreaker{
		logger:           logger,
		name:             name,
		failureThreshold: 5,
		recoveryTimeout:  30 * time.Second,
		halfOpenRequests: 1,
		state:            BreakerClosed,
	}

	if config != nil {
		breaker.enabled = config.Enabled
		if config.FailureThreshold > 0 {
			breaker.failureThreshold = config.FailureThreshold
		}
		if config.RecoveryTimeout > 0 {
			breaker.recoveryTimeout = config.RecoveryTimeout
		}
		if config.HalfOpenRequests > 0 {
			breaker.halfOpenRequests = config.HalfOpenRequests
		}
	}

	return breaker
}

// CanExecute reports whether a request may go out. In the open state it
// transitions to half-open once the recovery timeout has elapsed.
func (cb *CircuitBreaker) CanExecute() bool {
	if !cb.enabled {
		return true
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if time.Since(cb.lastFailureTime) >= cb.recoveryTimeout {
			cb.setStateLocked(BreakerHalfOpen)
			cb.halfOpenInUse = 1
			return true
		}
		return false
	case BreakerHalfOpen:
		if cb.halfOpenInUse < cb.halfOpenRequests {
			cb.halfOpenInUse++
			return true
		}
		return false
	default:
		return false
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	if !cb.enabled {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0

	if cb.state == BreakerHalfOpen {
		cb.setStateLocked(BreakerClosed)
		cb.halfOpenInUse = 0
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	if !cb.enabled {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailureTime = time.Now()

	if cb.state == BreakerHalfOpen {
		cb.setStateLocked(BreakerOpen)
		cb.halfOpenInUse = 0
		return
	}

	if cb.state == BreakerClosed && cb.failures >= cb.failureThreshold {
		cb.setStateLocked(BreakerOpen)
	}
}

func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Stop() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.stopped {
		return types.ErrServiceIsNotRunning
	}
	cb.stopped = true

	return nil
}

func (cb *CircuitBreaker) setStateLocked(newState BreakerState) {
	if cb.state == newState {
		return
	}

	oldState := cb.state
	cb.state = newState

	cb.logger.Info("Circuit breaker state changed",
		zap.String("breaker", cb.name),
		zap.String("from", oldState.String()),
		zap.String("to", newState.String()),
		zap.Int("failures", cb.failures))
}

// IsBreakerFailure reports whether a response status should count against the
// breaker. Client errors, including 429, are the caller's problem; only
// server-side failures trip the breaker.
func IsBreakerFailure(statusCode int) bool {
	return statusCode >= 500
}
