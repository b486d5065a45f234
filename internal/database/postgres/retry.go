package postgres

import (
	"context"
	"math/rand"
	"time"

	"log/slog"
)

// RetryConfig tunes RetryExecutor's exponential backoff.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterFactor  float64
}

// DefaultRetryConfig returns a backoff of up to 3 retries (4 attempts in
// all) starting at 100ms, capped at 5s before up to 10% jitter is added.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
	}
}

// RetryExecutor retries an operation on retryable errors with
// exponential backoff and jitter.
type RetryExecutor struct {
	config RetryConfig
	logger *slog.Logger
}

// NewRetryExecutor builds a RetryExecutor.
func NewRetryExecutor(config RetryConfig, logger *slog.Logger) *RetryExecutor {
	if logger == nil {
		logger = slog.Default()
	}

	return &RetryExecutor{
		config: config,
		logger: logger,
	}
}

// Execute runs operation, retrying on a retryable error up to
// config.MaxRetries times.
func (r *RetryExecutor) Execute(ctx context.Context, operation func() error) error {
	var lastErr error
	delay := r.config.InitialDelay

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		err := operation()
		if err == nil {
			if attempt > 0 {
				r.logger.Info("Operation succeeded after retry",
					"attempt", attempt+1,
					"total_attempts", attempt+1)
			}
			return nil
		}

		lastErr = err

		if attempt < r.config.MaxRetries && r.shouldRetry(err) {
			r.logger.Warn("Operation failed, retrying",
				"attempt", attempt+1,
				"max_retries", r.config.MaxRetries,
				"delay", delay,
				"error", err)

			if !r.waitWithContext(ctx, delay) {
				return ctx.Err()
			}

			delay = r.nextDelay(delay)
		} else {
			break
		}
	}

	r.logger.Error("Operation failed after all retries",
		"max_retries", r.config.MaxRetries,
		"error", lastErr)

	return lastErr
}

// ExecuteWithResult is Execute for operations that return a value
// alongside their error.
func (r *RetryExecutor) ExecuteWithResult(ctx context.Context, operation func() (interface{}, error)) (interface{}, error) {
	var lastResult interface{}
	var lastErr error
	delay := r.config.InitialDelay

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		result, err := operation()
		if err == nil {
			if attempt > 0 {
				r.logger.Info("Operation succeeded after retry",
					"attempt", attempt+1,
					"total_attempts", attempt+1)
			}
			return result, nil
		}

		lastResult = result
		lastErr = err

		if attempt < r.config.MaxRetries && r.shouldRetry(err) {
			r.logger.Warn("Operation failed, retrying",
				"attempt", attempt+1,
				"max_retries", r.config.MaxRetries,
				"delay", delay,
				"error", err)

			if !r.waitWithContext(ctx, delay) {
				return nil, ctx.Err()
			}

			delay = r.nextDelay(delay)
		} else {
			break
		}
	}

	r.logger.Error("Operation failed after all retries",
		"max_retries", r.config.MaxRetries,
		"error", lastErr)

	return lastResult, lastErr
}

func (r *RetryExecutor) shouldRetry(err error) bool {
	return IsRetryable(err)
}

func (r *RetryExecutor) waitWithContext(ctx context.Context, delay time.Duration) bool {
	select {
	case <-time.After(delay):
		return true
	case <-ctx.Done():
		return false
	}
}

// nextDelay applies exponential backoff capped at config.MaxDelay, then
// adds jitter on top of the capped value (so a delay can exceed MaxDelay
// by up to JitterFactor), to avoid a thundering herd of synchronized retries.
func (r *RetryExecutor) nextDelay(currentDelay time.Duration) time.Duration {
	nextDelay := time.Duration(float64(currentDelay) * r.config.BackoffFactor)

	if nextDelay > r.config.MaxDelay {
		nextDelay = r.config.MaxDelay
	}

	if r.config.JitterFactor > 0 {
		jitter := time.Duration(float64(nextDelay) * r.config.JitterFactor * rand.Float64())
		nextDelay += jitter
	}

	return nextDelay
}

// CircuitBreaker is a standalone closed/open/half-open breaker for
// callers that want circuit-breaking without RetryExecutor's backoff.
type CircuitBreaker struct {
	state        CircuitBreakerState
	failureCount int
	maxFailures  int
	resetTimeout time.Duration
	lastFailure  time.Time
	lastSuccess  time.Time
}

// NewCircuitBreaker builds a CircuitBreaker starting closed.
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:        StateClosed,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
	}
}

// Call runs operation through the breaker, refusing it outright while open.
func (cb *CircuitBreaker) Call(operation func() error) error {
	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFailure) > cb.resetTimeout {
			cb.state = StateHalfOpen
		} else {
			return ErrCircuitBreakerOpen
		}
	case StateHalfOpen:
		fallthrough
	case StateClosed:
		break
	}

	err := operation()

	if err != nil {
		cb.recordFailure()
		return err
	}

	cb.recordSuccess()
	return nil
}

func (cb *CircuitBreaker) recordFailure() {
	cb.failureCount++
	cb.lastFailure = time.Now()

	if cb.failureCount >= cb.maxFailures {
		cb.state = StateOpen
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.failureCount = 0
	cb.lastSuccess = time.Now()
	cb.state = StateClosed
}

// GetState reports the current breaker state.
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	return cb.state
}

// GetFailureCount reports the current consecutive-failure count.
func (cb *CircuitBreaker) GetFailureCount() int {
	return cb.failureCount
}

// IsOpen reports whether the breaker is currently refusing calls.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.state == StateOpen
}

// Reset returns the breaker to its initial closed state.
func (cb *CircuitBreaker) Reset() {
	cb.state = StateClosed
	cb.failureCount = 0
	cb.lastFailure = time.Time{}
	cb.lastSuccess = time.Now()
}
