package webhookaction

import (
	"sync"
	"time"
)

// circuitState mirrors the teacher's CircuitBreakerState enum.
type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

// circuitBreakerConfig mirrors the teacher's CircuitBreakerConfig.
type circuitBreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	OpenTimeout      time.Duration
}

var defaultCircuitBreakerConfig = circuitBreakerConfig{
	FailureThreshold: 5,
	SuccessThreshold: 2,
	OpenTimeout:      30 * time.Second,
}

// circuitBreaker trips per-capability, one instance per Runtime, to
// stop hammering an endpoint that is already failing. Adapted from the
// teacher's circuit_breaker.go; the teacher also reports state
// transitions to a *PublishingMetrics — dropped here: this breaker
// reports no metrics, and its transitions are silent.
type circuitBreaker struct {
	mu     sync.Mutex
	cfg    circuitBreakerConfig
	state  circuitState
	fails  int
	succs  int
	openAt time.Time
}

func newCircuitBreaker(cfg circuitBreakerConfig) *circuitBreaker {
	return &circuitBreaker{cfg: cfg, state: circuitClosed}
}

// CanAttempt reports whether a send attempt should proceed, flipping
// an expired open breaker to half-open.
func (b *circuitBreaker) CanAttempt() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case circuitClosed, circuitHalfOpen:
		return true
	case circuitOpen:
		if time.Since(b.openAt) >= b.cfg.OpenTimeout {
			b.state = circuitHalfOpen
			b.succs = 0
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess closes the breaker once enough consecutive half-open
// successes accumulate.
func (b *circuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case circuitHalfOpen:
		b.succs++
		if b.succs >= b.cfg.SuccessThreshold {
			b.state = circuitClosed
			b.fails = 0
			b.succs = 0
		}
	case circuitClosed:
		b.fails = 0
	}
}

// RecordFailure opens the breaker once the failure threshold is hit, or
// immediately re-opens a half-open probe that failed.
func (b *circuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case circuitHalfOpen:
		b.state = circuitOpen
		b.openAt = time.Now()
		b.succs = 0
	case circuitClosed:
		b.fails++
		if b.fails >= b.cfg.FailureThreshold {
			b.state = circuitOpen
			b.openAt = time.Now()
		}
	}
}
