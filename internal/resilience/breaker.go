// Package resilience provides reliability patterns for external service calls.
package resilience

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/anthropics/consilium-engine/internal/domain"
)

// ErrCircuitOpen is returned when the circuit breaker is open and rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

const transitionHistoryCap = 10

// BreakerConfig holds the breaker thresholds.
type BreakerConfig struct {
	// FailureThreshold is the consecutive failure count in CLOSED that
	// opens the circuit.
	FailureThreshold int
	// RecoveryTimeout is how long the circuit stays OPEN before a
	// probe call is allowed.
	RecoveryTimeout time.Duration
	// SuccessThreshold is the consecutive success count in HALF_OPEN
	// that closes the circuit.
	SuccessThreshold int
}

// DefaultBreakerConfig mirrors the production defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  60 * time.Second,
		SuccessThreshold: 1,
	}
}

// Breaker guards one external dependency. One instance may be shared by
// parallel agent calls; all state mutations serialize on a single
// mutex. The OPEN -> HALF_OPEN transition happens lazily inside
// CanExecute once the recovery timeout has elapsed.
type Breaker struct {
	mu  sync.Mutex
	cfg BreakerConfig

	state           domain.BreakerState
	failureCount    int
	successCount    int
	lastFailureTime time.Time

	totalCalls    int64
	totalFailures int64
	totalBlocked  int64

	// transitions is a bounded ring of the most recent state changes.
	transitions [transitionHistoryCap]domain.StateTransition
	transLen    int
	transHead   int

	now func() time.Time // for testing
}

// NewBreaker creates a breaker in the CLOSED state.
func NewBreaker(cfg BreakerConfig) *Breaker {
	return &Breaker{
		cfg:   cfg,
		state: domain.BreakerClosed,
		now:   time.Now,
	}
}

// CanExecute reports whether a call may proceed. Side-effecting: an
// elapsed recovery timeout transitions OPEN -> HALF_OPEN and resets the
// success counter; a blocked call increments the blocked total.
func (b *Breaker) CanExecute() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case domain.BreakerClosed:
		return true
	case domain.BreakerOpen:
		if !b.lastFailureTime.IsZero() && b.now().Sub(b.lastFailureTime) >= b.cfg.RecoveryTimeout {
			b.transition(domain.BreakerHalfOpen, "recovery timeout elapsed")
			b.successCount = 0
			return true
		}
		b.totalBlocked++
		return false
	case domain.BreakerHalfOpen:
		return true
	}
	return false
}

// RecordSuccess records a successful call outcome.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalCalls++
	switch b.state {
	case domain.BreakerHalfOpen:
		b.successCount++
		if b.successCount >= b.cfg.SuccessThreshold {
			b.transition(domain.BreakerClosed, fmt.Sprintf("%d successful call(s)", b.successCount))
			b.failureCount = 0
		}
	case domain.BreakerClosed:
		b.failureCount = 0
	}
}

// RecordFailure records a failed call outcome. Any failure in HALF_OPEN
// reopens the circuit immediately.
func (b *Breaker) RecordFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalCalls++
	b.totalFailures++
	b.failureCount++
	b.lastFailureTime = b.now()

	switch b.state {
	case domain.BreakerHalfOpen:
		b.transition(domain.BreakerOpen, fmt.Sprintf("failure in HALF_OPEN: %v", err))
	case domain.BreakerClosed:
		if b.failureCount >= b.cfg.FailureThreshold {
			b.transition(domain.BreakerOpen, fmt.Sprintf("failure threshold reached (%d/%d)", b.failureCount, b.cfg.FailureThreshold))
		}
	}
}

// Execute runs fn under the breaker, recording its outcome.
// Returns ErrCircuitOpen without calling fn when the circuit rejects.
func (b *Breaker) Execute(fn func() error) error {
	if !b.CanExecute() {
		return ErrCircuitOpen
	}
	if err := fn(); err != nil {
		b.RecordFailure(err)
		return err
	}
	b.RecordSuccess()
	return nil
}

// Status returns a diagnostic snapshot including the time remaining
// until the next probe is permitted (0 unless OPEN and ineligible) and
// the last three state transitions.
func (b *Breaker) Status() domain.BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	var untilRetry float64
	if b.state == domain.BreakerOpen && !b.lastFailureTime.IsZero() {
		remaining := b.cfg.RecoveryTimeout - b.now().Sub(b.lastFailureTime)
		if remaining > 0 {
			untilRetry = remaining.Seconds()
		}
	}

	return domain.BreakerSnapshot{
		State:             b.state,
		FailureCount:      b.failureCount,
		SuccessCount:      b.successCount,
		TotalCalls:        b.totalCalls,
		TotalFailures:     b.totalFailures,
		TotalBlocked:      b.totalBlocked,
		TimeUntilRetrySec: untilRetry,
		FailureThreshold:  b.cfg.FailureThreshold,
		RecoveryTimeout:   b.cfg.RecoveryTimeout.Seconds(),
		SuccessThreshold:  b.cfg.SuccessThreshold,
		RecentTransitions: b.recentTransitions(3),
	}
}

// transition must be called with b.mu held.
func (b *Breaker) transition(to domain.BreakerState, reason string) {
	entry := domain.StateTransition{
		Timestamp: float64(b.now().UnixNano()) / 1e9,
		From:      b.state,
		To:        to,
		Reason:    reason,
	}
	b.state = to

	b.transitions[b.transHead] = entry
	b.transHead = (b.transHead + 1) % transitionHistoryCap
	if b.transLen < transitionHistoryCap {
		b.transLen++
	}
}

// recentTransitions must be called with b.mu held.
func (b *Breaker) recentTransitions(n int) []domain.StateTransition {
	if n > b.transLen {
		n = b.transLen
	}
	out := make([]domain.StateTransition, 0, n)
	for i := b.transLen - n; i < b.transLen; i++ {
		idx := (b.transHead - b.transLen + i + 2*transitionHistoryCap) % transitionHistoryCap
		out = append(out, b.transitions[idx])
	}
	return out
}
