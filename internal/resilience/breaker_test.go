package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/anthropics/consilium-engine/internal/domain"
)

var errCall = errors.New("backend unavailable")

// fakeClock drives the breaker's time without sleeping.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker() (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	b := NewBreaker(BreakerConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  60 * time.Second,
		SuccessThreshold: 1,
	})
	b.now = clock.now
	return b, clock
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker()

	for i := 0; i < 2; i++ {
		b.RecordFailure(errCall)
		if !b.CanExecute() {
			t.Fatalf("expected CLOSED after %d failures", i+1)
		}
	}
	b.RecordFailure(errCall)

	if got := b.Status().State; got != domain.BreakerOpen {
		t.Fatalf("expected OPEN, got %s", got)
	}
	if b.CanExecute() {
		t.Error("expected CanExecute false while OPEN")
	}
}

func TestBreaker_RecoversToHalfOpen(t *testing.T) {
	b, clock := newTestBreaker()
	for i := 0; i < 3; i++ {
		b.RecordFailure(errCall)
	}

	clock.advance(59 * time.Second)
	if b.CanExecute() {
		t.Fatal("expected still OPEN before recovery timeout")
	}

	clock.advance(2 * time.Second)
	if !b.CanExecute() {
		t.Fatal("expected probe allowed after recovery timeout")
	}
	if got := b.Status().State; got != domain.BreakerHalfOpen {
		t.Fatalf("expected HALF_OPEN, got %s", got)
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b, clock := newTestBreaker()
	for i := 0; i < 3; i++ {
		b.RecordFailure(errCall)
	}
	clock.advance(61 * time.Second)
	b.CanExecute()

	b.RecordFailure(errCall)
	if got := b.Status().State; got != domain.BreakerOpen {
		t.Fatalf("expected OPEN after HALF_OPEN failure, got %s", got)
	}
}

func TestBreaker_HalfOpenSuccessCloses(t *testing.T) {
	b, clock := newTestBreaker()
	for i := 0; i < 3; i++ {
		b.RecordFailure(errCall)
	}
	clock.advance(61 * time.Second)
	b.CanExecute()

	b.RecordSuccess()
	st := b.Status()
	if st.State != domain.BreakerClosed {
		t.Fatalf("expected CLOSED after success, got %s", st.State)
	}
	if st.FailureCount != 0 {
		t.Errorf("expected failure count reset, got %d", st.FailureCount)
	}
}

func TestBreaker_Execute(t *testing.T) {
	b, _ := newTestBreaker()

	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := b.Execute(func() error { return errCall }); !errors.Is(err, errCall) {
			t.Fatalf("expected call error, got %v", err)
		}
	}
	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestBreaker_StatusTimeUntilRetry(t *testing.T) {
	b, clock := newTestBreaker()
	for i := 0; i < 3; i++ {
		b.RecordFailure(errCall)
	}

	clock.advance(20 * time.Second)
	st := b.Status()
	if st.TimeUntilRetrySec < 39 || st.TimeUntilRetrySec > 41 {
		t.Errorf("expected ~40s until retry, got %f", st.TimeUntilRetrySec)
	}

	clock.advance(50 * time.Second)
	if got := b.Status().TimeUntilRetrySec; got != 0 {
		t.Errorf("expected 0 once eligible, got %f", got)
	}
}

func TestBreaker_TransitionHistoryCapped(t *testing.T) {
	b, clock := newTestBreaker()

	// Cycle OPEN -> HALF_OPEN -> OPEN repeatedly to exceed the cap.
	for cycle := 0; cycle < 8; cycle++ {
		for i := 0; i < 3; i++ {
			b.RecordFailure(errCall)
		}
		clock.advance(61 * time.Second)
		b.CanExecute()
		b.RecordSuccess()
	}

	b.mu.Lock()
	histLen := b.transLen
	b.mu.Unlock()
	if histLen != transitionHistoryCap {
		t.Fatalf("expected history capped at %d, got %d", transitionHistoryCap, histLen)
	}

	st := b.Status()
	if len(st.RecentTransitions) != 3 {
		t.Fatalf("expected last 3 transitions, got %d", len(st.RecentTransitions))
	}
	// The last transition of the final cycle is HALF_OPEN -> CLOSED.
	last := st.RecentTransitions[2]
	if last.To != domain.BreakerClosed {
		t.Errorf("expected newest transition to CLOSED, got %s", last.To)
	}
}

func TestBreaker_BlockedCallsCounted(t *testing.T) {
	b, _ := newTestBreaker()
	for i := 0; i < 3; i++ {
		b.RecordFailure(errCall)
	}
	b.CanExecute()
	b.CanExecute()

	if got := b.Status().TotalBlocked; got != 2 {
		t.Errorf("expected 2 blocked calls, got %d", got)
	}
}
