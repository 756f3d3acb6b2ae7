package health

import (
	"sync"
	"testing"
	"time"
)

func newTestBreaker(threshold int, cooldown time.Duration) (*Breaker, *time.Time) {
	b := New(Config{FailureThreshold: threshold, Window: time.Minute, Cooldown: cooldown})
	now := time.Now()
	b.now = func() time.Time { return now }
	return b, &now
}

func TestInitialStateClosed(t *testing.T) {
	b := New(Config{})
	if b.State() != StateClosed {
		t.Fatalf("expected closed, got %s", b.State())
	}
	if !b.Available() || !b.Allow() {
		t.Fatal("expected available and allowed when closed")
	}
}

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker(3, 10*time.Second)
	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	if b.State() != StateOpen {
		t.Fatalf("expected open after 3 failures, got %s", b.State())
	}
	if b.Available() || b.Allow() {
		t.Fatal("expected unavailable when open")
	}
}

func TestSuccessResetsConsecutiveCount(t *testing.T) {
	b, _ := newTestBreaker(3, 10*time.Second)
	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	if b.State() != StateClosed {
		t.Fatalf("expected still closed after reset, got %s", b.State())
	}
}

func TestFailuresOutsideWindowDoNotCount(t *testing.T) {
	b, now := newTestBreaker(3, 10*time.Second)
	b.RecordFailure()
	b.RecordFailure()
	*now = now.Add(2 * time.Minute) // both fall out of the 1m window
	b.RecordFailure()
	if b.State() != StateClosed {
		t.Fatalf("expected closed, stale failures should not count, got %s", b.State())
	}
}

func TestHalfOpenAfterCooldown(t *testing.T) {
	b, now := newTestBreaker(1, 10*time.Second)
	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}
	*now = now.Add(11 * time.Second)
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half_open after cooldown, got %s", b.State())
	}
	if !b.Available() {
		t.Fatal("expected available in half_open with no probe in flight")
	}
}

func TestHalfOpenAdmitsSingleProbe(t *testing.T) {
	b, now := newTestBreaker(1, 10*time.Second)
	b.RecordFailure()
	*now = now.Add(11 * time.Second)

	if !b.Allow() {
		t.Fatal("expected first caller admitted as probe")
	}
	if b.Allow() {
		t.Fatal("expected second caller rejected while probe in flight")
	}
	if b.Available() {
		t.Fatal("expected Available=false while probe in flight")
	}

	b.RecordSuccess()
	if b.State() != StateClosed {
		t.Fatalf("expected closed after successful probe, got %s", b.State())
	}
}

func TestHalfOpenSingleProbeConcurrent(t *testing.T) {
	b, now := newTestBreaker(1, 10*time.Second)
	b.RecordFailure()
	*now = now.Add(11 * time.Second)

	const callers = 32
	admitted := make(chan bool, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			admitted <- b.Allow()
		}()
	}
	wg.Wait()
	close(admitted)

	n := 0
	for ok := range admitted {
		if ok {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("expected exactly one admitted probe, got %d", n)
	}
}

func TestFailedProbeReopensAndRestartsCooldown(t *testing.T) {
	b, now := newTestBreaker(1, 10*time.Second)
	b.RecordFailure()
	*now = now.Add(11 * time.Second)
	if !b.Allow() {
		t.Fatal("expected probe admitted")
	}
	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("expected reopened after failed probe, got %s", b.State())
	}
	*now = now.Add(5 * time.Second) // half the restarted cooldown
	if b.State() != StateOpen {
		t.Fatal("expected cooldown restarted by failed probe")
	}
	*now = now.Add(6 * time.Second)
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half_open after restarted cooldown, got %s", b.State())
	}
}

func TestSnapshotCounters(t *testing.T) {
	b, _ := newTestBreaker(5, 10*time.Second)
	b.RecordSuccess()
	b.RecordSuccess()
	b.RecordFailure()

	s := b.Snapshot()
	if s.State != StateClosed {
		t.Fatalf("expected closed, got %s", s.State)
	}
	if s.WindowSuccesses != 2 || s.WindowFailures != 1 {
		t.Fatalf("unexpected window counters: %+v", s)
	}
	if s.ConsecutiveFailures != 1 {
		t.Fatalf("expected 1 consecutive failure, got %d", s.ConsecutiveFailures)
	}
}
