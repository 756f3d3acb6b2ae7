// Package health implements the per-provider circuit breaker. Each registered
// provider gets its own Breaker instance, owned by the provider registry.
//
// State transitions:
//
//	Closed   → Open     when consecutive failures within Window ≥ FailureThreshold
//	Open     → HalfOpen after Cooldown elapses
//	HalfOpen → Closed   on the next successful call
//	HalfOpen → Open     on the next failed call (cooldown restarts)
//
// HalfOpen admits exactly one in-flight probe; concurrent callers that lose
// the race observe Open behaviour.
package health

import (
	"errors"
	"sync"
	"time"
)

// State represents the breaker's current state.
type State int

const (
	// StateClosed — normal operation; calls pass through.
	StateClosed State = iota
	// StateOpen — provider is considered failing; calls are rejected immediately.
	StateOpen
	// StateHalfOpen — the breaker admits a single probe to test recovery.
	StateHalfOpen
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when a call is rejected because the circuit is open.
var ErrCircuitOpen = errors.New("circuit breaker open")

// Config holds breaker thresholds. The zero value gets defaults from New.
type Config struct {
	// FailureThreshold is the number of consecutive failures within Window
	// that opens the circuit.
	FailureThreshold int
	// Window is the rolling interval in which consecutive failures count.
	Window time.Duration
	// Cooldown is how long the circuit stays open before probing.
	Cooldown time.Duration
}

// DefaultConfig returns the thresholds applied for zero/negative values:
// 5 failures within 60s, 30s cooldown.
func DefaultConfig() Config {
	return Config{FailureThreshold: 5, Window: time.Minute, Cooldown: 30 * time.Second}
}

// Snapshot is a read-only view of breaker state for diagnostics.
type Snapshot struct {
	State               State     `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	WindowSuccesses     int       `json:"window_successes"`
	WindowFailures      int       `json:"window_failures"`
	LastTransition      time.Time `json:"last_transition"`
	ProbeInFlight       bool      `json:"probe_in_flight"`
}

// outcome is one recorded call result.
type outcome struct {
	at      time.Time
	success bool
}

// Breaker guards a single downstream provider.
type Breaker struct {
	mu             sync.Mutex
	cfg            Config
	state          State
	window         []outcome // recent outcomes, pruned to cfg.Window on write
	consecutive    []time.Time
	lastTransition time.Time
	openUntil      time.Time
	probing        bool

	now func() time.Time // test hook
}

// New creates a Breaker, applying defaults for zero/negative config values.
func New(cfg Config) *Breaker {
	def := DefaultConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	return &Breaker{
		cfg:            cfg,
		state:          StateClosed,
		lastTransition: time.Now(),
		now:            time.Now,
	}
}

// State returns the current state, transitioning Open→HalfOpen if the
// cooldown has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resolveState()
}

// resolveState must be called with b.mu held.
func (b *Breaker) resolveState() State {
	if b.state == StateOpen && b.now().After(b.openUntil) {
		b.transition(StateHalfOpen)
	}
	return b.state
}

// transition must be called with b.mu held.
func (b *Breaker) transition(s State) {
	b.state = s
	b.lastTransition = b.now()
	if s != StateHalfOpen {
		b.probing = false
	}
}

// Available reports whether the provider may be routed to, without claiming
// the half-open probe slot. Closed is available; HalfOpen is available only
// while no probe is in flight; Open is not. The selection engine uses this
// read-only check so that building a routing decision never consumes the
// probe admission.
func (b *Breaker) Available() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.resolveState() {
	case StateClosed:
		return true
	case StateHalfOpen:
		return !b.probing
	default:
		return false
	}
}

// Allow gates an actual call. Closed always admits. HalfOpen admits exactly
// one caller as the probe; losers are rejected as if the circuit were open.
// The admitted probe is released by the next RecordSuccess or RecordFailure.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.resolveState() {
	case StateClosed:
		return true
	case StateHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return false
	}
}

// ReleaseProbe abandons an admitted half-open probe without recording an
// outcome, e.g. when the caller cancelled before the call completed.
func (b *Breaker) ReleaseProbe() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
}

// RecordSuccess notifies the breaker that a call succeeded.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(true)
	switch b.resolveState() {
	case StateHalfOpen:
		b.transition(StateClosed)
		b.consecutive = nil
	case StateClosed:
		b.consecutive = nil
	}
}

// RecordFailure notifies the breaker that a call failed.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(false)
	switch b.resolveState() {
	case StateClosed:
		now := b.now()
		b.consecutive = append(b.consecutive, now)
		b.pruneConsecutive(now)
		if len(b.consecutive) >= b.cfg.FailureThreshold {
			b.transition(StateOpen)
			b.openUntil = now.Add(b.cfg.Cooldown)
		}
	case StateHalfOpen:
		b.transition(StateOpen)
		b.openUntil = b.now().Add(b.cfg.Cooldown)
		b.consecutive = nil
	}
}

// record appends an outcome and prunes entries older than the window.
// Must be called with b.mu held.
func (b *Breaker) record(success bool) {
	now := b.now()
	b.window = append(b.window, outcome{at: now, success: success})
	cutoff := now.Add(-b.cfg.Window)
	i := 0
	for i < len(b.window) && b.window[i].at.Before(cutoff) {
		i++
	}
	b.window = b.window[i:]
}

// pruneConsecutive drops consecutive-failure timestamps that fell out of the
// rolling window. Must be called with b.mu held.
func (b *Breaker) pruneConsecutive(now time.Time) {
	cutoff := now.Add(-b.cfg.Window)
	i := 0
	for i < len(b.consecutive) && b.consecutive[i].Before(cutoff) {
		i++
	}
	b.consecutive = b.consecutive[i:]
}

// Snapshot returns current state and counters. Read-only and safe to call
// from any goroutine; it never blocks writers for longer than one counter
// walk.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := Snapshot{
		State:               b.resolveState(),
		ConsecutiveFailures: len(b.consecutive),
		LastTransition:      b.lastTransition,
		ProbeInFlight:       b.probing,
	}
	for _, o := range b.window {
		if o.success {
			s.WindowSuccesses++
		} else {
			s.WindowFailures++
		}
	}
	return s
}
