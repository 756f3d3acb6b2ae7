// Package dispatch executes routing decisions. The dispatcher walks the
// decision's candidate chain, calling the caller-supplied invoke function
// through each provider's health monitor, retrying transient failures down
// the chain and aborting on fatal ones.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/arc-labs/model-router/internal/logging"
	"github.com/arc-labs/model-router/internal/metrics"
	"github.com/arc-labs/model-router/providers"
	"github.com/arc-labs/model-router/routing"
)

// InvokeFunc performs the actual provider call for one candidate. It is
// supplied by the tool-execution collaborator; this core never marshals
// vendor wire formats itself. Failures should be classified with
// providers.Transient / providers.Fatal; unclassified errors are treated as
// transient.
type InvokeFunc func(ctx context.Context, c routing.Candidate) (any, error)

// Attempt records the outcome of one candidate call for diagnostics.
type Attempt struct {
	Provider       string        `json:"provider"`
	Model          string        `json:"model"`
	Err            error         `json:"-"`
	Classification string        `json:"classification"`
	Duration       time.Duration `json:"duration"`
	Skipped        bool          `json:"skipped"`
}

// Result is the outcome of a successful dispatch.
type Result struct {
	Provider string    `json:"provider"`
	Model    string    `json:"model"`
	Payload  any       `json:"payload"`
	Attempts []Attempt `json:"attempts"`
}

/// AllProvidersFailedError is the terminal dispatcher error: every candidate
// in the chain was exhausted without a success. It carries the ordered
// per-candidate failure history.
type AllProvidersFailedError struct {
	Attempts []Attempt
}

func (e *AllProvidersFailedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		if a.Skipped {
			parts = append(parts, fmt.Sprintf("%s/%s: skipped (circuit open)", a.Provider, a.Model))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s/%s: %v", a.Provider, a.Model, a.Err))
	}
	return "all providers failed: " + strings.Join(parts, "; ")
}

// Config holds dispatcher tuning. The zero value gets defaults from New.
type Config struct {
	// AttemptTimeout bounds each candidate call.
	AttemptTimeout time.Duration
	// MaxAttempts is the number of tries per candidate before moving to the
	// next one. Only transient failures are retried in place.
	MaxAttempts int
	// InitialBackoff seeds the exponential backoff between in-place retries.
	InitialBackoff time.Duration
}

// Dispatcher executes routing decisions against the provider registry's
// health monitors.
type Dispatcher struct {
	registry *providers.Registry
	cfg      Config
}

// New creates a Dispatcher. Defaults: 30s attempt timeout, 1 attempt per
// candidate, 100ms initial backoff.
func New(reg *providers.Registry, cfg Config) *Dispatcher {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 100 * time.Millisecond
	}
	return &Dispatcher{registry: reg, cfg: cfg}
}

// Execute walks the decision's candidates in order. A candidate whose
// circuit rejects the call is skipped unless it is the last remaining one.
// Transient failures continue down the chain; fatal failures and caller
// cancellation stop it. Success reports to the candidate's health monitor
// and returns immediately.
func (d *Dispatcher) Execute(ctx context.Context, decision *routing.Decision, invoke InvokeFunc) (*Result, error) {
	if decision == nil || len(decision.Candidates) == 0 {
		return nil, fmt.Errorf("dispatch: empty routing decision")
	}
	log := logging.FromContext(ctx).With("decision_id", decision.ID)

	var attempts []Attempt
	for i, c := range decision.Candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		mon, err := d.registry.Monitor(c.Provider)
		if err != nil {
			// Decision references a provider the registry no longer knows.
			attempts = append(attempts, Attempt{Provider: c.Provider, Model: c.Model, Err: err, Classification: "unregistered"})
			continue
		}

		last := i == len(decision.Candidates)-1
		if !mon.Allow() && !last {
			log.Debug("skipping candidate, circuit open", "provider", c.Provider, "model", c.Model)
			metrics.DispatchAttempts.WithLabelValues(c.Provider, "skipped").Inc()
			attempts = append(attempts, Attempt{Provider: c.Provider, Model: c.Model, Skipped: true})
			continue
		}

		payload, attempt, err := d.tryCandidate(ctx, c, invoke)
		attempts = append(attempts, attempt)
		if err == nil {
			mon.RecordSuccess()
			metrics.DispatchAttempts.WithLabelValues(c.Provider, "success").Inc()
			log.Info("dispatch succeeded",
				"provider", c.Provider,
				"model", c.Model,
				"attempt", len(attempts),
				"duration_ms", attempt.Duration.Milliseconds(),
			)
			return &Result{Provider: c.Provider, Model: c.Model, Payload: payload, Attempts: attempts}, nil
		}

		// Caller-driven cancellation aborts the whole chain without charging
		// the provider's health record. The probe slot claimed by Allow is
		// released so a later caller can still probe.
		if ctx.Err() != nil {
			mon.ReleaseProbe()
			return nil, ctx.Err()
		}

		mon.RecordFailure()
		metrics.DispatchAttempts.WithLabelValues(c.Provider, attempt.Classification).Inc()
		if providers.IsFatal(err) {
			log.Error("fatal provider error, aborting chain",
				"provider", c.Provider, "model", c.Model, "error", err.Error())
			return nil, err
		}
		log.Warn("transient provider error, trying next candidate",
			"provider", c.Provider, "model", c.Model, "error", err.Error())
	}

	return nil, &AllProvidersFailedError{Attempts: attempts}
}

// tryCandidate runs up to MaxAttempts invocations of one candidate with
// exponential backoff between transient failures. Each invocation gets its
// own deadline; no resource is held past one attempt.
func (d *Dispatcher) tryCandidate(ctx context.Context, c routing.Candidate, invoke InvokeFunc) (any, Attempt, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.cfg.InitialBackoff

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt < d.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(bo.NextBackOff()):
			}
		}
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		callCtx, cancel := context.WithTimeout(ctx, d.cfg.AttemptTimeout)
		payload, err := invoke(callCtx, c)
		cancel()
		if err == nil {
			return payload, Attempt{Provider: c.Provider, Model: c.Model, Classification: "success", Duration: time.Since(start)}, nil
		}
		lastErr = err
		if providers.IsFatal(err) || ctx.Err() != nil {
			break
		}
	}

	a := Attempt{
		Provider:       c.Provider,
		Model:          c.Model,
		Err:            lastErr,
		Classification: "transient",
		Duration:       time.Since(start),
	}
	if providers.IsFatal(lastErr) {
		a.Classification = "fatal"
	}
	return nil, a, lastErr
}
