package modelrouter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arc-labs/model-router/catalog"
	"github.com/arc-labs/model-router/dispatch"
	"github.com/arc-labs/model-router/internal/health"
	"github.com/arc-labs/model-router/internal/logging"
	"github.com/arc-labs/model-router/internal/metrics"
	"github.com/arc-labs/model-router/providers"
	"github.com/arc-labs/model-router/routing"
)

// EventHookFunc is called asynchronously after a router event (selection
// completed, dispatch completed or failed).
type EventHookFunc func(ctx context.Context, subject string, data map[string]interface{})

// Event subject constants used when invoking router hooks.
const (
	SubjectSelectionCompleted = "router.selection.completed"
	SubjectDispatchCompleted  = "router.dispatch.completed"
	SubjectDispatchFailed     = "router.dispatch.failed"
)

// Router is the process-wide routing facade produced by Bootstrap.All. It
// ties the capability catalog, provider registry, selection engine, and
// execution dispatcher together and adds logging, metrics, and hooks.
type Router struct {
	mu         sync.RWMutex
	cfg        Config
	catalog    *catalog.Catalog
	registry   *providers.Registry
	engine     *routing.Engine
	dispatcher *dispatch.Dispatcher
	tools      ToolSet
	hooks      []EventHookFunc
}

// newRouter wires a Router from bootstrapped state.
func newRouter(cfg Config, cat *catalog.Catalog, reg *providers.Registry, tools ToolSet) *Router {
	return &Router{
		cfg:        cfg,
		catalog:    cat,
		registry:   reg,
		engine:     routing.NewEngine(cat, reg),
		dispatcher: dispatch.New(reg, cfg.Dispatcher.dispatchConfig()),
		tools:      tools,
	}
}

// Catalog returns the capability catalog. Immutable after bootstrap.
func (r *Router) Catalog() *catalog.Catalog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.catalog
}

// Registry returns the provider registry.
func (r *Router) Registry() *providers.Registry {
	return r.registry
}

// Tools returns the registered tool metadata.
func (r *Router) Tools() ToolSet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools
}

// HealthSnapshot returns the current health snapshot of every provider.
// Read-only diagnostics; never mutates state.
func (r *Router) HealthSnapshot() map[string]health.Snapshot {
	snaps := r.registry.Snapshot()
	for id, s := range snaps {
		metrics.CircuitState.WithLabelValues(id).Set(float64(s.State))
	}
	return snaps
}

// AddHook registers an EventHookFunc invoked asynchronously on each router
// event. Multiple hooks may be registered; all fire for every event.
func (r *Router) AddHook(fn EventHookFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, fn)
}

// Select produces a routing decision for the request features.
func (r *Router) Select(ctx context.Context, req routing.RequestFeatures) (*routing.Decision, error) {
	start := time.Now()
	log := logging.FromContext(ctx)

	r.mu.RLock()
	engine := r.engine
	r.mu.RUnlock()

	decision, err := engine.Select(req)
	metrics.SelectionDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		outcome := "error"
		switch {
		case isNoEligible(err):
			outcome = "no_eligible"
		case isMismatch(err):
			outcome = "mismatch"
		case isUnknownModel(err):
			outcome = "unknown_model"
		}
		metrics.SelectionsTotal.WithLabelValues("", req.Model, outcome).Inc()
		log.Warn("selection failed",
			"model", req.Model,
			"required", req.Required.Names(),
			"outcome", outcome,
			"error", err.Error(),
		)
		return nil, err
	}

	metrics.SelectionsTotal.WithLabelValues(decision.Primary.Provider, decision.Primary.Model, "selected").Inc()
	if decision.Primary.Cost.Priced {
		metrics.EstimatedCostUSD.WithLabelValues(decision.Primary.Provider, decision.Primary.Model).Add(decision.Primary.Cost.TotalUSD)
	}
	log.Info("selection completed",
		"decision_id", decision.ID,
		"provider", decision.Primary.Provider,
		"model", decision.Primary.Model,
		"candidates", len(decision.Candidates),
		"estimated_cost_usd", decision.Primary.Cost.TotalUSD,
	)

	r.publishEvent(ctx, SubjectSelectionCompleted, map[string]interface{}{
		"trace_id":    logging.TraceIDFromContext(ctx),
		"decision_id": decision.ID,
		"provider":    decision.Primary.Provider,
		"model":       decision.Primary.Model,
		"candidates":  len(decision.Candidates),
		"reasoning":   decision.Reasoning,
		"timestamp":   time.Now(),
	})
	return decision, nil
}

// Execute selects a candidate chain for the request and dispatches it
// through the caller-supplied invoke function.
func (r *Router) Execute(ctx context.Context, req routing.RequestFeatures, invoke dispatch.InvokeFunc) (*dispatch.Result, error) {
	start := time.Now()
	log := logging.FromContext(ctx)

	decision, err := r.Select(ctx, req)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	dispatcher := r.dispatcher
	r.mu.RUnlock()

	result, err := dispatcher.Execute(ctx, decision, invoke)
	latency := time.Since(start)
	r.HealthSnapshot() // refresh circuit gauges after the dispatch outcome

	if err != nil {
		log.Error("dispatch failed",
			"decision_id", decision.ID,
			"latency_ms", latency.Milliseconds(),
			"error", err.Error(),
		)
		r.publishEvent(ctx, SubjectDispatchFailed, map[string]interface{}{
			"trace_id":    logging.TraceIDFromContext(ctx),
			"decision_id": decision.ID,
			"error":       err.Error(),
			"latency_ms":  latency.Milliseconds(),
			"timestamp":   time.Now(),
		})
		return nil, err
	}

	log.Info("dispatch completed",
		"decision_id", decision.ID,
		"provider", result.Provider,
		"model", result.Model,
		"attempts", len(result.Attempts),
		"latency_ms", latency.Milliseconds(),
	)
	r.publishEvent(ctx, SubjectDispatchCompleted, map[string]interface{}{
		"trace_id":    logging.TraceIDFromContext(ctx),
		"decision_id": decision.ID,
		"provider":    result.Provider,
		"model":       result.Model,
		"attempts":    len(result.Attempts),
		"latency_ms":  latency.Milliseconds(),
		"timestamp":   time.Now(),
	})
	return result, nil
}

// publishEvent calls all registered hooks asynchronously.
func (r *Router) publishEvent(ctx context.Context, subject string, data map[string]interface{}) {
	r.mu.RLock()
	hooks := make([]EventHookFunc, len(r.hooks))
	copy(hooks, r.hooks)
	r.mu.RUnlock()

	for _, h := range hooks {
		fn := h
		go fn(ctx, subject, data)
	}
}

// ReloadConfig validates and applies a new configuration. The catalog,
// selection engine, and dispatcher are rebuilt; the provider registry and
// its health monitors are preserved so circuit state survives reloads. New
// providers are registered; removing a provider is not supported and is
// logged and skipped.
func (r *Router) ReloadConfig(cfg Config) error {
	if err := ValidateConfig(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var (
		cat *catalog.Catalog
		err error
	)
	if len(cfg.Providers) == 0 {
		cat, err = catalog.Load()
	} else {
		var specs []catalog.ModelSpec
		for _, p := range cfg.Providers {
			specs = append(specs, p.modelSpecs()...)
		}
		cat, err = catalog.New(specs)
	}
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	registered := make(map[string]bool)
	for _, id := range r.registry.List() {
		registered[id] = true
	}
	for _, p := range cfg.Providers {
		if registered[p.ID] {
			continue
		}
		h := providers.NewStatic(providers.Descriptor{ID: p.ID, Models: p.modelSpecs(), Connection: p.Connection})
		if err := r.registry.Register(h); err != nil {
			return fmt.Errorf("registering provider %s: %w", p.ID, err)
		}
		logging.Logger.Info("provider registered on reload", "provider", p.ID)
	}
	for id := range registered {
		if !containsProvider(cfg.Providers, id) {
			logging.Logger.Warn("provider removal not supported, keeping", "provider", id)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg
	r.catalog = cat
	r.engine = routing.NewEngine(cat, r.registry)
	r.dispatcher = dispatch.New(r.registry, cfg.Dispatcher.dispatchConfig())
	return nil
}

func containsProvider(ps []ProviderConfig, id string) bool {
	for _, p := range ps {
		if p.ID == id {
			return true
		}
	}
	return false
}

func isNoEligible(err error) bool {
	var e *routing.NoEligibleProviderError
	return errors.As(err, &e)
}

func isMismatch(err error) bool {
	var e *routing.CapabilityMismatchError
	return errors.As(err, &e)
}

func isUnknownModel(err error) bool {
	var e *routing.UnknownModelError
	return errors.As(err, &e)
}
