package providers

import (
	"sync"

	"github.com/arc-labs/model-router/internal/health"
)

// Registry manages the set of registered provider handles, each wrapped by
// its own health monitor. Registration happens only during bootstrap; after
// that the registry is read-only and all lookups are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	cfg      health.Config
	order    []string
	handles  map[string]Handle
	monitors map[string]*health.Breaker
	byModel  map[string][]string // model name → provider IDs, registration order
}

// NewRegistry creates an empty registry. All health monitors it creates use
// the given breaker config.
func NewRegistry(cfg health.Config) *Registry {
	return &Registry{
		cfg:      cfg,
		handles:  make(map[string]Handle),
		monitors: make(map[string]*health.Breaker),
		byModel:  make(map[string][]string),
	}
}

// Register adds a provider handle and creates its health monitor.
// Returns DuplicateProviderError if the identity is already registered.
func (r *Registry) Register(h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := h.Name()
	if _, exists := r.handles[id]; exists {
		return &DuplicateProviderError{ID: id}
	}
	r.handles[id] = h
	r.monitors[id] = health.New(r.cfg)
	r.order = append(r.order, id)
	for _, m := range h.Describe().Models {
		r.byModel[m.Name] = append(r.byModel[m.Name], id)
	}
	return nil
}

// Get returns the handle for a provider identity.
func (r *Registry) Get(id string) (Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[id]
	if !ok {
		return nil, &ProviderNotFoundError{ID: id}
	}
	return h, nil
}

// Monitor returns the health monitor owned by the registry for a provider.
func (r *Registry) Monitor(id string) (*health.Breaker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.monitors[id]
	if !ok {
		return nil, &ProviderNotFoundError{ID: id}
	}
	return b, nil
}

// List returns all provider identities in registration order. The ordering
// is the deterministic tie-break used by the selection engine.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// ProvidersForModel returns the identities of every registered provider that
// serves the given model name, in registration order.
func (r *Registry) ProvidersForModel(model string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byModel[model]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// Snapshot returns the health snapshot of every registered provider, keyed
// by identity. Read-only; never mutates breaker state beyond the lazy
// open→half-open transition.
func (r *Registry) Snapshot() map[string]health.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]health.Snapshot, len(r.order))
	for id, b := range r.monitors {
		out[id] = b.Snapshot()
	}
	return out
}
