package modelrouter

import (
	"fmt"
	"sync"

	"github.com/arc-labs/model-router/catalog"
	"github.com/arc-labs/model-router/internal/logging"
	"github.com/arc-labs/model-router/internal/metrics"
	"github.com/arc-labs/model-router/providers"
)

// HandleFactory constructs the backend handle for one provider descriptor.
// It is the boundary to the external client collaborator: the embedding
// application supplies a factory that binds real vendor clients. The default
// factory builds descriptor-only handles, which is sufficient when all calls
// go through a caller-supplied dispatch.InvokeFunc.
type HandleFactory func(desc providers.Descriptor) (providers.Handle, error)

// ToolSet maps tool names to the model capabilities required to run them.
type ToolSet map[string]catalog.Capabilities

// Requirements returns the capability set a tool needs.
func (t ToolSet) Requirements(name string) (catalog.Capabilities, bool) {
	c, ok := t[name]
	return c, ok
}

// Bootstrap coordinates the one-time initialization of the capability
// catalog, provider registry, and tool metadata. Every operation is
// idempotent: concurrent first calls race for a mutex, exactly one performs
// the work, and all callers observe the same initialized instances. A failed
// step leaves its flag unset so the next call retries the full step.
//
// Share a single Bootstrap across all entry points in the process; each
// entry point calls All (or the individual Ensure operations) and threads
// the returned handles through its own call graph.
type Bootstrap struct {
	mu      sync.Mutex
	cfg     Config
	factory HandleFactory

	capsLoaded     bool
	providersReady bool
	toolsReady     bool
	routerReady    bool

	catalog  *catalog.Catalog
	registry *providers.Registry
	tools    ToolSet
	router   *Router
}

// BootstrapOption customizes a Bootstrap.
type BootstrapOption func(*Bootstrap)

// WithHandleFactory sets the factory that binds backend clients to
// registered providers.
func WithHandleFactory(f HandleFactory) BootstrapOption {
	return func(b *Bootstrap) { b.factory = f }
}

// NewBootstrap creates a coordinator for the given config. No initialization
// work happens until the first Ensure call.
func NewBootstrap(cfg Config, opts ...BootstrapOption) *Bootstrap {
	b := &Bootstrap{
		cfg: cfg,
		factory: func(desc providers.Descriptor) (providers.Handle, error) {
			return providers.NewStatic(desc), nil
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// EnsureCapabilitiesLoaded populates the capability catalog exactly once and
// returns it. Subsequent calls return the same instance without side effects.
func (b *Bootstrap) EnsureCapabilitiesLoaded() (*catalog.Catalog, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureCapabilitiesLocked(); err != nil {
		return nil, err
	}
	return b.catalog, nil
}

func (b *Bootstrap) ensureCapabilitiesLocked() error {
	if b.capsLoaded {
		return nil
	}

	var (
		cat *catalog.Catalog
		err error
	)
	if len(b.cfg.Providers) == 0 {
		cat, err = catalog.Load()
	} else {
		var specs []catalog.ModelSpec
		for _, p := range b.cfg.Providers {
			specs = append(specs, p.modelSpecs()...)
		}
		cat, err = catalog.New(specs)
	}
	if err != nil {
		return fmt.Errorf("bootstrap: loading capability catalog: %w", err)
	}

	b.catalog = cat
	b.capsLoaded = true
	metrics.BootstrapSteps.WithLabelValues("capabilities").Inc()
	logging.Logger.Info("capability catalog loaded", "models", cat.Len(), "providers", len(cat.Providers()))
	return nil
}

// EnsureProvidersRegistered populates the provider registry exactly once and
// returns it. Every caller observes the same registry instance. The catalog
// is loaded first if it has not been already.
func (b *Bootstrap) EnsureProvidersRegistered() (*providers.Registry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureProvidersLocked(); err != nil {
		return nil, err
	}
	return b.registry, nil
}

func (b *Bootstrap) ensureProvidersLocked() error {
	if b.providersReady {
		return nil
	}
	if err := b.ensureCapabilitiesLocked(); err != nil {
		return err
	}

	reg := providers.NewRegistry(b.cfg.CircuitBreaker.healthConfig())
	for _, desc := range b.providerDescriptors() {
		h, err := b.factory(desc)
		if err != nil {
			return fmt.Errorf("bootstrap: building handle for provider %s: %w", desc.ID, err)
		}
		if err := reg.Register(h); err != nil {
			return fmt.Errorf("bootstrap: registering provider %s: %w", desc.ID, err)
		}
	}

	b.registry = reg
	b.providersReady = true
	metrics.BootstrapSteps.WithLabelValues("providers").Inc()
	logging.Logger.Info("providers registered", "count", len(reg.List()))
	return nil
}

// providerDescriptors derives descriptors from config, or from the bundled
// catalog when no providers are configured. Must be called with b.mu held
// and the catalog loaded.
func (b *Bootstrap) providerDescriptors() []providers.Descriptor {
	if len(b.cfg.Providers) > 0 {
		out := make([]providers.Descriptor, 0, len(b.cfg.Providers))
		for _, p := range b.cfg.Providers {
			out = append(out, providers.Descriptor{
				ID:         p.ID,
				Models:     p.modelSpecs(),
				Connection: p.Connection,
			})
		}
		return out
	}

	byProvider := make(map[string][]catalog.ModelSpec)
	for _, m := range b.catalog.All() {
		byProvider[m.Provider] = append(byProvider[m.Provider], m)
	}
	var out []providers.Descriptor
	for _, id := range b.catalog.Providers() {
		out = append(out, providers.Descriptor{ID: id, Models: byProvider[id]})
	}
	return out
}

// EnsureToolMetadataRegistered registers tool capability requirements exactly
// once and returns the tool set.
func (b *Bootstrap) EnsureToolMetadataRegistered() (ToolSet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureToolsLocked(); err != nil {
		return nil, err
	}
	return b.tools, nil
}

func (b *Bootstrap) ensureToolsLocked() error {
	if b.toolsReady {
		return nil
	}

	tools := make(ToolSet, len(b.cfg.Tools))
	for _, tc := range b.cfg.Tools {
		caps, err := catalog.CapabilitiesFromNames(tc.Requires)
		if err != nil {
			return fmt.Errorf("bootstrap: tool %s: %w", tc.Name, err)
		}
		tools[tc.Name] = caps
	}

	b.tools = tools
	b.toolsReady = true
	metrics.BootstrapSteps.WithLabelValues("tools").Inc()
	logging.Logger.Info("tool metadata registered", "tools", len(tools))
	return nil
}

// All runs the three bootstrap steps in order (capabilities, providers, tool
// metadata) and returns the process-wide Router. Safe to call from every
// entry point; every caller observes the same Router, registry, and catalog.
func (b *Bootstrap) All() (*Router, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.routerReady {
		return b.router, nil
	}
	if err := b.ensureCapabilitiesLocked(); err != nil {
		return nil, err
	}
	if err := b.ensureProvidersLocked(); err != nil {
		return nil, err
	}
	if err := b.ensureToolsLocked(); err != nil {
		return nil, err
	}

	b.router = newRouter(b.cfg, b.catalog, b.registry, b.tools)
	b.routerReady = true
	return b.router, nil
}
