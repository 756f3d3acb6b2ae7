package modelrouter

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/arc-labs/model-router/catalog"
	"github.com/arc-labs/model-router/providers"
)

func testConfig() Config {
	return Config{
		Providers: []ProviderConfig{
			{
				ID: "glm",
				Models: []catalog.ModelSpec{{
					Name:          "glm-4-plus",
					ContextWindow: 128000,
					Capabilities:  catalog.Capabilities{Streaming: true, WebSearch: true},
				}},
			},
			{
				ID: "kimi",
				Models: []catalog.ModelSpec{{
					Name:          "moonshot-v1-32k",
					ContextWindow: 32000,
					Capabilities:  catalog.Capabilities{Streaming: true},
				}},
			},
		},
		Tools: []ToolConfig{
			{Name: "web_search", Requires: []string{"web_search", "tool_calling"}},
		},
	}
}

func TestBootstrapAllIdempotent(t *testing.T) {
	var built atomic.Int32
	b := NewBootstrap(testConfig(), WithHandleFactory(func(desc providers.Descriptor) (providers.Handle, error) {
		built.Add(1)
		return providers.NewStatic(desc), nil
	}))

	first, err := b.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	second, err := b.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if first != second {
		t.Fatal("expected identical router instance across calls")
	}
	if got := built.Load(); got != 2 {
		t.Fatalf("expected handle factory called once per provider (2), got %d", got)
	}
}

func TestBootstrapConcurrentCallersObserveSameRegistry(t *testing.T) {
	var built atomic.Int32
	b := NewBootstrap(testConfig(), WithHandleFactory(func(desc providers.Descriptor) (providers.Handle, error) {
		built.Add(1)
		return providers.NewStatic(desc), nil
	}))

	const callers = 16
	registries := make([]*providers.Registry, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			registries[i], errs[i] = b.EnsureProvidersRegistered()
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if registries[i] != registries[0] {
			t.Fatalf("caller %d observed a different registry instance", i)
		}
	}
	if got := built.Load(); got != 2 {
		t.Fatalf("registration work ran %d handle builds, want 2", got)
	}
}

func TestBootstrapFailureLeavesFlagUnsetAndRetries(t *testing.T) {
	boom := errors.New("client construction failed")
	var calls atomic.Int32
	b := NewBootstrap(testConfig(), WithHandleFactory(func(desc providers.Descriptor) (providers.Handle, error) {
		if calls.Add(1) == 1 {
			return nil, boom
		}
		return providers.NewStatic(desc), nil
	}))

	if _, err := b.EnsureProvidersRegistered(); !errors.Is(err, boom) {
		t.Fatalf("expected construction error surfaced, got %v", err)
	}

	// The failed step must rerun fully on the next call, not resume.
	reg, err := b.EnsureProvidersRegistered()
	if err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if len(reg.List()) != 2 {
		t.Fatalf("expected both providers registered on retry, got %v", reg.List())
	}
}

func TestBootstrapCapabilitiesLoadedOnce(t *testing.T) {
	b := NewBootstrap(testConfig())
	c1, err := b.EnsureCapabilitiesLoaded()
	if err != nil {
		t.Fatalf("EnsureCapabilitiesLoaded: %v", err)
	}
	c2, err := b.EnsureCapabilitiesLoaded()
	if err != nil {
		t.Fatalf("EnsureCapabilitiesLoaded: %v", err)
	}
	if c1 != c2 {
		t.Fatal("expected same catalog instance across calls")
	}
	if c1.Len() != 2 {
		t.Fatalf("expected 2 models, got %d", c1.Len())
	}
}

func TestBootstrapToolMetadata(t *testing.T) {
	b := NewBootstrap(testConfig())
	tools, err := b.EnsureToolMetadataRegistered()
	if err != nil {
		t.Fatalf("EnsureToolMetadataRegistered: %v", err)
	}
	caps, ok := tools.Requirements("web_search")
	if !ok {
		t.Fatal("expected web_search tool registered")
	}
	if !caps.WebSearch || !caps.ToolCalling {
		t.Fatalf("unexpected requirements: %+v", caps)
	}
	if _, ok := tools.Requirements("missing"); ok {
		t.Fatal("expected miss for unknown tool")
	}
}

func TestBootstrapDefaultsToBundledCatalog(t *testing.T) {
	b := NewBootstrap(Config{})
	router, err := b.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if router.Catalog().Len() == 0 {
		t.Fatal("expected bundled catalog models")
	}
	if len(router.Registry().List()) == 0 {
		t.Fatal("expected providers derived from bundled catalog")
	}
}
