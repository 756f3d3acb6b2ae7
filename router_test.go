package modelrouter

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/arc-labs/model-router/catalog"
	"github.com/arc-labs/model-router/dispatch"
	"github.com/arc-labs/model-router/routing"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	r, err := NewBootstrap(testConfig()).All()
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return r
}

func TestRouterSelectAndExecute(t *testing.T) {
	r := newTestRouter(t)

	res, err := r.Execute(context.Background(), routing.RequestFeatures{
		Required: catalog.Capabilities{WebSearch: true},
	}, func(ctx context.Context, c routing.Candidate) (any, error) {
		return "payload", nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Provider != "glm" || res.Model != "glm-4-plus" {
		t.Fatalf("expected glm/glm-4-plus, got %s/%s", res.Provider, res.Model)
	}
}

func TestRouterExecuteFallsBack(t *testing.T) {
	r := newTestRouter(t)

	var tried []string
	res, err := r.Execute(context.Background(), routing.RequestFeatures{}, func(ctx context.Context, c routing.Candidate) (any, error) {
		tried = append(tried, c.Provider)
		if len(tried) == 1 {
			return nil, errors.New("upstream 502")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(tried) != 2 {
		t.Fatalf("expected fallback after transient failure, tried %v", tried)
	}
	if res.Provider == tried[0] {
		t.Fatalf("expected second provider to serve, got %s", res.Provider)
	}
}

func TestRouterExecuteAllFailed(t *testing.T) {
	r := newTestRouter(t)

	_, err := r.Execute(context.Background(), routing.RequestFeatures{}, func(ctx context.Context, c routing.Candidate) (any, error) {
		return nil, errors.New("boom")
	})
	var all *dispatch.AllProvidersFailedError
	if !errors.As(err, &all) {
		t.Fatalf("expected AllProvidersFailedError, got %v", err)
	}
}

func TestRouterHooksFire(t *testing.T) {
	r := newTestRouter(t)

	var mu sync.Mutex
	subjects := make(map[string]int)
	done := make(chan struct{}, 4)
	r.AddHook(func(ctx context.Context, subject string, data map[string]interface{}) {
		mu.Lock()
		subjects[subject]++
		mu.Unlock()
		done <- struct{}{}
	})

	_, err := r.Execute(context.Background(), routing.RequestFeatures{}, func(ctx context.Context, c routing.Candidate) (any, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	// One selection event and one dispatch event.
	<-done
	<-done
	mu.Lock()
	defer mu.Unlock()
	if subjects[SubjectSelectionCompleted] != 1 || subjects[SubjectDispatchCompleted] != 1 {
		t.Fatalf("unexpected hook subjects: %v", subjects)
	}
}

func TestRouterHealthSnapshot(t *testing.T) {
	r := newTestRouter(t)
	snaps := r.HealthSnapshot()
	if len(snaps) != 2 {
		t.Fatalf("expected snapshots for both providers, got %d", len(snaps))
	}
	for id, s := range snaps {
		if s.State.String() != "closed" {
			t.Fatalf("provider %s: expected closed at start, got %s", id, s.State)
		}
	}
}

func TestRouterReloadConfigPreservesRegistry(t *testing.T) {
	r := newTestRouter(t)
	regBefore := r.Registry()

	cfg := testConfig()
	cfg.Providers = append(cfg.Providers, ProviderConfig{
		ID: "deepseek",
		Models: []catalog.ModelSpec{{
			Name:          "deepseek-chat",
			ContextWindow: 64000,
			Capabilities:  catalog.Capabilities{Streaming: true},
		}},
	})
	if err := r.ReloadConfig(cfg); err != nil {
		t.Fatalf("ReloadConfig: %v", err)
	}

	if r.Registry() != regBefore {
		t.Fatal("reload must preserve registry identity")
	}
	if len(r.Registry().List()) != 3 {
		t.Fatalf("expected new provider registered, got %v", r.Registry().List())
	}
	if _, ok := r.Catalog().Get("deepseek/deepseek-chat"); !ok {
		t.Fatal("expected reloaded catalog to contain deepseek-chat")
	}
}

func TestRouterReloadConfigRejectsInvalid(t *testing.T) {
	r := newTestRouter(t)
	cfg := testConfig()
	cfg.Providers[0].Models = nil
	if err := r.ReloadConfig(cfg); err == nil {
		t.Fatal("expected validation error")
	}
}
