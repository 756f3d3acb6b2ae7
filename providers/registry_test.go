package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/arc-labs/model-router/catalog"
	"github.com/arc-labs/model-router/internal/health"
)

func testHandle(id string, models ...string) Handle {
	d := Descriptor{ID: id}
	for _, m := range models {
		d.Models = append(d.Models, catalog.ModelSpec{Provider: id, Name: m, ContextWindow: 32000})
	}
	return NewStatic(d)
}

func TestRegisterAndGet(t *testing.T) {
	r := NewRegistry(health.Config{})
	if err := r.Register(testHandle("glm", "glm-4-plus")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	h, err := r.Get("glm")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if h.Name() != "glm" {
		t.Fatalf("unexpected handle: %s", h.Name())
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry(health.Config{})
	if err := r.Register(testHandle("glm")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	err := r.Register(testHandle("glm"))
	var dup *DuplicateProviderError
	if !errors.As(err, &dup) || dup.ID != "glm" {
		t.Fatalf("expected DuplicateProviderError for glm, got %v", err)
	}
}

func TestGetUnknownProvider(t *testing.T) {
	r := NewRegistry(health.Config{})
	_, err := r.Get("nope")
	var nf *ProviderNotFoundError
	if !errors.As(err, &nf) || nf.ID != "nope" {
		t.Fatalf("expected ProviderNotFoundError, got %v", err)
	}
	if _, err := r.Monitor("nope"); err == nil {
		t.Fatal("expected error for unknown monitor")
	}
}

func TestListPreservesRegistrationOrder(t *testing.T) {
	r := NewRegistry(health.Config{})
	for _, id := range []string{"glm", "kimi", "deepseek"} {
		if err := r.Register(testHandle(id)); err != nil {
			t.Fatalf("Register %s: %v", id, err)
		}
	}
	got := r.List()
	want := []string{"glm", "kimi", "deepseek"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: want %s, got %s", i, want[i], got[i])
		}
	}
}

func TestProvidersForModel(t *testing.T) {
	r := NewRegistry(health.Config{})
	_ = r.Register(testHandle("glm", "shared-model", "glm-only"))
	_ = r.Register(testHandle("kimi", "shared-model"))

	ids := r.ProvidersForModel("shared-model")
	if len(ids) != 2 || ids[0] != "glm" || ids[1] != "kimi" {
		t.Fatalf("unexpected providers for shared-model: %v", ids)
	}
	if ids := r.ProvidersForModel("glm-only"); len(ids) != 1 || ids[0] != "glm" {
		t.Fatalf("unexpected providers for glm-only: %v", ids)
	}
	if ids := r.ProvidersForModel("missing"); len(ids) != 0 {
		t.Fatalf("expected no providers, got %v", ids)
	}
}

func TestMonitorOwnership(t *testing.T) {
	r := NewRegistry(health.Config{FailureThreshold: 1, Cooldown: 1})
	_ = r.Register(testHandle("glm"))
	m, err := r.Monitor("glm")
	if err != nil {
		t.Fatalf("Monitor: %v", err)
	}
	m.RecordFailure()
	snap := r.Snapshot()["glm"]
	if snap.State != health.StateOpen {
		t.Fatalf("expected registry snapshot to reflect monitor state, got %s", snap.State)
	}
}

func TestStaticHandleInvokeIsFatal(t *testing.T) {
	h := testHandle("glm", "glm-4-plus")
	_, err := h.Invoke(context.Background(), "glm-4-plus", nil)
	if !IsFatal(err) {
		t.Fatalf("expected fatal error from static handle, got %v", err)
	}
	if !errors.Is(err, ErrNoClient) {
		t.Fatalf("expected ErrNoClient, got %v", err)
	}
}
