// Package providers defines the provider handle contract, the provider error
// taxonomy, and the Registry that owns handles and their health monitors.
//
// A Handle is a thin descriptor bound to one concrete backend client. The
// actual HTTP client for each vendor lives outside this module; handles are
// constructed by the embedding application and registered at bootstrap.
package providers

import (
	"context"
	"encoding/json"

	"github.com/arc-labs/model-router/catalog"
)

// Descriptor identifies a provider and the models it serves.
// Immutable after registration.
type Descriptor struct {
	// ID is the provider identity tag, e.g. "glm" or "kimi".
	ID string `json:"id" yaml:"id"`
	// Models lists every model this provider serves.
	Models []catalog.ModelSpec `json:"models" yaml:"models"`
	// Connection carries opaque connection parameters (base URL, key env
	// var, ...) owned by the external client that backs this handle.
	Connection map[string]string `json:"connection,omitempty" yaml:"connection,omitempty"`
}

// ServesModel reports whether the descriptor lists the given model name.
func (d Descriptor) ServesModel(model string) bool {
	for _, m := range d.Models {
		if m.Name == model {
			return true
		}
	}
	return false
}

// Handle is the uniform invocation contract every backend exposes,
// regardless of vendor.
type Handle interface {
	// Name returns the provider identity tag.
	Name() string
	// Describe returns the provider descriptor.
	Describe() Descriptor
	// Invoke performs one call against the backend. Implementations must
	// honour ctx cancellation and classify failures as transient or fatal
	// via the Transient and Fatal helpers.
	Invoke(ctx context.Context, model string, payload json.RawMessage) (json.RawMessage, error)
}

// Static is a descriptor-only Handle with no backend client bound. Invoking
// it always fails fatally. It exists so the registry and routing layers can
// be bootstrapped and exercised before (or without) real clients — the
// dispatcher's caller-supplied invoke function bypasses Handle.Invoke.
type Static struct {
	desc Descriptor
}

// NewStatic builds a descriptor-only handle.
func NewStatic(desc Descriptor) *Static {
	return &Static{desc: desc}
}

// Name returns the provider identity tag.
func (s *Static) Name() string { return s.desc.ID }

// Describe returns the provider descriptor.
func (s *Static) Describe() Descriptor { return s.desc }

// Invoke always fails: no client is bound to a static handle.
func (s *Static) Invoke(_ context.Context, model string, _ json.RawMessage) (json.RawMessage, error) {
	return nil, Fatal(s.desc.ID, model, ErrNoClient)
}
