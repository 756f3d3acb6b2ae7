// Package catalog provides the capability catalog — a structured description
// of every routable model's context limits, capability flags, and pricing.
//
// The catalog is populated once at bootstrap, either from configuration or
// from the embedded default set, and is immutable afterwards. Iteration order
// is registration order so routing decisions stay reproducible.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed default_catalog.json
var bundledCatalog []byte

// Capabilities describes the features a model supports. The zero value means
// "no capabilities required" when used as a request-side requirement set.
type Capabilities struct {
	Streaming    bool `json:"streaming" yaml:"streaming"`
	Vision       bool `json:"vision" yaml:"vision"`
	ToolCalling  bool `json:"tool_calling" yaml:"tool_calling"`
	WebSearch    bool `json:"web_search" yaml:"web_search"`
	ThinkingMode bool `json:"thinking_mode" yaml:"thinking_mode"`
	FileUpload   bool `json:"file_upload" yaml:"file_upload"`
}

// Satisfies reports whether c provides every capability set in required.
func (c Capabilities) Satisfies(required Capabilities) bool {
	return c.Missing(required) == ""
}

// Missing returns the name of the first capability in required that c does
// not provide, or "" when all are satisfied. The fixed check order keeps
// error messages deterministic.
func (c Capabilities) Missing(required Capabilities) string {
	switch {
	case required.Streaming && !c.Streaming:
		return "streaming"
	case required.Vision && !c.Vision:
		return "vision"
	case required.ToolCalling && !c.ToolCalling:
		return "tool_calling"
	case required.WebSearch && !c.WebSearch:
		return "web_search"
	case required.ThinkingMode && !c.ThinkingMode:
		return "thinking_mode"
	case required.FileUpload && !c.FileUpload:
		return "file_upload"
	}
	return ""
}

// Names returns the set capability names in the same fixed order used by
// Missing. Used for log and reasoning strings.
func (c Capabilities) Names() []string {
	var names []string
	for _, f := range []struct {
		set  bool
		name string
	}{
		{c.Streaming, "streaming"},
		{c.Vision, "vision"},
		{c.ToolCalling, "tool_calling"},
		{c.WebSearch, "web_search"},
		{c.ThinkingMode, "thinking_mode"},
		{c.FileUpload, "file_upload"},
	} {
		if f.set {
			names = append(names, f.name)
		}
	}
	return names
}

// CapabilitiesFromNames builds a Capabilities set from capability names as
// they appear in configuration ("streaming", "vision", "tool_calling",
// "web_search", "thinking_mode", "file_upload").
func CapabilitiesFromNames(names []string) (Capabilities, error) {
	var c Capabilities
	for _, n := range names {
		switch n {
		case "streaming":
			c.Streaming = true
		case "vision":
			c.Vision = true
		case "tool_calling":
			c.ToolCalling = true
		case "web_search":
			c.WebSearch = true
		case "thinking_mode":
			c.ThinkingMode = true
		case "file_upload":
			c.FileUpload = true
		default:
			return Capabilities{}, fmt.Errorf("unknown capability: %s", n)
		}
	}
	return c, nil
}

// Pricing holds per-token prices in USD per 1 million tokens.
// nil means the price is unknown — it does NOT mean free. Use 0 for
// genuinely free models.
type Pricing struct {
	InputPerMTokens  *float64 `json:"input_per_m_tokens" yaml:"input_per_m_tokens"`
	OutputPerMTokens *float64 `json:"output_per_m_tokens" yaml:"output_per_m_tokens"`
}

// Priced reports whether both token prices are known.
func (p Pricing) Priced() bool {
	return p.InputPerMTokens != nil && p.OutputPerMTokens != nil
}

// ModelSpec holds all routing-relevant metadata for a single model.
// Immutable after the catalog is built.
type ModelSpec struct {
	Provider        string       `json:"provider" yaml:"provider"`
	Name            string       `json:"name" yaml:"name"`
	ContextWindow   int          `json:"context_window" yaml:"context_window"`
	MaxOutputTokens int          `json:"max_output_tokens" yaml:"max_output_tokens"`
	Capabilities    Capabilities `json:"capabilities" yaml:"capabilities"`
	Pricing         Pricing      `json:"pricing" yaml:"pricing"`
}

// Key returns the catalog key "provider/model-name".
func (m ModelSpec) Key() string {
	return m.Provider + "/" + m.Name
}

// Catalog is an ordered, immutable collection of ModelSpecs keyed by
// "provider/model-name". Build it with New or Load; do not mutate after.
type Catalog struct {
	order []string
	specs map[string]ModelSpec
}

// New builds a catalog from specs, preserving slice order as registration
// order. A duplicate key is an error so two providers cannot silently shadow
// each other's entries.
func New(specs []ModelSpec) (*Catalog, error) {
	c := &Catalog{specs: make(map[string]ModelSpec, len(specs))}
	for _, s := range specs {
		if s.Provider == "" || s.Name == "" {
			return nil, fmt.Errorf("catalog: model spec missing provider or name: %+v", s)
		}
		key := s.Key()
		if _, exists := c.specs[key]; exists {
			return nil, fmt.Errorf("catalog: duplicate model %s", key)
		}
		c.specs[key] = s
		c.order = append(c.order, key)
	}
	return c, nil
}

// Load parses the embedded default catalog shipped with the binary.
func Load() (*Catalog, error) {
	var specs []ModelSpec
	if err := json.Unmarshal(bundledCatalog, &specs); err != nil {
		return nil, fmt.Errorf("catalog: parsing bundled catalog: %w", err)
	}
	return New(specs)
}

// Len returns the number of models in the catalog.
func (c *Catalog) Len() int { return len(c.order) }

// Get looks up a model by "provider/model-name" key.
// A bare model name is also accepted: the first registered entry with that
// name wins, matching registration order.
func (c *Catalog) Get(key string) (ModelSpec, bool) {
	if m, ok := c.specs[key]; ok {
		return m, true
	}
	for _, k := range c.order {
		if c.specs[k].Name == key {
			return c.specs[k], true
		}
	}
	return ModelSpec{}, false
}

// All returns every model spec in registration order.
func (c *Catalog) All() []ModelSpec {
	out := make([]ModelSpec, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.specs[k])
	}
	return out
}

// FindModels returns every model that provides all required capabilities and
// whose context window is at least minContext (0 disables the check), in
// registration order.
func (c *Catalog) FindModels(required Capabilities, minContext int) []ModelSpec {
	var out []ModelSpec
	for _, k := range c.order {
		m := c.specs[k]
		if !m.Capabilities.Satisfies(required) {
			continue
		}
		if minContext > 0 && m.ContextWindow < minContext {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Providers returns the distinct provider identities in the catalog, in
// first-appearance order.
func (c *Catalog) Providers() []string {
	seen := make(map[string]bool)
	var out []string
	for _, k := range c.order {
		p := c.specs[k].Provider
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
