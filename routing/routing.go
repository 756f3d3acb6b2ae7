// Package routing implements capability-aware provider selection. Given a
// per-request feature set it consults the capability catalog and provider
// registry, applies health state, and produces an ordered routing decision
// with a fallback chain.
package routing

import (
	"time"

	"github.com/arc-labs/model-router/catalog"
)

// RequestFeatures is the per-request value object describing what the caller
// needs from a model. Create one per request; never reuse across requests.
type RequestFeatures struct {
	// Required capability flags. The zero value matches every model.
	Required catalog.Capabilities `json:"required" yaml:"required"`
	// Model optionally names an explicit model. Selection fails with
	// CapabilityMismatchError if it cannot satisfy Required.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`
	// MaxCostUSD optionally caps the estimated request cost.
	MaxCostUSD *float64 `json:"max_cost_usd,omitempty" yaml:"max_cost_usd,omitempty"`
	// PreferProvider optionally hints which provider to rank first.
	PreferProvider string `json:"prefer_provider,omitempty" yaml:"prefer_provider,omitempty"`
	// MinContextTokens optionally sets the minimum context window.
	MinContextTokens int `json:"min_context_tokens,omitempty" yaml:"min_context_tokens,omitempty"`
	// PromptTokens is the caller's estimate of the prompt size, used for
	// cost estimation. Zero falls back to the engine's default assumption.
	PromptTokens int `json:"prompt_tokens,omitempty" yaml:"prompt_tokens,omitempty"`
}

// Candidate is one (provider, model) pair considered by the engine.
type Candidate struct {
	Provider string       `json:"provider"`
	Model    string       `json:"model"`
	Cost     catalog.Cost `json:"cost"`
	// Available reflects the provider's health monitor at selection time.
	Available bool `json:"available"`
}

// Key returns "provider/model" for logs and failure reports.
func (c Candidate) Key() string { return c.Provider + "/" + c.Model }

// Decision is the immutable output of Engine.Select, consumed once by the
// dispatcher. Candidates are ranked best-first; Candidates[0] is the primary
// and the remainder is the fallback chain, with health-unavailable
// candidates appended last.
type Decision struct {
	ID         string      `json:"id"`
	Primary    Candidate   `json:"primary"`
	Candidates []Candidate `json:"candidates"`
	Reasoning  []string    `json:"reasoning"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Fallbacks returns the fallback chain (every candidate after the primary).
func (d *Decision) Fallbacks() []Candidate {
	if len(d.Candidates) <= 1 {
		return nil
	}
	return d.Candidates[1:]
}
