package routing

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/arc-labs/model-router/catalog"
	"github.com/arc-labs/model-router/providers"
)

// Default token assumptions used for cost estimation when the request does
// not carry its own sizes. Ranking only needs relative costs, so a fixed
// assumption is sufficient.
const (
	defaultPromptTokens     = 2000
	defaultCompletionTokens = 1000
)

// Engine selects a (provider, model) candidate list for each request. It
// holds no mutable state of its own, so Select may run fully in parallel
// across requests.
type Engine struct {
	catalog  *catalog.Catalog
	registry *providers.Registry
}

// NewEngine creates a selection engine over the given catalog and registry.
func NewEngine(cat *catalog.Catalog, reg *providers.Registry) *Engine {
	return &Engine{catalog: cat, registry: reg}
}

// Select produces a routing decision for the request, or an error when the
// request cannot be served as specified. "No healthy provider" is not an
// error here: unavailable candidates are still returned, ranked last, so the
// dispatcher can attempt a half-open probe.
func (e *Engine) Select(req RequestFeatures) (*Decision, error) {
	var reasons []string

	specs, reasons, err := e.eligibleSpecs(req, reasons)
	if err != nil {
		return nil, err
	}

	candidates := e.buildCandidates(req, specs)

	// Cost ceiling.
	if req.MaxCostUSD != nil {
		kept := candidates[:0:0]
		for _, c := range candidates {
			if c.Cost.Priced && c.Cost.TotalUSD > *req.MaxCostUSD {
				reasons = append(reasons, fmt.Sprintf("dropped %s: estimated cost $%.6f exceeds ceiling $%.6f",
					c.Key(), c.Cost.TotalUSD, *req.MaxCostUSD))
				continue
			}
			kept = append(kept, c)
		}
		candidates = kept
	}

	if len(candidates) == 0 {
		return nil, &NoEligibleProviderError{Required: req.Required.Names()}
	}

	// Health partition: available candidates form the ranked head; the
	// unavailable remainder is appended last so an exhausted chain can still
	// reach a recovering provider.
	var available, unavailable []Candidate
	for _, c := range candidates {
		if c.Available {
			available = append(available, c)
		} else {
			unavailable = append(unavailable, c)
		}
	}
	rank(available, req.PreferProvider)
	rank(unavailable, req.PreferProvider)
	if len(unavailable) > 0 {
		reasons = append(reasons, fmt.Sprintf("%d unavailable candidate(s) appended to fallback tail", len(unavailable)))
	}
	ranked := append(available, unavailable...)

	if req.PreferProvider != "" && ranked[0].Provider == req.PreferProvider {
		reasons = append(reasons, fmt.Sprintf("preferred provider %s ranked first", req.PreferProvider))
	}
	reasons = append(reasons, fmt.Sprintf("selected %s (estimated $%.6f, %d fallback candidate(s))",
		ranked[0].Key(), ranked[0].Cost.TotalUSD, len(ranked)-1))

	return &Decision{
		ID:         uuid.NewString(),
		Primary:    ranked[0],
		Candidates: ranked,
		Reasoning:  reasons,
		CreatedAt:  time.Now(),
	}, nil
}

// eligibleSpecs resolves the capability-eligible model specs for the request,
// handling the explicit-model fast path.
func (e *Engine) eligibleSpecs(req RequestFeatures, reasons []string) ([]catalog.ModelSpec, []string, error) {
	if req.Model != "" {
		spec, ok := e.catalog.Get(req.Model)
		if !ok {
			return nil, nil, &UnknownModelError{Model: req.Model}
		}
		if missing := spec.Capabilities.Missing(req.Required); missing != "" {
			return nil, nil, &CapabilityMismatchError{Model: spec.Name, Capability: missing}
		}
		if req.MinContextTokens > 0 && spec.ContextWindow < req.MinContextTokens {
			return nil, nil, &CapabilityMismatchError{Model: spec.Name, Capability: "context_window"}
		}
		if len(e.registry.ProvidersForModel(spec.Name)) == 0 {
			return nil, nil, &UnknownModelError{Model: req.Model}
		}
		reasons = append(reasons, fmt.Sprintf("explicit model %s validated against required capabilities", spec.Name))
		return []catalog.ModelSpec{spec}, reasons, nil
	}

	specs := e.catalog.FindModels(req.Required, req.MinContextTokens)
	if len(specs) == 0 {
		return nil, nil, &NoEligibleProviderError{Required: req.Required.Names()}
	}
	reasons = append(reasons, fmt.Sprintf("%d of %d catalog model(s) satisfy required capabilities %v",
		len(specs), e.catalog.Len(), req.Required.Names()))
	return specs, reasons, nil
}

// buildCandidates expands specs into per-provider candidates with cost and
// health annotations, preserving catalog registration order. Models whose
// provider is not registered are skipped.
func (e *Engine) buildCandidates(req RequestFeatures, specs []catalog.ModelSpec) []Candidate {
	prompt := req.PromptTokens
	if prompt <= 0 {
		prompt = defaultPromptTokens
	}

	var out []Candidate
	for _, spec := range specs {
		for _, id := range e.registry.ProvidersForModel(spec.Name) {
			if id != spec.Provider {
				continue
			}
			completion := defaultCompletionTokens
			if spec.MaxOutputTokens > 0 && spec.MaxOutputTokens < completion {
				completion = spec.MaxOutputTokens
			}
			c := Candidate{
				Provider: id,
				Model:    spec.Name,
				Cost:     catalog.Estimate(spec, prompt, completion),
			}
			if mon, err := e.registry.Monitor(id); err == nil {
				c.Available = mon.Available()
			}
			out = append(out, c)
		}
	}
	return out
}

// rank sorts candidates in place: preferred-provider hint first, then
// ascending estimated cost (unpriced models after priced ones), with the
// incoming order — catalog registration order — as the stable tie-break.
func rank(cs []Candidate, prefer string) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if prefer != "" && (a.Provider == prefer) != (b.Provider == prefer) {
			return a.Provider == prefer
		}
		if a.Cost.Priced != b.Cost.Priced {
			return a.Cost.Priced
		}
		if a.Cost.Priced && a.Cost.TotalUSD != b.Cost.TotalUSD {
			return a.Cost.TotalUSD < b.Cost.TotalUSD
		}
		return false
	})
}
