// Package modelrouter is a capability-aware routing layer between a
// tool-execution front end and heterogeneous backend model providers.
//
// The Bootstrap type is the entry point: create one with NewBootstrap, call
// All from every process entry point (idempotently), and use the returned
// Router to select candidates and dispatch calls. Provider descriptors,
// circuit-breaker thresholds, and dispatcher tuning are configured via
// [Config], loadable from a YAML or JSON file with [LoadConfig].
package modelrouter

import (
	"fmt"
	"time"

	"github.com/arc-labs/model-router/catalog"
	"github.com/arc-labs/model-router/dispatch"
	"github.com/arc-labs/model-router/internal/health"
)

// Config holds the configuration consumed once by the Bootstrap coordinator.
type Config struct {
	// Logging controls the structured logger.
	Logging LoggingConfig `json:"logging,omitempty" yaml:"logging,omitempty"`
	// CircuitBreaker sets the thresholds applied to every provider monitor.
	CircuitBreaker BreakerConfig `json:"circuit_breaker,omitempty" yaml:"circuit_breaker,omitempty"`
	// Dispatcher tunes candidate execution.
	Dispatcher DispatcherConfig `json:"dispatcher,omitempty" yaml:"dispatcher,omitempty"`
	// Providers lists the provider descriptors to register. When empty, the
	// bundled default catalog is used and one provider is registered per
	// distinct provider identity in it.
	Providers []ProviderConfig `json:"providers,omitempty" yaml:"providers,omitempty"`
	// Tools maps tool names to the capabilities a model must have to run
	// them, registered as tool metadata at bootstrap.
	Tools []ToolConfig `json:"tools,omitempty" yaml:"tools,omitempty"`
}

// LoggingConfig mirrors internal/logging.Setup arguments.
type LoggingConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`   // debug | info | warn | error
	Format string `json:"format,omitempty" yaml:"format,omitempty"` // json | text
}

// BreakerConfig holds circuit-breaker thresholds. Durations are strings in
// time.ParseDuration syntax ("30s", "1m").
type BreakerConfig struct {
	FailureThreshold int    `json:"failure_threshold,omitempty" yaml:"failure_threshold,omitempty"`
	Window           string `json:"window,omitempty" yaml:"window,omitempty"`
	Cooldown         string `json:"cooldown,omitempty" yaml:"cooldown,omitempty"`
}

func (c BreakerConfig) healthConfig() health.Config {
	cfg := health.Config{FailureThreshold: c.FailureThreshold}
	cfg.Window, _ = time.ParseDuration(c.Window)
	cfg.Cooldown, _ = time.ParseDuration(c.Cooldown)
	return cfg
}

// DispatcherConfig tunes the execution dispatcher.
type DispatcherConfig struct {
	AttemptTimeout string `json:"attempt_timeout,omitempty" yaml:"attempt_timeout,omitempty"`
	MaxAttempts    int    `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty"`
	InitialBackoff string `json:"initial_backoff,omitempty" yaml:"initial_backoff,omitempty"`
}

func (c DispatcherConfig) dispatchConfig() dispatch.Config {
	cfg := dispatch.Config{MaxAttempts: c.MaxAttempts}
	cfg.AttemptTimeout, _ = time.ParseDuration(c.AttemptTimeout)
	cfg.InitialBackoff, _ = time.ParseDuration(c.InitialBackoff)
	return cfg
}

// ProviderConfig describes one provider and the models it serves.
type ProviderConfig struct {
	ID string `json:"id" yaml:"id"`
	// Connection carries opaque client parameters; this core never
	// interprets them beyond handing them to the handle factory.
	Connection map[string]string   `json:"connection,omitempty" yaml:"connection,omitempty"`
	Models     []catalog.ModelSpec `json:"models" yaml:"models"`
}

// ToolConfig names a tool and the model capabilities it requires.
type ToolConfig struct {
	Name     string   `json:"name" yaml:"name"`
	Requires []string `json:"requires,omitempty" yaml:"requires,omitempty"`
}

// ValidateConfig validates a Config for semantic correctness beyond what the
// JSON Schema covers.
func ValidateConfig(cfg Config) error {
	seen := make(map[string]bool)
	for _, p := range cfg.Providers {
		if p.ID == "" {
			return fmt.Errorf("provider with empty id")
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate provider id: %s", p.ID)
		}
		seen[p.ID] = true
		if len(p.Models) == 0 {
			return fmt.Errorf("provider %s: at least one model is required", p.ID)
		}
		for _, m := range p.Models {
			if m.Name == "" {
				return fmt.Errorf("provider %s: model with empty name", p.ID)
			}
			if m.Provider != "" && m.Provider != p.ID {
				return fmt.Errorf("provider %s: model %s declares mismatched provider %s", p.ID, m.Name, m.Provider)
			}
			if m.ContextWindow <= 0 {
				return fmt.Errorf("provider %s: model %s: context_window must be positive", p.ID, m.Name)
			}
		}
	}
	for _, d := range []struct {
		name, val string
	}{
		{"circuit_breaker.window", cfg.CircuitBreaker.Window},
		{"circuit_breaker.cooldown", cfg.CircuitBreaker.Cooldown},
		{"dispatcher.attempt_timeout", cfg.Dispatcher.AttemptTimeout},
		{"dispatcher.initial_backoff", cfg.Dispatcher.InitialBackoff},
	} {
		if d.val == "" {
			continue
		}
		if _, err := time.ParseDuration(d.val); err != nil {
			return fmt.Errorf("%s: invalid duration %q", d.name, d.val)
		}
	}
	for _, tool := range cfg.Tools {
		if tool.Name == "" {
			return fmt.Errorf("tool with empty name")
		}
		if _, err := catalog.CapabilitiesFromNames(tool.Requires); err != nil {
			return fmt.Errorf("tool %s: %w", tool.Name, err)
		}
	}
	return nil
}

// modelSpecs returns the provider's models with the Provider field filled in
// from the config ID, so config files may omit the redundant field.
func (p ProviderConfig) modelSpecs() []catalog.ModelSpec {
	out := make([]catalog.ModelSpec, len(p.Models))
	for i, m := range p.Models {
		m.Provider = p.ID
		out[i] = m
	}
	return out
}
