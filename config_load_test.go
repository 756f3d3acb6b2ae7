package modelrouter

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
logging:
  level: debug
circuit_breaker:
  failure_threshold: 3
  window: 1m
  cooldown: 15s
dispatcher:
  attempt_timeout: 5s
  max_attempts: 2
providers:
  - id: glm
    connection:
      base_url: https://open.bigmodel.cn/api/paas/v4
      api_key_env: GLM_API_KEY
    models:
      - name: glm-4-plus
        context_window: 128000
        max_output_tokens: 4096
        capabilities:
          streaming: true
          tool_calling: true
          web_search: true
        pricing:
          input_per_m_tokens: 0.6
          output_per_m_tokens: 0.6
  - id: kimi
    models:
      - name: moonshot-v1-32k
        context_window: 32000
tools:
  - name: web_search
    requires: [web_search]
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadConfigYAML(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "router.yaml", sampleYAML))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.Providers) != 2 || cfg.Providers[0].ID != "glm" {
		t.Fatalf("unexpected providers: %+v", cfg.Providers)
	}
	if cfg.CircuitBreaker.FailureThreshold != 3 {
		t.Fatalf("unexpected breaker config: %+v", cfg.CircuitBreaker)
	}
	if got := cfg.Dispatcher.dispatchConfig().AttemptTimeout; got != 5*time.Second {
		t.Fatalf("unexpected attempt timeout: %v", got)
	}
	m := cfg.Providers[0].Models[0]
	if !m.Capabilities.WebSearch || m.Pricing.InputPerMTokens == nil {
		t.Fatalf("model fields not decoded: %+v", m)
	}
}

func TestLoadConfigJSON(t *testing.T) {
	const sampleJSON = `{
  "providers": [
    {"id": "glm", "models": [{"name": "glm-4-plus", "context_window": 128000}]}
  ]
}`
	cfg, err := LoadConfig(writeConfig(t, "router.json", sampleJSON))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.Providers) != 1 {
		t.Fatalf("unexpected providers: %+v", cfg.Providers)
	}
}

func TestLoadConfigUnsupportedExtension(t *testing.T) {
	if _, err := LoadConfig(writeConfig(t, "router.toml", "x = 1")); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestLoadConfigSchemaViolation(t *testing.T) {
	bad := `
providers:
  - id: glm
    models:
      - name: glm-4-plus
        context_window: -5
`
	_, err := LoadConfig(writeConfig(t, "bad.yaml", bad))
	if err == nil || !strings.Contains(err.Error(), "schema") {
		t.Fatalf("expected schema violation, got %v", err)
	}
}

func TestLoadConfigUnknownField(t *testing.T) {
	bad := `
strategy:
  mode: fallback
`
	if _, err := LoadConfig(writeConfig(t, "unknown.yaml", bad)); err == nil {
		t.Fatal("expected schema violation for unknown top-level field")
	}
}

func TestValidateConfigDuplicateProvider(t *testing.T) {
	cfg := testConfig()
	cfg.Providers = append(cfg.Providers, cfg.Providers[0])
	if err := ValidateConfig(cfg); err == nil {
		t.Fatal("expected duplicate provider error")
	}
}

func TestValidateConfigBadDuration(t *testing.T) {
	cfg := testConfig()
	cfg.CircuitBreaker.Cooldown = "soon"
	if err := ValidateConfig(cfg); err == nil {
		t.Fatal("expected invalid duration error")
	}
}

func TestValidateConfigUnknownToolCapability(t *testing.T) {
	cfg := testConfig()
	cfg.Tools = []ToolConfig{{Name: "x", Requires: []string{"telepathy"}}}
	if err := ValidateConfig(cfg); err == nil {
		t.Fatal("expected unknown capability error")
	}
}
