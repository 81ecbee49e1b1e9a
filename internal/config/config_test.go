package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.LLM.Provider != "" {
		t.Errorf("expected empty LLM.Provider, got '%s'", cfg.LLM.Provider)
	}
	if cfg.LLM.Enabled {
		t.Error("expected LLM.Enabled to be false by default")
	}
	if cfg.LLM.FallbackToRules {
		t.Error("expected LLM.FallbackToRules to be false by default (spec.md §4.6 requires archetype=null on LLM failure)")
	}
	if cfg.LLM.Timeout != 5*time.Second {
		t.Errorf("expected Timeout 5s, got %v", cfg.LLM.Timeout)
	}

	if cfg.Scoring.Alpha != 0.35 || cfg.Scoring.Beta != 0.40 || cfg.Scoring.Gamma != 0.25 {
		t.Errorf("unexpected scoring defaults: %+v", cfg.Scoring)
	}

	if cfg.Embedding.BatchSize != 64 {
		t.Errorf("expected batch size 64, got %d", cfg.Embedding.BatchSize)
	}
	if cfg.Embedding.RetryMaxAttempts != 5 {
		t.Errorf("expected retry max attempts 5, got %d", cfg.Embedding.RetryMaxAttempts)
	}

	if cfg.Clustering.MinClusterSize != 2 || cfg.Clustering.MinSamples != 1 {
		t.Errorf("unexpected clustering defaults: %+v", cfg.Clustering)
	}

	if cfg.Tiering.PrimaryStrengthThreshold != 1.0 || cfg.Tiering.PrimaryConfidenceThreshold != 0.6 {
		t.Errorf("unexpected primary tier thresholds: %+v", cfg.Tiering)
	}
	if cfg.Tiering.SecondaryStrengthThreshold != 0.7 || cfg.Tiering.SecondaryConfidenceThreshold != 0.5 {
		t.Errorf("unexpected secondary tier thresholds: %+v", cfg.Tiering)
	}

	if cfg.Assembler.HiddenClusterMatchThreshold != 0.2 {
		t.Errorf("expected tau_hide 0.2, got %f", cfg.Assembler.HiddenClusterMatchThreshold)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("expected Logging.Level 'info', got '%s'", cfg.Logging.Level)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
llm:
  provider: anthropic
  api_key: test-key
  archetype_model: claude-3-opus
  timeout: 10s
  enabled: true
  fallback_to_rules: false

clustering:
  min_cluster_size: 3
  min_samples: 2
  cluster_selection_epsilon: 0.2
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.LLM.Provider != "anthropic" {
		t.Errorf("expected Provider 'anthropic', got '%s'", cfg.LLM.Provider)
	}
	if cfg.LLM.APIKey != "test-key" {
		t.Errorf("expected APIKey 'test-key', got '%s'", cfg.LLM.APIKey)
	}
	if !cfg.LLM.Enabled {
		t.Error("expected Enabled to be true")
	}
	if cfg.LLM.FallbackToRules {
		t.Error("expected FallbackToRules to be false")
	}
	if cfg.Clustering.MinClusterSize != 3 {
		t.Errorf("expected MinClusterSize 3, got %d", cfg.Clustering.MinClusterSize)
	}
	if cfg.Clustering.ClusterSelectionEpsilon != 0.2 {
		t.Errorf("expected ClusterSelectionEpsilon 0.2, got %f", cfg.Clustering.ClusterSelectionEpsilon)
	}
}

func TestLoadFromFile_EnvExpansion(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
llm:
  provider: anthropic
  api_key: ${TEST_API_KEY}
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	os.Setenv("TEST_API_KEY", "expanded-key-value")
	defer os.Unsetenv("TEST_API_KEY")

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.LLM.APIKey != "expanded-key-value" {
		t.Errorf("expected APIKey 'expanded-key-value', got '%s'", cfg.LLM.APIKey)
	}
}

func TestEnvOverrides(t *testing.T) {
	origProvider := os.Getenv("CBIE_LLM_PROVIDER")
	origEnabled := os.Getenv("CBIE_LLM_ENABLED")
	origBatch := os.Getenv("CBIE_EMBED_BATCH_SIZE")
	defer func() {
		os.Setenv("CBIE_LLM_PROVIDER", origProvider)
		os.Setenv("CBIE_LLM_ENABLED", origEnabled)
		os.Setenv("CBIE_EMBED_BATCH_SIZE", origBatch)
	}()

	os.Setenv("CBIE_LLM_PROVIDER", "openai")
	os.Setenv("CBIE_LLM_ENABLED", "true")
	os.Setenv("CBIE_EMBED_BATCH_SIZE", "32")

	cfg := Default()
	applyEnvOverrides(cfg)

	if cfg.LLM.Provider != "openai" {
		t.Errorf("expected Provider 'openai', got '%s'", cfg.LLM.Provider)
	}
	if !cfg.LLM.Enabled {
		t.Error("expected Enabled to be true")
	}
	if cfg.Embedding.BatchSize != 32 {
		t.Errorf("expected BatchSize 32, got %d", cfg.Embedding.BatchSize)
	}
}

func TestValidate_Valid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}
}

func TestValidate_InvalidClusteringParams(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
	}{
		{"min cluster size zero", func(c *Config) { c.Clustering.MinClusterSize = 0 }},
		{"min samples zero", func(c *Config) { c.Clustering.MinSamples = 0 }},
		{"negative epsilon", func(c *Config) { c.Clustering.ClusterSelectionEpsilon = -0.1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidate_InvalidProvider(t *testing.T) {
	cfg := Default()
	cfg.LLM.Provider = "invalid-provider"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for invalid provider")
	}
}

func TestValidate_ValidProviders(t *testing.T) {
	validProviders := []string{"", "anthropic", "openai", "local"}

	for _, provider := range validProviders {
		t.Run(provider, func(t *testing.T) {
			cfg := Default()
			cfg.LLM.Provider = provider
			if err := cfg.Validate(); err != nil {
				t.Errorf("expected provider '%s' to be valid, got error: %v", provider, err)
			}
		})
	}
}

func TestRedactedAPIKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want string
	}{
		{"empty", "", ""},
		{"short", "abc", "(set)"},
		{"exactly 11 chars", "abcdefghijk", "(set)"},
		{"exactly 12 chars", "abcdefghijkl", "abcd...ijkl"},
		{"normal", "sk-ant-REDACTED", "sk-a...CTED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LLMConfig{APIKey: tt.key}
			got := cfg.RedactedAPIKey()
			if got != tt.want {
				t.Errorf("RedactedAPIKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLLMConfigString(t *testing.T) {
	cfg := LLMConfig{
		Provider:       "anthropic",
		APIKey:         "sk-ant-REDACTED",
		ArchetypeModel: "claude-3-haiku",
		Enabled:        true,
	}

	s := cfg.String()

	if strings.Contains(s, cfg.APIKey) {
		t.Errorf("String() must not contain full API key, got: %s", s)
	}
	if !strings.Contains(s, cfg.RedactedAPIKey()) {
		t.Errorf("String() should contain redacted key %q, got: %s", cfg.RedactedAPIKey(), s)
	}
	if !strings.Contains(s, "anthropic") {
		t.Errorf("String() should contain provider, got: %s", s)
	}
	if !strings.Contains(s, "claude-3-haiku") {
		t.Errorf("String() should contain model, got: %s", s)
	}
}

func TestEnvOverrides_LogLevel(t *testing.T) {
	origLogLevel := os.Getenv("CBIE_LOG_LEVEL")
	defer os.Setenv("CBIE_LOG_LEVEL", origLogLevel)

	os.Setenv("CBIE_LOG_LEVEL", "debug")

	cfg := Default()
	applyEnvOverrides(cfg)

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected Logging.Level 'debug', got '%s'", cfg.Logging.Level)
	}
}

func TestLoadFromFile_LoggingConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: trace
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.Logging.Level != "trace" {
		t.Errorf("expected Logging.Level 'trace', got '%s'", cfg.Logging.Level)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for invalid log level")
	}
}

func TestValidate_ValidLogLevels(t *testing.T) {
	validLevels := []string{"", "info", "debug", "trace"}

	for _, level := range validLevels {
		t.Run(level, func(t *testing.T) {
			cfg := Default()
			cfg.Logging.Level = level
			if err := cfg.Validate(); err != nil {
				t.Errorf("expected log level '%s' to be valid, got error: %v", level, err)
			}
		})
	}
}

func TestLoadFromFile_NotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFromFile_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	invalidYAML := `
llm:
  provider: [invalid yaml
`
	if err := os.WriteFile(configPath, []byte(invalidYAML), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := LoadFromFile(configPath)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}
