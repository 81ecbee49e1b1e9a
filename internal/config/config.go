// Package config provides unified configuration loading for the core
// analysis pipeline. It supports loading from YAML files and
// environment variables.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cbie/core/internal/constants"
	"gopkg.in/yaml.v3"
)

// Config contains all configuration for the analysis pipeline.
type Config struct {
	// Scoring contains the Behavior Weight / Adjusted Behavior Weight
	// exponents and coefficients (C1).
	Scoring ScoringConfig `json:"scoring" yaml:"scoring"`

	// Embedding contains settings for the embedding gateway (C2).
	Embedding EmbeddingConfig `json:"embedding" yaml:"embedding"`

	// Clustering contains density-clustering parameters (C3).
	Clustering ClusteringConfig `json:"clustering" yaml:"clustering"`

	// Aggregation contains cluster-strength and confidence weighting (C4).
	Aggregation AggregationConfig `json:"aggregation" yaml:"aggregation"`

	// Tiering contains tier-classification thresholds (C5).
	Tiering TieringConfig `json:"tiering" yaml:"tiering"`

	// Assembler contains profile-assembly settings (C7).
	Assembler AssemblerConfig `json:"assembler" yaml:"assembler"`

	// LLM contains settings for LLM-based archetype generation and
	// canonical labeling.
	LLM LLMConfig `json:"llm" yaml:"llm"`

	// Logging contains settings for operational and decision logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Backup contains settings for profile-store backup operations.
	Backup BackupConfig `json:"backup" yaml:"backup"`
}

// ScoringConfig configures the Behavior Weight formula (C1).
type ScoringConfig struct {
	Alpha float64 `json:"alpha" yaml:"alpha"`
	Beta  float64 `json:"beta" yaml:"beta"`
	Gamma float64 `json:"gamma" yaml:"gamma"`

	// ReinforcementRate scales the reinforcement_count term of the
	// Adjusted Behavior Weight.
	ReinforcementRate float64 `json:"reinforcement_rate" yaml:"reinforcement_rate"`
}

// EmbeddingConfig configures the embedding gateway (C2).
type EmbeddingConfig struct {
	// Provider identifies the embedding backend: "openai", "local", or ""
	// for disabled (tests/fallback only). "anthropic" passes validation but
	// has no embeddings endpoint, so it leaves the gateway without an
	// available provider.
	Provider string `json:"provider" yaml:"provider"`

	// APIKey supports ${VAR} syntax for env vars.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	BatchSize int `json:"batch_size" yaml:"batch_size"`

	RetryBaseDelaySeconds  float64 `json:"retry_base_delay_seconds" yaml:"retry_base_delay_seconds"`
	RetryBackoffFactor     float64 `json:"retry_backoff_factor" yaml:"retry_backoff_factor"`
	RetryMaxAttempts       int     `json:"retry_max_attempts" yaml:"retry_max_attempts"`

	// LocalLibPath is the directory containing yzma shared libraries
	// (.so/.dylib). Falls back to the CBIE_LOCAL_LIB env var at runtime.
	// Only used when provider is "local".
	LocalLibPath string `json:"local_lib_path,omitempty" yaml:"local_lib_path,omitempty"`

	// LocalModelPath is the path to a GGUF model file for local
	// embedding generation. Only used when provider is "local".
	LocalModelPath string `json:"local_model_path,omitempty" yaml:"local_model_path,omitempty"`

	// LocalGPULayers is the number of model layers to offload to GPU
	// (0 = CPU only). Only used when provider is "local".
	LocalGPULayers int32 `json:"local_gpu_layers,omitempty" yaml:"local_gpu_layers,omitempty"`

	// CacheDir is where the embedding cache (LanceDB table) lives.
	CacheDir string `json:"cache_dir,omitempty" yaml:"cache_dir,omitempty"`
}

// ClusteringConfig configures the density-based clustering engine (C3).
type ClusteringConfig struct {
	MinClusterSize          int     `json:"min_cluster_size" yaml:"min_cluster_size"`
	MinSamples              int     `json:"min_samples" yaml:"min_samples"`
	ClusterSelectionEpsilon float64 `json:"cluster_selection_epsilon" yaml:"cluster_selection_epsilon"`
}

// AggregationConfig configures cluster-strength and confidence
// computation (C4).
type AggregationConfig struct {
	RecencyDecayLambda           float64 `json:"recency_decay_lambda" yaml:"recency_decay_lambda"`
	ReinforcementSaturationCount int     `json:"reinforcement_saturation_count" yaml:"reinforcement_saturation_count"`
	ClarityTrendMinClusterSize   int     `json:"clarity_trend_min_cluster_size" yaml:"clarity_trend_min_cluster_size"`

	ConsistencyWeight   float64 `json:"consistency_weight" yaml:"consistency_weight"`
	ReinforcementWeight float64 `json:"reinforcement_weight" yaml:"reinforcement_weight"`
	ClarityTrendWeight  float64 `json:"clarity_trend_weight" yaml:"clarity_trend_weight"`
}

// TieringConfig configures the PRIMARY/SECONDARY/NOISE thresholds (C5).
type TieringConfig struct {
	PrimaryStrengthThreshold   float64 `json:"primary_strength_threshold" yaml:"primary_strength_threshold"`
	PrimaryConfidenceThreshold float64 `json:"primary_confidence_threshold" yaml:"primary_confidence_threshold"`

	SecondaryStrengthThreshold   float64 `json:"secondary_strength_threshold" yaml:"secondary_strength_threshold"`
	SecondaryConfidenceThreshold float64 `json:"secondary_confidence_threshold" yaml:"secondary_confidence_threshold"`
}

// AssemblerConfig configures the profile assembler (C7).
type AssemblerConfig struct {
	// HiddenClusterMatchThreshold (τ_hide) bounds the cosine distance
	// within which a new cluster centroid must fall from a previously
	// hidden cluster's centroid to inherit is_hidden=true.
	HiddenClusterMatchThreshold float64 `json:"hidden_cluster_match_threshold" yaml:"hidden_cluster_match_threshold"`

	// DeletionGracePeriodDays is how long a delete_profile request sits
	// pending before the profile is purged (C8).
	DeletionGracePeriodDays int `json:"deletion_grace_period_days" yaml:"deletion_grace_period_days"`
}

// LoggingConfig configures the pipeline's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables decision logging to the decisions.jsonl trace file.
	// "trace" additionally includes full LLM prompt/response content.
	Level string `json:"level" yaml:"level"`
}

// LLMConfig configures LLM-based archetype generation and canonical
// label selection.
type LLMConfig struct {
	// Provider identifies the LLM backend: "anthropic", "openai",
	// "local", or "" for disabled.
	Provider string `json:"provider" yaml:"provider"`

	// APIKey is the API key for the provider. Supports ${VAR} syntax for
	// env vars.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL is the API endpoint URL, used for custom OpenAI-compatible
	// endpoints.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// ArchetypeModel is the model used to generate the archetype summary.
	ArchetypeModel string `json:"archetype_model,omitempty" yaml:"archetype_model,omitempty"`

	// LabelModel is the model used to select a cluster's canonical label.
	LabelModel string `json:"label_model,omitempty" yaml:"label_model,omitempty"`

	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	Enabled bool `json:"enabled" yaml:"enabled"`

	// FallbackToRules opts into a rule-based archetype when the LLM is
	// unavailable or a call fails. Defaults to false: spec.md §4.6/§7
	// require archetype=null on LLM failure, not a synthesized stand-in.
	FallbackToRules bool `json:"fallback_to_rules" yaml:"fallback_to_rules"`

	// LocalLibPath, LocalModelPath mirror EmbeddingConfig's local-backend
	// settings, used when provider is "local".
	LocalLibPath string `json:"local_lib_path,omitempty" yaml:"local_lib_path,omitempty"`
	LocalModelPath string `json:"local_model_path,omitempty" yaml:"local_model_path,omitempty"`
	LocalGPULayers int32  `json:"local_gpu_layers,omitempty" yaml:"local_gpu_layers,omitempty"`
	LocalContextSize int  `json:"local_context_size,omitempty" yaml:"local_context_size,omitempty"`
}

// RedactedAPIKey returns the API key with most characters masked.
// Shows first 4 and last 4 characters, e.g., "sk-a...xyz9".
// Returns "" for empty keys and "(set)" for keys shorter than 12 chars.
func (c LLMConfig) RedactedAPIKey() string {
	if c.APIKey == "" {
		return ""
	}
	if len(c.APIKey) < 12 {
		return "(set)"
	}
	return c.APIKey[:4] + "..." + c.APIKey[len(c.APIKey)-4:]
}

// String implements fmt.Stringer to prevent accidental API key logging.
func (c LLMConfig) String() string {
	return fmt.Sprintf("LLMConfig{Provider:%s, Enabled:%t, APIKey:%s, Model:%s}",
		c.Provider, c.Enabled, c.RedactedAPIKey(), c.ArchetypeModel)
}

// BackupConfig configures backup behavior for the profile store.
type BackupConfig struct {
	Compression bool `json:"compression" yaml:"compression"`

	// AutoBackup enables automatic backups after each analysis run.
	AutoBackup bool `json:"auto_backup" yaml:"auto_backup"`

	Retention RetentionConfig `json:"retention" yaml:"retention"`
}

// RetentionConfig configures backup retention policies.
type RetentionConfig struct {
	MaxCount int `json:"max_count" yaml:"max_count"`

	// MaxAge is the maximum age of backups (e.g., "30d", "2w", "720h"). Empty = disabled.
	MaxAge string `json:"max_age" yaml:"max_age"`

	// MaxTotalSize is the maximum total size of backups (e.g., "100MB", "1GB"). Empty = disabled.
	MaxTotalSize string `json:"max_total_size" yaml:"max_total_size"`
}

// Default returns a Config with the defaults named in constants.
func Default() *Config {
	return &Config{
		Scoring: ScoringConfig{
			Alpha:             constants.DefaultAlpha,
			Beta:              constants.DefaultBeta,
			Gamma:             constants.DefaultGamma,
			ReinforcementRate: constants.DefaultReinforcementRate,
		},
		Embedding: EmbeddingConfig{
			Provider:               "",
			BatchSize:              constants.DefaultEmbedBatchSize,
			RetryBaseDelaySeconds:  constants.EmbedRetryBaseDelaySeconds,
			RetryBackoffFactor:     constants.EmbedRetryBackoffFactor,
			RetryMaxAttempts:       constants.EmbedRetryMaxAttempts,
		},
		Clustering: ClusteringConfig{
			MinClusterSize:          constants.DefaultMinClusterSize,
			MinSamples:              constants.DefaultMinSamples,
			ClusterSelectionEpsilon: constants.DefaultClusterSelectionEpsilon,
		},
		Aggregation: AggregationConfig{
			RecencyDecayLambda:           constants.RecencyDecayLambda,
			ReinforcementSaturationCount: constants.ReinforcementSaturationCount,
			ClarityTrendMinClusterSize:   constants.ClarityTrendMinClusterSize,
			ConsistencyWeight:            constants.ConsistencyWeight,
			ReinforcementWeight:          constants.ReinforcementWeight,
			ClarityTrendWeight:           constants.ClarityTrendWeight,
		},
		Tiering: TieringConfig{
			PrimaryStrengthThreshold:     constants.PrimaryStrengthThreshold,
			PrimaryConfidenceThreshold:   constants.PrimaryConfidenceThreshold,
			SecondaryStrengthThreshold:   constants.SecondaryStrengthThreshold,
			SecondaryConfidenceThreshold: constants.SecondaryConfidenceThreshold,
		},
		Assembler: AssemblerConfig{
			HiddenClusterMatchThreshold: constants.HiddenClusterMatchThreshold,
			DeletionGracePeriodDays:     constants.ProfileDeletionGracePeriodDays,
		},
		LLM: LLMConfig{
			Provider:        "",
			ArchetypeModel:  "claude-3-haiku-20240307",
			LabelModel:      "claude-3-haiku-20240307",
			Timeout:         5 * time.Second,
			Enabled:         false,
			FallbackToRules: false,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Backup: BackupConfig{
			Compression: true,
			AutoBackup:  true,
			Retention: RetentionConfig{
				MaxCount: 10,
			},
		},
	}
}

// Load loads configuration from the default locations and environment
// variables. Order: defaults -> ~/.cbie/config.yaml -> environment
// variables.
func Load() (*Config, error) {
	cfg := Default()

	homeDir, err := os.UserHomeDir()
	if err == nil {
		configPath := filepath.Join(homeDir, ".cbie", "config.yaml")
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			cfg = fileConfig
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.LLM.APIKey = expandEnvVars(cfg.LLM.APIKey)
	cfg.Embedding.APIKey = expandEnvVars(cfg.Embedding.APIKey)

	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Clustering.MinClusterSize < 1 {
		return fmt.Errorf("clustering.min_cluster_size must be >= 1, got %d", c.Clustering.MinClusterSize)
	}
	if c.Clustering.MinSamples < 1 {
		return fmt.Errorf("clustering.min_samples must be >= 1, got %d", c.Clustering.MinSamples)
	}
	if c.Clustering.ClusterSelectionEpsilon < 0 {
		return fmt.Errorf("clustering.cluster_selection_epsilon must be >= 0, got %f", c.Clustering.ClusterSelectionEpsilon)
	}

	if c.Embedding.BatchSize < 1 {
		return fmt.Errorf("embedding.batch_size must be >= 1, got %d", c.Embedding.BatchSize)
	}
	if c.Embedding.RetryMaxAttempts < 1 {
		return fmt.Errorf("embedding.retry_max_attempts must be >= 1, got %d", c.Embedding.RetryMaxAttempts)
	}

	if c.Assembler.HiddenClusterMatchThreshold < 0 || c.Assembler.HiddenClusterMatchThreshold > 2 {
		return fmt.Errorf("assembler.hidden_cluster_match_threshold must be between 0 and 2, got %f", c.Assembler.HiddenClusterMatchThreshold)
	}

	if c.LLM.Timeout < 0 {
		return fmt.Errorf("llm.timeout must be non-negative, got %v", c.LLM.Timeout)
	}

	validProviders := map[string]bool{"": true, "anthropic": true, "openai": true, "local": true}
	if !validProviders[c.LLM.Provider] {
		return fmt.Errorf("invalid llm provider: %s (valid: anthropic, openai, local, or empty)", c.LLM.Provider)
	}
	if !validProviders[c.Embedding.Provider] {
		return fmt.Errorf("invalid embedding provider: %s (valid: anthropic, openai, local, or empty)", c.Embedding.Provider)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	if c.Backup.Retention.MaxCount < 0 {
		return fmt.Errorf("backup.retention.max_count must be >= 0, got %d", c.Backup.Retention.MaxCount)
	}
	if c.Backup.Retention.MaxAge != "" {
		if _, err := parseDurationSimple(c.Backup.Retention.MaxAge); err != nil {
			return fmt.Errorf("backup.retention.max_age: %w", err)
		}
	}
	if c.Backup.Retention.MaxTotalSize != "" {
		if _, err := parseSizeSimple(c.Backup.Retention.MaxTotalSize); err != nil {
			return fmt.Errorf("backup.retention.max_total_size: %w", err)
		}
	}

	return nil
}

// parseDurationSimple validates duration strings like "30d", "2w", "720h".
func parseDurationSimple(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("empty duration string")
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}
	suffix := s[len(s)-1]
	num, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}
	switch suffix {
	case 'd':
		return time.Duration(num) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(num) * 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown duration suffix %q in %q", string(suffix), s)
	}
}

// parseSizeSimple validates size strings like "100MB", "1GB".
func parseSizeSimple(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}
	s = strings.TrimSpace(s)
	type sizeSuffix struct {
		suffix     string
		multiplier int64
	}
	for _, ss := range []sizeSuffix{
		{"GB", 1024 * 1024 * 1024},
		{"MB", 1024 * 1024},
		{"KB", 1024},
		{"B", 1},
	} {
		if strings.HasSuffix(s, ss.suffix) {
			num, err := strconv.ParseInt(strings.TrimSuffix(s, ss.suffix), 10, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid size: %q", s)
			}
			return num * ss.multiplier, nil
		}
	}
	return 0, fmt.Errorf("invalid size: %q (expected suffix: B, KB, MB, GB)", s)
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CBIE_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("CBIE_LLM_ENABLED"); v != "" {
		cfg.LLM.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && cfg.LLM.Provider == "anthropic" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.LLM.Provider == "openai" {
		cfg.LLM.APIKey = v
	}

	if v := os.Getenv("CBIE_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}

	if v := os.Getenv("CBIE_LOCAL_LIB_PATH"); v != "" {
		cfg.Embedding.LocalLibPath = v
		cfg.LLM.LocalLibPath = v
	}
	if v := os.Getenv("CBIE_LOCAL_MODEL_PATH"); v != "" {
		cfg.LLM.LocalModelPath = v
	}
	if v := os.Getenv("CBIE_LOCAL_GPU_LAYERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LLM.LocalGPULayers = int32(min(n, math.MaxInt32))
			cfg.Embedding.LocalGPULayers = cfg.LLM.LocalGPULayers
		}
	}

	if v := os.Getenv("CBIE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("CBIE_EMBED_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Embedding.BatchSize = n
		}
	}

	if v := os.Getenv("CBIE_BACKUP_COMPRESSION"); v != "" {
		cfg.Backup.Compression = v == "true" || v == "1"
	}
	if v := os.Getenv("CBIE_BACKUP_AUTO"); v != "" {
		cfg.Backup.AutoBackup = v == "true" || v == "1"
	}
	if v := os.Getenv("CBIE_BACKUP_MAX_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Backup.Retention.MaxCount = n
		}
	}
	if v := os.Getenv("CBIE_BACKUP_MAX_AGE"); v != "" {
		cfg.Backup.Retention.MaxAge = v
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment
// variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
