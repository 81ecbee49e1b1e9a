// Package llm provides the embedding and text-generation interfaces the
// analysis pipeline uses for vectorizing observation text (C2) and for
// canonical-label / archetype generation (C4, C6). It supports multiple
// backends including Anthropic, OpenAI, a local on-device model, and a
// rule-based fallback for when no provider is configured or available.
package llm

import (
	"context"
	"time"
)

// EmbeddingProvider returns dense vector embeddings for text. The
// Embedding Gateway (internal/embedgw) is the sole caller.
type EmbeddingProvider interface {
	// Embed returns one embedding vector per input text, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Available reports whether the provider is configured and ready.
	Available() bool
}

// LabelResult is the outcome of asking a provider to pick a canonical,
// human-readable label for a set of wording variations.
type LabelResult struct {
	Label          string `json:"label"`
	GeneratedByLLM bool   `json:"generated_by_llm"`
}

// ArchetypeResult is the outcome of asking a provider to summarize a
// user's PRIMARY-tier clusters into a single archetype.
type ArchetypeResult struct {
	Label          string `json:"label"`
	Description    string `json:"description"`
	GeneratedByLLM bool   `json:"generated_by_llm"`
}

// TextProvider generates short natural-language summaries: canonical
// cluster labels (C4) and archetype summaries (C6).
type TextProvider interface {
	// GenerateLabel picks a canonical label given a cluster's distinct
	// wording variations.
	GenerateLabel(ctx context.Context, wordingVariations []string) (LabelResult, error)

	// GenerateArchetype summarizes a user's PRIMARY-tier cluster labels
	// into a single archetype label and description.
	GenerateArchetype(ctx context.Context, primaryClusterLabels []string) (ArchetypeResult, error)

	Available() bool
}

// Closer is an optional interface for providers that hold resources
// requiring cleanup (e.g. a loaded local model).
type Closer interface {
	Close() error
}

// ClientConfig configures a provider client.
type ClientConfig struct {
	// Provider identifies the backend: "anthropic", "openai", "local", or "".
	Provider string `json:"provider" yaml:"provider"`

	APIKey  string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model   string `json:"model,omitempty" yaml:"model,omitempty"`

	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// LocalLibPath and LocalModelPath configure the "local" provider.
	LocalLibPath   string `json:"local_lib_path,omitempty" yaml:"local_lib_path,omitempty"`
	LocalModelPath string `json:"local_model_path,omitempty" yaml:"local_model_path,omitempty"`
	LocalGPULayers int32  `json:"local_gpu_layers,omitempty" yaml:"local_gpu_layers,omitempty"`
}

// DefaultConfig returns a ClientConfig with sensible defaults.
func DefaultConfig() ClientConfig {
	return ClientConfig{
		Provider: "",
		Timeout:  30 * time.Second,
	}
}
