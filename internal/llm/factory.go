package llm

import (
	"context"
	"errors"

	"github.com/cbie/core/internal/config"
)

// errNoEmbeddingProvider is returned by noopEmbeddingProvider.Embed so
// callers get a clear message instead of a nil-pointer panic when no
// embedding backend is configured.
var errNoEmbeddingProvider = errors.New("llm: no embedding provider configured")

// noopEmbeddingProvider is what NewEmbeddingProvider returns when
// config.EmbeddingConfig.Provider is empty. It is always unavailable,
// so internal/embedgw fails the analysis run cleanly instead of
// silently fabricating zero vectors.
type noopEmbeddingProvider struct{}

func (noopEmbeddingProvider) Available() bool { return false }

func (noopEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errNoEmbeddingProvider
}

// NewEmbeddingProvider builds the EmbeddingProvider named by cfg.Provider.
// OpenAI is the only networked embedding backend; "local" uses the
// on-device yzma-backed client (a build-tag-gated stub when the
// llamacpp tag is absent). An unrecognized or empty provider yields a
// provider that is always unavailable rather than an error, so startup
// never fails just because embeddings aren't configured.
func NewEmbeddingProvider(cfg config.EmbeddingConfig) EmbeddingProvider {
	clientCfg := ClientConfig{
		Provider:       cfg.Provider,
		APIKey:         cfg.APIKey,
		Model:          cfg.Model,
		LocalLibPath:   cfg.LocalLibPath,
		LocalModelPath: cfg.LocalModelPath,
		LocalGPULayers: cfg.LocalGPULayers,
	}

	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(clientCfg)
	case "local":
		return NewLocalClient(clientCfg)
	default:
		return noopEmbeddingProvider{}
	}
}

// NewTextProvider builds the TextProvider named by cfg.Provider for
// archetype generation (C6) and canonical labeling (C4). Anthropic is
// the only backend that implements TextProvider today; any other
// provider name, an empty provider, or Enabled == false yields the
// rule-based FallbackProvider directly, so callers never need a nil
// check before calling Available().
func NewTextProvider(cfg config.LLMConfig) TextProvider {
	if !cfg.Enabled {
		return NewFallbackProvider()
	}

	clientCfg := ClientConfig{
		Provider:       cfg.Provider,
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.ArchetypeModel,
		Timeout:        cfg.Timeout,
		LocalLibPath:   cfg.LocalLibPath,
		LocalModelPath: cfg.LocalModelPath,
		LocalGPULayers: cfg.LocalGPULayers,
	}

	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicClient(clientCfg)
	default:
		return NewFallbackProvider()
	}
}
