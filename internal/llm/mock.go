package llm

import (
	"context"

	"github.com/cbie/core/internal/vecmath"
)

// MockProvider is a deterministic, in-memory test double implementing
// both EmbeddingProvider and TextProvider. Embeddings are derived from a
// simple hash of the text so identical strings always embed identically
// and distinct strings embed far apart, without calling any network API.
type MockProvider struct {
	// Dim is the embedding dimensionality produced by Embed.
	Dim int

	// AvailableFlag controls what Available() returns; defaults to true.
	AvailableFlag bool

	// LabelFunc, if set, overrides GenerateLabel's default behavior.
	LabelFunc func(wordingVariations []string) LabelResult

	// ArchetypeFunc, if set, overrides GenerateArchetype's default behavior.
	ArchetypeFunc func(primaryClusterLabels []string) ArchetypeResult

	// CallCount tracks how many times Embed was invoked, for tests that
	// assert on batching behavior.
	CallCount int
}

// NewMockProvider creates a MockProvider with an 8-dimensional embedding
// space and Available() returning true.
func NewMockProvider() *MockProvider {
	return &MockProvider{Dim: 8, AvailableFlag: true}
}

func hashEmbed(text string, dim int) []float32 {
	vec := make([]float32, dim)
	for i, r := range text {
		vec[i%dim] += float32(r%31) - 15
	}
	vecmath.Normalize(vec)
	return vec
}

func (m *MockProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.CallCount++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = hashEmbed(t, m.Dim)
	}
	return out, nil
}

func (m *MockProvider) GenerateLabel(ctx context.Context, wordingVariations []string) (LabelResult, error) {
	if m.LabelFunc != nil {
		return m.LabelFunc(wordingVariations), nil
	}
	if len(wordingVariations) == 0 {
		return LabelResult{}, nil
	}
	return LabelResult{Label: wordingVariations[0], GeneratedByLLM: true}, nil
}

func (m *MockProvider) GenerateArchetype(ctx context.Context, primaryClusterLabels []string) (ArchetypeResult, error) {
	if m.ArchetypeFunc != nil {
		return m.ArchetypeFunc(primaryClusterLabels), nil
	}
	if len(primaryClusterLabels) == 0 {
		return ArchetypeResult{}, nil
	}
	return ArchetypeResult{
		Label:          primaryClusterLabels[0],
		Description:    "mock archetype",
		GeneratedByLLM: true,
	}, nil
}

func (m *MockProvider) Available() bool {
	return m.AvailableFlag
}
