package llm

import (
	"context"
	"sort"
	"strings"
)

// FallbackProvider implements TextProvider using simple rules instead of
// an LLM call. It is used when no LLM provider is configured, or when a
// provider call fails and FallbackToRules is enabled.
type FallbackProvider struct{}

// NewFallbackProvider creates a new FallbackProvider.
func NewFallbackProvider() *FallbackProvider {
	return &FallbackProvider{}
}

// GenerateLabel picks the shortest wording variation as the canonical
// label, on the theory that the shortest phrasing of a repeated
// behavior is usually its cleanest statement. Ties break alphabetically
// for determinism.
func (p *FallbackProvider) GenerateLabel(ctx context.Context, wordingVariations []string) (LabelResult, error) {
	if len(wordingVariations) == 0 {
		return LabelResult{}, nil
	}

	sorted := append([]string(nil), wordingVariations...)
	sort.Slice(sorted, func(i, j int) bool {
		if len(sorted[i]) != len(sorted[j]) {
			return len(sorted[i]) < len(sorted[j])
		}
		return sorted[i] < sorted[j]
	})

	return LabelResult{Label: sorted[0], GeneratedByLLM: false}, nil
}

// GenerateArchetype builds a short archetype description by joining the
// given PRIMARY-tier labels, without any semantic synthesis.
func (p *FallbackProvider) GenerateArchetype(ctx context.Context, primaryClusterLabels []string) (ArchetypeResult, error) {
	if len(primaryClusterLabels) == 0 {
		return ArchetypeResult{}, nil
	}

	label := primaryClusterLabels[0]
	if len(primaryClusterLabels) > 1 {
		label = primaryClusterLabels[0] + " + " + primaryClusterLabels[1]
	}

	return ArchetypeResult{
		Label:          label,
		Description:    "Consistently exhibits: " + strings.Join(primaryClusterLabels, "; "),
		GeneratedByLLM: false,
	}, nil
}

// Available returns false because this is a fallback provider; this
// signals to selection logic that a real LLM provider should be
// preferred when one is configured.
func (p *FallbackProvider) Available() bool {
	return false
}
