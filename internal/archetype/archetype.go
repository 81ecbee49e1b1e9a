// Package archetype implements the Archetype Generator (C6): a
// best-effort synthesis of a user's PRIMARY-tier clusters (falling back
// to top-N SECONDARY if no PRIMARY exists) into one archetype label and
// description. It follows the teacher's "try LLM, fall back on error"
// idiom from internal/dedup/merger.go: an LLM failure here must never
// fail the overall analysis.
package archetype

import (
	"context"
	"fmt"
	"sort"

	"github.com/cbie/core/internal/llm"
	"github.com/cbie/core/internal/models"
)

// fallbackSecondaryCount is how many top SECONDARY clusters (by
// cluster_strength) stand in for an archetype summary when the user has
// no PRIMARY-tier cluster at all.
const fallbackSecondaryCount = 3

// Generator produces an Archetype from a set of clusters, using an
// optional llm.TextProvider. Generation is best-effort: it returns
// (nil, nil) when there is nothing to summarize, and never returns an
// error that should abort the analysis run.
//
// Per spec.md §4.6/§7, an LLM failure degrades to archetype=null, not a
// synthesized stand-in — the rule-based fallback is an opt-in
// convenience gated by fallbackToRules (config.LLMConfig.FallbackToRules),
// not the spec-mandated behavior.
type Generator struct {
	provider        llm.TextProvider
	fallback        llm.TextProvider
	fallbackToRules bool
}

// New builds a Generator. provider may be nil. fallbackToRules mirrors
// config.LLMConfig.FallbackToRules: when false, an absent or failing
// provider yields a nil archetype; when true, the rule-based
// llm.FallbackProvider stands in instead.
func New(provider llm.TextProvider, fallbackToRules bool) *Generator {
	return &Generator{
		provider:        provider,
		fallback:        llm.NewFallbackProvider(),
		fallbackToRules: fallbackToRules,
	}
}

// Generate builds the archetype for one profile from its clusters. The
// generator only ever sees canonical labels and cluster_strength — never
// raw prompt text — so disabling it never changes upstream determinism.
func (g *Generator) Generate(ctx context.Context, clusters []models.Cluster) (*models.Archetype, error) {
	labels := selectLabels(clusters)
	if len(labels) == 0 {
		return nil, nil
	}

	if g.provider != nil && g.provider.Available() {
		result, err := g.provider.GenerateArchetype(ctx, labels)
		if err == nil {
			return &models.Archetype{
				Label:          result.Label,
				Description:    result.Description,
				GeneratedByLLM: result.GeneratedByLLM,
			}, nil
		}
		// LLM failure is recoverable: the profile is still committed
		// with archetype=null unless fallbackToRules opts into a
		// rule-based stand-in instead.
		if !g.fallbackToRules {
			return nil, nil
		}
	} else if !g.fallbackToRules {
		return nil, nil
	}

	result, err := g.fallback.GenerateArchetype(ctx, labels)
	if err != nil {
		return nil, fmt.Errorf("archetype: fallback generation failed: %w", err)
	}
	return &models.Archetype{
		Label:          result.Label,
		Description:    result.Description,
		GeneratedByLLM: false,
	}, nil
}

// selectLabels returns the canonical labels of PRIMARY clusters ordered
// by cluster_strength descending; if none exist, it falls back to the
// top fallbackSecondaryCount SECONDARY clusters by the same ordering.
func selectLabels(clusters []models.Cluster) []string {
	var primary, secondary []models.Cluster
	for _, c := range clusters {
		switch c.Tier {
		case models.TierPrimary:
			primary = append(primary, c)
		case models.TierSecondary:
			secondary = append(secondary, c)
		}
	}

	byStrengthDesc := func(cs []models.Cluster) {
		sort.Slice(cs, func(i, j int) bool {
			return cs[i].ClusterStrength > cs[j].ClusterStrength
		})
	}

	var chosen []models.Cluster
	if len(primary) > 0 {
		byStrengthDesc(primary)
		chosen = primary
	} else {
		byStrengthDesc(secondary)
		if len(secondary) > fallbackSecondaryCount {
			secondary = secondary[:fallbackSecondaryCount]
		}
		chosen = secondary
	}

	labels := make([]string, 0, len(chosen))
	for _, c := range chosen {
		labels = append(labels, c.CanonicalLabel)
	}
	return labels
}
