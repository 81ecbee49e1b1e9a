package archetype

import (
	"context"
	"errors"
	"testing"

	"github.com/cbie/core/internal/llm"
	"github.com/cbie/core/internal/models"
)

type stubProvider struct {
	result llm.ArchetypeResult
	err    error
	avail  bool
}

func (s *stubProvider) GenerateLabel(ctx context.Context, wordingVariations []string) (llm.LabelResult, error) {
	return llm.LabelResult{}, nil
}

func (s *stubProvider) GenerateArchetype(ctx context.Context, labels []string) (llm.ArchetypeResult, error) {
	return s.result, s.err
}

func (s *stubProvider) Available() bool { return s.avail }

func primaryCluster(label string, strength float64) models.Cluster {
	return models.Cluster{CanonicalLabel: label, Tier: models.TierPrimary, ClusterStrength: strength}
}

func TestGenerate_NoClusters(t *testing.T) {
	g := New(nil, true)
	a, err := g.Generate(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != nil {
		t.Errorf("expected nil archetype for empty cluster set, got %+v", a)
	}
}

func TestGenerate_NoPrimaryFallsBackToSecondary(t *testing.T) {
	g := New(nil, true)
	clusters := []models.Cluster{
		{CanonicalLabel: "a", Tier: models.TierSecondary, ClusterStrength: 0.9},
		{CanonicalLabel: "b", Tier: models.TierNoise, ClusterStrength: 5},
	}
	a, err := g.Generate(context.Background(), clusters)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == nil {
		t.Fatal("expected a fallback archetype derived from SECONDARY clusters")
	}
}

// TestGenerate_LLMOutage mirrors Scenario E: an LLM that errors on every
// call must produce archetype=null, never a synthesized stand-in, per
// spec.md §4.6/§7/§8 Property 6.
func TestGenerate_LLMOutage(t *testing.T) {
	g := New(&stubProvider{avail: true, err: errors.New("provider unavailable")}, false)
	clusters := []models.Cluster{primaryCluster("prefers analogies", 1.5)}

	a, err := g.Generate(context.Background(), clusters)
	if err != nil {
		t.Fatalf("LLM failure must not propagate as an error: %v", err)
	}
	if a != nil {
		t.Errorf("expected nil archetype on LLM failure, got %+v", a)
	}
}

// TestGenerate_LLMOutage_FallbackToRulesEnabled covers the opt-in
// behavior: an operator who sets fallback_to_rules=true accepts a
// non-null rule-based stand-in instead of spec.md's default null.
func TestGenerate_LLMOutage_FallbackToRulesEnabled(t *testing.T) {
	g := New(&stubProvider{avail: true, err: errors.New("provider unavailable")}, true)
	clusters := []models.Cluster{primaryCluster("prefers analogies", 1.5)}

	a, err := g.Generate(context.Background(), clusters)
	if err != nil {
		t.Fatalf("LLM failure must not propagate as an error: %v", err)
	}
	if a == nil {
		t.Fatal("expected a fallback archetype when fallbackToRules is enabled")
	}
	if a.GeneratedByLLM {
		t.Error("fallback archetype must report GeneratedByLLM=false")
	}
}

func TestGenerate_LLMSuccess(t *testing.T) {
	g := New(&stubProvider{avail: true, result: llm.ArchetypeResult{Label: "The Visual Learner", Description: "desc", GeneratedByLLM: true}}, false)
	clusters := []models.Cluster{primaryCluster("prefers visual learning", 1.2)}

	a, err := g.Generate(context.Background(), clusters)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == nil || a.Label != "The Visual Learner" || !a.GeneratedByLLM {
		t.Errorf("expected LLM-generated archetype to pass through, got %+v", a)
	}
}
