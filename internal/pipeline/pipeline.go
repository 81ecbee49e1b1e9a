// Package pipeline wires components C1-C7 (scoring, embedding,
// clustering, aggregation, tiering, archetype generation, and profile
// assembly) into the single analysis run the Correction Coordinator
// (C8) triggers per user. It implements coordinator.AnalysisRunner.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cbie/core/internal/aggregate"
	"github.com/cbie/core/internal/archetype"
	"github.com/cbie/core/internal/clustering"
	"github.com/cbie/core/internal/config"
	"github.com/cbie/core/internal/corestore"
	"github.com/cbie/core/internal/embedgw"
	"github.com/cbie/core/internal/llm"
	"github.com/cbie/core/internal/models"
	"github.com/cbie/core/internal/scoring"
	"github.com/cbie/core/internal/tiering"
)

// Pipeline runs one full analysis for a user, grounded on the teacher's
// internal/learning/loop.go orchestrator shape: one struct holding every
// collaborating component, one entrypoint method.
type Pipeline struct {
	observations corestore.ObservationRepository

	scorer     *scoring.Calculator
	gateway    *embedgw.Gateway
	clusterer  *clustering.Engine
	aggregator *aggregate.Aggregator
	classifier *tiering.Classifier
	archetypes *archetype.Generator
	assembler  Assembler

	now func() time.Time
}

// Assembler is the subset of *assembler.Assembler the pipeline needs,
// kept as an interface so tests can substitute a recording stub.
type Assembler interface {
	Assemble(ctx context.Context, userID string, clusters []models.Cluster, archetype *models.Archetype, meta models.AnalysisMetadata, now time.Time) (*models.Profile, error)
}

// New builds a Pipeline from its already-constructed collaborators.
func New(observations corestore.ObservationRepository, scorer *scoring.Calculator, gateway *embedgw.Gateway, clusterer *clustering.Engine, aggregator *aggregate.Aggregator, classifier *tiering.Classifier, archetypes *archetype.Generator, asm Assembler) *Pipeline {
	return &Pipeline{
		observations: observations,
		scorer:       scorer,
		gateway:      gateway,
		clusterer:    clusterer,
		aggregator:   aggregator,
		classifier:   classifier,
		archetypes:   archetypes,
		assembler:    asm,
		now:          time.Now,
	}
}

// Analyze implements coordinator.AnalysisRunner. A user with zero
// active observations still produces a profile: an empty cluster set,
// no archetype, recorded metadata.
//
// Per spec.md §5, cancellation is checked between every component
// boundary (C1/C2/C3/C4/C5/C6/C7); a cancelled analysis produces no
// profile write.
func (p *Pipeline) Analyze(ctx context.Context, userID string) (*models.Profile, error) {
	start := p.now()

	active, err := p.observations.ListActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("pipeline: list active observations: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: cancelled before embedding: %w", err)
	}

	vectors, err := p.ensureEmbeddings(ctx, active)
	if err != nil {
		return nil, fmt.Errorf("pipeline: embed observations: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: cancelled before clustering: %w", err)
	}

	result := p.clusterer.Cluster(vectors)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: cancelled before aggregation: %w", err)
	}

	members := make(map[int][]aggregate.Member, len(result.Centroids))
	for i, label := range result.Labels {
		prob := 0.0
		if i < len(result.Probabilities) {
			prob = result.Probabilities[i]
		}
		members[label] = append(members[label], aggregate.Member{Observation: &active[i], Probability: prob})
	}

	clusters := p.aggregator.Aggregate(members, result, p.now())
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: cancelled before tier classification: %w", err)
	}
	for i := range clusters {
		p.classifier.ClassifyCluster(&clusters[i])
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: cancelled before archetype generation: %w", err)
	}

	arche, err := p.archetypes.Generate(ctx, clusters)
	if err != nil {
		return nil, fmt.Errorf("pipeline: generate archetype: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: cancelled before profile assembly: %w", err)
	}

	meta := buildMetadata(active, clusters, start, p.now())

	profile, err := p.assembler.Assemble(ctx, userID, clusters, arche, meta, p.now())
	if err != nil {
		return nil, fmt.Errorf("pipeline: assemble profile: %w", err)
	}
	return profile, nil
}

// ensureEmbeddings fills in embeddings for any active observation that
// doesn't already have one, persisting the result, and returns the full
// embedding matrix in the same order as active.
func (p *Pipeline) ensureEmbeddings(ctx context.Context, active []models.Observation) ([][]float32, error) {
	var missingIdx []int
	var missingText []string
	for i, obs := range active {
		if obs.Embedding == nil {
			missingIdx = append(missingIdx, i)
			missingText = append(missingText, obs.Text)
		}
	}

	if len(missingText) > 0 {
		vecs, err := p.gateway.EmbedBatch(ctx, missingText)
		if err != nil {
			return nil, err
		}
		for j, idx := range missingIdx {
			active[idx].Embedding = vecs[j]
			if err := p.observations.Put(ctx, active[idx]); err != nil {
				return nil, fmt.Errorf("persist embedding for observation %s: %w", active[idx].ID, err)
			}
		}
	}

	out := make([][]float32, len(active))
	for i, obs := range active {
		out[i] = obs.Embedding
	}
	return out, nil
}

func buildMetadata(active []models.Observation, clusters []models.Cluster, start, end time.Time) models.AnalysisMetadata {
	meta := models.AnalysisMetadata{
		RunAt:                  end,
		ActiveObservationCount: len(active),
		ObservationCount:       len(active),
		ClusterCount:           len(clusters),
		DurationMillis:         end.Sub(start).Milliseconds(),
	}
	for _, c := range clusters {
		switch c.Tier {
		case models.TierPrimary:
			meta.PrimaryCount++
		case models.TierSecondary:
			meta.SecondaryCount++
		default:
			meta.NoiseCount++
		}
	}
	return meta
}

// NewFromConfig builds every C1-C7 component from cfg and the already
// constructed embedding gateway, archetype text provider, and profile
// assembler, wiring them into a Pipeline. Cluster IDs are minted with
// uuid.New(), grounded the same way internal/coordinator mints deletion
// IDs.
func NewFromConfig(cfg config.Config, observations corestore.ObservationRepository, gw *embedgw.Gateway, textProvider llm.TextProvider, asm Assembler) *Pipeline {
	scorer := scoring.NewCalculator(cfg.Scoring)
	clusterer := clustering.New(cfg.Clustering)
	aggregator := aggregate.New(cfg.Aggregation, scorer, func() string { return uuid.New().String() })
	classifier := tiering.New(cfg.Tiering)
	gen := archetype.New(textProvider, cfg.LLM.FallbackToRules)

	return New(observations, scorer, gw, clusterer, aggregator, classifier, gen, asm)
}
