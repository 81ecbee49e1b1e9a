// Package aggregate implements the Cluster Aggregator (C4): for every
// cluster emitted by the Clustering Engine it aggregates member
// observations, computes cluster_strength and the three-component
// confidence score, and derives temporal metrics. It follows the
// teacher's weighted-sub-score composition idiom
// (internal/ranking/scorer.go's ContextScore/UsageScore/.../KindBoost
// combination), adapted to this spec's consistency/reinforcement/
// clarity-trend tri-score.
package aggregate

import (
	"math"
	"sort"
	"time"

	"github.com/cbie/core/internal/clustering"
	"github.com/cbie/core/internal/config"
	"github.com/cbie/core/internal/models"
	"github.com/cbie/core/internal/scoring"
	"github.com/cbie/core/internal/vecmath"
)

// Aggregator computes cluster-level fields from clustering output and
// member observations. It is configured once and reused across runs;
// it holds no per-run mutable state.
type Aggregator struct {
	cfg       config.AggregationConfig
	scorer    *scoring.Calculator
	idFactory func() string
}

// New builds an Aggregator from the aggregation section of the pipeline
// configuration. idFactory generates cluster IDs (stable only within
// one run); callers typically pass a uuid generator.
func New(cfg config.AggregationConfig, scorer *scoring.Calculator, idFactory func() string) *Aggregator {
	return &Aggregator{cfg: cfg, scorer: scorer, idFactory: idFactory}
}

// Member pairs an Observation with its clustering-engine membership
// probability, so the aggregator never needs a second lookup pass.
type Member struct {
	Observation *models.Observation
	Probability float64
}

// Aggregate builds one Cluster per group of clustering-engine labels,
// including noise-labeled points (each becomes its own singleton
// cluster so membership preservation holds — spec.md §8 property 1).
func (a *Aggregator) Aggregate(members map[int][]Member, result clustering.Result, now time.Time) []models.Cluster {
	clusters := make([]models.Cluster, 0, len(members))

	ids := make([]int, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		group := members[id]
		if id == clustering.NoiseLabel {
			for _, m := range group {
				clusters = append(clusters, a.buildCluster([]Member{m}, m.Observation.Embedding, models.DistanceStats{}, true, now))
			}
			continue
		}
		centroid := result.Centroids[id]
		dist := result.IntraClusterDistances[id]
		isNoise := id == clustering.NoiseLabel || len(group) < 1

		clusters = append(clusters, a.buildCluster(group, centroid, dist, isNoise, now))
	}

	return clusters
}

func (a *Aggregator) buildCluster(group []Member, centroid []float32, dist models.DistanceStats, isNoiseGroup bool, now time.Time) models.Cluster {
	size := len(group)

	observationIDs := make([]string, size)
	wordingSet := map[string]bool{}
	promptSet := map[string]bool{}
	var firstSeen, lastSeen time.Time
	var abwSum float64

	for i, m := range group {
		obs := m.Observation
		observationIDs[i] = obs.ID
		wordingSet[obs.Text] = true
		for _, pid := range obs.PromptIDs {
			promptSet[pid] = true
		}

		if firstSeen.IsZero() || obs.CreatedAt.Before(firstSeen) {
			firstSeen = obs.CreatedAt
		}
		if lastSeen.IsZero() || obs.LastSeenAt.After(lastSeen) {
			lastSeen = obs.LastSeenAt
		}

		bw := a.scorer.BehaviorWeight(obs.Credibility, obs.Clarity, obs.ExtractionConfidence)
		abw := a.scorer.AdjustedBehaviorWeight(bw, obs.ReinforcementCount, obs.DecayRate, obs.LastSeenAt, now)
		abwSum += abw
	}

	wordingVariations := make([]string, 0, len(wordingSet))
	for w := range wordingSet {
		wordingVariations = append(wordingVariations, w)
	}
	sort.Strings(wordingVariations)

	promptIDs := make([]string, 0, len(promptSet))
	for p := range promptSet {
		promptIDs = append(promptIDs, p)
	}
	sort.Strings(promptIDs)

	daysActive := 0.0
	if !firstSeen.IsZero() && !lastSeen.IsZero() {
		daysActive = lastSeen.Sub(firstSeen).Hours() / 24
	}

	meanABW := 0.0
	if size > 0 {
		meanABW = abwSum / float64(size)
	}

	strength := a.clusterStrength(size, meanABW, lastSeen, now)
	consistency := a.consistency(dist.Mean)
	reinforcement := a.reinforcement(size)
	clarityTrend := a.clarityTrend(group)
	confidence := a.cfg.ConsistencyWeight*consistency +
		a.cfg.ReinforcementWeight*reinforcement +
		a.cfg.ClarityTrendWeight*clarityTrend

	canonicalLabel := a.pickCanonicalLabel(group, centroid)

	isSingleton := size == 1
	renormalized := append([]float32(nil), centroid...)
	vecmath.Normalize(renormalized)

	return models.Cluster{
		ClusterID:            a.idFactory(),
		ObservationIDs:       observationIDs,
		ClusterSize:          size,
		CanonicalLabel:       canonicalLabel,
		WordingVariations:    wordingVariations,
		PromptIDs:            promptIDs,
		Centroid:             renormalized,
		ClusterStrength:      strength,
		Confidence:           confidence,
		ConsistencyScore:     consistency,
		ReinforcementScore:   reinforcement,
		ClarityTrend:         clarityTrend,
		IntraClusterDistance: dist,
		FirstSeenAt:          firstSeen,
		LastSeenAt:           lastSeen,
		DaysActive:           daysActive,
		IsNoisePoint:         isNoiseGroup || isSingleton,
	}
}

// clusterStrength: strength = log(size+1) * mean_ABW * recency, recency
// = exp(-lambda * days_since(last_seen)).
func (a *Aggregator) clusterStrength(size int, meanABW float64, lastSeen, now time.Time) float64 {
	daysSince := now.Sub(lastSeen).Hours() / 24
	if daysSince < 0 {
		daysSince = 0
	}
	recency := math.Exp(-a.cfg.RecencyDecayLambda * daysSince)
	return math.Log(float64(size)+1) * meanABW * recency
}

// consistency = 1 / (1 + mean_intra_cluster_distance).
func (a *Aggregator) consistency(meanIntraClusterDistance float64) float64 {
	return 1 / (1 + meanIntraClusterDistance)
}

// reinforcement = min(1, log(size+1) / log(ReinforcementSaturationCount)),
// reaching 1.0 once size+1 reaches ReinforcementSaturationCount (at 9
// members with the default of 10).
func (a *Aggregator) reinforcement(size int) float64 {
	saturation := float64(a.cfg.ReinforcementSaturationCount)
	if saturation <= 1 {
		saturation = 10
	}
	r := math.Log(float64(size)+1) / math.Log(saturation)
	if r > 1 {
		r = 1
	}
	return r
}

// clarityTrend estimates the slope of clarity over created_at time,
// normalized to [0,1] via 0.5 + clip(slope/sigma, -1, 1)/2. Below
// ClarityTrendMinClusterSize members, mean clarity substitutes (no
// trend is estimable from fewer points).
func (a *Aggregator) clarityTrend(group []Member) float64 {
	if len(group) < a.cfg.ClarityTrendMinClusterSize {
		var sum float64
		for _, m := range group {
			sum += m.Observation.Clarity
		}
		if len(group) == 0 {
			return 0
		}
		return sum / float64(len(group))
	}

	sorted := append([]Member(nil), group...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Observation.CreatedAt.Before(sorted[j].Observation.CreatedAt)
	})

	n := float64(len(sorted))
	var sumX, sumY, sumXY, sumXX float64
	base := sorted[0].Observation.CreatedAt
	for i, m := range sorted {
		x := sorted[i].Observation.CreatedAt.Sub(base).Hours() / 24
		y := m.Observation.Clarity
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		// All observations share the same timestamp; no slope is
		// estimable, fall back to mean clarity.
		return sumY / n
	}
	slope := (n*sumXY - sumX*sumY) / denom

	var variance float64
	meanY := sumY / n
	for _, m := range sorted {
		d := m.Observation.Clarity - meanY
		variance += d * d
	}
	sigma := math.Sqrt(variance / n)
	if sigma == 0 {
		sigma = 1
	}

	normalized := slope / sigma
	if normalized > 1 {
		normalized = 1
	}
	if normalized < -1 {
		normalized = -1
	}
	return 0.5 + normalized/2
}

// pickCanonicalLabel ranks members by (clarity desc, cosine similarity
// to centroid desc) and returns the text of the top-ranked member. This
// is display-only: it never affects cluster_strength, confidence, or
// tier (spec.md §4.4 invariant).
func (a *Aggregator) pickCanonicalLabel(group []Member, centroid []float32) string {
	if len(group) == 0 {
		return ""
	}

	best := group[0]
	bestSim := vecmath.CosineSimilarity(best.Observation.Embedding, centroid)
	for _, m := range group[1:] {
		sim := vecmath.CosineSimilarity(m.Observation.Embedding, centroid)
		if m.Observation.Clarity > best.Observation.Clarity ||
			(m.Observation.Clarity == best.Observation.Clarity && sim > bestSim) {
			best = m
			bestSim = sim
		}
	}
	return best.Observation.Text
}
