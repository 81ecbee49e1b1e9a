// Package constants provides named constants used throughout the core
// analysis pipeline. This centralizes magic numbers for better
// maintainability and documentation.
package constants

// Behavior Weight exponents (C1). BW = credibility^Alpha * clarity^Beta *
// extraction_confidence^Gamma.
const (
	// DefaultAlpha weights credibility in the Behavior Weight formula.
	DefaultAlpha = 0.35

	// DefaultBeta weights clarity in the Behavior Weight formula.
	DefaultBeta = 0.40

	// DefaultGamma weights extraction confidence in the Behavior Weight formula.
	DefaultGamma = 0.25

	// ScoreClampEpsilon is the floor every BW input is clamped to before
	// exponentiation, preventing a zero base or a NaN result.
	ScoreClampEpsilon = 1e-6
)

// Adjusted Behavior Weight constants (C1).
// ABW = BW * (1 + ReinforcementRate*reinforcement_count) * exp(-decay_rate*days_since_last_seen).
const (
	// DefaultReinforcementRate is the linear reinforcement coefficient.
	DefaultReinforcementRate = 0.01
)

// Embedding Gateway defaults (C2).
const (
	// DefaultEmbedBatchSize is the maximum number of texts sent to the
	// embedding provider in a single request.
	DefaultEmbedBatchSize = 64

	// EmbedRetryBaseDelaySeconds is the initial backoff delay before the
	// first retry of a transient embedding failure.
	EmbedRetryBaseDelaySeconds = 0.5

	// EmbedRetryBackoffFactor multiplies the delay after each failed attempt.
	EmbedRetryBackoffFactor = 2.0

	// EmbedRetryMaxAttempts is the hard cap on retry attempts. Exhausting
	// it for any active observation is fatal to the analysis run — an
	// embedding failure is never silently skipped.
	EmbedRetryMaxAttempts = 5
)

// Clustering Engine defaults (C3). Density-based clustering over
// cosine-normalized embeddings, approximating HDBSCAN's EOM selection.
const (
	// DefaultMinClusterSize is the minimum number of points to form a cluster.
	DefaultMinClusterSize = 2

	// DefaultMinSamples controls how conservatively the core-point
	// neighborhood is estimated; lower values produce more, smaller clusters.
	DefaultMinSamples = 1

	// DefaultClusterSelectionEpsilon merges clusters whose separation is
	// below this cosine distance, stabilizing borderline splits.
	DefaultClusterSelectionEpsilon = 0.15
)

// Cluster Aggregator defaults (C4).
const (
	// RecencyDecayLambda is the per-day decay rate applied to
	// days-since-last-seen when computing a cluster's recency factor.
	RecencyDecayLambda = 0.01

	// ReinforcementSaturationCount is the log base of a cluster's
	// reinforcement sub-score, log(size+1)/log(ReinforcementSaturationCount),
	// which saturates to 1.0 once size+1 reaches this count.
	ReinforcementSaturationCount = 10

	// ClarityTrendMinClusterSize is the minimum cluster size for which a
	// clarity slope over time can be estimated; below it, mean clarity
	// substitutes for trend (no trend is estimable from fewer points).
	ClarityTrendMinClusterSize = 3

	// ConsistencyWeight, ReinforcementWeight, and ClarityTrendWeight
	// combine into a cluster's confidence score and sum to 1.0.
	ConsistencyWeight   = 0.4
	ReinforcementWeight = 0.4
	ClarityTrendWeight  = 0.2
)

// Tier Classifier thresholds (C5).
const (
	// PrimaryStrengthThreshold and PrimaryConfidenceThreshold must both
	// be met for a cluster to be classified PRIMARY.
	PrimaryStrengthThreshold   = 1.0
	PrimaryConfidenceThreshold = 0.6

	// SecondaryStrengthThreshold and SecondaryConfidenceThreshold must
	// both be met for a cluster to be classified SECONDARY.
	SecondaryStrengthThreshold   = 0.7
	SecondaryConfidenceThreshold = 0.5
)

// Profile Assembler defaults (C7).
const (
	// HiddenClusterMatchThreshold (τ_hide) is the cosine-distance bound
	// within which a new cluster's centroid must fall from a previously
	// hidden cluster's centroid to inherit is_hidden=true.
	HiddenClusterMatchThreshold = 0.2
)

// Correction Coordinator defaults (C8).
const (
	// ProfileDeletionGracePeriodDays is how long a delete_profile request
	// sits pending before the profile and its observations are purged.
	// A cancel presenting the deletion ID before then restores the profile.
	ProfileDeletionGracePeriodDays = 30
)

// Embedding Gateway defaults (C2), continued.
const (
	// DefaultEmbeddingDimension is the fixed vector size produced by the
	// configured embedding provider (spec.md §3 "embedding (fixed-
	// dimension real vector)"). It is passed to the LanceDB-backed cache at
	// open time; that table stores vectors as variable-length lists, so
	// the dimension is not enforced by its schema.
	DefaultEmbeddingDimension = 3072
)
