// Package scoring computes per-observation Behavior Weight (BW) and
// Adjusted Behavior Weight (ABW), the raw quality signal that feeds
// cluster aggregation (internal/aggregate).
package scoring

import (
	"math"
	"time"

	"github.com/cbie/core/internal/config"
	"github.com/cbie/core/internal/constants"
)

// Calculator computes BW and ABW from a ScoringConfig's exponents and
// reinforcement rate. It holds no mutable state and is safe for
// concurrent use.
type Calculator struct {
	alpha, beta, gamma float64
	reinforcementRate  float64
}

// NewCalculator builds a Calculator from the scoring section of the
// pipeline configuration.
func NewCalculator(cfg config.ScoringConfig) *Calculator {
	return &Calculator{
		alpha:             cfg.Alpha,
		beta:              cfg.Beta,
		gamma:             cfg.Gamma,
		reinforcementRate: cfg.ReinforcementRate,
	}
}

func clamp01(v, epsilon float64) float64 {
	if v < epsilon {
		return epsilon
	}
	if v > 1 {
		return 1
	}
	return v
}

// BehaviorWeight computes BW = credibility^alpha * clarity^beta *
// extraction_confidence^gamma. Inputs are clamped to [epsilon, 1] before
// exponentiation so a zero input never produces a zero or NaN result.
func (c *Calculator) BehaviorWeight(credibility, clarity, extractionConfidence float64) float64 {
	cr := clamp01(credibility, constants.ScoreClampEpsilon)
	cl := clamp01(clarity, constants.ScoreClampEpsilon)
	ec := clamp01(extractionConfidence, constants.ScoreClampEpsilon)

	return math.Pow(cr, c.alpha) * math.Pow(cl, c.beta) * math.Pow(ec, c.gamma)
}

// AdjustedBehaviorWeight computes ABW = BW * (1 + reinforcementRate *
// reinforcementCount) * exp(-decayRate * daysSinceLastSeen). now is
// passed explicitly rather than read from the system clock so that
// scoring stays deterministic and testable.
func (c *Calculator) AdjustedBehaviorWeight(bw float64, reinforcementCount int, decayRate float64, lastSeenAt, now time.Time) float64 {
	daysSince := now.Sub(lastSeenAt).Hours() / 24
	if daysSince < 0 {
		daysSince = 0
	}

	reinforcement := 1 + c.reinforcementRate*float64(reinforcementCount)
	decay := math.Exp(-decayRate * daysSince)

	return bw * reinforcement * decay
}

// Score is the convenience entry point: given an observation's raw
// fields, it returns both BW and ABW in one call.
type Score struct {
	BW  float64
	ABW float64
}

// ScoreObservation computes BW and ABW for one observation's fields.
func (c *Calculator) ScoreObservation(credibility, clarity, extractionConfidence float64, reinforcementCount int, decayRate float64, lastSeenAt, now time.Time) Score {
	bw := c.BehaviorWeight(credibility, clarity, extractionConfidence)
	abw := c.AdjustedBehaviorWeight(bw, reinforcementCount, decayRate, lastSeenAt, now)
	return Score{BW: bw, ABW: abw}
}
