package tiering

import (
	"testing"

	"github.com/cbie/core/internal/config"
	"github.com/cbie/core/internal/models"
)

func testClassifier() *Classifier {
	return New(config.Default().Tiering)
}

func TestClassify_TierBoundary(t *testing.T) {
	c := testClassifier()

	tests := []struct {
		name        string
		strength    float64
		confidence  float64
		isSingleton bool
		want        models.Tier
	}{
		{"exactly at primary boundary", 1.0, 0.6, false, models.TierPrimary},
		{"just under primary confidence", 1.0, 0.59, false, models.TierNoise},
		{"just under primary strength", 0.99, 0.6, false, models.TierSecondary},
		{"exactly at secondary boundary", 0.7, 0.5, false, models.TierSecondary},
		{"just under secondary confidence", 0.7, 0.49, false, models.TierNoise},
		{"well above primary", 2.5, 0.9, false, models.TierPrimary},
		{"well below both", 0.1, 0.1, false, models.TierNoise},
		{"singleton forced noise despite high strength", 5.0, 0.95, true, models.TierNoise},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.strength, tt.confidence, tt.isSingleton)
			if got != tt.want {
				t.Errorf("Classify(%v, %v, singleton=%v) = %v, want %v", tt.strength, tt.confidence, tt.isSingleton, got, tt.want)
			}
		})
	}
}

func TestClassifyCluster_SetsTierInPlace(t *testing.T) {
	c := testClassifier()
	cl := &models.Cluster{ClusterStrength: 1.5, Confidence: 0.7, ClusterSize: 4}

	got := c.ClassifyCluster(cl)

	if got != models.TierPrimary || cl.Tier != models.TierPrimary {
		t.Errorf("expected cluster to be classified PRIMARY in place, got %v (cl.Tier=%v)", got, cl.Tier)
	}
}
