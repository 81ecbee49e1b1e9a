package clustering

import (
	"math"
	"testing"

	"github.com/cbie/core/internal/config"
)

func testEngine() *Engine {
	return New(config.Default().Clustering)
}

func unit(dims int, i int, jitter float32) []float32 {
	v := make([]float32, dims)
	v[i] = 1
	if jitter != 0 && dims > i+1 {
		v[i+1] = jitter
	}
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := float32(math.Sqrt(sum))
	for k := range v {
		v[k] /= norm
	}
	return v
}

func TestCluster_EmptyInput(t *testing.T) {
	e := testEngine()
	r := e.Cluster(nil)
	if len(r.Labels) != 0 {
		t.Fatalf("expected no labels for empty input, got %d", len(r.Labels))
	}
}

func TestCluster_SinglePointIsDegenerate(t *testing.T) {
	e := testEngine()
	r := e.Cluster([][]float32{unit(3, 0, 0)})
	if len(r.Labels) != 1 || r.Labels[0] != 0 {
		t.Fatalf("expected single degenerate cluster 0, got %+v", r.Labels)
	}
	if r.Probabilities[0] != 0 {
		t.Errorf("degenerate single-point cluster must report 0 membership probability, got %f", r.Probabilities[0])
	}
}

func TestCluster_MembershipPreservation(t *testing.T) {
	e := testEngine()
	vectors := [][]float32{
		unit(4, 0, 0.01), unit(4, 0, 0.02), unit(4, 0, -0.01), unit(4, 0, 0.0),
		unit(4, 2, 0.01), unit(4, 2, -0.02),
	}
	r := e.Cluster(vectors)

	if len(r.Labels) != len(vectors) {
		t.Fatalf("expected one label per input point, got %d labels for %d points", len(r.Labels), len(vectors))
	}
	for i, l := range r.Labels {
		if l == NoiseLabel {
			continue
		}
		if _, ok := r.Centroids[l]; !ok {
			t.Errorf("point %d assigned to cluster %d with no centroid", i, l)
		}
	}
}

func TestCluster_TwoDenseGroupsSeparate(t *testing.T) {
	e := testEngine()
	vectors := [][]float32{
		unit(4, 0, 0.01), unit(4, 0, 0.02), unit(4, 0, -0.01),
		unit(4, 2, 0.01), unit(4, 2, -0.02), unit(4, 2, 0.0),
	}
	r := e.Cluster(vectors)

	firstGroup := map[int]bool{}
	for i := 0; i < 3; i++ {
		firstGroup[r.Labels[i]] = true
	}
	secondGroup := map[int]bool{}
	for i := 3; i < 6; i++ {
		secondGroup[r.Labels[i]] = true
	}

	if len(firstGroup) != 1 || firstGroup[NoiseLabel] {
		t.Errorf("expected the first three near-identical points in one non-noise cluster, got labels %v", r.Labels[:3])
	}
	if len(secondGroup) != 1 || secondGroup[NoiseLabel] {
		t.Errorf("expected the second three near-identical points in one non-noise cluster, got labels %v", r.Labels[3:])
	}
	for l := range firstGroup {
		for l2 := range secondGroup {
			if l == l2 {
				t.Errorf("expected the two dense groups to land in different clusters, both got %d", l)
			}
		}
	}
}

func TestCluster_OutlierBecomesNoise(t *testing.T) {
	e := testEngine()
	vectors := [][]float32{
		unit(5, 0, 0.01), unit(5, 0, 0.02), unit(5, 0, -0.01),
		unit(5, 4, 0), // orthogonal outlier, no other near neighbor
	}
	r := e.Cluster(vectors)

	if r.Labels[3] != NoiseLabel {
		t.Errorf("expected the isolated point to be labeled noise, got %d", r.Labels[3])
	}
	if r.Probabilities[3] != 0 {
		t.Errorf("noise points must report 0 membership probability, got %f", r.Probabilities[3])
	}
}

func TestCluster_Deterministic(t *testing.T) {
	e := testEngine()
	vectors := [][]float32{
		unit(4, 0, 0.01), unit(4, 0, 0.02), unit(4, 0, -0.01),
		unit(4, 2, 0.01), unit(4, 2, -0.02),
	}

	r1 := e.Cluster(vectors)
	r2 := e.Cluster(vectors)

	for i := range r1.Labels {
		if r1.Labels[i] != r2.Labels[i] {
			t.Fatalf("clustering is not deterministic: run1[%d]=%d run2[%d]=%d", i, r1.Labels[i], i, r2.Labels[i])
		}
	}
}
