// Package clustering implements the Clustering Engine (C3): density-based
// clustering over cosine-normalized embeddings, approximating HDBSCAN's
// excess-of-mass (EOM) cluster selection with a DBSCAN-style neighbor
// expansion pass plus an epsilon-bounded merge step for borderline splits.
//
// No HDBSCAN or DBSCAN library ships anywhere in the example pack or its
// transitive dependency graph (see DESIGN.md). This engine is grounded on
// the neighbor-expansion/visited-bookkeeping structure of the pack's own
// DBSCAN reference implementation, generalized from Euclidean to cosine
// distance and extended with min_samples core-point gating and
// cluster_selection_epsilon merging to better approximate the spec's
// HDBSCAN/EOM requirement.
package clustering

import (
	"math"
	"sort"

	"github.com/cbie/core/internal/config"
	"github.com/cbie/core/internal/models"
	"github.com/cbie/core/internal/vecmath"
)

// NoiseLabel is the sentinel cluster id assigned to points the engine
// could not place in any cluster.
const NoiseLabel = -1

// Result is the output of one clustering pass over a set of points. Every
// input index appears exactly once, either in a Labels entry with a
// non-negative value, or with NoiseLabel.
type Result struct {
	// Labels[i] is the cluster id assigned to point i, or NoiseLabel.
	Labels []int

	// Probabilities[i] is point i's membership strength in [0,1] for its
	// assigned cluster; 0 for noise points.
	Probabilities []float64

	// Centroids maps cluster id -> renormalized mean embedding.
	Centroids map[int][]float32

	// IntraClusterDistances maps cluster id -> pairwise cosine distance
	// statistics within that cluster.
	IntraClusterDistances map[int]models.DistanceStats
}

// Engine runs density-based clustering with a fixed configuration. It
// holds no mutable state and is safe for concurrent use; given the same
// input slice order it is deterministic (no randomized initialization is
// used, unlike k-means).
type Engine struct {
	minClusterSize int
	minSamples     int
	epsilon        float64
}

// New builds an Engine from the clustering section of the pipeline
// configuration.
func New(cfg config.ClusteringConfig) *Engine {
	return &Engine{
		minClusterSize: cfg.MinClusterSize,
		minSamples:     cfg.MinSamples,
		epsilon:        cfg.ClusterSelectionEpsilon,
	}
}

// Cluster runs the engine over a set of L2-normalized embeddings. If
// fewer than two points are supplied, it returns a single degenerate
// cluster containing that point (or an empty result for zero points);
// the caller (Tier Classifier) forces degenerate clusters to NOISE.
func (e *Engine) Cluster(vectors [][]float32) Result {
	n := len(vectors)
	if n == 0 {
		return Result{
			Centroids:             map[int][]float32{},
			IntraClusterDistances: map[int]models.DistanceStats{},
		}
	}
	if n == 1 {
		return Result{
			Labels:        []int{0},
			Probabilities: []float64{0},
			Centroids:     map[int][]float32{0: append([]float32(nil), vectors[0]...)},
			IntraClusterDistances: map[int]models.DistanceStats{
				0: {},
			},
		}
	}

	labels := make([]int, n)
	for i := range labels {
		labels[i] = NoiseLabel
	}
	visited := make([]bool, n)

	neighborCache := make([][]int, n)
	for i := range vectors {
		neighborCache[i] = e.neighbors(vectors, i)
	}

	nextID := 0
	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		visited[i] = true

		neighbors := neighborCache[i]
		if len(neighbors) < e.minSamples {
			// Not a core point; stays noise unless later absorbed by
			// another cluster's expansion.
			continue
		}

		clusterID := nextID
		nextID++
		labels[i] = clusterID

		queue := append([]int(nil), neighbors...)
		for qi := 0; qi < len(queue); qi++ {
			j := queue[qi]
			if !visited[j] {
				visited[j] = true
				jNeighbors := neighborCache[j]
				if len(jNeighbors) >= e.minSamples {
					queue = append(queue, jNeighbors...)
				}
			}
			if labels[j] == NoiseLabel {
				labels[j] = clusterID
			}
		}
	}

	e.mergeCloseClusters(vectors, labels)
	e.pruneSmallClusters(labels)

	return e.buildResult(vectors, labels)
}

// neighbors returns the indices within cosine distance epsilon of point
// i, excluding i itself.
func (e *Engine) neighbors(vectors [][]float32, i int) []int {
	var out []int
	for j := range vectors {
		if j == i {
			continue
		}
		if vecmath.CosineDistance(vectors[i], vectors[j]) <= e.epsilon {
			out = append(out, j)
		}
	}
	return out
}

// mergeCloseClusters merges any two clusters whose centroids sit within
// epsilon of each other, stabilizing borderline splits the neighbor
// expansion pass leaves behind — this is the epsilon-bounded
// cluster_selection_epsilon behavior called for in spec.md §4.3.
func (e *Engine) mergeCloseClusters(vectors [][]float32, labels []int) {
	for {
		centroids := centroidsByLabel(vectors, labels)
		ids := sortedIDs(centroids)
		merged := false

		for a := 0; a < len(ids) && !merged; a++ {
			for b := a + 1; b < len(ids); b++ {
				if vecmath.CosineDistance(centroids[ids[a]], centroids[ids[b]]) <= e.epsilon {
					from, to := ids[b], ids[a]
					for i, l := range labels {
						if l == from {
							labels[i] = to
						}
					}
					merged = true
					break
				}
			}
		}

		if !merged {
			return
		}
	}
}

// pruneSmallClusters demotes clusters below min_cluster_size back to
// noise, matching HDBSCAN's min_cluster_size semantics.
func (e *Engine) pruneSmallClusters(labels []int) {
	counts := map[int]int{}
	for _, l := range labels {
		if l != NoiseLabel {
			counts[l]++
		}
	}
	for i, l := range labels {
		if l != NoiseLabel && counts[l] < e.minClusterSize {
			labels[i] = NoiseLabel
		}
	}
}

func (e *Engine) buildResult(vectors [][]float32, labels []int) Result {
	centroids := centroidsByLabel(vectors, labels)
	probs := make([]float64, len(labels))
	distances := map[int]models.DistanceStats{}

	membersByLabel := map[int][]int{}
	for i, l := range labels {
		if l != NoiseLabel {
			membersByLabel[l] = append(membersByLabel[l], i)
		}
	}

	for label, members := range membersByLabel {
		centroid := centroids[label]
		var distSum, maxDist float64
		var pairCount int
		var squareSum float64
		for _, mi := range members {
			// Membership probability: 1 minus the point's cosine distance
			// to its cluster centroid, clamped to [0,1]. This stands in
			// for HDBSCAN's stability-based membership probability,
			// which isn't available without a real HDBSCAN implementation.
			d := vecmath.CosineDistance(vectors[mi], centroid)
			p := 1 - d
			if p < 0 {
				p = 0
			}
			if p > 1 {
				p = 1
			}
			probs[mi] = p
		}
		for ai := 0; ai < len(members); ai++ {
			for bi := ai + 1; bi < len(members); bi++ {
				d := vecmath.CosineDistance(vectors[members[ai]], vectors[members[bi]])
				distSum += d
				squareSum += d * d
				pairCount++
				if d > maxDist {
					maxDist = d
				}
			}
		}

		var mean, std float64
		if pairCount > 0 {
			mean = distSum / float64(pairCount)
			variance := squareSum/float64(pairCount) - mean*mean
			if variance < 0 {
				variance = 0
			}
			std = math.Sqrt(variance)
		}
		distances[label] = models.DistanceStats{Mean: mean, Std: std, Max: maxDist}
	}

	return Result{
		Labels:                labels,
		Probabilities:         probs,
		Centroids:             centroids,
		IntraClusterDistances: distances,
	}
}

func centroidsByLabel(vectors [][]float32, labels []int) map[int][]float32 {
	grouped := map[int][][]float32{}
	for i, l := range labels {
		if l == NoiseLabel {
			continue
		}
		grouped[l] = append(grouped[l], vectors[i])
	}
	out := make(map[int][]float32, len(grouped))
	for label, vecs := range grouped {
		c := vecmath.Centroid(vecs)
		vecmath.Normalize(c)
		out[label] = c
	}
	return out
}

func sortedIDs(m map[int][]float32) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
