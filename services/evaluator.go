package services

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	apperrors "teleassist-clustering/errors"
	"teleassist-clustering/models"
	"teleassist-clustering/utils"
)

// ClusterPenalty is subtracted from the final score once per configured cluster.
const ClusterPenalty = 0.05

// EvaluatorOptions configures the evaluation engine.
type EvaluatorOptions struct {
	// CohesionSample caps the records used for the silhouette; 0 uses all of them.
	CohesionSample int
	Seed           int64
}

// Evaluator scores a clustering against the growth tiers.
type Evaluator struct {
	opts   EvaluatorOptions
	logger *utils.Logger
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(opts EvaluatorOptions, logger *utils.Logger) *Evaluator {
	return &Evaluator{opts: opts, logger: logger.With("evaluator")}
}

// Evaluate computes purity against tiers, cohesion in the feature space of
// points and the final score. tiers, labels and points are parallel slices.
func (e *Evaluator) Evaluate(tiers []string, labels []int, points [][]float64, nClusters int) (models.ClusterMetrics, error) {
	if len(tiers) != len(labels) || len(points) != len(labels) {
		return models.ClusterMetrics{}, apperrors.NewInvariantError(apperrors.StageEvaluate, "aligned evaluation inputs",
			fmt.Sprintf("%d tiers, %d labels, %d points", len(tiers), len(labels), len(points)))
	}
	for i, l := range labels {
		if l < 0 || l >= nClusters {
			return models.ClusterMetrics{}, apperrors.NewInvariantError(apperrors.StageEvaluate, "cluster ids in [0, k)",
				fmt.Sprintf("record %d has cluster %d with k=%d", i, l, nClusters))
		}
	}

	metrics := Purity(tiers, labels, nClusters)
	metrics.Cohesion = Cohesion(points, labels, nClusters, e.sample(len(points)))
	metrics.FinalScore = FinalScore(metrics.Purity, metrics.Cohesion, nClusters)

	e.logger.Info("Purity %.4f, cohesion %.4f, final score %.4f (k=%d)",
		metrics.Purity, metrics.Cohesion, metrics.FinalScore, nClusters)
	if len(metrics.EmptyClusters) > 0 {
		e.logger.Warn("Clusters %v are empty and excluded from purity", metrics.EmptyClusters)
	}
	return metrics, nil
}

// sample returns the record indices used for cohesion: all of them unless
// CohesionSample is set and smaller than n, then a seeded random subset.
func (e *Evaluator) sample(n int) []int {
	if e.opts.CohesionSample <= 0 || e.opts.CohesionSample >= n {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	rng := rand.New(rand.NewSource(e.opts.Seed))
	idx := rng.Perm(n)[:e.opts.CohesionSample]
	sort.Ints(idx)
	e.logger.Debug("Cohesion computed on a sample of %d/%d records", len(idx), n)
	return idx
}

// Purity computes per-cluster and overall purity. A cluster's purity is the
// share of its members carrying the dominant tier; ties go to the tier seen
// first in record order and a null tier counts as its own label. Empty
// clusters are listed but excluded. Overall purity is the size-weighted mean.
func Purity(tiers []string, labels []int, nClusters int) models.ClusterMetrics {
	type tally struct {
		counts map[string]int
		order  []string
		size   int
	}
	tallies := make([]tally, nClusters)
	for k := range tallies {
		tallies[k].counts = make(map[string]int)
	}
	for i, l := range labels {
		t := &tallies[l]
		if _, ok := t.counts[tiers[i]]; !ok {
			t.order = append(t.order, tiers[i])
		}
		t.counts[tiers[i]]++
		t.size++
	}

	metrics := models.ClusterMetrics{NClusters: nClusters, PerCluster: make(map[int]float64)}
	dominantTotal, total := 0, 0
	for k, t := range tallies {
		if t.size == 0 {
			metrics.EmptyClusters = append(metrics.EmptyClusters, k)
			continue
		}
		dominant, best := "", -1
		for _, tier := range t.order {
			if t.counts[tier] > best {
				dominant, best = tier, t.counts[tier]
			}
		}
		purity := float64(best) / float64(t.size)
		metrics.PerCluster[k] = purity
		metrics.Clusters = append(metrics.Clusters, models.ClusterSummary{
			ID:           k,
			Size:         t.size,
			Purity:       purity,
			DominantTier: dominant,
			TierCounts:   t.counts,
		})
		dominantTotal += best
		total += t.size
	}
	if total > 0 {
		metrics.Purity = float64(dominantTotal) / float64(total)
	}
	return metrics
}

// Cohesion is the mean silhouette of the sampled records after min-max
// normalising the silhouettes of the run to [0, 1]. The value is relative to
// the run: it ranks records against each other, not against other runs. If
// every silhouette is equal each record scores 1.0; with fewer than two
// non-empty clusters in the sample cohesion is 0.
func Cohesion(points [][]float64, labels []int, nClusters int, sample []int) float64 {
	s := Silhouettes(points, labels, nClusters, sample)
	if len(s) == 0 {
		return 0
	}
	lo, hi := s[0], s[0]
	for _, v := range s {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if hi-lo == 0 {
		return 1.0
	}
	sum := 0.0
	for _, v := range s {
		sum += (v - lo) / (hi - lo)
	}
	return sum / float64(len(s))
}

// Silhouettes returns the silhouette of each sampled record, computed among
// the sampled records with Euclidean distance. It returns nil when the sample
// spans fewer than two clusters. A record alone in its cluster scores 0.
func Silhouettes(points [][]float64, labels []int, nClusters int, sample []int) []float64 {
	sizes := make([]int, nClusters)
	for _, i := range sample {
		sizes[labels[i]]++
	}
	nonEmpty := 0
	for _, s := range sizes {
		if s > 0 {
			nonEmpty++
		}
	}
	if nonEmpty < 2 {
		return nil
	}

	out := make([]float64, len(sample))
	sums := make([]float64, nClusters)
	for si, i := range sample {
		for k := range sums {
			sums[k] = 0
		}
		for _, j := range sample {
			if i == j {
				continue
			}
			sums[labels[j]] += math.Sqrt(euclidSquared(points[i], points[j]))
		}

		own := labels[i]
		if sizes[own] == 1 {
			out[si] = 0
			continue
		}
		a := sums[own] / float64(sizes[own]-1)
		b := math.Inf(1)
		for k, n := range sizes {
			if k == own || n == 0 {
				continue
			}
			b = math.Min(b, sums[k]/float64(n))
		}
		if d := math.Max(a, b); d > 0 {
			out[si] = (b - a) / d
		}
	}
	return out
}

// FinalScore combines purity and cohesion, penalising the cluster count.
func FinalScore(purity, cohesion float64, nClusters int) float64 {
	return (purity+cohesion)/2 - ClusterPenalty*float64(nClusters)
}
