package services

import (
	"errors"
	"math"
	"math/rand"
)

// KMeans partitions points into K clusters with k-means++ seeding and Lloyd
// iterations. The run with the lowest inertia over NInit restarts wins.
type KMeans struct {
	K       int
	MaxIter int
	NInit   int
	Seed    int64
}

// KMeansResult is the outcome of a fit.
type KMeansResult struct {
	Labels     []int
	Centroids  [][]float64
	Inertia    float64 // sum of squared distances to the assigned centroid
	Iterations int
}

// NewKMeans creates a KMeans with the given cluster count, iteration cap, restarts and seed.
func NewKMeans(k, maxIter, nInit int, seed int64) *KMeans {
	return &KMeans{K: k, MaxIter: maxIter, NInit: nInit, Seed: seed}
}

// Fit clusters X. The same X and seed always give the same result.
func (m *KMeans) Fit(X [][]float64) (*KMeansResult, error) {
	if len(X) == 0 {
		return nil, errors.New("kmeans: input data cannot be empty")
	}
	if m.K < 1 {
		return nil, errors.New("kmeans: K must be positive")
	}
	if len(X) < m.K {
		return nil, errors.New("kmeans: number of data points is less than K")
	}
	nInit := m.NInit
	if nInit < 1 {
		nInit = 1
	}
	maxIter := m.MaxIter
	if maxIter < 1 {
		maxIter = 1
	}

	rng := rand.New(rand.NewSource(m.Seed))
	var best *KMeansResult
	for run := 0; run < nInit; run++ {
		res := m.lloyd(X, m.initCenters(X, rng), maxIter)
		if best == nil || res.Inertia < best.Inertia {
			best = res
		}
	}
	return best, nil
}

func (m *KMeans) lloyd(X [][]float64, centroids [][]float64, maxIter int) *KMeansResult {
	n, p := len(X), len(X[0])
	assign := make([]int, n)
	for i := range assign {
		assign[i] = -1
	}

	it := 0
	for ; it < maxIter; it++ {
		if !assignAll(X, centroids, assign) {
			break
		}

		sums := make([][]float64, m.K)
		counts := make([]int, m.K)
		for k := range sums {
			sums[k] = make([]float64, p)
		}
		for i, k := range assign {
			counts[k]++
			for j := 0; j < p; j++ {
				sums[k][j] += X[i][j]
			}
		}
		for k := 0; k < m.K; k++ {
			if counts[k] == 0 {
				continue // empty cluster keeps its centroid
			}
			for j := 0; j < p; j++ {
				centroids[k][j] = sums[k][j] / float64(counts[k])
			}
		}
	}
	assignAll(X, centroids, assign)

	inertia := 0.0
	for i, k := range assign {
		inertia += euclidSquared(X[i], centroids[k])
	}
	return &KMeansResult{Labels: assign, Centroids: centroids, Inertia: inertia, Iterations: it}
}

// assignAll moves every point to its nearest centroid, lowest index on ties,
// and reports whether any assignment changed.
func assignAll(X, centroids [][]float64, assign []int) bool {
	changed := false
	for i, x := range X {
		best, bestD := 0, math.MaxFloat64
		for k, c := range centroids {
			if d := euclidSquared(x, c); d < bestD {
				best, bestD = k, d
			}
		}
		if assign[i] != best {
			changed = true
			assign[i] = best
		}
	}
	return changed
}

// initCenters picks K starting centroids with k-means++: the first uniformly,
// each next one with probability proportional to its squared distance from
// the nearest centroid chosen so far.
func (m *KMeans) initCenters(X [][]float64, rng *rand.Rand) [][]float64 {
	n := len(X)
	centroids := make([][]float64, 0, m.K)
	centroids = append(centroids, append([]float64(nil), X[rng.Intn(n)]...))

	distSq := make([]float64, n)
	for len(centroids) < m.K {
		total := 0.0
		for i, x := range X {
			minDist := math.MaxFloat64
			for _, c := range centroids {
				if d := euclidSquared(x, c); d < minDist {
					minDist = d
				}
			}
			distSq[i] = minDist
			total += minDist
		}

		next := -1
		if total > 0 {
			r := rng.Float64() * total
			cumulative := 0.0
			for i, d2 := range distSq {
				if d2 <= 0 {
					continue
				}
				next = i
				cumulative += d2
				if cumulative > r {
					break
				}
			}
		}
		if next < 0 {
			// every point coincides with a centroid already
			next = rng.Intn(n)
		}
		centroids = append(centroids, append([]float64(nil), X[next]...))
	}
	return centroids
}

func euclidSquared(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}
