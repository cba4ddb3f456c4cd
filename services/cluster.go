package services

import (
	"fmt"

	apperrors "teleassist-clustering/errors"
	"teleassist-clustering/models"
	"teleassist-clustering/utils"
)

// ClusterOptions configures the cluster engine.
type ClusterOptions struct {
	NClusters        int
	Components       int
	MaxIter          int
	NInit            int
	Seed             int64
	ElbowMaxK        int
	ElbowConcurrency int
}

// ClusterResult holds the assignment of every encoded record to a cluster.
type ClusterResult struct {
	Labels    []int
	NClusters int
	Reduction *Reduction
	Centroids [][]float64
	Inertia   float64
}

// Sizes returns the member count of every cluster id, empty clusters included.
func (r *ClusterResult) Sizes() []int {
	sizes := make([]int, r.NClusters)
	for _, l := range r.Labels {
		sizes[l]++
	}
	return sizes
}

// ClusterEngine reduces the encoded features and runs k-means on the projection.
type ClusterEngine struct {
	opts   ClusterOptions
	logger *utils.Logger
}

// NewClusterEngine creates a ClusterEngine.
func NewClusterEngine(opts ClusterOptions, logger *utils.Logger) *ClusterEngine {
	return &ClusterEngine{opts: opts, logger: logger.With("cluster")}
}

// Reduce projects the feature matrix with a truncated SVD.
func (e *ClusterEngine) Reduce(fs *EncodedFeatureSet) (*Reduction, error) {
	if fs.Rows() < e.opts.NClusters {
		return nil, apperrors.NewSchemaError(apperrors.StageCluster, "records >= clusters",
			fmt.Sprintf("%d records cannot form %d clusters", fs.Rows(), e.opts.NClusters), nil)
	}
	red, err := TruncatedSVD(fs.Matrix, e.opts.Components)
	if err != nil {
		return nil, apperrors.NewInvariantError(apperrors.StageCluster, "svd of a finite matrix", err.Error())
	}
	e.logger.Info("Reduced %d features to %d components", fs.Dims(), red.Components)
	return red, nil
}

// Cluster assigns every record of fs to one of NClusters clusters.
func (e *ClusterEngine) Cluster(fs *EncodedFeatureSet) (*ClusterResult, error) {
	red, err := e.Reduce(fs)
	if err != nil {
		return nil, err
	}

	km := NewKMeans(e.opts.NClusters, e.opts.MaxIter, e.opts.NInit, e.opts.Seed)
	fit, err := km.Fit(red.Projected)
	if err != nil {
		return nil, apperrors.NewInvariantError(apperrors.StageCluster, "kmeans fit", err.Error())
	}

	res := &ClusterResult{
		Labels:    fit.Labels,
		NClusters: e.opts.NClusters,
		Reduction: red,
		Centroids: fit.Centroids,
		Inertia:   fit.Inertia,
	}
	empty := 0
	for _, s := range res.Sizes() {
		if s == 0 {
			empty++
		}
	}
	e.logger.Info("K-means with k=%d converged after %d iterations, inertia %.4f", e.opts.NClusters, fit.Iterations, fit.Inertia)
	if empty > 0 {
		e.logger.Warn("%d of %d clusters are empty", empty, e.opts.NClusters)
	}
	return res, nil
}

// Elbow fits k-means for k = 1..ElbowMaxK on the projected records and
// returns the inertia of each. Values of k above the record count are skipped.
// Fits run concurrently on a bounded worker pool; the curve is diagnostic only.
func (e *ClusterEngine) Elbow(red *Reduction) []models.ElbowPoint {
	maxK := e.opts.ElbowMaxK
	if n := len(red.Projected); maxK > n {
		maxK = n
	}
	if maxK < 1 {
		return nil
	}

	points := make([]models.ElbowPoint, maxK)
	failed := make([]error, maxK)
	pool := utils.NewWorkerPool(e.opts.ElbowConcurrency, 0)
	for k := 1; k <= maxK; k++ {
		k := k
		pool.Submit(func() {
			fit, err := NewKMeans(k, e.opts.MaxIter, e.opts.NInit, e.opts.Seed).Fit(red.Projected)
			if err != nil {
				failed[k-1] = err
				return
			}
			points[k-1] = models.ElbowPoint{K: k, Inertia: fit.Inertia}
		})
	}
	pool.Wait()

	out := make([]models.ElbowPoint, 0, maxK)
	for i, p := range points {
		if failed[i] != nil {
			e.logger.Warn("Elbow fit for k=%d failed: %v", i+1, failed[i])
			continue
		}
		out = append(out, p)
	}
	e.logger.Info("Computed elbow curve for k=1..%d", maxK)
	return out
}
