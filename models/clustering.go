package models

// ElbowPoint is the k-means inertia obtained for K clusters.
type ElbowPoint struct {
	K       int     `json:"k"`
	Inertia float64 `json:"inertia"`
}

// ClusterSummary describes one cluster of a run.
type ClusterSummary struct {
	ID           int            `json:"id"`
	Size         int            `json:"size"`
	Purity       float64        `json:"purity"`
	DominantTier string         `json:"dominant_tier"`
	TierCounts   map[string]int `json:"tier_counts"`
}

// ClusterMetrics is the quality summary of a clustering run. PerCluster only
// holds non-empty clusters; empty clusters are listed in EmptyClusters.
type ClusterMetrics struct {
	NClusters     int              `json:"n_clusters"`
	PerCluster    map[int]float64  `json:"per_cluster_purity"`
	Clusters      []ClusterSummary `json:"clusters"`
	EmptyClusters []int            `json:"empty_clusters,omitempty"`
	Purity        float64          `json:"purity"`
	Cohesion      float64          `json:"cohesion"`
	FinalScore    float64          `json:"final_score"`
}

// ReverseMapping maps column -> code -> original label.
type ReverseMapping map[string]map[int]string

// ClusterProfile holds the human-readable description of a cluster for reports.
type ClusterProfile struct {
	ID       int               `json:"id"`
	Periods  string            `json:"periods"`
	TopLabel map[string]string `json:"top_labels"`
}

// Report bundles everything produced by a run for printing and export.
type Report struct {
	RunID         string           `json:"run_id"`
	Records       int              `json:"records"`
	DroppedRows   int              `json:"baseline_rows_dropped"`
	UnmatchedRows int              `json:"unmatched_rows"`
	Components    int              `json:"components"`
	Metrics       ClusterMetrics   `json:"metrics"`
	Elbow         []ElbowPoint     `json:"elbow"`
	Profiles      []ClusterProfile `json:"profiles"`
}
