package storage

import "teleassist-clustering/models"

// ArtifactStore persists intermediate tables of one pipeline run by logical
// key. Stored artifacts are read-only snapshots of that run.
type ArtifactStore interface {
	WriteTable(key string, t *models.Table) error
	ReadTable(key string) (*models.Table, error)
	RunID() string
}

// ResultWriter is the interface any sink for the clustered records must satisfy.
type ResultWriter interface {
	WriteResults(runID string, records *models.Table, metrics models.ClusterMetrics) error
	Close() error
}

// Artifact keys written by the growth stages.
const (
	KeyMonthlyCounts  = "monthly_counts"
	KeySemesterCounts = "semester_counts"
	KeyGrowth         = "growth"
	KeyGrowthExpanded = "growth_expanded"
)
