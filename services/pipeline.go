package services

import (
	"fmt"
	"strings"

	"teleassist-clustering/config"
	apperrors "teleassist-clustering/errors"
	"teleassist-clustering/models"
	"teleassist-clustering/storage"
	"teleassist-clustering/utils"
)

// PipelineResult is what a completed run produces.
type PipelineResult struct {
	// Records are the merged records with their growth tier and cluster id.
	Records    *models.Table
	Features   *EncodedFeatureSet
	Clusters   *ClusterResult
	Metrics    models.ClusterMetrics
	Elbow      []models.ElbowPoint
	Report     *models.Report
	CleanStats CleanStats
	MergeStats MergeStats
}

// Pipeline runs the stages in order: clean, aggregate, increment, merge,
// encode, cluster, evaluate. Growth tables pass through the artifact store.
type Pipeline struct {
	cfg    *config.Config
	store  storage.ArtifactStore
	logger *utils.Logger
}

func NewPipeline(cfg *config.Config, store storage.ArtifactStore, logger *utils.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, store: store, logger: logger}
}

func (p *Pipeline) growthColumns() GrowthColumns {
	s := p.cfg.Schema
	return GrowthColumns{
		KeyColumns: KeyColumns{Type: s.TypeColumn, Year: s.YearColumn, Month: s.MonthColumn},
		Tier:       s.TierColumn,
		Percentage: s.PercentageColumn,
	}
}

// Run executes every stage on the loaded records. The first failing stage
// aborts the run; its error names the stage.
func (p *Pipeline) Run(raw *models.Table) (*PipelineResult, error) {
	res := &PipelineResult{}
	cols := p.growthColumns()

	cleaned, stats, err := NewCleaner(p.cfg.Schema, p.logger).Clean(raw)
	if err != nil {
		return nil, err
	}
	res.CleanStats = stats
	if err := p.checkFeatures(cleaned); err != nil {
		return nil, err
	}

	baseYear, err := p.buildGrowth(cleaned, cols)
	if err != nil {
		return nil, err
	}

	artifact, err := p.store.ReadTable(storage.KeyGrowthExpanded)
	if err != nil {
		return nil, apperrors.NewIOError(apperrors.StageArtifacts, "read "+storage.KeyGrowthExpanded, err)
	}
	expanded, err := ExpandedGrowthFromTable(artifact, cols)
	if err != nil {
		return nil, err
	}

	merged, mergeStats, err := NewMerger(cols, p.logger).Merge(cleaned, expanded, baseYear)
	if err != nil {
		return nil, err
	}
	res.MergeStats = mergeStats

	fs, err := NewEncoder(p.cfg.Schema, p.logger).Encode(merged)
	if err != nil {
		return nil, err
	}
	res.Features = fs

	engine := NewClusterEngine(ClusterOptions{
		NClusters:        p.cfg.NClusters,
		Components:       p.cfg.NComponents,
		MaxIter:          p.cfg.KMeansMaxIter,
		NInit:            p.cfg.KMeansNInit,
		Seed:             p.cfg.RandomSeed,
		ElbowMaxK:        p.cfg.ElbowMaxK,
		ElbowConcurrency: p.cfg.ElbowConcurrency,
	}, p.logger)
	clusters, err := engine.Cluster(fs)
	if err != nil {
		return nil, err
	}
	res.Clusters = clusters
	res.Elbow = engine.Elbow(clusters.Reduction)

	tiers, err := merged.Strings(cols.Tier)
	if err != nil {
		return nil, apperrors.NewInvariantError(apperrors.StageEvaluate, "merged records carry a tier", err.Error())
	}
	evaluator := NewEvaluator(EvaluatorOptions{CohesionSample: p.cfg.CohesionSample, Seed: p.cfg.RandomSeed}, p.logger)
	metrics, err := evaluator.Evaluate(tiers, clusters.Labels, fs.Matrix, p.cfg.NClusters)
	if err != nil {
		return nil, err
	}
	res.Metrics = metrics

	records := merged.Clone()
	ids := make([]float64, len(clusters.Labels))
	for i, l := range clusters.Labels {
		ids[i] = float64(l)
	}
	if err := records.SetNumbers(p.cfg.Schema.ClusterColumn, ids); err != nil {
		return nil, apperrors.NewInvariantError(apperrors.StageCluster, "one cluster id per record", err.Error())
	}
	res.Records = records

	keys, err := ExtractKeys(merged, cols.KeyColumns, apperrors.StageEvaluate)
	if err != nil {
		return nil, err
	}
	res.Report = NewReportService(p.logger).Generate(ReportInput{
		RunID:      p.store.RunID(),
		Keys:       keys,
		Features:   fs,
		Clusters:   clusters,
		Metrics:    metrics,
		Elbow:      res.Elbow,
		MergeStats: mergeStats,
	})
	return res, nil
}

// checkFeatures fails fast when a declared feature is missing after cleaning.
// The tier column is produced by the merge and is checked by the encoder.
func (p *Pipeline) checkFeatures(t *models.Table) error {
	var missing []string
	for _, name := range p.cfg.Schema.Features() {
		if name == p.cfg.Schema.TierColumn || name == p.cfg.Schema.PercentageColumn {
			continue
		}
		if !t.Has(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return apperrors.NewSchemaError(apperrors.StageClean, "declared features present",
			"missing feature columns: "+strings.Join(missing, ", "), nil)
	}
	return nil
}

// buildGrowth runs the aggregator and the increment calculator and stores
// their tables. It returns the baseline year, whose records the merge drops.
func (p *Pipeline) buildGrowth(cleaned *models.Table, cols GrowthColumns) (int, error) {
	agg := NewAggregator(cols.KeyColumns, p.logger)
	monthly, err := agg.MonthlyCounts(cleaned)
	if err != nil {
		return 0, err
	}
	buckets, err := agg.SemesterBuckets(monthly)
	if err != nil {
		return 0, err
	}

	policy, err := p.cfg.TierPolicy()
	if err != nil {
		return 0, apperrors.NewConfigurationError(apperrors.StageIncrement, "tier policy", err)
	}
	baseYear := p.cfg.GrowthBaseYear
	if baseYear == 0 {
		baseYear = EarliestYear(buckets)
	}
	triples := GrowthTriples(baseYear, p.cfg.GrowthYearPairs)
	p.logger.Info("Growth comparisons: %s", describeTriples(triples))

	calc := NewIncrementCalculator(policy, p.logger)
	growth := calc.Compute(buckets, triples)
	expanded := calc.Expand(growth)

	for _, a := range []struct {
		key string
		t   *models.Table
	}{
		{storage.KeyMonthlyCounts, MonthlyCountsTable(monthly, cols.KeyColumns)},
		{storage.KeySemesterCounts, SemesterBucketsTable(buckets, cols.KeyColumns)},
		{storage.KeyGrowth, GrowthTable(growth, cols)},
		{storage.KeyGrowthExpanded, ExpandedGrowthTable(expanded, cols)},
	} {
		if err := p.store.WriteTable(a.key, a.t); err != nil {
			return 0, apperrors.NewIOError(apperrors.StageArtifacts, fmt.Sprintf("write %s", a.key), err)
		}
	}
	p.logger.Info("Stored growth artifacts for run %s", p.store.RunID())
	return baseYear, nil
}
