package services

import (
	"fmt"
	"sort"
	"strings"

	"teleassist-clustering/models"
	"teleassist-clustering/utils"
)

// ReportInput is everything a finished run hands to the report service.
type ReportInput struct {
	RunID      string
	Keys       Keys
	Features   *EncodedFeatureSet
	Clusters   *ClusterResult
	Metrics    models.ClusterMetrics
	Elbow      []models.ElbowPoint
	MergeStats MergeStats
}

// ReportService summarises a clustering run for humans.
type ReportService struct {
	logger *utils.Logger
}

func NewReportService(logger *utils.Logger) *ReportService {
	return &ReportService{logger: logger.With("report")}
}

// Generate builds the run report: metrics, elbow curve and, per non-empty
// cluster, the periods it covers and its most frequent label per categorical feature.
func (s *ReportService) Generate(in ReportInput) *models.Report {
	report := &models.Report{
		RunID:         in.RunID,
		Records:       len(in.Clusters.Labels),
		DroppedRows:   in.MergeStats.Dropped,
		UnmatchedRows: in.MergeStats.Unmatched,
		Components:    in.Clusters.Reduction.Components,
		Metrics:       in.Metrics,
		Elbow:         in.Elbow,
	}

	periods := ClusterPeriods(in.Keys.Years, in.Keys.Months, in.Clusters.Labels)
	rm := in.Features.ReverseMapping()
	for _, c := range in.Metrics.Clusters {
		report.Profiles = append(report.Profiles, models.ClusterProfile{
			ID:       c.ID,
			Periods:  periods[c.ID],
			TopLabel: topLabels(in.Features, rm, in.Clusters.Labels, c.ID),
		})
	}
	return report
}

// ClusterPeriods describes, for each cluster, the years its records fall in
// and the month span within each year, e.g. "2020 (months 1-12), 2021 (months 3)".
func ClusterPeriods(years, months, labels []int) map[int]string {
	spans := make(map[int]map[int][2]int)
	for i, l := range labels {
		if spans[l] == nil {
			spans[l] = make(map[int][2]int)
		}
		y, m := years[i], months[i]
		span, ok := spans[l][y]
		if !ok {
			span = [2]int{m, m}
		}
		if m < span[0] {
			span[0] = m
		}
		if m > span[1] {
			span[1] = m
		}
		spans[l][y] = span
	}

	out := make(map[int]string, len(spans))
	for l, byYear := range spans {
		ys := make([]int, 0, len(byYear))
		for y := range byYear {
			ys = append(ys, y)
		}
		sort.Ints(ys)
		parts := make([]string, len(ys))
		for i, y := range ys {
			span := byYear[y]
			if span[0] == span[1] {
				parts[i] = fmt.Sprintf("%d (months %d)", y, span[0])
			} else {
				parts[i] = fmt.Sprintf("%d (months %d-%d)", y, span[0], span[1])
			}
		}
		out[l] = strings.Join(parts, ", ")
	}
	return out
}

// topLabels returns, for every categorical feature, the decoded label most
// frequent among the members of cluster. Ties go to the lower code.
func topLabels(fs *EncodedFeatureSet, rm models.ReverseMapping, labels []int, cluster int) map[string]string {
	out := make(map[string]string, len(fs.Encoders))
	for j, name := range fs.Features {
		mapping, ok := rm[name]
		if !ok {
			continue
		}
		counts := make(map[int]int)
		for i, l := range labels {
			if l == cluster {
				counts[int(fs.Matrix[i][j])]++
			}
		}
		best, bestN := -1, 0
		for code, n := range counts {
			if n > bestN || (n == bestN && code < best) {
				best, bestN = code, n
			}
		}
		if best >= 0 {
			out[name] = mapping[best]
		}
	}
	return out
}

func (s *ReportService) Print(r *models.Report) {
	sep := strings.Repeat("═", 60)
	thin := strings.Repeat("─", 60)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  📊 TELEASSISTANCE GROWTH CLUSTERING\033[0m\n")
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	fmt.Printf("\033[1;33m  Overview\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Run id                 : \033[1m%s\033[0m\n", r.RunID)
	fmt.Printf("  Records clustered      : \033[1m%d\033[0m\n", r.Records)
	fmt.Printf("  Baseline rows dropped  : \033[1m%d\033[0m\n", r.DroppedRows)
	fmt.Printf("  Rows without a tier    : \033[1m%d\033[0m\n", r.UnmatchedRows)
	fmt.Printf("  SVD components         : \033[1m%d\033[0m\n", r.Components)
	fmt.Println()

	fmt.Printf("\033[1;33m  Scores (k=%d)\033[0m\n", r.Metrics.NClusters)
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Purity      : \033[1;32m%.4f\033[0m\n", r.Metrics.Purity)
	fmt.Printf("  Cohesion    : \033[1;32m%.4f\033[0m\n", r.Metrics.Cohesion)
	fmt.Printf("  Final score : \033[1;32m%.4f\033[0m\n", r.Metrics.FinalScore)
	fmt.Println()

	fmt.Printf("\033[1;33m  Clusters\033[0m\n")
	fmt.Printf("  %s\n", thin)
	profiles := make(map[int]models.ClusterProfile, len(r.Profiles))
	for _, p := range r.Profiles {
		profiles[p.ID] = p
	}
	for _, c := range r.Metrics.Clusters {
		bar := strings.Repeat("█", int(c.Purity*20+0.5))
		fmt.Printf("  \033[1mCluster %d\033[0m  size %-6d purity %-20s %.2f  dominant %s\n",
			c.ID, c.Size, bar, c.Purity, displayTier(c.DominantTier))
		if p, ok := profiles[c.ID]; ok {
			fmt.Printf("    periods : %s\n", truncate(p.Periods, 70))
			names := make([]string, 0, len(p.TopLabel))
			for name := range p.TopLabel {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Printf("    %-18s: %s\n", name, truncate(p.TopLabel[name], 40))
			}
		}
	}
	for _, id := range r.Metrics.EmptyClusters {
		fmt.Printf("  \033[1;31mCluster %d is empty\033[0m\n", id)
	}
	fmt.Println()

	if len(r.Elbow) > 0 {
		fmt.Printf("\033[1;33m  Elbow curve\033[0m\n")
		fmt.Printf("  %s\n", thin)
		for _, p := range r.Elbow {
			fmt.Printf("  k=%-3d inertia %.2f\n", p.K, p.Inertia)
		}
	}

	fmt.Printf("\n\033[1;35m%s\033[0m\n\n", sep)
}

func displayTier(t string) string {
	if t == "" {
		return "(none)"
	}
	return t
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
