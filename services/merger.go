package services

import (
	"fmt"
	"math"

	apperrors "teleassist-clustering/errors"
	"teleassist-clustering/models"
	"teleassist-clustering/utils"
)

// MergeStats reports the row accounting of a merge.
type MergeStats struct {
	Input        int
	Matched      int
	BaselineYear int
	Dropped      int
	// Unmatched counts rows outside the baseline year that received no tier;
	// they point at a coverage gap in the growth table.
	Unmatched int
}

// Merger annotates records with their growth tier.
type Merger struct {
	cols   GrowthColumns
	logger *utils.Logger
}

// NewMerger creates a Merger writing the tier and percentage into cols.Tier and cols.Percentage.
func NewMerger(cols GrowthColumns, logger *utils.Logger) *Merger {
	return &Merger{cols: cols, logger: logger.With("merger")}
}

// Merge left-joins records with the expanded growth table on (type, year,
// month), then drops every baselineYear record. The join happens before the
// filter, so only rows surviving the filter are checked for coverage gaps.
func (m *Merger) Merge(records *models.Table, growth []models.ExpandedGrowth, baselineYear int) (*models.Table, MergeStats, error) {
	stats := MergeStats{Input: records.Len(), BaselineYear: baselineYear}

	keys, err := ExtractKeys(records, m.cols.KeyColumns, apperrors.StageMerge)
	if err != nil {
		return nil, stats, err
	}

	lookup := make(map[models.GrowthKey]models.ExpandedGrowth, len(growth))
	for _, g := range growth {
		if _, dup := lookup[g.Key()]; dup {
			return nil, stats, apperrors.NewInvariantError(apperrors.StageMerge, "unique growth join key",
				fmt.Sprintf("duplicate growth row for %s %d-%02d", g.ProfessionalType, g.Year, g.Month))
		}
		lookup[g.Key()] = g
	}

	tiers := make([]string, records.Len())
	pcts := make([]float64, records.Len())
	for i := range tiers {
		g, ok := lookup[models.GrowthKey{ProfessionalType: keys.Types[i], Year: keys.Years[i], Month: keys.Months[i]}]
		if !ok {
			pcts[i] = math.NaN()
			continue
		}
		stats.Matched++
		tiers[i], pcts[i] = string(g.Tier), g.Percentage
	}

	joined := records.Clone()
	if err := joined.SetStrings(m.cols.Tier, tiers); err != nil {
		return nil, stats, apperrors.NewInvariantError(apperrors.StageMerge, "join preserves row count", err.Error())
	}
	if m.cols.Percentage != "" {
		if err := joined.SetNumbers(m.cols.Percentage, pcts); err != nil {
			return nil, stats, apperrors.NewInvariantError(apperrors.StageMerge, "join preserves row count", err.Error())
		}
	}

	kept := make([]int, 0, joined.Len())
	for i := 0; i < joined.Len(); i++ {
		if keys.Years[i] == baselineYear {
			stats.Dropped++
			continue
		}
		if tiers[i] == "" {
			stats.Unmatched++
		}
		kept = append(kept, i)
	}
	out := joined.Take(kept)

	m.logger.Info("Merged growth tiers: %d/%d rows matched, %d baseline-year (%d) rows dropped, %d rows kept",
		stats.Matched, stats.Input, stats.Dropped, baselineYear, out.Len())
	if stats.Unmatched > 0 {
		m.logger.Warn("%d rows outside the baseline year have no growth tier (coverage gap in growth table)", stats.Unmatched)
	}
	return out, stats, nil
}
