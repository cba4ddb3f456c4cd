package services

import (
	"fmt"
	"math"
	"sort"

	apperrors "teleassist-clustering/errors"
	"teleassist-clustering/models"
	"teleassist-clustering/utils"
)

// GrowthColumns names the columns of the expanded growth table.
type GrowthColumns struct {
	KeyColumns
	Tier       string
	Percentage string
}

// GrowthTriples lists the (year, year+1, semester) comparisons for pairs
// consecutive year pairs starting at baseYear, H1 before H2.
func GrowthTriples(baseYear, pairs int) []models.GrowthTriple {
	out := make([]models.GrowthTriple, 0, 2*pairs)
	for i := 0; i < pairs; i++ {
		pair := models.YearPair{First: baseYear + i, Second: baseYear + i + 1}
		out = append(out,
			models.GrowthTriple{Pair: pair, Semester: models.H1},
			models.GrowthTriple{Pair: pair, Semester: models.H2},
		)
	}
	return out
}

// EarliestYear returns the smallest year among the buckets, or 0 when empty.
func EarliestYear(buckets []models.SemesterBucket) int {
	earliest := 0
	for i, b := range buckets {
		if i == 0 || b.Year < earliest {
			earliest = b.Year
		}
	}
	return earliest
}

// GrowthPercentage is the percentage change from base to current. A zero base
// yields +Inf even when current is also zero; a zero base is never "no growth".
func GrowthPercentage(base, current int) float64 {
	if base > 0 {
		return float64(current-base) / float64(base) * 100
	}
	return math.Inf(1)
}

// IncrementCalculator derives growth tiers from semester counts.
type IncrementCalculator struct {
	policy models.TierPolicy
	logger *utils.Logger
}

// NewIncrementCalculator creates a calculator classifying with policy.
func NewIncrementCalculator(policy models.TierPolicy, logger *utils.Logger) *IncrementCalculator {
	return &IncrementCalculator{policy: policy, logger: logger.With("increment")}
}

// Compute produces one GrowthRecord per (triple, professional type). A type
// with no bucket for the triple's semester in any year is skipped for that
// triple; a year without a bucket counts as zero.
func (c *IncrementCalculator) Compute(buckets []models.SemesterBucket, triples []models.GrowthTriple) []models.GrowthRecord {
	type rowKey struct {
		profType string
		semester models.Semester
	}
	pivot := make(map[rowKey]map[int]int)
	typeSet := make(map[string]struct{})
	for _, b := range buckets {
		k := rowKey{b.ProfessionalType, b.Semester}
		if pivot[k] == nil {
			pivot[k] = make(map[int]int)
		}
		pivot[k][b.Year] += b.Count
		typeSet[b.ProfessionalType] = struct{}{}
	}
	types := make([]string, 0, len(typeSet))
	for t := range typeSet {
		types = append(types, t)
	}
	sort.Strings(types)

	out := make([]models.GrowthRecord, 0, len(triples)*len(types))
	skipped := 0
	for _, tr := range triples {
		for _, pt := range types {
			byYear, ok := pivot[rowKey{pt, tr.Semester}]
			if !ok {
				skipped++
				continue
			}
			base, current := byYear[tr.Pair.First], byYear[tr.Pair.Second]
			pct := GrowthPercentage(base, current)
			out = append(out, models.GrowthRecord{
				ProfessionalType: pt,
				Pair:             tr.Pair,
				Semester:         tr.Semester,
				BaseCount:        base,
				Count:            current,
				Percentage:       pct,
				Tier:             c.policy.Classify(pct),
			})
		}
	}

	c.logger.Info("Computed %d growth records over %d triples (%s tiers, %d type/semester gaps skipped)",
		len(out), len(triples), c.policy.Name, skipped)
	return out
}

// Expand attributes every growth record to the six months of its semester in
// the second year of its pair. The result is sorted by (type, year, month).
func (c *IncrementCalculator) Expand(records []models.GrowthRecord) []models.ExpandedGrowth {
	out := make([]models.ExpandedGrowth, 0, 6*len(records))
	for _, r := range records {
		for _, m := range r.Semester.Months() {
			out = append(out, models.ExpandedGrowth{
				ProfessionalType: r.ProfessionalType,
				Year:             r.Pair.Second,
				Month:            m,
				Percentage:       r.Percentage,
				Tier:             r.Tier,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ProfessionalType != out[j].ProfessionalType {
			return out[i].ProfessionalType < out[j].ProfessionalType
		}
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out
}

// GrowthTable converts growth records to a table for the artifact store.
func GrowthTable(records []models.GrowthRecord, cols GrowthColumns) *models.Table {
	n := len(records)
	types, pairs, semesters, tiers := make([]string, n), make([]string, n), make([]string, n), make([]string, n)
	bases, counts, pcts := make([]float64, n), make([]float64, n), make([]float64, n)
	for i, r := range records {
		types[i], pairs[i], semesters[i], tiers[i] = r.ProfessionalType, r.Pair.String(), string(r.Semester), string(r.Tier)
		bases[i], counts[i], pcts[i] = float64(r.BaseCount), float64(r.Count), r.Percentage
	}
	t := models.NewTable()
	_ = t.SetStrings(cols.Type, types)
	_ = t.SetStrings("year_pair", pairs)
	_ = t.SetStrings("semester", semesters)
	_ = t.SetNumbers("base_count", bases)
	_ = t.SetNumbers("count", counts)
	_ = t.SetNumbers(cols.Percentage, pcts)
	_ = t.SetStrings(cols.Tier, tiers)
	return t
}

// ExpandedGrowthTable converts expanded growth rows to a table for the artifact store.
func ExpandedGrowthTable(rows []models.ExpandedGrowth, cols GrowthColumns) *models.Table {
	n := len(rows)
	types, tiers := make([]string, n), make([]string, n)
	years, months, pcts := make([]float64, n), make([]float64, n), make([]float64, n)
	for i, r := range rows {
		types[i], tiers[i] = r.ProfessionalType, string(r.Tier)
		years[i], months[i], pcts[i] = float64(r.Year), float64(r.Month), r.Percentage
	}
	t := models.NewTable()
	_ = t.SetStrings(cols.Type, types)
	_ = t.SetNumbers(cols.Year, years)
	_ = t.SetNumbers(cols.Month, months)
	_ = t.SetNumbers(cols.Percentage, pcts)
	_ = t.SetStrings(cols.Tier, tiers)
	return t
}

// ExpandedGrowthFromTable reads expanded growth rows back from an artifact table.
func ExpandedGrowthFromTable(t *models.Table, cols GrowthColumns) ([]models.ExpandedGrowth, error) {
	keys, err := ExtractKeys(t, cols.KeyColumns, apperrors.StageArtifacts)
	if err != nil {
		return nil, err
	}
	tiers, err := t.Strings(cols.Tier)
	if err != nil {
		return nil, apperrors.NewSchemaError(apperrors.StageArtifacts, "growth artifact has a tier column", "bad growth artifact", err)
	}
	pcts, err := t.Numbers(cols.Percentage)
	if err != nil {
		return nil, apperrors.NewSchemaError(apperrors.StageArtifacts, "growth artifact has a percentage column", "bad growth artifact", err)
	}
	out := make([]models.ExpandedGrowth, t.Len())
	for i := range out {
		out[i] = models.ExpandedGrowth{
			ProfessionalType: keys.Types[i],
			Year:             keys.Years[i],
			Month:            keys.Months[i],
			Percentage:       pcts[i],
			Tier:             models.Tier(tiers[i]),
		}
	}
	return out, nil
}

// describeTriples renders triples for logs, e.g. "2019-2020/H1, 2019-2020/H2".
func describeTriples(triples []models.GrowthTriple) string {
	s := ""
	for i, tr := range triples {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s/%s", tr.Pair, tr.Semester)
	}
	return s
}
