package services

import (
	"fmt"
	"sort"
	"strings"

	apperrors "teleassist-clustering/errors"
	"teleassist-clustering/models"
	"teleassist-clustering/utils"
)

// KeyColumns names the (professional type, year, month) columns of a record table.
type KeyColumns struct {
	Type  string
	Year  string
	Month string
}

// Keys holds the three key columns of a record table, validated.
type Keys struct {
	Types  []string
	Years  []int
	Months []int
}

// ExtractKeys reads and validates the key columns. A missing column, a
// non-integral year/month or a month outside 1..12 is a schema error.
func ExtractKeys(t *models.Table, cols KeyColumns, stage string) (Keys, error) {
	if missing := t.Missing(cols.Type, cols.Year, cols.Month); len(missing) > 0 {
		return Keys{}, apperrors.NewSchemaError(stage, "required columns present",
			"missing required columns: "+strings.Join(missing, ", "), nil)
	}
	types, err := t.Strings(cols.Type)
	if err != nil {
		return Keys{}, apperrors.NewSchemaError(stage, "professional type is a label column", "bad key column", err)
	}
	years, err := t.Ints(cols.Year)
	if err != nil {
		return Keys{}, apperrors.NewSchemaError(stage, "year is integral", "bad key column", err)
	}
	months, err := t.Ints(cols.Month)
	if err != nil {
		return Keys{}, apperrors.NewSchemaError(stage, "month is integral", "bad key column", err)
	}
	for i, m := range months {
		if _, err := SemesterOf(m); err != nil {
			return Keys{}, apperrors.NewSchemaError(stage, "month in 1..12",
				fmt.Sprintf("row %d has month %d", i, m), nil)
		}
	}
	return Keys{Types: types, Years: years, Months: months}, nil
}

// SemesterOf maps months 1-6 to H1 and 7-12 to H2.
func SemesterOf(month int) (models.Semester, error) {
	switch {
	case month >= 1 && month <= 6:
		return models.H1, nil
	case month >= 7 && month <= 12:
		return models.H2, nil
	}
	return "", fmt.Errorf("month %d outside 1..12", month)
}

// Aggregator counts records per (professional type, year, month) and per semester.
type Aggregator struct {
	cols   KeyColumns
	logger *utils.Logger
}

// NewAggregator creates an Aggregator reading the given key columns.
func NewAggregator(cols KeyColumns, logger *utils.Logger) *Aggregator {
	return &Aggregator{cols: cols, logger: logger.With("aggregator")}
}

// MonthlyCounts groups the records by (type, year, month) and counts them.
// The result is sorted by key and its counts sum to t.Len().
func (a *Aggregator) MonthlyCounts(t *models.Table) ([]models.MonthlyCount, error) {
	keys, err := ExtractKeys(t, a.cols, apperrors.StageAggregate)
	if err != nil {
		return nil, err
	}

	counts := make(map[models.GrowthKey]int)
	for i := range keys.Types {
		counts[models.GrowthKey{ProfessionalType: keys.Types[i], Year: keys.Years[i], Month: keys.Months[i]}]++
	}

	out := make([]models.MonthlyCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, models.MonthlyCount{ProfessionalType: k.ProfessionalType, Year: k.Year, Month: k.Month, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProfessionalType != out[j].ProfessionalType {
			return out[i].ProfessionalType < out[j].ProfessionalType
		}
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})

	a.logger.Info("Aggregated %d records into %d (type, year, month) buckets", t.Len(), len(out))
	return out, nil
}

// SemesterBuckets sums monthly counts into half-year buckets, sorted by
// (type, year, semester).
func (a *Aggregator) SemesterBuckets(monthly []models.MonthlyCount) ([]models.SemesterBucket, error) {
	type key struct {
		profType string
		year     int
		semester models.Semester
	}
	sums := make(map[key]int)
	for _, m := range monthly {
		s, err := SemesterOf(m.Month)
		if err != nil {
			return nil, apperrors.NewSchemaError(apperrors.StageAggregate, "month in 1..12", err.Error(), nil)
		}
		sums[key{m.ProfessionalType, m.Year, s}] += m.Count
	}

	out := make([]models.SemesterBucket, 0, len(sums))
	for k, n := range sums {
		out = append(out, models.SemesterBucket{ProfessionalType: k.profType, Year: k.year, Semester: k.semester, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProfessionalType != out[j].ProfessionalType {
			return out[i].ProfessionalType < out[j].ProfessionalType
		}
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Semester < out[j].Semester
	})
	return out, nil
}

// MonthlyCountsTable converts monthly counts to a table for the artifact store.
func MonthlyCountsTable(counts []models.MonthlyCount, cols KeyColumns) *models.Table {
	types := make([]string, len(counts))
	years := make([]float64, len(counts))
	months := make([]float64, len(counts))
	ns := make([]float64, len(counts))
	for i, c := range counts {
		types[i], years[i], months[i], ns[i] = c.ProfessionalType, float64(c.Year), float64(c.Month), float64(c.Count)
	}
	t := models.NewTable()
	_ = t.SetStrings(cols.Type, types)
	_ = t.SetNumbers(cols.Year, years)
	_ = t.SetNumbers(cols.Month, months)
	_ = t.SetNumbers("count", ns)
	return t
}

// SemesterBucketsTable converts semester buckets to a table for the artifact store.
func SemesterBucketsTable(buckets []models.SemesterBucket, cols KeyColumns) *models.Table {
	types := make([]string, len(buckets))
	years := make([]float64, len(buckets))
	semesters := make([]string, len(buckets))
	ns := make([]float64, len(buckets))
	for i, b := range buckets {
		types[i], years[i], semesters[i], ns[i] = b.ProfessionalType, float64(b.Year), string(b.Semester), float64(b.Count)
	}
	t := models.NewTable()
	_ = t.SetStrings(cols.Type, types)
	_ = t.SetNumbers(cols.Year, years)
	_ = t.SetStrings("semester", semesters)
	_ = t.SetNumbers("count", ns)
	return t
}
