package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "teleassist-clustering/errors"
	"teleassist-clustering/models"
)

var testKeyColumns = KeyColumns{Type: "professional_type", Year: "year", Month: "month"}

func keyTable(t *testing.T, types []string, years, months []float64) *models.Table {
	t.Helper()
	tbl := models.NewTable()
	require.NoError(t, tbl.SetStrings("professional_type", types))
	require.NoError(t, tbl.SetNumbers("year", years))
	require.NoError(t, tbl.SetNumbers("month", months))
	return tbl
}

func TestMonthlyCountsPartitionRecords(t *testing.T) {
	tbl := keyTable(t,
		[]string{"nurse", "nurse", "doctor", "nurse", "doctor"},
		[]float64{2020, 2020, 2020, 2021, 2020},
		[]float64{1, 1, 7, 1, 7},
	)
	agg := NewAggregator(testKeyColumns, newTestLogger())

	monthly, err := agg.MonthlyCounts(tbl)
	require.NoError(t, err)
	assert.Equal(t, []models.MonthlyCount{
		{ProfessionalType: "doctor", Year: 2020, Month: 7, Count: 2},
		{ProfessionalType: "nurse", Year: 2020, Month: 1, Count: 2},
		{ProfessionalType: "nurse", Year: 2021, Month: 1, Count: 1},
	}, monthly)

	total := 0
	for _, m := range monthly {
		total += m.Count
	}
	assert.Equal(t, tbl.Len(), total, "monthly counts sum to the record count")
}

func TestSemesterBucketsSumMonths(t *testing.T) {
	agg := NewAggregator(testKeyColumns, newTestLogger())
	monthly := []models.MonthlyCount{
		{ProfessionalType: "nurse", Year: 2020, Month: 1, Count: 3},
		{ProfessionalType: "nurse", Year: 2020, Month: 6, Count: 2},
		{ProfessionalType: "nurse", Year: 2020, Month: 7, Count: 4},
		{ProfessionalType: "nurse", Year: 2020, Month: 12, Count: 1},
	}

	buckets, err := agg.SemesterBuckets(monthly)
	require.NoError(t, err)
	assert.Equal(t, []models.SemesterBucket{
		{ProfessionalType: "nurse", Year: 2020, Semester: models.H1, Count: 5},
		{ProfessionalType: "nurse", Year: 2020, Semester: models.H2, Count: 5},
	}, buckets)
}

func TestSemesterOfIsTotalOnValidMonths(t *testing.T) {
	for m := 1; m <= 12; m++ {
		s, err := SemesterOf(m)
		require.NoError(t, err)
		if m <= 6 {
			assert.Equal(t, models.H1, s)
		} else {
			assert.Equal(t, models.H2, s)
		}
	}
	_, err := SemesterOf(0)
	assert.Error(t, err)
	_, err = SemesterOf(13)
	assert.Error(t, err)
}

func TestExtractKeysRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		tbl  func(t *testing.T) *models.Table
		want string
	}{
		{"month out of range", func(t *testing.T) *models.Table {
			return keyTable(t, []string{"nurse"}, []float64{2020}, []float64{13})
		}, "month 13"},
		{"fractional year", func(t *testing.T) *models.Table {
			return keyTable(t, []string{"nurse"}, []float64{2020.5}, []float64{1})
		}, "not an integer"},
		{"missing month", func(t *testing.T) *models.Table {
			return keyTable(t, []string{"nurse"}, []float64{2020}, []float64{1}).Drop("month")
		}, "missing required columns: month"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractKeys(tt.tbl(t), testKeyColumns, apperrors.StageAggregate)
			require.Error(t, err)
			assert.True(t, apperrors.IsCategory(err, apperrors.CategorySchema))
			assert.Equal(t, apperrors.StageAggregate, apperrors.StageOf(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAggregatorTables(t *testing.T) {
	monthly := []models.MonthlyCount{{ProfessionalType: "nurse", Year: 2020, Month: 2, Count: 3}}
	tbl := MonthlyCountsTable(monthly, testKeyColumns)
	assert.Equal(t, []string{"professional_type", "year", "month", "count"}, tbl.Names())
	assert.Equal(t, 1, tbl.Len())

	buckets := []models.SemesterBucket{{ProfessionalType: "nurse", Year: 2020, Semester: models.H2, Count: 3}}
	st := SemesterBucketsTable(buckets, testKeyColumns)
	semesters, err := st.Strings("semester")
	require.NoError(t, err)
	assert.Equal(t, []string{"H2"}, semesters)
}
