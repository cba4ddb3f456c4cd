package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "teleassist-clustering/errors"
	"teleassist-clustering/models"
)

func TestMergeJoinsThenDropsBaseline(t *testing.T) {
	records := keyTable(t,
		[]string{"nurse", "nurse", "nurse", "doctor"},
		[]float64{2019, 2020, 2020, 2020},
		[]float64{3, 3, 9, 3},
	)
	growth := []models.ExpandedGrowth{
		{ProfessionalType: "nurse", Year: 2020, Month: 3, Percentage: 20, Tier: models.TierBassa},
		{ProfessionalType: "nurse", Year: 2020, Month: 9, Percentage: math.Inf(1), Tier: models.TierAlta},
	}

	out, stats, err := NewMerger(testGrowthColumns, newTestLogger()).Merge(records, growth, 2019)
	require.NoError(t, err)

	assert.Equal(t, MergeStats{Input: 4, Matched: 2, BaselineYear: 2019, Dropped: 1, Unmatched: 1}, stats)
	require.Equal(t, 3, out.Len())

	tiers, err := out.Strings("growth_tier")
	require.NoError(t, err)
	assert.Equal(t, []string{"bassa", "alta", ""}, tiers, "row order is preserved, unmatched rows keep a null tier")

	pcts, err := out.Numbers("growth_percentage")
	require.NoError(t, err)
	assert.Equal(t, 20.0, pcts[0])
	assert.True(t, math.IsInf(pcts[1], 1))
	assert.True(t, math.IsNaN(pcts[2]))

	years, err := out.Ints("year")
	require.NoError(t, err)
	assert.NotContains(t, years, 2019)
}

func TestMergeLeavesInputUntouched(t *testing.T) {
	records := keyTable(t, []string{"nurse"}, []float64{2020}, []float64{1})
	growth := []models.ExpandedGrowth{{ProfessionalType: "nurse", Year: 2020, Month: 1, Tier: models.TierMedia}}

	_, _, err := NewMerger(testGrowthColumns, newTestLogger()).Merge(records, growth, 2019)
	require.NoError(t, err)
	assert.False(t, records.Has("growth_tier"))
}

func TestMergeRejectsDuplicateGrowthKeys(t *testing.T) {
	records := keyTable(t, []string{"nurse"}, []float64{2020}, []float64{1})
	growth := []models.ExpandedGrowth{
		{ProfessionalType: "nurse", Year: 2020, Month: 1, Tier: models.TierMedia},
		{ProfessionalType: "nurse", Year: 2020, Month: 1, Tier: models.TierAlta},
	}

	_, _, err := NewMerger(testGrowthColumns, newTestLogger()).Merge(records, growth, 2019)
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryInvariant))
	assert.Equal(t, apperrors.StageMerge, apperrors.StageOf(err))
	assert.Contains(t, err.Error(), "duplicate growth row for nurse 2020-01")
}

func TestMergeMissingKeyColumn(t *testing.T) {
	records := keyTable(t, []string{"nurse"}, []float64{2020}, []float64{1}).Drop("professional_type")
	_, _, err := NewMerger(testGrowthColumns, newTestLogger()).Merge(records, nil, 2019)
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategorySchema))
}
