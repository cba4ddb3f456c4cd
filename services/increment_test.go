package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teleassist-clustering/models"
)

var testGrowthColumns = GrowthColumns{
	KeyColumns: testKeyColumns,
	Tier:       "growth_tier",
	Percentage: "growth_percentage",
}

func newTestCalculator() *IncrementCalculator {
	return NewIncrementCalculator(models.CanonicalTierPolicy(35, 80), newTestLogger())
}

// h1Bucket sums six equal monthly counts into the H1 bucket of a year.
func h1Bucket(profType string, year, perMonth int) models.SemesterBucket {
	return models.SemesterBucket{ProfessionalType: profType, Year: year, Semester: models.H1, Count: 6 * perMonth}
}

func TestGrowthTriples(t *testing.T) {
	triples := GrowthTriples(2019, 3)
	require.Len(t, triples, 6)
	assert.Equal(t, models.GrowthTriple{Pair: models.YearPair{First: 2019, Second: 2020}, Semester: models.H1}, triples[0])
	assert.Equal(t, models.GrowthTriple{Pair: models.YearPair{First: 2019, Second: 2020}, Semester: models.H2}, triples[1])
	assert.Equal(t, models.GrowthTriple{Pair: models.YearPair{First: 2021, Second: 2022}, Semester: models.H2}, triples[5])
	assert.Equal(t, "2019-2020/H1, 2019-2020/H2", describeTriples(triples[:2]))
}

func TestGrowthPercentage(t *testing.T) {
	assert.Equal(t, 100.0, GrowthPercentage(60, 120))
	assert.Equal(t, -50.0, GrowthPercentage(10, 5))
	assert.Equal(t, 0.0, GrowthPercentage(7, 7))
	assert.True(t, math.IsInf(GrowthPercentage(0, 5), 1))
	assert.True(t, math.IsInf(GrowthPercentage(0, 0), 1), "a zero base is never treated as no growth")
}

func TestComputeScenarios(t *testing.T) {
	buckets := []models.SemesterBucket{
		// A doubles: 10/month in H1 2020, 20/month in H1 2021
		h1Bucket("A", 2020, 10), h1Bucket("A", 2021, 20),
		// B has no 2020 visits at all
		h1Bucket("B", 2021, 5),
		// C shrinks
		h1Bucket("C", 2020, 10), h1Bucket("C", 2021, 9),
	}
	triples := []models.GrowthTriple{{Pair: models.YearPair{First: 2020, Second: 2021}, Semester: models.H1}}

	records := newTestCalculator().Compute(buckets, triples)
	require.Len(t, records, 3)

	byType := make(map[string]models.GrowthRecord)
	for _, r := range records {
		byType[r.ProfessionalType] = r
	}

	assert.Equal(t, 100.0, byType["A"].Percentage)
	assert.Equal(t, models.TierAlta, byType["A"].Tier)

	assert.True(t, math.IsInf(byType["B"].Percentage, 1))
	assert.Equal(t, models.TierAlta, byType["B"].Tier)
	assert.Equal(t, 0, byType["B"].BaseCount)
	assert.Equal(t, 30, byType["B"].Count)

	assert.InDelta(t, -10.0, byType["C"].Percentage, 1e-9)
	assert.Equal(t, models.TierCostante, byType["C"].Tier)
}

func TestComputeSkipsTypesWithoutSemester(t *testing.T) {
	buckets := []models.SemesterBucket{
		h1Bucket("A", 2020, 1),
		{ProfessionalType: "A", Year: 2020, Semester: models.H2, Count: 3},
		{ProfessionalType: "Z", Year: 2020, Semester: models.H2, Count: 3},
	}
	records := newTestCalculator().Compute(buckets, GrowthTriples(2020, 1))

	// Z has no H1 row in any year, so only A gets an H1 record
	var got []string
	for _, r := range records {
		got = append(got, r.ProfessionalType+"/"+string(r.Semester))
	}
	assert.Equal(t, []string{"A/H1", "A/H2", "Z/H2"}, got)
}

func TestComputeIsDeterministic(t *testing.T) {
	buckets := []models.SemesterBucket{
		h1Bucket("b", 2020, 3), h1Bucket("a", 2020, 2), h1Bucket("a", 2021, 3), h1Bucket("b", 2021, 1),
	}
	calc := newTestCalculator()
	first := calc.Compute(buckets, GrowthTriples(2020, 1))
	second := calc.Compute(buckets, GrowthTriples(2020, 1))
	assert.Equal(t, first, second)
}

func TestExpandCoversSemesterMonths(t *testing.T) {
	records := []models.GrowthRecord{
		{ProfessionalType: "A", Pair: models.YearPair{First: 2020, Second: 2021}, Semester: models.H2, Percentage: 50, Tier: models.TierMedia},
		{ProfessionalType: "A", Pair: models.YearPair{First: 2020, Second: 2021}, Semester: models.H1, Percentage: 10, Tier: models.TierBassa},
	}
	expanded := newTestCalculator().Expand(records)
	require.Len(t, expanded, 12)

	for i, e := range expanded {
		assert.Equal(t, 2021, e.Year, "growth is attributed to the second year")
		assert.Equal(t, i+1, e.Month)
		if e.Month <= 6 {
			assert.Equal(t, models.TierBassa, e.Tier)
		} else {
			assert.Equal(t, models.TierMedia, e.Tier)
			assert.Equal(t, 50.0, e.Percentage)
		}
	}
}

func TestExpandedGrowthTableRoundTrip(t *testing.T) {
	rows := []models.ExpandedGrowth{
		{ProfessionalType: "A", Year: 2021, Month: 1, Percentage: math.Inf(1), Tier: models.TierAlta},
		{ProfessionalType: "A", Year: 2021, Month: 2, Percentage: 12, Tier: models.TierBassa},
	}
	back, err := ExpandedGrowthFromTable(ExpandedGrowthTable(rows, testGrowthColumns), testGrowthColumns)
	require.NoError(t, err)
	assert.Equal(t, rows, back)

	growth := GrowthTable([]models.GrowthRecord{{ProfessionalType: "A", Pair: models.YearPair{First: 2020, Second: 2021},
		Semester: models.H1, BaseCount: 0, Count: 3, Percentage: math.Inf(1), Tier: models.TierAlta}}, testGrowthColumns)
	pairs, err := growth.Strings("year_pair")
	require.NoError(t, err)
	assert.Equal(t, []string{"2020-2021"}, pairs)
}
