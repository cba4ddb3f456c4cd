package models

import "fmt"

// Semester is a fixed half-year bucket.
type Semester string

const (
	H1 Semester = "H1" // months 1-6
	H2 Semester = "H2" // months 7-12
)

// Months returns the six months of the semester in ascending order.
func (s Semester) Months() []int {
	if s == H2 {
		return []int{7, 8, 9, 10, 11, 12}
	}
	return []int{1, 2, 3, 4, 5, 6}
}

// ParseSemester converts "H1"/"H2" back to a Semester.
func ParseSemester(s string) (Semester, error) {
	switch Semester(s) {
	case H1, H2:
		return Semester(s), nil
	}
	return "", fmt.Errorf("unknown semester %q", s)
}

// Tier is the growth label attached to a record.
type Tier string

const (
	TierAlta     Tier = "alta"
	TierMedia    Tier = "media"
	TierBassa    Tier = "bassa"
	TierCostante Tier = "costante"
)

// MonthlyCount is the number of records for one (type, year, month).
type MonthlyCount struct {
	ProfessionalType string
	Year             int
	Month            int
	Count            int
}

// SemesterBucket is the sum of the six MonthlyCounts of a half-year.
type SemesterBucket struct {
	ProfessionalType string
	Year             int
	Semester         Semester
	Count            int
}

// YearPair is a comparison window; growth is attributed to Second.
type YearPair struct {
	First  int
	Second int
}

func (p YearPair) String() string {
	return fmt.Sprintf("%d-%d", p.First, p.Second)
}

// GrowthTriple is one configured (year1, year2, semester) comparison.
type GrowthTriple struct {
	Pair     YearPair
	Semester Semester
}

// GrowthRecord holds the percentage change between the same semester of two
// years for one professional type. Percentage is +Inf when the first year's
// count is zero.
type GrowthRecord struct {
	ProfessionalType string
	Pair             YearPair
	Semester         Semester
	BaseCount        int
	Count            int
	Percentage       float64
	Tier             Tier
}

// ExpandedGrowth carries a GrowthRecord's tier onto one month of its second year.
type ExpandedGrowth struct {
	ProfessionalType string
	Year             int
	Month            int
	Percentage       float64
	Tier             Tier
}

// GrowthKey is the join key between records and ExpandedGrowth rows.
type GrowthKey struct {
	ProfessionalType string
	Year             int
	Month            int
}

// Key returns the join key of the row.
func (e ExpandedGrowth) Key() GrowthKey {
	return GrowthKey{ProfessionalType: e.ProfessionalType, Year: e.Year, Month: e.Month}
}
