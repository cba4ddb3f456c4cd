package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Schema declares the role of every column the pipeline touches. Column roles
// are never inferred from the values.
type Schema struct {
	TypeColumn       string `yaml:"type_column"`
	YearColumn       string `yaml:"year_column"`
	MonthColumn      string `yaml:"month_column"`
	TierColumn       string `yaml:"tier_column"`
	PercentageColumn string `yaml:"percentage_column"`
	ClusterColumn    string `yaml:"cluster_column"`

	Categorical []string `yaml:"categorical"`
	Numerical   []string `yaml:"numerical"`
	Drop        []string `yaml:"drop"`

	// Raw columns the cleaner derives features from when present.
	ServiceDateColumn string `yaml:"service_date_column"`
	BirthDateColumn   string `yaml:"birth_date_column"`
	StartTimeColumn   string `yaml:"start_time_column"`
	EndTimeColumn     string `yaml:"end_time_column"`
	AgeColumn         string `yaml:"age_column"`
	DurationColumn    string `yaml:"duration_column"`
	CancelledColumn   string `yaml:"cancelled_column"`
}

// DefaultSchema mirrors the feature lists of the teleassistance dataset.
func DefaultSchema() Schema {
	return Schema{
		TypeColumn:       "professional_type",
		YearColumn:       "year",
		MonthColumn:      "month",
		TierColumn:       "growth_tier",
		PercentageColumn: "growth_percentage",
		ClusterColumn:    "cluster_id",

		Categorical: []string{
			"sex", "residence_region", "service_region",
			"professional_type", "growth_tier", "facility_type",
		},
		Numerical: []string{"patient_age", "month", "year", "visit_duration"},
		Drop: []string{
			"booking_id", "patient_id", "residence_asl", "residence_municipality",
			"activity_description", "service_asl", "facility_code", "residence_province",
			"service_province", "facility", "professional_id",
		},

		ServiceDateColumn: "service_date",
		BirthDateColumn:   "birth_date",
		StartTimeColumn:   "service_start",
		EndTimeColumn:     "service_end",
		AgeColumn:         "patient_age",
		DurationColumn:    "visit_duration",
		CancelledColumn:   "cancellation_date",
	}
}

// LoadSchema reads a YAML schema file on top of DefaultSchema. An empty path
// returns the defaults; keys absent from the file keep their default value.
func LoadSchema(path string) (Schema, error) {
	schema := DefaultSchema()
	if path == "" {
		return schema, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return schema, fmt.Errorf("read schema %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return schema, fmt.Errorf("parse schema %s: %w", path, err)
	}
	return schema, nil
}

// Validate checks the column roles are consistent.
func (s Schema) Validate() error {
	for name, v := range map[string]string{
		"type_column":    s.TypeColumn,
		"year_column":    s.YearColumn,
		"month_column":   s.MonthColumn,
		"tier_column":    s.TierColumn,
		"cluster_column": s.ClusterColumn,
	} {
		if v == "" {
			return fmt.Errorf("schema: %s must be set", name)
		}
	}
	if len(s.Categorical)+len(s.Numerical) == 0 {
		return fmt.Errorf("schema: no features declared")
	}
	seen := make(map[string]string)
	for _, c := range s.Categorical {
		if prev, ok := seen[c]; ok {
			return fmt.Errorf("schema: feature %q declared twice (%s)", c, prev)
		}
		seen[c] = "categorical"
	}
	for _, c := range s.Numerical {
		if prev, ok := seen[c]; ok {
			return fmt.Errorf("schema: feature %q declared as numerical and %s", c, prev)
		}
		seen[c] = "numerical"
	}
	if role, ok := seen[s.ClusterColumn]; ok {
		return fmt.Errorf("schema: cluster column %q cannot be a %s feature", s.ClusterColumn, role)
	}
	return nil
}

// Features returns categorical then numerical feature names, the column order
// of the encoded matrix.
func (s Schema) Features() []string {
	out := make([]string, 0, len(s.Categorical)+len(s.Numerical))
	out = append(out, s.Categorical...)
	return append(out, s.Numerical...)
}

// IsNumerical reports whether column is declared numerical, or is one of the
// integral key columns.
func (s Schema) IsNumerical(column string) bool {
	if column == s.YearColumn || column == s.MonthColumn {
		return true
	}
	for _, c := range s.Numerical {
		if c == column {
			return true
		}
	}
	return false
}
