package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teleassist-clustering/models"
)

func validConfig() *Config {
	return &Config{
		NClusters:       4,
		NComponents:     10,
		KMeansMaxIter:   300,
		KMeansNInit:     10,
		GrowthYearPairs: 3,
		TierScheme:      SchemeCanonical,
		TierLowMax:      35,
		TierMediumMax:   80,
		Schema:          DefaultSchema(),
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("N_CLUSTERS", "")
	t.Setenv("TIER_SCHEME", "")
	t.Setenv("SCHEMA_PATH", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.NClusters)
	assert.Equal(t, 10, cfg.NComponents)
	assert.Equal(t, int64(42), cfg.RandomSeed)
	assert.Equal(t, 10, cfg.ElbowMaxK)
	assert.Equal(t, SchemeCanonical, cfg.TierScheme)
	assert.Equal(t, "growth_tier", cfg.Schema.TierColumn)
	assert.False(t, cfg.PostgresEnabled)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("N_CLUSTERS", "6")
	t.Setenv("RANDOM_SEED", "7")
	t.Setenv("TIER_SCHEME", SchemeSwapped)
	t.Setenv("TIER_LOW_MAX", "20.5")
	t.Setenv("RENDER_DIAGRAMS", "false")
	t.Setenv("SCHEMA_PATH", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.NClusters)
	assert.Equal(t, int64(7), cfg.RandomSeed)
	assert.Equal(t, 20.5, cfg.TierLowMax)
	assert.False(t, cfg.RenderDiagrams)

	policy, err := cfg.TierPolicy()
	require.NoError(t, err)
	assert.Equal(t, "swapped", policy.Name)
	assert.Equal(t, models.TierCostante, policy.Classify(10))
}

func TestValidateRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero clusters", func(c *Config) { c.NClusters = 0 }, "N_CLUSTERS"},
		{"zero components", func(c *Config) { c.NComponents = 0 }, "N_COMPONENTS"},
		{"unknown scheme", func(c *Config) { c.TierScheme = "quartiles" }, "unknown TIER_SCHEME"},
		{"unordered thresholds", func(c *Config) { c.TierLowMax, c.TierMediumMax = 90, 10 }, "not above"},
		{"negative sample", func(c *Config) { c.CohesionSample = -1 }, "COHESION_SAMPLE"},
		{"no features", func(c *Config) { c.Schema.Categorical, c.Schema.Numerical = nil, nil }, "no features"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	assert.NoError(t, validConfig().Validate())
}

func TestDSN(t *testing.T) {
	cfg := &Config{
		PostgresHost: "db", PostgresPort: "5433", PostgresUser: "u",
		PostgresPassword: "p", PostgresDB: "tele", PostgresSSLMode: "disable",
	}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=tele sslmode=disable", cfg.DSN())
}

func TestLoadSchemaOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
categorical: [sex, professional_type, growth_tier]
numerical: [patient_age, year, month]
cluster_column: cluster
`), 0o644))

	s, err := LoadSchema(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"sex", "professional_type", "growth_tier"}, s.Categorical)
	assert.Equal(t, "cluster", s.ClusterColumn)
	assert.Equal(t, "professional_type", s.TypeColumn, "absent keys keep their default")
	assert.Equal(t, []string{"sex", "professional_type", "growth_tier", "patient_age", "year", "month"}, s.Features())
	require.NoError(t, s.Validate())
}

func TestLoadSchemaErrors(t *testing.T) {
	_, err := LoadSchema(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("categorical: [unterminated"), 0o644))
	_, err = LoadSchema(path)
	assert.Error(t, err)
}

func TestSchemaValidate(t *testing.T) {
	s := DefaultSchema()
	require.NoError(t, s.Validate())

	dup := DefaultSchema()
	dup.Numerical = append(dup.Numerical, "sex")
	assert.Error(t, dup.Validate())

	clusterFeature := DefaultSchema()
	clusterFeature.Categorical = append(clusterFeature.Categorical, clusterFeature.ClusterColumn)
	assert.Error(t, clusterFeature.Validate())

	noTier := DefaultSchema()
	noTier.TierColumn = ""
	assert.Error(t, noTier.Validate())
}

func TestSchemaIsNumerical(t *testing.T) {
	s := DefaultSchema()
	s.Numerical = []string{"patient_age"}
	assert.True(t, s.IsNumerical("patient_age"))
	assert.True(t, s.IsNumerical("year"), "key columns are always numeric")
	assert.True(t, s.IsNumerical("month"))
	assert.False(t, s.IsNumerical("sex"))
}
