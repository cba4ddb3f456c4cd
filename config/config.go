package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all pipeline configuration loaded from environment variables.
// It is passed explicitly to every stage.
type Config struct {
	InputPath   string
	ArtifactDir string
	OutputDir   string
	RunID       string
	SchemaPath  string
	LogLevel    string

	NClusters     int
	NComponents   int
	KMeansMaxIter int
	KMeansNInit   int
	RandomSeed    int64

	ElbowMaxK        int
	ElbowConcurrency int

	GrowthBaseYear  int // 0 means the earliest observed year
	GrowthYearPairs int
	TierScheme      string
	TierLowMax      float64
	TierMediumMax   float64

	CohesionSample int // 0 means every record
	RenderDiagrams bool

	PostgresEnabled    bool
	PostgresHost       string
	PostgresPort       string
	PostgresUser       string
	PostgresPassword   string
	PostgresDB         string
	PostgresSSLMode    string
	PostgresMaxRetries int

	Schema Schema
}

// Load reads the .env file, the environment and the feature schema file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg := &Config{
		InputPath:   getEnv("INPUT_PATH", "./datasets/teleassistance.csv"),
		ArtifactDir: getEnv("ARTIFACT_DIR", "./datasets/artifacts"),
		OutputDir:   getEnv("OUTPUT_DIR", "./output"),
		RunID:       getEnv("RUN_ID", ""),
		SchemaPath:  getEnv("SCHEMA_PATH", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		NClusters:     getEnvInt("N_CLUSTERS", 4),
		NComponents:   getEnvInt("N_COMPONENTS", 10),
		KMeansMaxIter: getEnvInt("KMEANS_MAX_ITER", 300),
		KMeansNInit:   getEnvInt("KMEANS_N_INIT", 10),
		RandomSeed:    int64(getEnvInt("RANDOM_SEED", 42)),

		ElbowMaxK:        getEnvInt("ELBOW_MAX_K", 10),
		ElbowConcurrency: getEnvInt("ELBOW_CONCURRENCY", 2),

		GrowthBaseYear:  getEnvInt("GROWTH_BASE_YEAR", 0),
		GrowthYearPairs: getEnvInt("GROWTH_YEAR_PAIRS", 3),
		TierScheme:      getEnv("TIER_SCHEME", SchemeCanonical),
		TierLowMax:      getEnvFloat("TIER_LOW_MAX", 35),
		TierMediumMax:   getEnvFloat("TIER_MEDIUM_MAX", 80),

		CohesionSample: getEnvInt("COHESION_SAMPLE", 0),
		RenderDiagrams: getEnvBool("RENDER_DIAGRAMS", true),

		PostgresEnabled:    getEnvBool("POSTGRES_ENABLED", false),
		PostgresHost:       getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:       getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:       getEnv("POSTGRES_USER", "teleassist"),
		PostgresPassword:   getEnv("POSTGRES_PASSWORD", "teleassist"),
		PostgresDB:         getEnv("POSTGRES_DB", "teleassist"),
		PostgresSSLMode:    getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresMaxRetries: getEnvInt("POSTGRES_MAX_RETRIES", 5),
	}

	schema, err := LoadSchema(cfg.SchemaPath)
	if err != nil {
		return nil, err
	}
	cfg.Schema = schema

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var problems []string
	if c.NClusters < 1 {
		problems = append(problems, "N_CLUSTERS must be at least 1")
	}
	if c.NComponents < 1 {
		problems = append(problems, "N_COMPONENTS must be at least 1")
	}
	if c.KMeansMaxIter < 1 {
		problems = append(problems, "KMEANS_MAX_ITER must be at least 1")
	}
	if c.KMeansNInit < 1 {
		problems = append(problems, "KMEANS_N_INIT must be at least 1")
	}
	if c.GrowthYearPairs < 1 {
		problems = append(problems, "GROWTH_YEAR_PAIRS must be at least 1")
	}
	if c.CohesionSample < 0 {
		problems = append(problems, "COHESION_SAMPLE must not be negative")
	}
	if _, err := c.TierPolicy(); err != nil {
		problems = append(problems, err.Error())
	}
	if err := c.Schema.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
