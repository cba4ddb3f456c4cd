package main

import (
	"fmt"
	"os"
	"path/filepath"

	"teleassist-clustering/config"
	apperrors "teleassist-clustering/errors"
	"teleassist-clustering/services"
	"teleassist-clustering/storage"
	"teleassist-clustering/utils"
)

func main() {
	logger := utils.NewLogger()
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Configuration rejected: %v", err)
		os.Exit(2)
	}
	logger.SetLevel(utils.ParseLevel(cfg.LogLevel))

	logger.Info("=== Teleassistance growth clustering starting ===")
	logger.Info("Config: clusters %d | components %d | seed %d | tiers %s (%.0f/%.0f) | year pairs %d",
		cfg.NClusters, cfg.NComponents, cfg.RandomSeed, cfg.TierScheme, cfg.TierLowMax, cfg.TierMediumMax, cfg.GrowthYearPairs)

	store, err := storage.NewCSVArtifactStore(cfg.ArtifactDir, cfg.RunID)
	if err != nil {
		logger.Error("Failed to open artifact store: %v", err)
		os.Exit(1)
	}
	logger.Info("Run %s, artifacts in %s", store.RunID(), store.Dir())

	raw, err := storage.ReadCSV(cfg.InputPath, cfg.Schema.IsNumerical)
	if err != nil {
		logger.Error("%v", apperrors.NewIOError(apperrors.StageLoad, "read "+cfg.InputPath, err))
		os.Exit(1)
	}
	logger.Info("Loaded %d records with %d columns from %s", raw.Len(), len(raw.Names()), cfg.InputPath)

	res, err := services.NewPipeline(cfg, store, logger).Run(raw)
	if err != nil {
		logger.Error("Pipeline failed in stage %q: %v", apperrors.StageOf(err), err)
		os.Exit(1)
	}

	if err := writeOutputs(cfg, res, logger); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}

	if cfg.PostgresEnabled {
		exportToPostgres(cfg, store.RunID(), res, logger)
	}

	if cfg.RenderDiagrams {
		renderer := services.NewDiagramRenderer(filepath.Join(cfg.OutputDir, "graphs"), logger)
		if _, err := renderer.RenderAll(res.Report); err != nil {
			logger.Warn("Diagram rendering failed: %v", err)
		}
	}

	services.NewReportService(logger).Print(res.Report)
	fmt.Printf("  Done. Clustered records → %s | Artifacts → %s\n\n",
		filepath.Join(cfg.OutputDir, "clustered_records.csv"), store.Dir())
}

func writeOutputs(cfg *config.Config, res *services.PipelineResult, logger *utils.Logger) error {
	recordsPath := filepath.Join(cfg.OutputDir, "clustered_records.csv")
	if err := storage.WriteCSV(recordsPath, res.Records); err != nil {
		return apperrors.NewIOError(apperrors.StageOutput, "write clustered records", err)
	}
	for name, v := range map[string]any{
		"metrics.json":         res.Report,
		"reverse_mapping.json": res.Features.ReverseMapping(),
		"elbow.json":           res.Elbow,
	} {
		if err := storage.WriteJSON(filepath.Join(cfg.OutputDir, name), v); err != nil {
			return apperrors.NewIOError(apperrors.StageOutput, "write "+name, err)
		}
	}
	logger.Info("Wrote %d clustered records and run summaries to %s", res.Records.Len(), cfg.OutputDir)
	return nil
}

// exportToPostgres is best effort: the files on disk are the run's output of record.
func exportToPostgres(cfg *config.Config, runID string, res *services.PipelineResult, logger *utils.Logger) {
	s := cfg.Schema
	pw, err := storage.NewPostgresWriter(cfg.DSN(), storage.RecordColumns{
		Type:    s.TypeColumn,
		Year:    s.YearColumn,
		Month:   s.MonthColumn,
		Tier:    s.TierColumn,
		Cluster: s.ClusterColumn,
	}, cfg.PostgresMaxRetries, logger.With("postgres"))
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL: %v", err)
		logger.Error("Make sure Docker is running: docker compose up -d")
		return
	}
	var writer storage.ResultWriter = pw
	defer writer.Close()

	if err := writer.WriteResults(runID, res.Records, res.Metrics); err != nil {
		logger.Error("PostgreSQL export failed: %v", err)
		return
	}
	logger.Info("Clustered records stored in PostgreSQL (table: clustered_records)")
}
