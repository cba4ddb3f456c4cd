package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"teleassist-clustering/models"
	"teleassist-clustering/utils"
)

// RecordColumns names the columns the sink stores as typed SQL columns. Every
// other column goes into the attributes JSONB document.
type RecordColumns struct {
	Type    string
	Year    string
	Month   string
	Tier    string
	Cluster string
}

// PostgresWriter exports clustered records and cluster metrics to PostgreSQL.
// The pipeline never reads them back.
type PostgresWriter struct {
	db      *sql.DB
	columns RecordColumns
	logger  *utils.Logger
}

// NewPostgresWriter opens a connection, retrying the ping with back-off, and
// runs the schema migration.
func NewPostgresWriter(dsn string, columns RecordColumns, maxRetries int, logger *utils.Logger) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	retry := &utils.RetryConfig{MaxAttempts: maxRetries, BaseDelay: time.Second, Logger: logger}
	if err := retry.Do("postgres ping", db.Ping); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	pw := &PostgresWriter{db: db, columns: columns, logger: logger}
	if err := pw.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS clustered_records (
			id                SERIAL PRIMARY KEY,
			run_id            TEXT    NOT NULL,
			row_index         INTEGER NOT NULL,
			professional_type TEXT    NOT NULL,
			year              INTEGER NOT NULL,
			month             INTEGER NOT NULL,
			growth_tier       TEXT    NOT NULL DEFAULT '',
			cluster_id        INTEGER NOT NULL,
			attributes        JSONB   NOT NULL DEFAULT '{}',
			created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (run_id, row_index)
		);

		CREATE TABLE IF NOT EXISTS cluster_metrics (
			run_id        TEXT    NOT NULL,
			cluster_id    INTEGER NOT NULL,
			size          INTEGER NOT NULL,
			purity        NUMERIC(8,6) NOT NULL,
			dominant_tier TEXT    NOT NULL DEFAULT '',
			PRIMARY KEY (run_id, cluster_id)
		);

		CREATE TABLE IF NOT EXISTS run_metrics (
			run_id      TEXT PRIMARY KEY,
			n_clusters  INTEGER NOT NULL,
			purity      DOUBLE PRECISION NOT NULL,
			cohesion    DOUBLE PRECISION NOT NULL,
			final_score DOUBLE PRECISION NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_clustered_records_cluster ON clustered_records(run_id, cluster_id);
		CREATE INDEX IF NOT EXISTS idx_clustered_records_tier    ON clustered_records(run_id, growth_tier);
	`)
	return err
}

// clearRun deletes everything previously exported for runID.
func (pw *PostgresWriter) clearRun(tx *sql.Tx, runID string) error {
	for _, table := range []string{"clustered_records", "cluster_metrics", "run_metrics"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE run_id = $1", runID); err != nil {
			return fmt.Errorf("postgres: clear %s: %w", table, err)
		}
	}
	return nil
}

// WriteResults replaces the export of runID with records and metrics in a single transaction.
func (pw *PostgresWriter) WriteResults(runID string, records *models.Table, metrics models.ClusterMetrics) error {
	rows, err := pw.buildRows(records)
	if err != nil {
		return err
	}

	tx, err := pw.db.Begin()
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := pw.clearRun(tx, runID); err != nil {
		return err
	}

	const batchSize = 200
	for i := 0; i < len(rows); i += batchSize {
		end := i + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := insertRecordBatch(tx, runID, rows[i:end]); err != nil {
			return err
		}
	}

	for _, c := range metrics.Clusters {
		if _, err := tx.Exec(
			`INSERT INTO cluster_metrics (run_id, cluster_id, size, purity, dominant_tier) VALUES ($1,$2,$3,$4,$5)`,
			runID, c.ID, c.Size, c.Purity, c.DominantTier,
		); err != nil {
			return fmt.Errorf("postgres: insert cluster metrics: %w", err)
		}
	}
	if _, err := tx.Exec(
		`INSERT INTO run_metrics (run_id, n_clusters, purity, cohesion, final_score) VALUES ($1,$2,$3,$4,$5)`,
		runID, metrics.NClusters, metrics.Purity, metrics.Cohesion, metrics.FinalScore,
	); err != nil {
		return fmt.Errorf("postgres: insert run metrics: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	pw.logger.Info("Exported %d records for run %s", len(rows), runID)
	return nil
}

type recordRow struct {
	index      int
	profType   string
	year       int
	month      int
	tier       string
	cluster    int
	attributes []byte
}

func (pw *PostgresWriter) buildRows(t *models.Table) ([]recordRow, error) {
	types, err := t.Strings(pw.columns.Type)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	years, err := t.Ints(pw.columns.Year)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	months, err := t.Ints(pw.columns.Month)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	tiers, err := t.Strings(pw.columns.Tier)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	clusters, err := t.Ints(pw.columns.Cluster)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	typed := map[string]struct{}{
		pw.columns.Type: {}, pw.columns.Year: {}, pw.columns.Month: {},
		pw.columns.Tier: {}, pw.columns.Cluster: {},
	}
	rows := make([]recordRow, t.Len())
	for i := range rows {
		attrs := t.Record(i)
		for k := range typed {
			delete(attrs, k)
		}
		doc, err := json.Marshal(attrs)
		if err != nil {
			return nil, fmt.Errorf("postgres: encode attributes row %d: %w", i, err)
		}
		rows[i] = recordRow{
			index: i, profType: types[i], year: years[i], month: months[i],
			tier: tiers[i], cluster: clusters[i], attributes: doc,
		}
	}
	return rows, nil
}

func insertRecordBatch(tx *sql.Tx, runID string, batch []recordRow) error {
	const width = 8
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*width)

	for idx, r := range batch {
		base := idx * width
		valueStrings = append(valueStrings,
			fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
				base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8))
		valueArgs = append(valueArgs,
			runID, r.index, r.profType, r.year, r.month, r.tier, r.cluster, string(r.attributes))
	}

	query := fmt.Sprintf(`
		INSERT INTO clustered_records
			(run_id, row_index, professional_type, year, month, growth_tier, cluster_id, attributes)
		VALUES %s
	`, strings.Join(valueStrings, ","))

	if _, err := tx.Exec(query, valueArgs...); err != nil {
		return fmt.Errorf("postgres: insert batch: %w", err)
	}
	return nil
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}
