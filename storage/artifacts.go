package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"

	"teleassist-clustering/models"
)

var keyRegexp = regexp.MustCompile(`^[a-z0-9_]+$`)

// manifest records the column kinds of a stored table so it can be read back
// without guessing types from the values.
type manifest struct {
	Key       string           `json:"key"`
	RunID     string           `json:"run_id"`
	Rows      int              `json:"rows"`
	Columns   []manifestColumn `json:"columns"`
	WrittenAt time.Time        `json:"written_at"`
}

type manifestColumn struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// CSVArtifactStore keeps each artifact as <dir>/<run id>/<key>.csv plus a
// <key>.json manifest. Concurrent writers to the same run directory are not
// supported.
type CSVArtifactStore struct {
	dir   string
	runID string
}

// NewCSVArtifactStore opens the run directory for runID under baseDir. An
// empty runID starts a new run with a random UUID.
func NewCSVArtifactStore(baseDir, runID string) (*CSVArtifactStore, error) {
	if runID == "" {
		runID = uuid.NewString()
	} else if _, err := uuid.Parse(runID); err != nil && !keyRegexp.MatchString(runID) {
		return nil, fmt.Errorf("artifacts: invalid run id %q", runID)
	}
	dir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("artifacts: create run dir: %w", err)
	}
	return &CSVArtifactStore{dir: dir, runID: runID}, nil
}

// RunID returns the identifier of the run this store belongs to.
func (s *CSVArtifactStore) RunID() string {
	return s.runID
}

// Dir returns the run directory.
func (s *CSVArtifactStore) Dir() string {
	return s.dir
}

func (s *CSVArtifactStore) paths(key string) (string, string, error) {
	if !keyRegexp.MatchString(key) {
		return "", "", fmt.Errorf("artifacts: invalid key %q", key)
	}
	return filepath.Join(s.dir, key+".csv"), filepath.Join(s.dir, key+".json"), nil
}

// WriteTable stores t under key, replacing any previous artifact with that key.
func (s *CSVArtifactStore) WriteTable(key string, t *models.Table) error {
	csvPath, manifestPath, err := s.paths(key)
	if err != nil {
		return err
	}
	if err := WriteCSV(csvPath, t); err != nil {
		return fmt.Errorf("artifacts: write %s: %w", key, err)
	}

	m := manifest{Key: key, RunID: s.runID, Rows: t.Len(), WrittenAt: time.Now().UTC()}
	for _, name := range t.Names() {
		c, _ := t.Column(name)
		m.Columns = append(m.Columns, manifestColumn{Name: name, Kind: c.Kind.String()})
	}
	return writeJSON(manifestPath, m)
}

// ReadTable loads the artifact stored under key.
func (s *CSVArtifactStore) ReadTable(key string) (*models.Table, error) {
	csvPath, manifestPath, err := s.paths(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("artifacts: open manifest for %s: %w", key, err)
	}
	defer f.Close()
	var m manifest
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return nil, fmt.Errorf("artifacts: decode manifest for %s: %w", key, err)
	}

	kinds := make(map[string]string, len(m.Columns))
	for _, c := range m.Columns {
		kinds[c.Name] = c.Kind
	}
	t, err := ReadCSV(csvPath, func(column string) bool {
		return kinds[column] == models.NumberColumn.String()
	})
	if err != nil {
		return nil, fmt.Errorf("artifacts: read %s: %w", key, err)
	}
	if t.Len() != m.Rows {
		return nil, fmt.Errorf("artifacts: %s has %d rows, manifest says %d", key, t.Len(), m.Rows)
	}
	return t, nil
}

// WriteJSON writes v as indented JSON, creating parent directories.
func WriteJSON(path string, v any) error {
	return writeJSON(path, v)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("json: create dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("json: create %q: %w", path, err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("json: encode %q: %w", path, err)
	}
	return nil
}
