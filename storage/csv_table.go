package storage

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"teleassist-clustering/models"
)

// ReadCSV loads a CSV file with a header row into a Table. Columns for which
// numeric returns true are parsed as float64 (empty cells become NaN); all
// other columns are kept as strings.
func ReadCSV(path string, numeric func(column string) bool) (*models.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %q: %w", path, err)
	}
	defer f.Close()
	return DecodeCSV(bufio.NewReader(f), numeric)
}

// DecodeCSV is ReadCSV over an arbitrary reader.
func DecodeCSV(r io.Reader, numeric func(column string) bool) (*models.Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 0

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv: missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("csv: read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	cols := make([][]string, len(header))
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: read row: %w", err)
		}
		for j, v := range rec {
			cols[j] = append(cols[j], v)
		}
	}

	t := models.NewTable()
	for j, name := range header {
		raw := cols[j]
		if raw == nil {
			raw = []string{}
		}
		if numeric != nil && numeric(name) {
			nums, err := parseNumbers(name, raw)
			if err != nil {
				return nil, err
			}
			if err := t.SetNumbers(name, nums); err != nil {
				return nil, err
			}
			continue
		}
		if err := t.SetStrings(name, raw); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func parseNumbers(column string, raw []string) ([]float64, error) {
	out := make([]float64, len(raw))
	for i, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			out[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("csv: column %q row %d: %q is not a number", column, i+1, s)
		}
		out[i] = v
	}
	return out, nil
}

// WriteCSV writes t to path with a header row, creating parent directories.
func WriteCSV(path string, t *models.Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("csv: create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csv: create file %q: %w", path, err)
	}
	if err := EncodeCSV(f, t); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// EncodeCSV writes t as CSV to w.
func EncodeCSV(w io.Writer, t *models.Table) error {
	writer := csv.NewWriter(w)
	names := t.Names()
	if err := writer.Write(names); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}

	cols := make([]*models.Column, len(names))
	for j, n := range names {
		cols[j], _ = t.Column(n)
	}
	row := make([]string, len(names))
	for i := 0; i < t.Len(); i++ {
		for j, c := range cols {
			row[j] = c.Format(i)
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
