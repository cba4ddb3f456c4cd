package services

import (
	"math"
	"strings"
	"time"

	"teleassist-clustering/config"
	apperrors "teleassist-clustering/errors"
	"teleassist-clustering/models"
	"teleassist-clustering/utils"
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02",
}

// CleanStats counts what the cleaner removed.
type CleanStats struct {
	Input      int
	Cancelled  int
	Duplicates int
	Incomplete int
	Output     int
}

// Cleaner turns a loaded record table into the cleaned table the growth stages
// expect: derived year/month/age/duration columns, no cancelled visits, no
// duplicates and no nulls in key or numerical feature columns.
type Cleaner struct {
	schema config.Schema
	logger *utils.Logger
	now    func() time.Time
}

// NewCleaner creates a Cleaner for the given schema.
func NewCleaner(schema config.Schema, logger *utils.Logger) *Cleaner {
	return &Cleaner{schema: schema, logger: logger.With("cleaner"), now: time.Now}
}

// Clean returns a new cleaned table; the input is left untouched.
func (c *Cleaner) Clean(in *models.Table) (*models.Table, CleanStats, error) {
	stats := CleanStats{Input: in.Len()}
	t := in.Drop(c.schema.Drop...)

	if err := c.deriveYearMonth(t); err != nil {
		return nil, stats, err
	}
	if err := c.deriveAge(t); err != nil {
		return nil, stats, err
	}
	if err := c.deriveDuration(t); err != nil {
		return nil, stats, err
	}
	if missing := t.Missing(c.schema.TypeColumn, c.schema.YearColumn, c.schema.MonthColumn); len(missing) > 0 {
		return nil, stats, apperrors.NewSchemaError(apperrors.StageClean, "required columns present",
			"missing required columns: "+strings.Join(missing, ", "), nil)
	}

	if col, ok := t.Column(c.schema.CancelledColumn); ok && col.Kind == models.StringColumn {
		before := t.Len()
		t = t.Filter(func(i int) bool { return strings.TrimSpace(col.Strings[i]) == "" })
		stats.Cancelled = before - t.Len()
		t = t.Drop(c.schema.CancelledColumn)
	}

	before := t.Len()
	t = dedupe(t)
	stats.Duplicates = before - t.Len()

	before = t.Len()
	t = c.dropIncomplete(t)
	stats.Incomplete = before - t.Len()

	stats.Output = t.Len()
	c.logger.Info("Cleaned %d -> %d records (cancelled %d, duplicates %d, incomplete %d)",
		stats.Input, stats.Output, stats.Cancelled, stats.Duplicates, stats.Incomplete)
	return t, stats, nil
}

func (c *Cleaner) dateColumn(t *models.Table, name string) ([]time.Time, bool) {
	col, ok := t.Column(name)
	if !ok || col.Kind != models.StringColumn {
		return nil, false
	}
	out := make([]time.Time, len(col.Strings))
	for i, s := range col.Strings {
		out[i] = parseDate(s)
	}
	return out, true
}

func (c *Cleaner) deriveYearMonth(t *models.Table) error {
	if t.Has(c.schema.YearColumn) && t.Has(c.schema.MonthColumn) {
		return nil
	}
	dates, ok := c.dateColumn(t, c.schema.ServiceDateColumn)
	if !ok {
		return nil
	}
	years := make([]float64, len(dates))
	months := make([]float64, len(dates))
	for i, d := range dates {
		if d.IsZero() {
			years[i], months[i] = math.NaN(), math.NaN()
			continue
		}
		years[i], months[i] = float64(d.Year()), float64(d.Month())
	}
	if err := t.SetNumbers(c.schema.YearColumn, years); err != nil {
		return apperrors.NewInvariantError(apperrors.StageClean, "derived column length", err.Error())
	}
	if err := t.SetNumbers(c.schema.MonthColumn, months); err != nil {
		return apperrors.NewInvariantError(apperrors.StageClean, "derived column length", err.Error())
	}
	c.logger.Debug("Derived %s/%s from %s", c.schema.YearColumn, c.schema.MonthColumn, c.schema.ServiceDateColumn)
	return nil
}

func (c *Cleaner) deriveAge(t *models.Table) error {
	if c.schema.AgeColumn == "" || t.Has(c.schema.AgeColumn) {
		return nil
	}
	births, ok := c.dateColumn(t, c.schema.BirthDateColumn)
	if !ok {
		return nil
	}
	ref := c.now()
	ages := make([]float64, len(births))
	for i, b := range births {
		if b.IsZero() {
			ages[i] = math.NaN()
			continue
		}
		age := ref.Year() - b.Year()
		if ref.Month() < b.Month() || (ref.Month() == b.Month() && ref.Day() < b.Day()) {
			age--
		}
		ages[i] = float64(age)
	}
	if err := t.SetNumbers(c.schema.AgeColumn, ages); err != nil {
		return apperrors.NewInvariantError(apperrors.StageClean, "derived column length", err.Error())
	}
	return nil
}

func (c *Cleaner) deriveDuration(t *models.Table) error {
	if c.schema.DurationColumn == "" || t.Has(c.schema.DurationColumn) {
		return nil
	}
	starts, okStart := c.dateColumn(t, c.schema.StartTimeColumn)
	ends, okEnd := c.dateColumn(t, c.schema.EndTimeColumn)
	if !okStart || !okEnd {
		return nil
	}
	minutes := make([]float64, len(starts))
	for i := range starts {
		if starts[i].IsZero() || ends[i].IsZero() {
			minutes[i] = math.NaN()
			continue
		}
		minutes[i] = math.Trunc(ends[i].Sub(starts[i]).Minutes())
	}
	if err := t.SetNumbers(c.schema.DurationColumn, minutes); err != nil {
		return apperrors.NewInvariantError(apperrors.StageClean, "derived column length", err.Error())
	}
	return nil
}

// dropIncomplete removes rows with a null professional type, year, month or
// numerical feature. Categorical nulls are kept; they encode as their own label.
func (c *Cleaner) dropIncomplete(t *models.Table) *models.Table {
	var cols []*models.Column
	for _, name := range append([]string{c.schema.TypeColumn}, c.schema.Numerical...) {
		if col, ok := t.Column(name); ok {
			cols = append(cols, col)
		}
	}
	for _, name := range []string{c.schema.YearColumn, c.schema.MonthColumn} {
		if col, ok := t.Column(name); ok {
			cols = append(cols, col)
		}
	}
	return t.Filter(func(i int) bool {
		for _, col := range cols {
			if col.IsNull(i) {
				return false
			}
		}
		return true
	})
}

// dedupe keeps the first occurrence of every fully identical row.
func dedupe(t *models.Table) *models.Table {
	names := t.Names()
	cols := make([]*models.Column, len(names))
	for j, n := range names {
		cols[j], _ = t.Column(n)
	}
	seen := make(map[string]struct{}, t.Len())
	var sb strings.Builder
	return t.Filter(func(i int) bool {
		sb.Reset()
		for _, col := range cols {
			sb.WriteString(col.Format(i))
			sb.WriteByte(0x1f)
		}
		key := sb.String()
		if _, dup := seen[key]; dup {
			return false
		}
		seen[key] = struct{}{}
		return true
	})
}

func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d
		}
	}
	return time.Time{}
}
