package services

import (
	"fmt"
	"math"
	"sort"

	"teleassist-clustering/config"
	apperrors "teleassist-clustering/errors"
	"teleassist-clustering/models"
	"teleassist-clustering/utils"
)

// LabelEncoder maps the distinct labels of one categorical column to the codes
// 0..k-1, assigned in sorted label order.
type LabelEncoder struct {
	Column  string
	Classes []string
	codes   map[string]int
}

// FitLabelEncoder learns the classes of a column. Number columns sort by value
// with nulls last; string columns sort lexically, the empty (null) label first.
func FitLabelEncoder(col *models.Column) *LabelEncoder {
	enc := &LabelEncoder{Column: col.Name, codes: make(map[string]int)}
	if col.Kind == models.NumberColumn {
		vals := make([]float64, 0)
		seen := make(map[string]struct{})
		for i, v := range col.Numbers {
			label := col.Format(i)
			if _, ok := seen[label]; ok {
				continue
			}
			seen[label] = struct{}{}
			vals = append(vals, v)
		}
		sort.Slice(vals, func(i, j int) bool {
			if math.IsNaN(vals[j]) {
				return !math.IsNaN(vals[i])
			}
			return vals[i] < vals[j]
		})
		for _, v := range vals {
			enc.add(formatNumber(v))
		}
		return enc
	}

	labels := make([]string, 0)
	seen := make(map[string]struct{})
	for _, s := range col.Strings {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		labels = append(labels, s)
	}
	sort.Strings(labels)
	for _, l := range labels {
		enc.add(l)
	}
	return enc
}

func (e *LabelEncoder) add(label string) {
	e.codes[label] = len(e.Classes)
	e.Classes = append(e.Classes, label)
}

// Code returns the code of label.
func (e *LabelEncoder) Code(label string) (int, bool) {
	c, ok := e.codes[label]
	return c, ok
}

// Decode returns the label of code.
func (e *LabelEncoder) Decode(code int) (string, bool) {
	if code < 0 || code >= len(e.Classes) {
		return "", false
	}
	return e.Classes[code], true
}

// Transform encodes every value of col, which must be the column the encoder was fitted on.
func (e *LabelEncoder) Transform(col *models.Column) ([]float64, error) {
	out := make([]float64, col.Len())
	for i := range out {
		c, ok := e.codes[col.Format(i)]
		if !ok {
			return nil, fmt.Errorf("column %q row %d: unseen label %q", e.Column, i, col.Format(i))
		}
		out[i] = float64(c)
	}
	return out, nil
}

// EncodedFeatureSet is the numeric matrix the cluster engine consumes, in
// declared feature order, with the encoders needed to read codes back.
type EncodedFeatureSet struct {
	Matrix   [][]float64
	Features []string
	Encoders map[string]*LabelEncoder

	source  *models.Table
	columns map[string][]float64
}

// Rows returns the number of encoded records.
func (fs *EncodedFeatureSet) Rows() int { return len(fs.Matrix) }

// Dims returns the number of features.
func (fs *EncodedFeatureSet) Dims() int { return len(fs.Features) }

// Decode returns the original label behind code in a categorical column.
func (fs *EncodedFeatureSet) Decode(column string, code int) (string, error) {
	enc, ok := fs.Encoders[column]
	if !ok {
		return "", fmt.Errorf("column %q is not categorical", column)
	}
	label, ok := enc.Decode(code)
	if !ok {
		return "", fmt.Errorf("column %q has no code %d", column, code)
	}
	return label, nil
}

// ReverseMapping returns column -> code -> label for every categorical feature.
func (fs *EncodedFeatureSet) ReverseMapping() models.ReverseMapping {
	rm := make(models.ReverseMapping, len(fs.Encoders))
	for name, enc := range fs.Encoders {
		m := make(map[int]string, len(enc.Classes))
		for code, label := range enc.Classes {
			m[code] = label
		}
		rm[name] = m
	}
	return rm
}

// Table returns a copy of the source table with every feature column replaced
// by its encoded values.
func (fs *EncodedFeatureSet) Table() *models.Table {
	out := fs.source.Clone()
	for _, name := range fs.Features {
		vals := append([]float64(nil), fs.columns[name]...)
		_ = out.SetNumbers(name, vals)
	}
	return out
}

// Encoder turns the declared feature columns of a table into an EncodedFeatureSet.
type Encoder struct {
	schema config.Schema
	logger *utils.Logger
}

// NewEncoder creates an Encoder for schema.
func NewEncoder(schema config.Schema, logger *utils.Logger) *Encoder {
	return &Encoder{schema: schema, logger: logger.With("encoder")}
}

// Encode label-encodes the categorical features and passes numerical features
// through. Column roles come from the schema only. A missing feature or a
// non-finite numerical value is a schema error; a numerical feature stored as
// a string column is a configuration error.
func (e *Encoder) Encode(t *models.Table) (*EncodedFeatureSet, error) {
	features := e.schema.Features()
	fs := &EncodedFeatureSet{
		Features: features,
		Encoders: make(map[string]*LabelEncoder, len(e.schema.Categorical)),
		source:   t,
		columns:  make(map[string][]float64, len(features)),
	}

	categorical := make(map[string]bool, len(e.schema.Categorical))
	for _, c := range e.schema.Categorical {
		categorical[c] = true
	}

	for _, name := range features {
		col, ok := t.Column(name)
		if !ok {
			return nil, apperrors.NewSchemaError(apperrors.StageEncode, "declared features present",
				fmt.Sprintf("feature column %q not found", name), nil)
		}

		if categorical[name] {
			enc := FitLabelEncoder(col)
			vals, err := enc.Transform(col)
			if err != nil {
				return nil, apperrors.NewInvariantError(apperrors.StageEncode, "encoder covers its own column", err.Error())
			}
			fs.Encoders[name] = enc
			fs.columns[name] = vals
			e.logger.Debug("Encoded %s into %d classes", name, len(enc.Classes))
			continue
		}

		if col.Kind != models.NumberColumn {
			return nil, apperrors.NewConfigurationError(apperrors.StageEncode,
				fmt.Sprintf("numerical feature %q is a string column; declare it categorical or fix the input", name), nil)
		}
		for i, v := range col.Numbers {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, apperrors.NewSchemaError(apperrors.StageEncode, "feature values finite",
					fmt.Sprintf("numerical feature %q row %d is %s", name, i, col.Format(i)), nil)
			}
		}
		fs.columns[name] = col.Numbers
	}

	fs.Matrix = make([][]float64, t.Len())
	for i := range fs.Matrix {
		row := make([]float64, len(features))
		for j, name := range features {
			row[j] = fs.columns[name][i]
		}
		fs.Matrix[i] = row
	}

	e.logger.Info("Encoded %d records into %d features (%d categorical, %d numerical)",
		fs.Rows(), fs.Dims(), len(e.schema.Categorical), len(e.schema.Numerical))
	return fs, nil
}

// formatNumber renders v the way Column.Format does, so labels match across fit and transform.
func formatNumber(v float64) string {
	col := models.Column{Kind: models.NumberColumn, Numbers: []float64{v}}
	return col.Format(0)
}
