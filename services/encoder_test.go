package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teleassist-clustering/config"
	apperrors "teleassist-clustering/errors"
	"teleassist-clustering/models"
)

func encoderSchema() config.Schema {
	s := config.DefaultSchema()
	s.Categorical = []string{"sex", "professional_type"}
	s.Numerical = []string{"patient_age"}
	return s
}

func encoderTable(t *testing.T) *models.Table {
	t.Helper()
	tbl := models.NewTable()
	require.NoError(t, tbl.SetStrings("sex", []string{"M", "F", "", "F"}))
	require.NoError(t, tbl.SetStrings("professional_type", []string{"nurse", "doctor", "psychologist", "nurse"}))
	require.NoError(t, tbl.SetNumbers("patient_age", []float64{70, 82, 65, 90}))
	return tbl
}

func TestEncodeSortedCodesAndRoundTrip(t *testing.T) {
	tbl := encoderTable(t)
	fs, err := NewEncoder(encoderSchema(), newTestLogger()).Encode(tbl)
	require.NoError(t, err)

	assert.Equal(t, []string{"sex", "professional_type", "patient_age"}, fs.Features)
	assert.Equal(t, [][]float64{
		{2, 1, 70},
		{1, 0, 82},
		{0, 2, 65},
		{1, 1, 90},
	}, fs.Matrix)

	for j, name := range fs.Features {
		col, _ := tbl.Column(name)
		enc, categorical := fs.Encoders[name]
		if !categorical {
			continue
		}
		codes := make(map[int]bool)
		for i := range fs.Matrix {
			code := int(fs.Matrix[i][j])
			codes[code] = true
			label, err := fs.Decode(name, code)
			require.NoError(t, err)
			assert.Equal(t, col.Strings[i], label, "decode(%s, %d)", name, code)
		}
		for code := 0; code < len(enc.Classes); code++ {
			assert.True(t, codes[code], "code %d of %s has no gap", code, name)
		}
		assert.Len(t, codes, len(enc.Classes))
	}

	rm := fs.ReverseMapping()
	assert.Equal(t, map[int]string{0: "doctor", 1: "nurse", 2: "psychologist"}, rm["professional_type"])
	assert.NotContains(t, rm, "patient_age")
}

func TestEncodedTableReplacesFeatures(t *testing.T) {
	tbl := encoderTable(t)
	require.NoError(t, tbl.SetStrings("note", []string{"a", "b", "c", "d"}))

	fs, err := NewEncoder(encoderSchema(), newTestLogger()).Encode(tbl)
	require.NoError(t, err)
	enc := fs.Table()

	sex, err := enc.Numbers("sex")
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 1, 0, 1}, sex)

	note, err := enc.Strings("note")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, note, "non-feature columns are carried over")

	_, err = tbl.Strings("sex")
	assert.NoError(t, err, "the source table keeps its labels")
}

func TestEncodeNumericCategoricalSortsByValue(t *testing.T) {
	s := encoderSchema()
	s.Categorical = []string{"month"}
	s.Numerical = nil
	tbl := models.NewTable()
	require.NoError(t, tbl.SetNumbers("month", []float64{10, 2, 10, 1}))

	fs, err := NewEncoder(s, newTestLogger()).Encode(tbl)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "10"}, fs.Encoders["month"].Classes)
	assert.Equal(t, [][]float64{{2}, {1}, {2}, {0}}, fs.Matrix)
}

func TestEncodeErrors(t *testing.T) {
	t.Run("missing feature", func(t *testing.T) {
		_, err := NewEncoder(encoderSchema(), newTestLogger()).Encode(encoderTable(t).Drop("sex"))
		require.Error(t, err)
		assert.True(t, apperrors.IsCategory(err, apperrors.CategorySchema))
		assert.Equal(t, apperrors.StageEncode, apperrors.StageOf(err))
	})

	t.Run("numerical feature stored as labels", func(t *testing.T) {
		tbl := encoderTable(t)
		require.NoError(t, tbl.SetStrings("patient_age", []string{"70", "82", "65", "90"}))
		_, err := NewEncoder(encoderSchema(), newTestLogger()).Encode(tbl)
		require.Error(t, err)
		assert.True(t, apperrors.IsCategory(err, apperrors.CategoryConfiguration))
	})

	t.Run("non-finite numerical value", func(t *testing.T) {
		tbl := encoderTable(t)
		require.NoError(t, tbl.SetNumbers("patient_age", []float64{70, math.NaN(), 65, 90}))
		_, err := NewEncoder(encoderSchema(), newTestLogger()).Encode(tbl)
		require.Error(t, err)
		assert.True(t, apperrors.IsCategory(err, apperrors.CategorySchema))
		assert.Contains(t, err.Error(), "row 1")
	})
}

func TestLabelEncoderDecodeBounds(t *testing.T) {
	enc := FitLabelEncoder(&models.Column{Name: "sex", Kind: models.StringColumn, Strings: []string{"M", "F"}})
	_, ok := enc.Decode(2)
	assert.False(t, ok)
	_, ok = enc.Decode(-1)
	assert.False(t, ok)
	code, ok := enc.Code("M")
	require.True(t, ok)
	assert.Equal(t, 1, code)
}
