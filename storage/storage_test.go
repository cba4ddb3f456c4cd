package storage

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teleassist-clustering/models"
)

func numericColumns(names ...string) func(string) bool {
	return func(column string) bool {
		for _, n := range names {
			if n == column {
				return true
			}
		}
		return false
	}
}

func TestDecodeCSV(t *testing.T) {
	in := "\ufeffprofessional_type,year,month,sex\nnurse,2020,3,F\ndoctor,,7,\n"
	tbl, err := DecodeCSV(strings.NewReader(in), numericColumns("year", "month"))
	require.NoError(t, err)

	assert.Equal(t, []string{"professional_type", "year", "month", "sex"}, tbl.Names())
	assert.Equal(t, 2, tbl.Len())

	years, err := tbl.Numbers("year")
	require.NoError(t, err)
	assert.Equal(t, 2020.0, years[0])
	assert.True(t, math.IsNaN(years[1]))

	sex, err := tbl.Strings("sex")
	require.NoError(t, err)
	assert.Equal(t, []string{"F", ""}, sex)
}

func TestDecodeCSVRejectsBadNumbers(t *testing.T) {
	_, err := DecodeCSV(strings.NewReader("year\nabc\n"), numericColumns("year"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"abc" is not a number`)

	_, err = DecodeCSV(strings.NewReader(""), nil)
	assert.Error(t, err)
}

func TestCSVRoundTripKeepsInfinity(t *testing.T) {
	tbl := models.NewTable()
	require.NoError(t, tbl.SetStrings("professional_type", []string{"nurse", "doctor"}))
	require.NoError(t, tbl.SetNumbers("growth_percentage", []float64{math.Inf(1), -12.5}))

	var buf bytes.Buffer
	require.NoError(t, EncodeCSV(&buf, tbl))
	assert.Equal(t, "professional_type,growth_percentage\nnurse,+Inf\ndoctor,-12.5\n", buf.String())

	back, err := DecodeCSV(&buf, numericColumns("growth_percentage"))
	require.NoError(t, err)
	pcts, err := back.Numbers("growth_percentage")
	require.NoError(t, err)
	assert.True(t, math.IsInf(pcts[0], 1))
	assert.Equal(t, -12.5, pcts[1])
}

func TestArtifactStoreRoundTrip(t *testing.T) {
	base := t.TempDir()
	store, err := NewCSVArtifactStore(base, "")
	require.NoError(t, err)
	_, err = uuid.Parse(store.RunID())
	require.NoError(t, err, "an empty run id starts a uuid run")

	tbl := models.NewTable()
	require.NoError(t, tbl.SetStrings("professional_type", []string{"nurse", "nurse"}))
	require.NoError(t, tbl.SetNumbers("year", []float64{2020, 2020}))
	require.NoError(t, tbl.SetNumbers("month", []float64{1, 2}))
	require.NoError(t, tbl.SetNumbers("growth_percentage", []float64{math.Inf(1), 40}))
	require.NoError(t, tbl.SetStrings("growth_tier", []string{"alta", "media"}))
	require.NoError(t, store.WriteTable(KeyGrowthExpanded, tbl))

	raw, err := os.ReadFile(filepath.Join(base, store.RunID(), KeyGrowthExpanded+".json"))
	require.NoError(t, err)
	var m manifest
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, 2, m.Rows)
	assert.Equal(t, store.RunID(), m.RunID)

	reopened, err := NewCSVArtifactStore(base, store.RunID())
	require.NoError(t, err)
	back, err := reopened.ReadTable(KeyGrowthExpanded)
	require.NoError(t, err)

	assert.Equal(t, tbl.Names(), back.Names())
	types, err := back.Strings("professional_type")
	require.NoError(t, err)
	assert.Equal(t, []string{"nurse", "nurse"}, types)
	months, err := back.Ints("month")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, months)
	pcts, err := back.Numbers("growth_percentage")
	require.NoError(t, err)
	assert.True(t, math.IsInf(pcts[0], 1))
}

func TestArtifactStoreValidation(t *testing.T) {
	base := t.TempDir()
	_, err := NewCSVArtifactStore(base, "../escape")
	assert.Error(t, err)

	store, err := NewCSVArtifactStore(base, "nightly_2024")
	require.NoError(t, err)
	assert.Equal(t, "nightly_2024", store.RunID())

	assert.Error(t, store.WriteTable("Bad Key", models.NewTable()))
	_, err = store.ReadTable(KeyGrowth)
	assert.Error(t, err, "reading an artifact that was never written")
}

func TestWriteJSONCreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "elbow.json")
	require.NoError(t, WriteJSON(path, []models.ElbowPoint{{K: 1, Inertia: 10}}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var points []models.ElbowPoint
	require.NoError(t, json.Unmarshal(raw, &points))
	assert.Equal(t, []models.ElbowPoint{{K: 1, Inertia: 10}}, points)
}
