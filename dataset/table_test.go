package dataset

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/emigo/pkg/errors"
)

func newTestTable(t *testing.T) *Table {
	t.Helper()
	nan := math.NaN()
	tbl, err := New("station_id",
		[]string{"s1", "s2", "s3"},
		[]Column{
			{Name: "no2", Kind: Numeric},
			{Name: "wind", Kind: Numeric},
			{Name: "season", Kind: Categorical, Levels: []string{"winter", "summer"}},
		},
		[]float64{
			1.0, 3.5, 0,
			2.0, nan, 1,
			3.0, 2.5, 0,
		})
	require.NoError(t, err)
	return tbl
}

func TestTableMissing(t *testing.T) {
	tbl := newTestTable(t)

	assert.Equal(t, 3, tbl.Rows())
	assert.Equal(t, 1, tbl.MissingCount())
	assert.Equal(t, 1, tbl.MissingInColumn("wind"))
	assert.Equal(t, 0, tbl.MissingInColumn("no2"))
	assert.True(t, tbl.IsMissing(1, 1))
	assert.False(t, tbl.IsMissing(0, 1))
}

func TestTableSelectPreservesIDs(t *testing.T) {
	tbl := newTestTable(t)

	sub, err := tbl.Select([]string{"wind", "no2"})
	require.NoError(t, err)

	assert.Equal(t, []string{"wind", "no2"}, sub.ColumnNames())
	assert.Equal(t, []string{"s1", "s2", "s3"}, sub.IDs())
	assert.Equal(t, 3.5, sub.At(0, 0))
	assert.Equal(t, 1.0, sub.At(0, 1))
}

func TestTableSelectMissingColumn(t *testing.T) {
	tbl := newTestTable(t)

	_, err := tbl.Select([]string{"no2", "pm10"})
	require.Error(t, err)

	var schemaErr *errors.SchemaMismatchError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, []string{"pm10"}, schemaErr.Missing)
}

func TestTableCloneIsIndependent(t *testing.T) {
	tbl := newTestTable(t)
	clone := tbl.Clone()
	clone.Set(0, 0, 99.0)

	assert.Equal(t, 1.0, tbl.At(0, 0), "mutating a clone must not touch the original")
	assert.Equal(t, 99.0, clone.At(0, 0))
}

func TestTableSubset(t *testing.T) {
	tbl := newTestTable(t)
	sub := tbl.Subset([]int{2, 0})

	assert.Equal(t, 2, sub.Rows())
	assert.Equal(t, []string{"s3", "s1"}, sub.IDs())
	assert.Equal(t, 3.0, sub.At(0, 0))
	assert.Equal(t, 1.0, sub.At(1, 0))
}

func TestTableSchemaDiff(t *testing.T) {
	tbl := newTestTable(t)
	other := tbl.Drop("season")

	diff := tbl.SchemaDiff(other)
	assert.Equal(t, []string{"season"}, diff)
	assert.Empty(t, other.SchemaDiff(tbl))
}

func TestTableMatrixAndVector(t *testing.T) {
	tbl := newTestTable(t)

	m, err := tbl.Matrix([]string{"no2", "wind"})
	require.NoError(t, err)
	r, c := m.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 2, c)
	assert.True(t, math.IsNaN(m.At(1, 1)))

	v, err := tbl.Vector("no2")
	require.NoError(t, err)
	assert.Equal(t, 2.0, v.AtVec(1))
}

func TestReadCSV(t *testing.T) {
	src := strings.Join([]string{
		"station_id,no2,wind,season",
		"s1,1.0,3.5,winter",
		"s2,2.0,NA,summer",
		"s3,3.0,2.5,winter",
	}, "\n")

	tbl, err := ReadCSV(strings.NewReader(src), "station_id", []string{"season"})
	require.NoError(t, err)

	assert.Equal(t, []string{"no2", "wind", "season"}, tbl.ColumnNames())
	assert.Equal(t, []string{"s1", "s2", "s3"}, tbl.IDs())
	assert.True(t, tbl.IsMissing(1, 1))

	season, ok := tbl.Column("season")
	require.True(t, ok)
	assert.Equal(t, Categorical, season.Kind)
	assert.Equal(t, []string{"winter", "summer"}, season.Levels)
}

func TestWritePredictions(t *testing.T) {
	var sb strings.Builder
	err := WritePredictions(&sb, "station_id", []string{"s1", "s2"}, "no2_pred", []float64{1.25, 2.5})
	require.NoError(t, err)

	want := "station_id,no2_pred\ns1,1.25\ns2,2.5\n"
	assert.Equal(t, want, sb.String())
}
