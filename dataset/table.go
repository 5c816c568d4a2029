// Package dataset provides the tabular data model shared by every pipeline
// stage: named columns of numeric or categorical values, NaN-encoded missing
// cells, and one identifier column that is carried through but never modeled.
package dataset

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/emigo/pkg/errors"
)

// Kind distinguishes numeric columns from categorical ones.
type Kind int

const (
	// Numeric columns hold continuous values.
	Numeric Kind = iota
	// Categorical columns hold level codes; Levels maps code to label.
	Categorical
)

// Column describes one predictor or target column.
type Column struct {
	Name   string
	Kind   Kind
	Levels []string // level dictionary for categorical columns, index = code
}

// Table is an ordered collection of rows over a fixed column schema.
// Cell values are stored row-major as float64; missing cells are NaN.
// Categorical cells store the level code as a float64.
//
// Table has value semantics at the API boundary: transforming operations
// return a new Table and never modify their receiver.
type Table struct {
	idName string
	ids    []string
	cols   []Column
	data   []float64
	rows   int
}

// New creates a Table from row-major data. ids may be nil when the table has
// no identifier column (e.g. an internal split).
func New(idName string, ids []string, cols []Column, data []float64) (*Table, error) {
	if len(cols) == 0 {
		return nil, errors.NewValueError("dataset.New", "no columns")
	}
	if len(data)%len(cols) != 0 {
		return nil, errors.NewDimensionError("dataset.New", len(data)/len(cols)*len(cols), len(data), 0)
	}
	rows := len(data) / len(cols)
	if ids != nil && len(ids) != rows {
		return nil, errors.NewDimensionError("dataset.New", rows, len(ids), 0)
	}
	return &Table{
		idName: idName,
		ids:    ids,
		cols:   cols,
		data:   data,
		rows:   rows,
	}, nil
}

// Rows returns the number of rows.
func (t *Table) Rows() int { return t.rows }

// NumColumns returns the number of columns.
func (t *Table) NumColumns() int { return len(t.cols) }

// ColumnNames returns the column names in schema order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name
	}
	return names
}

// Column returns the description of the named column.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.cols {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnIndex returns the schema position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.cols {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// IDName returns the name of the identifier column ("" if none).
func (t *Table) IDName() string { return t.idName }

// IDs returns the identifier values, aligned with row order.
func (t *Table) IDs() []string { return t.ids }

// At returns the cell value at (row, col). Missing cells are NaN.
func (t *Table) At(row, col int) float64 {
	return t.data[row*len(t.cols)+col]
}

// Set writes the cell value at (row, col).
func (t *Table) Set(row, col int, v float64) {
	t.data[row*len(t.cols)+col] = v
}

// IsMissing reports whether the cell at (row, col) is missing.
func (t *Table) IsMissing(row, col int) bool {
	return math.IsNaN(t.At(row, col))
}

// MissingCount returns the total number of missing cells.
func (t *Table) MissingCount() int {
	n := 0
	for _, v := range t.data {
		if math.IsNaN(v) {
			n++
		}
	}
	return n
}

// MissingInColumn returns the number of missing cells in the named column.
func (t *Table) MissingInColumn(name string) int {
	j := t.ColumnIndex(name)
	if j < 0 {
		return 0
	}
	n := 0
	for i := 0; i < t.rows; i++ {
		if t.IsMissing(i, j) {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	data := make([]float64, len(t.data))
	copy(data, t.data)
	cols := make([]Column, len(t.cols))
	copy(cols, t.cols)
	var ids []string
	if t.ids != nil {
		ids = make([]string, len(t.ids))
		copy(ids, t.ids)
	}
	return &Table{
		idName: t.idName,
		ids:    ids,
		cols:   cols,
		data:   data,
		rows:   t.rows,
	}
}

// Select projects the table onto the named columns, preserving row order and
// identifiers. It fails with SchemaMismatchError when a requested column is
// absent.
func (t *Table) Select(names []string) (*Table, error) {
	var missing []string
	idx := make([]int, 0, len(names))
	for _, name := range names {
		j := t.ColumnIndex(name)
		if j < 0 {
			missing = append(missing, name)
			continue
		}
		idx = append(idx, j)
	}
	if len(missing) > 0 {
		return nil, errors.NewSchemaMismatchError("Table.Select", names, missing)
	}

	cols := make([]Column, len(idx))
	data := make([]float64, t.rows*len(idx))
	for k, j := range idx {
		cols[k] = t.cols[j]
		for i := 0; i < t.rows; i++ {
			data[i*len(idx)+k] = t.At(i, j)
		}
	}
	var ids []string
	if t.ids != nil {
		ids = make([]string, len(t.ids))
		copy(ids, t.ids)
	}
	return &Table{idName: t.idName, ids: ids, cols: cols, data: data, rows: t.rows}, nil
}

// Drop returns a copy of the table without the named columns. Unknown names
// are ignored.
func (t *Table) Drop(names ...string) *Table {
	dropped := make(map[string]bool, len(names))
	for _, name := range names {
		dropped[name] = true
	}
	keep := make([]string, 0, len(t.cols))
	for _, c := range t.cols {
		if !dropped[c.Name] {
			keep = append(keep, c.Name)
		}
	}
	out, _ := t.Select(keep) // kept names always exist
	return out
}

// Subset returns a new table containing the given rows, in the given order.
func (t *Table) Subset(rows []int) *Table {
	data := make([]float64, len(rows)*len(t.cols))
	var ids []string
	if t.ids != nil {
		ids = make([]string, len(rows))
	}
	for k, r := range rows {
		copy(data[k*len(t.cols):(k+1)*len(t.cols)], t.data[r*len(t.cols):(r+1)*len(t.cols)])
		if ids != nil {
			ids[k] = t.ids[r]
		}
	}
	cols := make([]Column, len(t.cols))
	copy(cols, t.cols)
	return &Table{idName: t.idName, ids: ids, cols: cols, data: data, rows: len(rows)}
}

// SchemaDiff returns the columns of t that are absent (by name and kind) in
// other. An empty result means other can be transformed by state fitted on t.
func (t *Table) SchemaDiff(other *Table) []string {
	var missing []string
	for _, c := range t.cols {
		oc, ok := other.Column(c.Name)
		if !ok || oc.Kind != c.Kind {
			missing = append(missing, c.Name)
		}
	}
	return missing
}

// Matrix returns the cell values of the named columns as a dense matrix,
// one row per table row. Missing cells surface as NaN.
func (t *Table) Matrix(names []string) (*mat.Dense, error) {
	sub, err := t.Select(names)
	if err != nil {
		return nil, err
	}
	return mat.NewDense(sub.rows, len(sub.cols), sub.data), nil
}

// Vector returns a single column as a vector.
func (t *Table) Vector(name string) (*mat.VecDense, error) {
	j := t.ColumnIndex(name)
	if j < 0 {
		return nil, errors.NewSchemaMismatchError("Table.Vector", []string{name}, []string{name})
	}
	v := mat.NewVecDense(t.rows, nil)
	for i := 0; i < t.rows; i++ {
		v.SetVec(i, t.At(i, j))
	}
	return v, nil
}

// NumericColumns returns the names of all numeric columns.
func (t *Table) NumericColumns() []string {
	var names []string
	for _, c := range t.cols {
		if c.Kind == Numeric {
			names = append(names, c.Name)
		}
	}
	return names
}
