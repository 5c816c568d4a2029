package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"

	"github.com/YuminosukeSato/emigo/pkg/errors"
)

// ReadCSV parses a headered CSV stream into a Table. idColumn names the
// identifier column ("" if none); columns named in categorical are read as
// level-coded categorical columns, everything else as numeric. Empty cells
// and the markers "NA", "NaN" and "null" are read as missing.
//
// This is a thin ingestion wrapper; the modeling pipeline itself only ever
// sees Tables.
func ReadCSV(r io.Reader, idColumn string, categorical []string) (*Table, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "dataset.ReadCSV")
	}
	if len(records) < 2 {
		return nil, errors.NewValueError("dataset.ReadCSV", "need a header row and at least one data row")
	}

	header := records[0]
	body := records[1:]

	isCategorical := make(map[string]bool, len(categorical))
	for _, name := range categorical {
		isCategorical[name] = true
	}

	idIdx := -1
	cols := make([]Column, 0, len(header))
	colSrc := make([]int, 0, len(header)) // source field per schema column
	for j, name := range header {
		if name == idColumn && idColumn != "" {
			idIdx = j
			continue
		}
		kind := Numeric
		if isCategorical[name] {
			kind = Categorical
		}
		cols = append(cols, Column{Name: name, Kind: kind})
		colSrc = append(colSrc, j)
	}
	if idColumn != "" && idIdx < 0 {
		return nil, errors.NewSchemaMismatchError("dataset.ReadCSV", header, []string{idColumn})
	}

	levels := make([]map[string]int, len(cols))
	for k := range cols {
		if cols[k].Kind == Categorical {
			levels[k] = make(map[string]int)
		}
	}

	var ids []string
	if idIdx >= 0 {
		ids = make([]string, len(body))
	}
	data := make([]float64, len(body)*len(cols))

	for i, record := range body {
		if len(record) != len(header) {
			return nil, errors.NewDimensionError("dataset.ReadCSV", len(header), len(record), 1)
		}
		if idIdx >= 0 {
			ids[i] = record[idIdx]
		}
		for k, src := range colSrc {
			cell := record[src]
			if isMissingMarker(cell) {
				data[i*len(cols)+k] = math.NaN()
				continue
			}
			if cols[k].Kind == Categorical {
				code, ok := levels[k][cell]
				if !ok {
					code = len(cols[k].Levels)
					levels[k][cell] = code
					cols[k].Levels = append(cols[k].Levels, cell)
				}
				data[i*len(cols)+k] = float64(code)
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "dataset.ReadCSV: row %d column %q", i+1, cols[k].Name)
			}
			data[i*len(cols)+k] = v
		}
	}

	return New(idColumn, ids, cols, data)
}

// WritePredictions writes an (identifier, prediction) CSV, one row per
// prediction, preserving the input row order.
func WritePredictions(w io.Writer, idName string, ids []string, predName string, preds []float64) error {
	if len(ids) != len(preds) {
		return errors.NewDimensionError("dataset.WritePredictions", len(ids), len(preds), 0)
	}
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{idName, predName}); err != nil {
		return errors.Wrap(err, "dataset.WritePredictions")
	}
	for i, id := range ids {
		rec := []string{id, strconv.FormatFloat(preds[i], 'g', -1, 64)}
		if err := writer.Write(rec); err != nil {
			return errors.Wrap(err, "dataset.WritePredictions")
		}
	}
	writer.Flush()
	return errors.WithStack(writer.Error())
}

func isMissingMarker(cell string) bool {
	switch cell {
	case "", "NA", "NaN", "null":
		return true
	}
	return false
}
