// Package dataset generates, reads and writes the tabular student records
// the models are trained on.
package dataset

import (
	"smartscholar/internal/features"
)

// Extra columns written alongside features and labels.
const (
	StudentIDColumn = "student_id"
	RiskScoreColumn = "risk_score"
)

// Dataset is a numeric table. Rows are column-aligned with Columns.
type Dataset struct {
	Columns []string
	Rows    [][]float64

	index map[string]int
}

// New builds a dataset, checking every row has one value per column.
func New(columns []string, rows [][]float64) (*Dataset, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := index[c]; dup {
			return nil, Errorf("new", "duplicate column %q", c)
		}
		index[c] = i
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, Errorf("new", "row %d has %d values, expected %d", i, len(row), len(columns))
		}
	}
	return &Dataset{Columns: columns, Rows: rows, index: index}, nil
}

// Len is the number of rows.
func (d *Dataset) Len() int {
	return len(d.Rows)
}

// Has reports whether the column exists.
func (d *Dataset) Has(name string) bool {
	_, ok := d.lookup(name)
	return ok
}

// Column returns a copy of a named column.
func (d *Dataset) Column(name string) ([]float64, error) {
	j, ok := d.lookup(name)
	if !ok {
		return nil, Errorf("column", "missing column %q", name)
	}
	out := make([]float64, len(d.Rows))
	for i, row := range d.Rows {
		out[i] = row[j]
	}
	return out, nil
}

// Matrix returns the named columns, in the given order, as a row-major matrix.
func (d *Dataset) Matrix(names []string) ([][]float64, error) {
	cols := make([]int, len(names))
	for k, name := range names {
		j, ok := d.lookup(name)
		if !ok {
			return nil, Errorf("matrix", "missing column %q", name)
		}
		cols[k] = j
	}
	out := make([][]float64, len(d.Rows))
	for i, row := range d.Rows {
		vec := make([]float64, len(cols))
		for k, j := range cols {
			vec[k] = row[j]
		}
		out[i] = vec
	}
	return out, nil
}

func (d *Dataset) lookup(name string) (int, bool) {
	if d.index == nil {
		d.index = make(map[string]int, len(d.Columns))
		for i, c := range d.Columns {
			d.index[c] = i
		}
	}
	j, ok := d.index[name]
	return j, ok
}

// TrainingColumns are the columns a training dataset must carry: every
// feature in catalog order, then both labels.
func TrainingColumns() []string {
	cols := make([]string, 0, len(features.Catalog())+2)
	for _, def := range features.Catalog() {
		cols = append(cols, def.Name)
	}
	return append(cols, features.DropoutLabel, features.GPALabel)
}

// FromStudents tabulates generated students into a training dataset.
func FromStudents(students []Student) *Dataset {
	cols := append(TrainingColumns(), RiskScoreColumn)
	rows := make([][]float64, len(students))
	for i, s := range students {
		row := make([]float64, 0, len(cols))
		for _, def := range features.Catalog() {
			v, _ := s.Features.Value(def.Name)
			row = append(row, v)
		}
		rows[i] = append(row, float64(s.DropoutRisk), s.PredictedGPA, s.RiskScore)
	}
	ds, _ := New(cols, rows)
	return ds
}
