// Package table contains the tabular result model shared by every stage of the result
// post-processing pipeline.
package table

import (
	"encoding/json"
	"fmt"

	pipelineErrors "github.com/researchportal/resultpipe/pkg/errors"
)

// Column describes one result column. Path is the query selection path the column was
// produced from and is what privacy filtering matches against.
type Column struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

type Row []Cell

// IdentifierList is the ordered list of raw per-patient identifiers, index-correlated with the
// rows of the table it was extracted from.
type IdentifierList []string

// PseudonymList is index-correlated with the IdentifierList it was derived from. A nil entry
// is an identifier the exchange could not resolve.
type PseudonymList []*string

// Table is a tabular query result. Every row has exactly len(Columns) cells.
type Table struct {
	Name    string   `json:"name,omitempty"`
	Columns []Column `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// New builds a table and checks the row width invariant.
func New(name string, columns []Column, rows []Row) (*Table, error) {
	if columns == nil {
		columns = []Column{}
	}
	if rows == nil {
		rows = []Row{}
	}

	t := &Table{Name: name, Columns: columns, Rows: rows}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Decode reads a table from its JSON form, deciding the tag of every cell.
func Decode(data []byte) (*Table, error) {
	var t Table
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, pipelineErrors.ContractViolation("undecodable result: %v", err)
	}
	return New(t.Name, t.Columns, t.Rows)
}

// Validate returns a ContractViolation if any row width differs from the column count.
func (t *Table) Validate() error {
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return pipelineErrors.ContractViolation("row %d has %d cells, expected %d", i, len(row), len(t.Columns))
		}
	}
	return nil
}

func (t *Table) Width() int {
	return len(t.Columns)
}

func (t *Table) Len() int {
	return len(t.Rows)
}

// Column returns the cells of column i in row order.
func (t *Table) Column(i int) []Cell {
	cells := make([]Cell, len(t.Rows))
	for r, row := range t.Rows {
		cells[r] = row[i]
	}
	return cells
}

// RemoveColumn returns a copy of the table without column i, along with the removed cells.
func (t *Table) RemoveColumn(i int) (*Table, []Cell, error) {
	if i < 0 || i >= len(t.Columns) {
		return nil, nil, pipelineErrors.ContractViolation("column %d out of range [0,%d)", i, len(t.Columns))
	}

	removed := t.Column(i)
	out, err := t.DropColumns(func(idx int, _ Column) bool { return idx == i })
	if err != nil {
		return nil, nil, err
	}
	return out, removed, nil
}

// DropColumns returns a copy of the table without every column for which drop returns true.
func (t *Table) DropColumns(drop func(int, Column) bool) (*Table, error) {
	keep := make([]int, 0, len(t.Columns))
	columns := make([]Column, 0, len(t.Columns))
	for i, c := range t.Columns {
		if drop(i, c) {
			continue
		}
		keep = append(keep, i)
		columns = append(columns, c)
	}

	rows := make([]Row, len(t.Rows))
	for r, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return nil, pipelineErrors.ContractViolation("row %d has %d cells, expected %d", r, len(row), len(t.Columns))
		}
		out := make(Row, len(keep))
		for j, idx := range keep {
			out[j] = row[idx]
		}
		rows[r] = out
	}

	return New(t.Name, columns, rows)
}

// PrependColumn returns a copy of the table with a new column at index 0.
func (t *Table) PrependColumn(column Column, cells []Cell) (*Table, error) {
	if len(cells) != len(t.Rows) {
		return nil, pipelineErrors.ContractViolation("prepending %d cells to a table of %d rows", len(cells), len(t.Rows))
	}

	columns := make([]Column, 0, len(t.Columns)+1)
	columns = append(columns, column)
	columns = append(columns, t.Columns...)

	rows := make([]Row, len(t.Rows))
	for r, row := range t.Rows {
		out := make(Row, 0, len(row)+1)
		out = append(out, cells[r])
		out = append(out, row...)
		rows[r] = out
	}

	return New(t.Name, columns, rows)
}

func (t *Table) String() string {
	return fmt.Sprintf("table '%s' (%d columns, %d rows)", t.Name, len(t.Columns), len(t.Rows))
}
