// Package unify merges flattened records with differing key sets into one table.
package unify

import (
	"github.com/emirpasic/gods/maps/linkedhashmap"

	"github.com/researchportal/resultpipe/internal/flatten"
	"github.com/researchportal/resultpipe/pkg/table"
)

// Unify builds a table whose columns are the union of the record keys in first-seen order.
// Row i holds the values of record i, with Null for every key the record lacks. Each column's
// name and path are the key itself.
func Unify(records []*flatten.Record, label string) (*table.Table, error) {
	// key -> column index
	columns := linkedhashmap.New()
	for _, rec := range records {
		for _, key := range rec.Keys() {
			if _, ok := columns.Get(key); !ok {
				columns.Put(key, columns.Size())
			}
		}
	}

	cols := make([]table.Column, 0, columns.Size())
	it := columns.Iterator()
	for it.Next() {
		key := it.Key().(string)
		cols = append(cols, table.Column{Name: key, Path: key})
	}

	rows := make([]table.Row, len(records))
	for i, rec := range records {
		row := make(table.Row, len(cols))
		for j := range row {
			row[j] = table.Null()
		}
		for _, key := range rec.Keys() {
			idx, _ := columns.Get(key)
			row[idx.(int)], _ = rec.Get(key)
		}
		rows[i] = row
	}

	return table.New(label, cols, rows)
}
