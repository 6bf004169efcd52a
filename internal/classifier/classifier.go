// Package classifier decides whether a query result consists solely of records, in which case
// they are grouped per column for flattening, or must be passed through unchanged.
package classifier

import (
	"github.com/emirpasic/gods/maps/linkedhashmap"

	"github.com/researchportal/resultpipe/pkg/table"
)

type Kind int

const (
	// Uniform means every cell of the result is a record.
	Uniform Kind = iota
	// Mixed means at least one cell is not a record, or the result has no cells.
	Mixed
)

func (k Kind) String() string {
	switch k {
	case Uniform:
		return "uniform"
	case Mixed:
		return "mixed"
	}
	return "unknown"
}

// Bucket holds the records of one result column in row order. Rows holds the source row index
// of each record.
type Bucket struct {
	ColumnIndex int
	Column      table.Column
	Records     []*table.Record
	Rows        []int
}

// Classification is the outcome of Classify. Buckets is set only for Uniform results and
// Table only for Mixed results.
type Classification struct {
	Kind    Kind
	Table   *table.Table
	Buckets []Bucket
}

// Classify scans the result row by row. The first non-record cell aborts the scan and the
// result is returned unchanged as Mixed.
func Classify(t *table.Table) Classification {
	mixed := Classification{Kind: Mixed, Table: t}
	if t.Width() == 0 || t.Len() == 0 {
		return mixed
	}

	// column index -> *Bucket, in first-seen order
	buckets := linkedhashmap.New()
	for r, row := range t.Rows {
		for c, cell := range row {
			record, ok := cell.Record()
			if !ok {
				return mixed
			}

			var bucket *Bucket
			if found, ok := buckets.Get(c); ok {
				bucket = found.(*Bucket)
			} else {
				bucket = &Bucket{ColumnIndex: c, Column: t.Columns[c]}
				buckets.Put(c, bucket)
			}
			bucket.Records = append(bucket.Records, record)
			bucket.Rows = append(bucket.Rows, r)
		}
	}

	out := make([]Bucket, 0, buckets.Size())
	it := buckets.Iterator()
	for it.Next() {
		out = append(out, *it.Value().(*Bucket))
	}

	return Classification{Kind: Uniform, Buckets: out}
}
