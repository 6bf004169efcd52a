package flatten

import (
	"github.com/emirpasic/gods/maps/linkedhashmap"

	"github.com/researchportal/resultpipe/pkg/table"
)

// Record is a flattened record: dotted paths mapped to scalar cells, kept in the order the
// paths were first written.
type Record struct {
	TemplateID string

	values *linkedhashmap.Map
}

func NewRecord(templateID string) *Record {
	return &Record{TemplateID: templateID, values: linkedhashmap.New()}
}

// Set stores the value at key. Re-setting a key keeps its original position.
func (r *Record) Set(key string, value table.Cell) {
	r.values.Put(key, value)
}

func (r *Record) Get(key string) (table.Cell, bool) {
	v, ok := r.values.Get(key)
	if !ok {
		return table.Null(), false
	}
	return v.(table.Cell), true
}

// Keys returns the paths in insertion order.
func (r *Record) Keys() []string {
	keys := make([]string, 0, r.values.Size())
	it := r.values.Iterator()
	for it.Next() {
		keys = append(keys, it.Key().(string))
	}
	return keys
}

func (r *Record) Len() int {
	return r.values.Size()
}
