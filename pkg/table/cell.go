package table

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

const (
	// TypeDiscriminatorKey is the member of a JSON object cell that names its clinical type.
	TypeDiscriminatorKey = "_type"

	// RecordTypeName is the discriminator value of a hierarchical clinical record.
	RecordTypeName = "COMPOSITION"

	// TemplateIDPath is the gjson path of the template id inside a record's fields.
	TemplateIDPath = "archetype_details.template_id.value"
)

// Record is one hierarchical clinical record (composition) returned by the query engine.
// The fields are kept as raw JSON and addressed by path.
type Record struct {
	fields []byte
}

// NewRecord copies fields into a new Record.
func NewRecord(fields []byte) *Record {
	return &Record{fields: bytes.Clone(fields)}
}

// Raw returns the raw JSON fields. Callers must not modify the returned slice.
func (r *Record) Raw() []byte {
	return r.fields
}

// Fields returns the parsed fields of the record.
func (r *Record) Fields() gjson.Result {
	return gjson.ParseBytes(r.fields)
}

// Valid reports whether the record fields are a well-formed JSON object.
func (r *Record) Valid() bool {
	return gjson.ValidBytes(r.fields) && gjson.ParseBytes(r.fields).IsObject()
}

// TemplateID returns the template id stored at TemplateIDPath.
func (r *Record) TemplateID() (string, bool) {
	v := gjson.GetBytes(r.fields, TemplateIDPath)
	if v.Type != gjson.String || v.Str == "" {
		return "", false
	}
	return v.Str, true
}

// Cell is a tagged value: either a scalar (which may be null) or a Record. The tag is decided
// once when the cell is decoded and never re-inspected.
type Cell struct {
	value  any
	record *Record
}

// Null returns the explicit absent marker.
func Null() Cell {
	return Cell{}
}

// Scalar wraps a primitive value. Supported values are nil, bool, float64, string,
// json.Number and json.RawMessage (opaque structured values that are not records).
func Scalar(v any) Cell {
	return Cell{value: v}
}

// RecordCell wraps a record. A nil record yields Null.
func RecordCell(r *Record) Cell {
	return Cell{record: r}
}

func (c Cell) IsRecord() bool {
	return c.record != nil
}

func (c Cell) IsNull() bool {
	return c.record == nil && c.value == nil
}

// Record returns the wrapped record, if any.
func (c Cell) Record() (*Record, bool) {
	return c.record, c.record != nil
}

// Value returns the scalar value. It is nil for records and nulls.
func (c Cell) Value() any {
	return c.value
}

func (c Cell) String() string {
	switch {
	case c.record != nil:
		return "<record>"
	case c.value == nil:
		return "<null>"
	}
	if raw, ok := c.value.(json.RawMessage); ok {
		return string(raw)
	}
	return fmt.Sprint(c.value)
}

func (c Cell) MarshalJSON() ([]byte, error) {
	if c.record != nil {
		return c.record.fields, nil
	}
	if raw, ok := c.value.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(c.value)
}

func (c *Cell) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeCell(data)
	if err != nil {
		return err
	}
	*c = decoded
	return nil
}

// DecodeCell decides the tag of one JSON cell. Objects whose discriminator names a record
// become records, other objects and arrays become opaque scalars.
func DecodeCell(raw []byte) (Cell, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || !gjson.ValidBytes(trimmed) {
		return Cell{}, fmt.Errorf("invalid JSON cell")
	}

	switch trimmed[0] {
	case 'n':
		return Null(), nil
	case '{':
		if gjson.GetBytes(trimmed, TypeDiscriminatorKey).String() == RecordTypeName {
			return RecordCell(NewRecord(trimmed)), nil
		}
		return Scalar(json.RawMessage(bytes.Clone(trimmed))), nil
	case '[':
		return Scalar(json.RawMessage(bytes.Clone(trimmed))), nil
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var v any
	if err := decoder.Decode(&v); err != nil {
		return Cell{}, fmt.Errorf("decode scalar cell: %w", err)
	}
	return Scalar(v), nil
}
