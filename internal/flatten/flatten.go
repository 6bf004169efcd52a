// Package flatten turns hierarchical clinical records into flat path to value mappings guided
// by the schema of the record's template.
package flatten

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/researchportal/resultpipe/pkg/table"
	"github.com/researchportal/resultpipe/pkg/template"

	pipelineErrors "github.com/researchportal/resultpipe/pkg/errors"
)

var tracer = otel.Tracer("resultpipe/internal/flatten")

// Flattener flattens records using schemas resolved from a template registry.
type Flattener struct {
	registry template.Registry
}

func New(registry template.Registry) *Flattener {
	return &Flattener{registry: registry}
}

// Flatten reads the record's template id, resolves its schema and walks the schema over the
// record fields. Output keys start with the schema root id. A record without a template id
// fails with ErrTemplateMissing, an unknown template with ErrTemplateUnresolved and a record
// whose structure contradicts its schema with ErrMalformedRecord. Any other registry failure
// is returned as is.
func (f *Flattener) Flatten(ctx context.Context, rec *table.Record) (*Record, error) {
	if rec == nil || !rec.Valid() {
		return nil, pipelineErrors.MalformedRecord("fields are not a JSON object")
	}

	templateID, ok := rec.TemplateID()
	if !ok {
		return nil, pipelineErrors.ErrTemplateMissing
	}

	ctx, span := tracer.Start(ctx, "template.Resolve", trace.WithAttributes(attribute.String("template_id", templateID)))
	schema, err := f.registry.Resolve(ctx, templateID)
	span.End()
	if err != nil {
		if errors.Is(err, template.ErrNotFound) {
			return nil, pipelineErrors.TemplateUnresolved(templateID, err)
		}
		return nil, fmt.Errorf("resolve template '%s': %w", templateID, err)
	}

	out := NewRecord(templateID)
	root := schema.Root
	if err := walk(out, root.ID, root, rec.Fields().Get(root.Path())); err != nil {
		return nil, err
	}
	return out, nil
}

func walk(out *Record, path string, node *template.Node, value gjson.Result) error {
	if !value.Exists() || value.Type == gjson.Null {
		return nil
	}

	if !node.Multiple {
		return emit(out, path, node, value)
	}

	if !value.IsArray() {
		return pipelineErrors.MalformedRecord(fmt.Sprintf("node '%s' expects a list", path))
	}
	var err error
	index := 0
	value.ForEach(func(_, element gjson.Result) bool {
		if element.Type != gjson.Null {
			err = emit(out, path+":"+strconv.Itoa(index), node, element)
		}
		index++
		return err == nil
	})
	return err
}

func emit(out *Record, path string, node *template.Node, value gjson.Result) error {
	if node.IsLeaf() {
		out.Set(path, scalar(value))
		return nil
	}

	if !value.IsObject() && !value.IsArray() {
		return pipelineErrors.MalformedRecord(fmt.Sprintf("node '%s' holds a scalar where a structure is expected", path))
	}

	for _, child := range node.Children {
		if err := walk(out, path+"."+child.ID, child, value.Get(child.Path())); err != nil {
			return err
		}
	}
	return nil
}

// scalar converts a leaf value. Structured leaf values are kept as their JSON text.
func scalar(value gjson.Result) table.Cell {
	switch value.Type {
	case gjson.String:
		return table.Scalar(value.Str)
	case gjson.Number:
		return table.Scalar(json.Number(value.Raw))
	case gjson.True:
		return table.Scalar(true)
	case gjson.False:
		return table.Scalar(false)
	}
	return table.Scalar(value.Raw)
}
