package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/researchportal/resultpipe/internal/identifier"
	"github.com/researchportal/resultpipe/pkg/privacy"
	"github.com/researchportal/resultpipe/pkg/table"
	"github.com/researchportal/resultpipe/pkg/template"
)

var (
	vitalsSchema = &template.Schema{
		TemplateID: "T",
		Root: &template.Node{
			ID:  "t",
			Key: "content",
			Children: []*template.Node{
				{ID: "a"}, {ID: "b"}, {ID: "c"},
				{ID: "obs", Children: []*template.Node{{ID: "v"}}},
			},
		},
	}

	weightSchema = &template.Schema{
		TemplateID: "W",
		Root: &template.Node{
			ID:       "w",
			Key:      "content",
			Children: []*template.Node{{ID: "kg"}},
		},
	}
)

func newRegistry(t *testing.T) template.Registry {
	t.Helper()
	registry, err := template.NewStaticRegistry(vitalsSchema, weightSchema)
	require.NoError(t, err)
	return registry
}

// composition renders a record of templateID whose content holds fields.
func composition(t *testing.T, templateID string, fields map[string]any) table.Cell {
	t.Helper()
	content, err := json.Marshal(fields)
	require.NoError(t, err)

	cell, err := table.DecodeCell([]byte(fmt.Sprintf(
		`{"_type":"COMPOSITION","archetype_details":{"template_id":{"value":%q}},"content":%s}`, templateID, content)))
	require.NoError(t, err)
	require.True(t, cell.IsRecord())
	return cell
}

func idColumn() table.Column {
	return table.Column{Name: "#0", Path: identifier.DefaultPath}
}

func result(t *testing.T, columns []table.Column, rows ...table.Row) *table.Table {
	t.Helper()
	tbl, err := table.New("", append([]table.Column{idColumn()}, columns...), rows)
	require.NoError(t, err)
	return tbl
}

// mappingExchanger pseudonymizes by prefixing with the project scope. Identifiers listed in
// unresolved map to nil.
type mappingExchanger struct {
	calls      int
	unresolved map[string]bool
}

func (m *mappingExchanger) Exchange(ctx context.Context, ids table.IdentifierList, projectScope string) (table.PseudonymList, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.calls++
	out := make(table.PseudonymList, len(ids))
	for i, id := range ids {
		if m.unresolved[id] {
			continue
		}
		p := projectScope + "/" + id
		out[i] = &p
	}
	return out, nil
}

func openBlacklist() privacy.PathBlacklist {
	return privacy.NewPathBlacklist()
}

func columnPaths(tbl *table.Table) []string {
	paths := make([]string, len(tbl.Columns))
	for i, c := range tbl.Columns {
		paths[i] = c.Path
	}
	return paths
}

func requireRowWidth(t *testing.T, tables []*table.Table) {
	t.Helper()
	for _, tbl := range tables {
		for _, row := range tbl.Rows {
			require.Len(t, row, len(tbl.Columns))
		}
	}
}
