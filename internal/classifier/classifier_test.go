package classifier

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/researchportal/resultpipe/pkg/table"
)

func record(t *testing.T, templateID string, n int) table.Cell {
	t.Helper()
	cell, err := table.DecodeCell([]byte(fmt.Sprintf(
		`{"_type":"COMPOSITION","archetype_details":{"template_id":{"value":%q}},"uid":"%d"}`, templateID, n)))
	require.NoError(t, err)
	return cell
}

func TestClassifyUniform(t *testing.T) {
	tbl, err := table.New("",
		[]table.Column{{Name: "bp", Path: "c1"}, {Name: "bp", Path: "c2"}},
		[]table.Row{
			{record(t, "Blood Pressure", 0), record(t, "Weight", 1)},
			{record(t, "Blood Pressure", 2), record(t, "Weight", 3)},
		},
	)
	require.NoError(t, err)

	classification := Classify(tbl)
	require.Equal(t, Uniform, classification.Kind)
	require.Nil(t, classification.Table)
	require.Len(t, classification.Buckets, 2)

	// same column name, different columns
	first, second := classification.Buckets[0], classification.Buckets[1]
	require.Equal(t, 0, first.ColumnIndex)
	require.Equal(t, 1, second.ColumnIndex)
	require.Equal(t, "bp", first.Column.Name)
	require.Equal(t, []int{0, 1}, first.Rows)
	require.Len(t, first.Records, 2)

	templateID, ok := second.Records[1].TemplateID()
	require.True(t, ok)
	require.Equal(t, "Weight", templateID)
	require.Contains(t, string(second.Records[1].Raw()), `"uid":"3"`)
}

func TestClassifyMixed(t *testing.T) {
	tests := map[string]table.Row{
		`scalar_first`: {table.Scalar("x"), record(t, "T", 0)},
		`scalar_last`:  {record(t, "T", 0), table.Scalar("x")},
		`null_cell`:    {record(t, "T", 0), table.Null()},
	}

	for name, row := range tests {
		t.Run(name, func(t *testing.T) {
			tbl, err := table.New("",
				[]table.Column{{Name: "a", Path: "a"}, {Name: "b", Path: "b"}},
				[]table.Row{{record(t, "T", 1), record(t, "T", 2)}, row},
			)
			require.NoError(t, err)

			classification := Classify(tbl)
			require.Equal(t, Mixed, classification.Kind)
			require.Same(t, tbl, classification.Table)
			require.Empty(t, classification.Buckets)
		})
	}
}

func TestClassifyDegenerate(t *testing.T) {
	noRows, err := table.New("", []table.Column{{Name: "a", Path: "a"}}, nil)
	require.NoError(t, err)
	require.Equal(t, Mixed, Classify(noRows).Kind)

	noColumns, err := table.New("", nil, []table.Row{{}, {}})
	require.NoError(t, err)
	require.Equal(t, Mixed, Classify(noColumns).Kind)
}

func TestKindString(t *testing.T) {
	require.Equal(t, "uniform", Uniform.String())
	require.Equal(t, "mixed", Mixed.String())
}
