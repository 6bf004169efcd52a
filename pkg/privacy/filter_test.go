package privacy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/researchportal/resultpipe/pkg/table"
)

func newTable(t *testing.T) *table.Table {
	t.Helper()
	tbl, err := table.New("T",
		[]table.Column{{Name: "pseudonym", Path: "pseudonym"}, {Name: "name", Path: "p/name"}, {Name: "sys", Path: "o/sys"}},
		[]table.Row{
			{table.Scalar("psn-1"), table.Scalar("Alice"), table.Scalar(120.0)},
			{table.Scalar("psn-2"), table.Scalar("Bob"), table.Null()},
		},
	)
	require.NoError(t, err)
	return tbl
}

func TestFilter(t *testing.T) {
	out, err := Filter(NewPathBlacklist("p/name", "unused"), []*table.Table{newTable(t), newTable(t)})
	require.NoError(t, err)
	require.Len(t, out, 2)

	for _, tbl := range out {
		require.Equal(t, []table.Column{{Name: "pseudonym", Path: "pseudonym"}, {Name: "sys", Path: "o/sys"}}, tbl.Columns)
		require.Equal(t, table.Row{table.Scalar("psn-1"), table.Scalar(120.0)}, tbl.Rows[0])
		require.Equal(t, table.Row{table.Scalar("psn-2"), table.Null()}, tbl.Rows[1])
		require.Equal(t, "T", tbl.Name)
	}
}

func TestFilterMatchesPathsExactly(t *testing.T) {
	out, err := Filter(NewPathBlacklist("p/nam", "P/NAME", "name"), []*table.Table{newTable(t)})
	require.NoError(t, err)
	require.Equal(t, 3, out[0].Width())
}

func TestFilterEmptyBlacklistKeepsEverything(t *testing.T) {
	out, err := Filter(NewPathBlacklist(), []*table.Table{newTable(t)})
	require.NoError(t, err)
	require.Equal(t, newTable(t), out[0])
}

func TestFilterUnavailableWithholdsEverything(t *testing.T) {
	out, err := Filter(Unavailable(), []*table.Table{newTable(t)})
	require.NoError(t, err)
	require.NotNil(t, out)
	require.Empty(t, out)
}

func TestFilterRejectsMalformedTables(t *testing.T) {
	broken := &table.Table{Columns: []table.Column{{Name: "a", Path: "a"}}, Rows: []table.Row{{}}}

	_, err := Filter(NewPathBlacklist(), []*table.Table{broken})
	require.Error(t, err)
}

func TestDistinctIdentifiers(t *testing.T) {
	require.Equal(t, 2, DistinctIdentifiers(table.IdentifierList{"a", "b", "a"}))
	require.Zero(t, DistinctIdentifiers(nil))
}
