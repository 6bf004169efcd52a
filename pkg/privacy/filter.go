package privacy

import (
	"github.com/researchportal/resultpipe/pkg/table"
)

// Filter drops every column whose path is on the blacklist from every table. When the
// blacklist is unavailable no table is returned at all.
func Filter(blacklist PathBlacklist, tables []*table.Table) ([]*table.Table, error) {
	if !blacklist.Available() {
		return []*table.Table{}, nil
	}

	out := make([]*table.Table, 0, len(tables))
	for _, t := range tables {
		filtered, err := t.DropColumns(func(_ int, c table.Column) bool {
			return blacklist.Contains(c.Path)
		})
		if err != nil {
			return nil, err
		}
		out = append(out, filtered)
	}
	return out, nil
}

// DistinctIdentifiers counts the distinct identifiers of a result.
func DistinctIdentifiers(ids table.IdentifierList) int {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return len(seen)
}
