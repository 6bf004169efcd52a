package queryengine

import (
	"fmt"
	"regexp"
)

// selectClause matches the leading projection keywords: SELECT, an optional DISTINCT and an
// optional TOP n.
var selectClause = regexp.MustCompile(`(?is)^\s*SELECT(\s+DISTINCT)?(\s+TOP\s+\d+)?\s+`)

// WithIdentifierSelection inserts the identifier selection as the first projection of aql.
func WithIdentifierSelection(aql, identifierSelection string) (string, error) {
	loc := selectClause.FindStringIndex(aql)
	if loc == nil {
		return "", fmt.Errorf("query does not start with SELECT")
	}
	return aql[:loc[1]] + identifierSelection + ", " + aql[loc[1]:], nil
}
