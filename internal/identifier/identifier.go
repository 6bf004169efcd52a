// Package identifier enforces the identifier column contract of query results: column 0 holds
// the per-patient identifier and is split off before any other processing.
package identifier

import (
	"encoding/json"
	"strconv"

	"github.com/researchportal/resultpipe/pkg/table"

	pipelineErrors "github.com/researchportal/resultpipe/pkg/errors"
)

// DefaultPath is the selection path of the patient identifier in query results.
const DefaultPath = "e/ehr_id/value"

// Extract splits the identifier column off the result. The identifiers are returned in row
// order and the returned table holds the remaining columns. The input is not modified.
func Extract(result *table.Table, identifierPath string) (table.IdentifierList, *table.Table, error) {
	if result == nil || result.Width() < 2 {
		width := 0
		if result != nil {
			width = result.Width()
		}
		return nil, nil, pipelineErrors.MissingData("result has %d columns, expected an identifier column and at least one data column", width)
	}

	if result.Columns[0].Path != identifierPath {
		return nil, nil, pipelineErrors.ContractViolation("column 0 has path '%s', expected '%s'", result.Columns[0].Path, identifierPath)
	}

	rest, cells, err := result.RemoveColumn(0)
	if err != nil {
		return nil, nil, err
	}

	ids := make(table.IdentifierList, len(cells))
	for i, cell := range cells {
		id, err := render(cell)
		if err != nil {
			return nil, nil, pipelineErrors.ContractViolation("row %d: %v", i, err)
		}
		ids[i] = id
	}

	return ids, rest, nil
}

func render(cell table.Cell) (string, error) {
	if cell.IsRecord() {
		return "", errIdentifier("is a record")
	}

	switch v := cell.Value().(type) {
	case nil:
		return "", errIdentifier("is null")
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return "", errIdentifier("is not a scalar identifier")
	}
}

type errIdentifier string

func (e errIdentifier) Error() string {
	return "identifier " + string(e)
}
