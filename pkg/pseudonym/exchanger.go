//go:generate mockgen -source exchanger.go -destination ../../internal/mocks/mock_pseudonym_exchanger.go -package mocks Exchanger

// Package pseudonym replaces raw patient identifiers with project-scoped pseudonyms.
package pseudonym

import (
	"context"

	"github.com/researchportal/resultpipe/pkg/table"
)

// Exchanger converts identifiers into pseudonyms scoped to one research project. The returned
// list is index-correlated with ids and has the same length. An identifier that cannot be
// resolved maps to nil. Implementations make at most one batched remote call per Exchange and
// must never return raw identifiers in place of pseudonyms.
type Exchanger interface {
	Exchange(ctx context.Context, ids table.IdentifierList, projectScope string) (table.PseudonymList, error)
}
