//go:generate mockgen -source engine.go -destination ../../internal/mocks/mock_query_engine.go -package mocks Engine

// Package queryengine is the client side of the clinical data engine that executes AQL queries.
package queryengine

import (
	"context"

	"github.com/researchportal/resultpipe/pkg/table"
)

// Query is one AQL query. When SelectIdentifier is set the engine must return the patient
// identifier as the first column of the result.
type Query struct {
	AQL              string
	Parameters       map[string]any
	SelectIdentifier bool
}

type Engine interface {
	Execute(ctx context.Context, query Query) (*table.Table, error)
}
