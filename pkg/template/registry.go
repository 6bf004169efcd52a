//go:generate mockgen -source registry.go -destination ../../internal/mocks/mock_template_registry.go -package mocks Registry

package template

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a Registry that has no schema for the requested template id.
var ErrNotFound = errors.New("template not found")

// Registry resolves template ids to schemas. Implementations must be safe for concurrent use.
type Registry interface {
	Resolve(ctx context.Context, templateID string) (*Schema, error)
}
