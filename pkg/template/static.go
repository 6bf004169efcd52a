package template

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sourcegraph/conc/pool"
)

const maxConcurrentLoads = 8

// StaticRegistry serves a fixed set of schemas.
type StaticRegistry struct {
	schemas map[string]*Schema
}

var _ Registry = (*StaticRegistry)(nil)

// NewStaticRegistry validates the schemas and indexes them by template id.
func NewStaticRegistry(schemas ...*Schema) (*StaticRegistry, error) {
	r := &StaticRegistry{schemas: make(map[string]*Schema, len(schemas))}
	for _, s := range schemas {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, ok := r.schemas[s.TemplateID]; ok {
			return nil, fmt.Errorf("duplicate schema for template '%s'", s.TemplateID)
		}
		r.schemas[s.TemplateID] = s
	}
	return r, nil
}

// LoadStaticRegistry reads every .yaml, .yml and .json file of dir as a schema.
func LoadStaticRegistry(ctx context.Context, dir string) (*StaticRegistry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read template directory: %w", err)
	}

	p := pool.NewWithResults[*Schema]().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError().
		WithMaxGoroutines(maxConcurrentLoads)

	for _, entry := range entries {
		if entry.IsDir() || !isSchemaFile(entry.Name()) {
			continue
		}

		file := filepath.Join(dir, entry.Name())
		p.Go(func(ctx context.Context) (*Schema, error) {
			data, err := os.ReadFile(file)
			if err != nil {
				return nil, err
			}
			s, err := ParseSchema(data)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", entry.Name(), err)
			}
			return s, nil
		})
	}

	schemas, err := p.Wait()
	if err != nil {
		return nil, err
	}
	return NewStaticRegistry(schemas...)
}

func isSchemaFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

func (r *StaticRegistry) Resolve(_ context.Context, templateID string) (*Schema, error) {
	s, ok := r.schemas[templateID]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrNotFound, templateID)
	}
	return s, nil
}

// TemplateIDs returns the known template ids in sorted order.
func (r *StaticRegistry) TemplateIDs() []string {
	ids := make([]string, 0, len(r.schemas))
	for id := range r.schemas {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
