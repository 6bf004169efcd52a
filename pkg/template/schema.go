// Package template describes the schemas that drive record flattening and the registries that
// resolve them by template id.
package template

import (
	"fmt"
	"strings"

	"sigs.k8s.io/yaml"
)

// Node is one element of a template schema. ID is the segment the node contributes to the
// dotted output path. Key is the gjson path of the node's value relative to its parent value
// and defaults to ID. A Multiple node expects an array and emits one entry per element.
type Node struct {
	ID       string  `json:"id"`
	Key      string  `json:"key,omitempty"`
	Multiple bool    `json:"multiple,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// Path returns the gjson path used to read the node's value.
func (n *Node) Path() string {
	if n.Key != "" {
		return n.Key
	}
	return n.ID
}

func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Schema is the structural description of one template.
type Schema struct {
	TemplateID string `json:"templateId"`
	Root       *Node  `json:"root"`
}

// ParseSchema decodes a YAML or JSON schema document and validates it.
func ParseSchema(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.UnmarshalStrict(data, &s); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks that the schema has a template id and a root, that every node has an id
// without dots and that sibling ids are unique.
func (s *Schema) Validate() error {
	if s.TemplateID == "" {
		return fmt.Errorf("schema has no templateId")
	}
	if s.Root == nil {
		return fmt.Errorf("schema '%s' has no root", s.TemplateID)
	}
	return validateNode(s.TemplateID, s.Root.ID, s.Root)
}

// reservedIDChars are the output path separators and the gjson path syntax. An id is used as
// the default key, so it must address exactly the member it names.
const reservedIDChars = `.:*?#|@!\`

func validateNode(templateID, path string, n *Node) error {
	if n.ID == "" {
		return fmt.Errorf("schema '%s': node under '%s' has no id", templateID, path)
	}
	if strings.ContainsAny(n.ID, reservedIDChars) {
		return fmt.Errorf("schema '%s': node id '%s' must not contain any of '%s'", templateID, n.ID, reservedIDChars)
	}

	seen := make(map[string]struct{}, len(n.Children))
	for _, child := range n.Children {
		if child == nil {
			return fmt.Errorf("schema '%s': empty child under '%s'", templateID, path)
		}
		if _, ok := seen[child.ID]; ok {
			return fmt.Errorf("schema '%s': duplicate node id '%s' under '%s'", templateID, child.ID, path)
		}
		seen[child.ID] = struct{}{}

		if err := validateNode(templateID, path+"."+child.ID, child); err != nil {
			return err
		}
	}
	return nil
}
