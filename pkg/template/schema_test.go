package template

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const bloodPressureYAML = `
templateId: Blood Pressure
root:
  id: blood_pressure
  key: content.0
  children:
    - id: systolic
      key: data.events.0.systolic.magnitude
    - id: diastolic
      key: data.events.0.diastolic.magnitude
    - id: position
      key: data.events.0.state.position.value
`

func TestParseSchema(t *testing.T) {
	s, err := ParseSchema([]byte(bloodPressureYAML))
	require.NoError(t, err)
	require.Equal(t, "Blood Pressure", s.TemplateID)
	require.Equal(t, "content.0", s.Root.Path())
	require.Len(t, s.Root.Children, 3)
	require.True(t, s.Root.Children[0].IsLeaf())

	s, err = ParseSchema([]byte(`{"templateId":"W","root":{"id":"weight","children":[{"id":"kg"}]}}`))
	require.NoError(t, err)
	require.Equal(t, "kg", s.Root.Children[0].Path())
}

func TestSchemaValidate(t *testing.T) {
	tests := map[string]struct {
		schema        Schema
		expectedError string
	}{
		`missing_template_id`: {
			schema:        Schema{Root: &Node{ID: "r"}},
			expectedError: "no templateId",
		},
		`missing_root`: {
			schema:        Schema{TemplateID: "T"},
			expectedError: "has no root",
		},
		`missing_node_id`: {
			schema:        Schema{TemplateID: "T", Root: &Node{ID: "r", Children: []*Node{{Key: "a"}}}},
			expectedError: "has no id",
		},
		`dotted_node_id`: {
			schema:        Schema{TemplateID: "T", Root: &Node{ID: "r", Children: []*Node{{ID: "a.b"}}}},
			expectedError: "must not contain",
		},
		`wildcard_node_id`: {
			schema:        Schema{TemplateID: "T", Root: &Node{ID: "r", Children: []*Node{{ID: "weight*"}}}},
			expectedError: "node id 'weight*' must not contain",
		},
		`single_char_wildcard_node_id`: {
			schema:        Schema{TemplateID: "T", Root: &Node{ID: "r", Children: []*Node{{ID: "kg?"}}}},
			expectedError: "must not contain",
		},
		`modifier_root_id`: {
			schema:        Schema{TemplateID: "T", Root: &Node{ID: "@this"}},
			expectedError: "node id '@this' must not contain",
		},
		`pipe_node_id`: {
			schema:        Schema{TemplateID: "T", Root: &Node{ID: "r", Children: []*Node{{ID: "a|b"}}}},
			expectedError: "must not contain",
		},
		`count_node_id`: {
			schema:        Schema{TemplateID: "T", Root: &Node{ID: "r", Children: []*Node{{ID: "#"}}}},
			expectedError: "must not contain",
		},
		`duplicate_sibling`: {
			schema:        Schema{TemplateID: "T", Root: &Node{ID: "r", Children: []*Node{{ID: "a"}, {ID: "a", Key: "x"}}}},
			expectedError: "duplicate node id 'a'",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require.ErrorContains(t, test.schema.Validate(), test.expectedError)
		})
	}
}

func TestParseSchemaRejectsUnknownFields(t *testing.T) {
	_, err := ParseSchema([]byte(`{"templateId":"T","root":{"id":"r","path":"x"}}`))
	require.Error(t, err)
}
