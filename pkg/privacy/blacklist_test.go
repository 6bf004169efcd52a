package privacy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/researchportal/resultpipe/pkg/logger"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))
	return file
}

func TestLoadPathBlacklist(t *testing.T) {
	tests := map[string]struct {
		name, content string
		expected      []string
	}{
		`line_based`: {
			name:     "blacklist.txt",
			content:  "# protected\n\n  p/name  \np/birth\n",
			expected: []string{"p/birth", "p/name"},
		},
		`yaml_list`: {
			name:     "blacklist.yaml",
			content:  "- p/name\n- p/address\n",
			expected: []string{"p/address", "p/name"},
		},
		`yaml_document`: {
			name:     "blacklist.yml",
			content:  "paths:\n  - p/name\n",
			expected: []string{"p/name"},
		},
		`json_list`: {
			name:     "blacklist.json",
			content:  `["p/name", "p/name"]`,
			expected: []string{"p/name"},
		},
		`empty_list_is_available`: {
			name:     "blacklist.json",
			content:  `{"paths": []}`,
			expected: []string{},
		},
		`empty_yaml_list_is_available`: {
			name:     "blacklist.yaml",
			content:  "[]\n",
			expected: []string{},
		},
		`comment_only_line_file_is_available`: {
			name:     "blacklist.txt",
			content:  "# nothing is protected\n",
			expected: []string{},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			blacklist := LoadPathBlacklist(writeFile(t, test.name, test.content), logger.NewNoopLogger())

			require.True(t, blacklist.Available())
			require.Equal(t, test.expected, blacklist.Paths())
			require.Equal(t, len(test.expected), blacklist.Len())
		})
	}
}

func TestLoadPathBlacklistFailuresAreUnavailable(t *testing.T) {
	tests := map[string]string{
		`not_configured`:  "",
		`missing_file`:    filepath.Join(t.TempDir(), "absent.txt"),
		`undecodable`:     writeFile(t, "blacklist.yaml", "paths: {nested: true}\n"),
		`empty_document`:  writeFile(t, "blacklist.json", "  "),
		`empty_line_file`: writeFile(t, "blacklist.txt", ""),
		`blank_line_file`: writeFile(t, "blacklist.txt", "\n  \n\t\n"),
		`empty_yaml_file`: writeFile(t, "blacklist.yaml", ""),
		`null_document`:   writeFile(t, "blacklist.yaml", "~\n"),
		`unknown_field`:   writeFile(t, "blacklist.yaml", "columns:\n  - p/name\n"),
	}

	for name, file := range tests {
		t.Run(name, func(t *testing.T) {
			log, logs := logger.NewObserverLogger("error")

			blacklist := LoadPathBlacklist(file, log)
			require.False(t, blacklist.Available())
			require.Equal(t, Unavailable(), blacklist)
			require.Equal(t, 1, logs.Len())
		})
	}
}

func TestPathBlacklist(t *testing.T) {
	blacklist := NewPathBlacklist("a", " ", "b")
	require.True(t, blacklist.Contains("a"))
	require.False(t, blacklist.Contains("c"))
	require.Equal(t, 2, blacklist.Len())

	var zero PathBlacklist
	require.False(t, zero.Available())
	require.False(t, zero.Contains("a"))
	require.Nil(t, zero.Paths())
}
