package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/researchportal/resultpipe/internal/build"
)

func TestVersionCommand(t *testing.T) {
	rootCmd := NewRootCommand()
	rootCmd.AddCommand(NewVersionCommand())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})

	require.NoError(t, rootCmd.Execute())
	require.Contains(t, out.String(), "resultpipe Version "+build.Version)
}
