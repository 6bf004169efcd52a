package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestMustBindPFlag(t *testing.T) {
	t.Cleanup(viper.Reset)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("min-row-count", 0, "")
	MustBindPFlag("privacy.minRowCount", flags.Lookup("min-row-count"))

	require.NoError(t, flags.Parse([]string{"--min-row-count=5"}))
	require.Equal(t, 5, viper.GetInt("privacy.minRowCount"))

	require.Panics(t, func() { MustBindPFlag("privacy.other", nil) })
}

func TestMustBindEnv(t *testing.T) {
	t.Cleanup(viper.Reset)

	t.Setenv("RESULTPIPE_PIPELINE_IDENTIFIER_PATH", "c/uid/value")
	MustBindEnv("pipeline.identifierPath", "RESULTPIPE_PIPELINE_IDENTIFIER_PATH")
	require.Equal(t, "c/uid/value", viper.GetString("pipeline.identifierPath"))

	require.Panics(t, func() { MustBindEnv() })
}

func TestPrepareTempConfigFile(t *testing.T) {
	PrepareTempConfigFile(t, "log:\n  level: debug\n")

	data, err := os.ReadFile(filepath.Join(os.Getenv("HOME"), ".resultpipe", "config.yaml"))
	require.NoError(t, err)
	require.Equal(t, "log:\n  level: debug\n", string(data))
}
