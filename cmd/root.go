// Package cmd contains all the commands included in the binary file.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCommand enables all children commands to read flags from CLI flags, environment variables prefixed with RESULTPIPE, or config.yaml (in that order).
func NewRootCommand() *cobra.Command {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("RESULTPIPE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	configPaths := []string{"/etc/resultpipe", "$HOME/.resultpipe", "."}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	return &cobra.Command{
		Use:   "resultpipe",
		Short: "Post-process clinical query results into flat, pseudonymized tables",
		Long: `Post-process clinical query results into flat, pseudonymized tables.

resultpipe runs a query against the clinical data engine, flattens the hierarchical records of
the result into one table per template, replaces patient identifiers with project pseudonyms
and removes every column whose path is on the privacy blacklist.`,
		SilenceUsage: true,
	}
}
