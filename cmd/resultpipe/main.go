package main

import (
	"os"

	"github.com/researchportal/resultpipe/cmd"
	"github.com/researchportal/resultpipe/cmd/execute"
	"github.com/researchportal/resultpipe/cmd/validate"
)

func main() {
	rootCmd := cmd.NewRootCommand()

	rootCmd.AddCommand(execute.NewExecuteCommand())
	rootCmd.AddCommand(validate.NewValidateTemplatesCommand())
	rootCmd.AddCommand(validate.NewValidateBlacklistCommand())
	rootCmd.AddCommand(cmd.NewVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
