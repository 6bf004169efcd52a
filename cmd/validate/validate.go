// Package validate contains the commands that check template schemas and path blacklists
// before they are deployed.
package validate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/researchportal/resultpipe/cmd/util"
	"github.com/researchportal/resultpipe/pkg/logger"
	"github.com/researchportal/resultpipe/pkg/privacy"
	"github.com/researchportal/resultpipe/pkg/template"
)

const (
	templatesDirFlag  = "templates-dir"
	blacklistFileFlag = "blacklist-file"
)

var errValidationFailed = errors.New("validation failed")

func NewValidateTemplatesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate-templates",
		Short: "Validate the template schemas of a directory",
		Long:  "Load every template schema of a directory and report the template ids, or the first invalid schema.",
		RunE:  runValidateTemplates,
		Args:  cobra.NoArgs,
	}

	flags := cmd.Flags()
	flags.String(templatesDirFlag, "./templates", "the directory holding template schema files")

	cmd.PreRun = func(_ *cobra.Command, _ []string) {
		util.MustBindPFlag("templates.dir", flags.Lookup(templatesDirFlag))
	}

	return cmd
}

func NewValidateBlacklistCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate-blacklist",
		Short: "Validate a path blacklist file",
		Long:  "Load a path blacklist file and report the paths it holds. A blacklist that cannot be loaded withholds every result.",
		RunE:  runValidateBlacklist,
		Args:  cobra.NoArgs,
	}

	flags := cmd.Flags()
	flags.String(blacklistFileFlag, "", "the path blacklist file")

	cmd.PreRun = func(_ *cobra.Command, _ []string) {
		util.MustBindPFlag("privacy.blacklistFile", flags.Lookup(blacklistFileFlag))
	}

	return cmd
}

type templatesResult struct {
	Dir         string   `json:"dir"`
	TemplateIDs []string `json:"template_ids"`
	Error       string   `json:"error,omitempty"`
}

type blacklistResult struct {
	File      string   `json:"file"`
	Available bool     `json:"available"`
	Paths     []string `json:"paths"`
}

func runValidateTemplates(cmd *cobra.Command, _ []string) error {
	dir := viper.GetString("templates.dir")

	result := ValidateTemplates(cmd.Context(), dir)
	if err := writeResult(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if result.Error != "" {
		return errValidationFailed
	}
	return nil
}

// ValidateTemplates loads every schema of dir.
func ValidateTemplates(ctx context.Context, dir string) templatesResult {
	if ctx == nil {
		ctx = context.Background()
	}

	result := templatesResult{Dir: dir, TemplateIDs: []string{}}
	registry, err := template.LoadStaticRegistry(ctx, dir)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.TemplateIDs = registry.TemplateIDs()
	return result
}

func runValidateBlacklist(cmd *cobra.Command, _ []string) error {
	file := viper.GetString("privacy.blacklistFile")

	log, err := logger.NewLogger("text", "error", "Unix")
	if err != nil {
		return err
	}

	blacklist := privacy.LoadPathBlacklist(file, log)
	result := blacklistResult{File: file, Available: blacklist.Available(), Paths: blacklist.Paths()}
	if err := writeResult(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if !result.Available {
		return errValidationFailed
	}
	return nil
}

func writeResult(w io.Writer, v any) error {
	marshalled, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("error gathering validation results: %w", err)
	}
	_, err = fmt.Fprintln(w, string(marshalled))
	return err
}
