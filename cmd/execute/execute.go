// Package execute contains the command that runs a query and post-processes its result.
package execute

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/researchportal/resultpipe/internal/config"
	"github.com/researchportal/resultpipe/pkg/logger"
	"github.com/researchportal/resultpipe/pkg/pipeline"
	"github.com/researchportal/resultpipe/pkg/table"
)

const (
	queryFlag     = "query"
	queryFileFlag = "query-file"
	projectFlag   = "project"
	paramFlag     = "param"
	inputFlag     = "input"
)

func NewExecuteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Run a query and print the post-processed tables",
		Long: `Run a query against the clinical data engine and print the post-processed tables as JSON.

With --input the query engine is not contacted and the result stored in the given file is
post-processed instead. The result must contain the patient identifier column first.`,
		RunE: runExecute,
		Args: cobra.NoArgs,
	}

	defaultConfig := config.DefaultConfig()
	flags := cmd.Flags()

	flags.String(queryFlag, "", "the query to run")
	flags.String(queryFileFlag, "", "a file holding the query to run")
	flags.String(inputFlag, "", "a file holding a query result to post-process instead of running a query")
	cmd.MarkFlagsMutuallyExclusive(queryFlag, queryFileFlag, inputFlag)
	cmd.MarkFlagsOneRequired(queryFlag, queryFileFlag, inputFlag)

	flags.String(projectFlag, "", "the project scope of the pseudonyms. Without a project no pseudonyms are exchanged")
	flags.StringToString(paramFlag, nil, "a query parameter as key=value, may be repeated")

	flags.String("log-format", defaultConfig.Log.Format, "the log format to output logs in")
	flags.String("log-level", defaultConfig.Log.Level, "the log level to use")
	flags.String("log-timestamp-format", defaultConfig.Log.TimestampFormat, "the timestamp format to use for log messages")

	flags.Bool("trace-enabled", defaultConfig.Trace.Enabled, "enable tracing")
	flags.String("trace-otlp-endpoint", defaultConfig.Trace.OTLP.Endpoint, "the endpoint of the trace collector")
	flags.Float64("trace-sample-ratio", defaultConfig.Trace.SampleRatio, "the fraction of traces to sample. 1 means all, 0 means none")
	flags.String("trace-service-name", defaultConfig.Trace.ServiceName, "the service name included in sampled traces")

	flags.String("query-engine-url", defaultConfig.QueryEngine.URL, "the base URL of the clinical data engine")
	flags.String("query-engine-username", defaultConfig.QueryEngine.Username, "the basic auth username for the clinical data engine")
	flags.String("query-engine-password", defaultConfig.QueryEngine.Password, "the basic auth password for the clinical data engine")
	flags.Duration("query-engine-timeout", defaultConfig.QueryEngine.Timeout, "the timeout of one query engine request")
	flags.Int("query-engine-max-retries", defaultConfig.QueryEngine.MaxRetries, "how often a failed query engine request is retried")

	flags.String("templates-source", defaultConfig.Templates.Source, "where template schemas are loaded from ('static' or 'remote')")
	flags.String("templates-dir", defaultConfig.Templates.Dir, "the directory holding template schema files")
	flags.String("templates-url", defaultConfig.Templates.URL, "the base URL of the template service")
	flags.Int64("templates-cache-size", defaultConfig.Templates.CacheSize, "the number of remote template schemas to cache")
	flags.Duration("templates-cache-ttl", defaultConfig.Templates.CacheTTL, "how long a remote template schema is cached")

	flags.String("pseudonymization-mode", defaultConfig.Pseudonymization.Mode, "the pseudonym exchange to use ('http', 'local' or 'none')")
	flags.String("pseudonymization-url", defaultConfig.Pseudonymization.URL, "the base URL of the pseudonymization service")
	flags.String("pseudonymization-token", defaultConfig.Pseudonymization.Token, "the bearer token for the pseudonymization service")
	flags.Duration("pseudonymization-max-elapsed-time", defaultConfig.Pseudonymization.MaxElapsedTime, "how long a pseudonym exchange is retried")
	flags.String("pseudonymization-secret", defaultConfig.Pseudonymization.Secret, "the secret of the local pseudonym derivation")
	flags.String("pseudonymization-prefix", defaultConfig.Pseudonymization.Prefix, "the prefix of locally derived pseudonyms")

	flags.String("privacy-blacklist-file", defaultConfig.Privacy.BlacklistFile, "the file listing the column paths that are never returned")
	flags.Int("privacy-min-row-count", defaultConfig.Privacy.MinRowCount, "results with fewer distinct patients are withheld. 0 disables the check")

	flags.String("pipeline-identifier-path", defaultConfig.Pipeline.IdentifierPath, "the path of the patient identifier column")
	flags.String("pipeline-malformed-record-policy", defaultConfig.Pipeline.MalformedRecordPolicy, "what to do with malformed records ('fail' or 'skip')")

	// NOTE: if you add a new flag here, update the function in flags.go, too

	cmd.PreRun = bindRunFlagsFunc(flags)

	return cmd
}

// ReadConfig returns the configuration based on the values provided in the 'config.yaml' file.
// The 'config.yaml' file is loaded from '/etc/resultpipe', '$HOME/.resultpipe', or the current working directory. If no configuration
// file is present, the default values are returned.
func ReadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()

	viper.SetTypeByDefaultValue(true)
	err := viper.ReadInConfig()
	if err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

func runExecute(cmd *cobra.Command, _ []string) error {
	cfg, err := ReadConfig()
	if err != nil {
		return err
	}

	if err := cfg.Verify(); err != nil {
		return err
	}

	log := logger.MustNewLogger(cfg.Log.Format, cfg.Log.Level, cfg.Log.TimestampFormat)
	defer func() { _ = log.Sync() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	shutdownTracing := telemetryConfig(cfg, log)
	defer func() {
		if err := shutdownTracing(); err != nil {
			log.Error("failed to shut down tracing", zap.Error(err))
		}
	}()

	components, err := newComponents(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer components.Close()

	projectScope, _ := cmd.Flags().GetString(projectFlag)

	tables, err := run(ctx, cmd, components.Pipeline, projectScope)
	if err != nil {
		return err
	}

	marshalled, err := json.MarshalIndent(tables, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding tables: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(marshalled))
	return err
}

func run(ctx context.Context, cmd *cobra.Command, p *pipeline.Pipeline, projectScope string) ([]*table.Table, error) {
	flags := cmd.Flags()

	if input, _ := flags.GetString(inputFlag); input != "" {
		data, err := os.ReadFile(input)
		if err != nil {
			return nil, fmt.Errorf("failed to read input: %w", err)
		}
		result, err := table.Decode(data)
		if err != nil {
			return nil, err
		}
		return p.Process(ctx, result, projectScope)
	}

	query, _ := flags.GetString(queryFlag)
	if queryFile, _ := flags.GetString(queryFileFlag); queryFile != "" {
		data, err := os.ReadFile(queryFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read query: %w", err)
		}
		query = string(data)
	}
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query must not be empty")
	}

	params, _ := flags.GetStringToString(paramFlag)
	parameters := make(map[string]any, len(params))
	for k, v := range params {
		parameters[k] = v
	}

	return p.Execute(ctx, pipeline.Request{
		Query:        query,
		Parameters:   parameters,
		ProjectScope: projectScope,
	})
}
