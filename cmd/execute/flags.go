package execute

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/researchportal/resultpipe/cmd/util"
)

// bindRunFlagsFunc binds the cobra cmd flags to the equivalent config value being managed
// by viper. This bridges the config between cobra flags and viper flags.
func bindRunFlagsFunc(flags *pflag.FlagSet) func(*cobra.Command, []string) {
	return func(command *cobra.Command, args []string) {
		util.MustBindPFlag("log.format", flags.Lookup("log-format"))
		util.MustBindEnv("log.format", "RESULTPIPE_LOG_FORMAT")

		util.MustBindPFlag("log.level", flags.Lookup("log-level"))
		util.MustBindEnv("log.level", "RESULTPIPE_LOG_LEVEL")

		util.MustBindPFlag("log.timestampFormat", flags.Lookup("log-timestamp-format"))
		util.MustBindEnv("log.timestampFormat", "RESULTPIPE_LOG_TIMESTAMP_FORMAT")

		util.MustBindPFlag("trace.enabled", flags.Lookup("trace-enabled"))
		util.MustBindEnv("trace.enabled", "RESULTPIPE_TRACE_ENABLED")

		util.MustBindPFlag("trace.otlp.endpoint", flags.Lookup("trace-otlp-endpoint"))
		util.MustBindEnv("trace.otlp.endpoint", "RESULTPIPE_TRACE_OTLP_ENDPOINT")

		util.MustBindPFlag("trace.sampleRatio", flags.Lookup("trace-sample-ratio"))
		util.MustBindEnv("trace.sampleRatio", "RESULTPIPE_TRACE_SAMPLE_RATIO")

		util.MustBindPFlag("trace.serviceName", flags.Lookup("trace-service-name"))
		util.MustBindEnv("trace.serviceName", "RESULTPIPE_TRACE_SERVICE_NAME")

		util.MustBindPFlag("queryEngine.url", flags.Lookup("query-engine-url"))
		util.MustBindEnv("queryEngine.url", "RESULTPIPE_QUERY_ENGINE_URL")

		util.MustBindPFlag("queryEngine.username", flags.Lookup("query-engine-username"))
		util.MustBindEnv("queryEngine.username", "RESULTPIPE_QUERY_ENGINE_USERNAME")

		util.MustBindPFlag("queryEngine.password", flags.Lookup("query-engine-password"))
		util.MustBindEnv("queryEngine.password", "RESULTPIPE_QUERY_ENGINE_PASSWORD")

		util.MustBindPFlag("queryEngine.timeout", flags.Lookup("query-engine-timeout"))
		util.MustBindEnv("queryEngine.timeout", "RESULTPIPE_QUERY_ENGINE_TIMEOUT")

		util.MustBindPFlag("queryEngine.maxRetries", flags.Lookup("query-engine-max-retries"))
		util.MustBindEnv("queryEngine.maxRetries", "RESULTPIPE_QUERY_ENGINE_MAX_RETRIES")

		util.MustBindPFlag("templates.source", flags.Lookup("templates-source"))
		util.MustBindEnv("templates.source", "RESULTPIPE_TEMPLATES_SOURCE")

		util.MustBindPFlag("templates.dir", flags.Lookup("templates-dir"))
		util.MustBindEnv("templates.dir", "RESULTPIPE_TEMPLATES_DIR")

		util.MustBindPFlag("templates.url", flags.Lookup("templates-url"))
		util.MustBindEnv("templates.url", "RESULTPIPE_TEMPLATES_URL")

		util.MustBindPFlag("templates.cacheSize", flags.Lookup("templates-cache-size"))
		util.MustBindEnv("templates.cacheSize", "RESULTPIPE_TEMPLATES_CACHE_SIZE")

		util.MustBindPFlag("templates.cacheTTL", flags.Lookup("templates-cache-ttl"))
		util.MustBindEnv("templates.cacheTTL", "RESULTPIPE_TEMPLATES_CACHE_TTL")

		util.MustBindPFlag("pseudonymization.mode", flags.Lookup("pseudonymization-mode"))
		util.MustBindEnv("pseudonymization.mode", "RESULTPIPE_PSEUDONYMIZATION_MODE")

		util.MustBindPFlag("pseudonymization.url", flags.Lookup("pseudonymization-url"))
		util.MustBindEnv("pseudonymization.url", "RESULTPIPE_PSEUDONYMIZATION_URL")

		util.MustBindPFlag("pseudonymization.token", flags.Lookup("pseudonymization-token"))
		util.MustBindEnv("pseudonymization.token", "RESULTPIPE_PSEUDONYMIZATION_TOKEN")

		util.MustBindPFlag("pseudonymization.maxElapsedTime", flags.Lookup("pseudonymization-max-elapsed-time"))
		util.MustBindEnv("pseudonymization.maxElapsedTime", "RESULTPIPE_PSEUDONYMIZATION_MAX_ELAPSED_TIME")

		util.MustBindPFlag("pseudonymization.secret", flags.Lookup("pseudonymization-secret"))
		util.MustBindEnv("pseudonymization.secret", "RESULTPIPE_PSEUDONYMIZATION_SECRET")

		util.MustBindPFlag("pseudonymization.prefix", flags.Lookup("pseudonymization-prefix"))
		util.MustBindEnv("pseudonymization.prefix", "RESULTPIPE_PSEUDONYMIZATION_PREFIX")

		util.MustBindPFlag("privacy.blacklistFile", flags.Lookup("privacy-blacklist-file"))
		util.MustBindEnv("privacy.blacklistFile", "RESULTPIPE_PRIVACY_BLACKLIST_FILE")

		util.MustBindPFlag("privacy.minRowCount", flags.Lookup("privacy-min-row-count"))
		util.MustBindEnv("privacy.minRowCount", "RESULTPIPE_PRIVACY_MIN_ROW_COUNT")

		util.MustBindPFlag("pipeline.identifierPath", flags.Lookup("pipeline-identifier-path"))
		util.MustBindEnv("pipeline.identifierPath", "RESULTPIPE_PIPELINE_IDENTIFIER_PATH")

		util.MustBindPFlag("pipeline.malformedRecordPolicy", flags.Lookup("pipeline-malformed-record-policy"))
		util.MustBindEnv("pipeline.malformedRecordPolicy", "RESULTPIPE_PIPELINE_MALFORMED_RECORD_POLICY")
	}
}
