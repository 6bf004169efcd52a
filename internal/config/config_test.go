package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Verify())
}

func TestVerifyConfig(t *testing.T) {
	tests := map[string]struct {
		mutate        func(cfg *Config)
		expectedError string
	}{
		`log_format`: {
			mutate:        func(cfg *Config) { cfg.Log.Format = "xml" },
			expectedError: "config 'log.format' must be one of ['text', 'json']",
		},
		`log_level`: {
			mutate:        func(cfg *Config) { cfg.Log.Level = "verbose" },
			expectedError: "config 'log.level' must be one of ['none', 'debug', 'info', 'warn', 'error', 'panic', 'fatal']",
		},
		`log_timestamp_format`: {
			mutate:        func(cfg *Config) { cfg.Log.TimestampFormat = "RFC822" },
			expectedError: "config 'log.TimestampFormat' must be one of ['Unix', 'ISO8601']",
		},
		`trace_sample_ratio`: {
			mutate:        func(cfg *Config) { cfg.Trace.SampleRatio = 1.5 },
			expectedError: "config 'trace.sampleRatio' must be between 0 and 1",
		},
		`query_engine_retries`: {
			mutate:        func(cfg *Config) { cfg.QueryEngine.MaxRetries = -1 },
			expectedError: "config 'queryEngine.maxRetries' must be >= 0",
		},
		`static_templates_without_dir`: {
			mutate:        func(cfg *Config) { cfg.Templates.Dir = "" },
			expectedError: "config 'templates.dir' must be set when 'templates.source' is 'static'",
		},
		`remote_templates_without_url`: {
			mutate:        func(cfg *Config) { cfg.Templates.Source = "remote" },
			expectedError: "config 'templates.url' must be set when 'templates.source' is 'remote'",
		},
		`remote_templates_without_cache`: {
			mutate: func(cfg *Config) {
				cfg.Templates.Source = "remote"
				cfg.Templates.URL = "http://templates"
				cfg.Templates.CacheSize = 0
			},
			expectedError: "config 'templates.cacheSize' must be > 0",
		},
		`unknown_template_source`: {
			mutate:        func(cfg *Config) { cfg.Templates.Source = "git" },
			expectedError: "config 'templates.source' must be one of ['static', 'remote']",
		},
		`http_pseudonymization_without_url`: {
			mutate:        func(cfg *Config) { cfg.Pseudonymization.Mode = "http" },
			expectedError: "config 'pseudonymization.url' must be set when 'pseudonymization.mode' is 'http'",
		},
		`local_pseudonymization_without_secret`: {
			mutate:        func(cfg *Config) { cfg.Pseudonymization.Mode = "local" },
			expectedError: "config 'pseudonymization.secret' must be set when 'pseudonymization.mode' is 'local'",
		},
		`unknown_pseudonymization_mode`: {
			mutate:        func(cfg *Config) { cfg.Pseudonymization.Mode = "plain" },
			expectedError: "config 'pseudonymization.mode' must be one of ['http', 'local', 'none']",
		},
		`negative_min_row_count`: {
			mutate:        func(cfg *Config) { cfg.Privacy.MinRowCount = -2 },
			expectedError: "config 'privacy.minRowCount' must be >= 0",
		},
		`empty_identifier_path`: {
			mutate:        func(cfg *Config) { cfg.Pipeline.IdentifierPath = "" },
			expectedError: "config 'pipeline.identifierPath' must be set",
		},
		`unknown_malformed_record_policy`: {
			mutate:        func(cfg *Config) { cfg.Pipeline.MalformedRecordPolicy = "ignore" },
			expectedError: "config 'pipeline.malformedRecordPolicy' must be one of ['fail', 'skip']",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			test.mutate(cfg)

			require.EqualError(t, cfg.Verify(), test.expectedError)
		})
	}
}
