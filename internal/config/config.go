// Package config contains all the configuration of the result post-processing pipeline.
package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	DefaultIdentifierPath        = "e/ehr_id/value"
	DefaultMalformedRecordPolicy = "fail"

	DefaultQueryEngineTimeout    = 60 * time.Second
	DefaultQueryEngineMaxRetries = 3

	DefaultTemplateCacheSize = 1000
	DefaultTemplateCacheTTL  = time.Hour

	DefaultExchangeMaxElapsedTime = 10 * time.Second
)

type LogConfig struct {
	// Format is the log format to use in the log output (e.g. 'text' or 'json')
	Format string

	// Level is the log level to use in the log output (e.g. 'none', 'debug', or 'info')
	Level string

	// Format of the timestamp in the log output (e.g. 'Unix'(default) or 'ISO8601')
	TimestampFormat string
}

type TraceConfig struct {
	Enabled     bool
	OTLP        OTLPTraceConfig `mapstructure:"otlp"`
	SampleRatio float64
	ServiceName string
}

type OTLPTraceConfig struct {
	Endpoint string
}

// QueryEngineConfig configures the client of the clinical data engine.
type QueryEngineConfig struct {
	URL        string
	Username   string
	Password   string
	Timeout    time.Duration
	MaxRetries int
}

// TemplatesConfig selects where template schemas come from. With Source 'static' the schemas
// are read from Dir at start-up, with 'remote' they are fetched from URL on demand and cached.
type TemplatesConfig struct {
	Source    string
	Dir       string
	URL       string
	CacheSize int64
	CacheTTL  time.Duration
}

// PseudonymizationConfig selects the pseudonym exchange. Mode 'http' calls the pseudonymization
// service at URL, 'local' derives keyed pseudonyms from Secret and 'none' disables the
// exchange, which makes every request with a project scope fail.
type PseudonymizationConfig struct {
	Mode           string
	URL            string
	Token          string
	MaxElapsedTime time.Duration
	Secret         string
	Prefix         string
}

type PrivacyConfig struct {
	// BlacklistFile lists the column paths that are never returned. Without a readable file
	// every result is withheld.
	BlacklistFile string

	// MinRowCount withholds results with fewer distinct patients. 0 disables the check.
	MinRowCount int
}

type PipelineConfig struct {
	IdentifierPath        string
	MalformedRecordPolicy string
}

type Config struct {
	Log              LogConfig
	Trace            TraceConfig
	QueryEngine      QueryEngineConfig
	Templates        TemplatesConfig
	Pseudonymization PseudonymizationConfig
	Privacy          PrivacyConfig
	Pipeline         PipelineConfig
}

func (cfg *Config) Verify() error {
	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		return fmt.Errorf("config 'log.format' must be one of ['text', 'json']")
	}

	if cfg.Log.Level != "none" &&
		cfg.Log.Level != "debug" &&
		cfg.Log.Level != "info" &&
		cfg.Log.Level != "warn" &&
		cfg.Log.Level != "error" &&
		cfg.Log.Level != "panic" &&
		cfg.Log.Level != "fatal" {
		return fmt.Errorf(
			"config 'log.level' must be one of ['none', 'debug', 'info', 'warn', 'error', 'panic', 'fatal']",
		)
	}

	if cfg.Log.TimestampFormat != "Unix" && cfg.Log.TimestampFormat != "ISO8601" {
		return fmt.Errorf("config 'log.TimestampFormat' must be one of ['Unix', 'ISO8601']")
	}

	if cfg.Trace.SampleRatio < 0 || cfg.Trace.SampleRatio > 1 {
		return fmt.Errorf("config 'trace.sampleRatio' must be between 0 and 1")
	}

	if cfg.QueryEngine.MaxRetries < 0 {
		return fmt.Errorf("config 'queryEngine.maxRetries' must be >= 0")
	}

	switch cfg.Templates.Source {
	case "static":
		if cfg.Templates.Dir == "" {
			return errors.New("config 'templates.dir' must be set when 'templates.source' is 'static'")
		}
	case "remote":
		if cfg.Templates.URL == "" {
			return errors.New("config 'templates.url' must be set when 'templates.source' is 'remote'")
		}
		if cfg.Templates.CacheSize <= 0 {
			return errors.New("config 'templates.cacheSize' must be > 0")
		}
	default:
		return fmt.Errorf("config 'templates.source' must be one of ['static', 'remote']")
	}

	switch cfg.Pseudonymization.Mode {
	case "http":
		if cfg.Pseudonymization.URL == "" {
			return errors.New("config 'pseudonymization.url' must be set when 'pseudonymization.mode' is 'http'")
		}
	case "local":
		if cfg.Pseudonymization.Secret == "" {
			return errors.New("config 'pseudonymization.secret' must be set when 'pseudonymization.mode' is 'local'")
		}
	case "none":
	default:
		return fmt.Errorf("config 'pseudonymization.mode' must be one of ['http', 'local', 'none']")
	}

	if cfg.Privacy.MinRowCount < 0 {
		return fmt.Errorf("config 'privacy.minRowCount' must be >= 0")
	}

	if cfg.Pipeline.IdentifierPath == "" {
		return errors.New("config 'pipeline.identifierPath' must be set")
	}

	if cfg.Pipeline.MalformedRecordPolicy != "fail" && cfg.Pipeline.MalformedRecordPolicy != "skip" {
		return fmt.Errorf("config 'pipeline.malformedRecordPolicy' must be one of ['fail', 'skip']")
	}

	return nil
}

// DefaultConfig is the configuration used when no config file, flag or environment variable
// overrides a value.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Format:          "text",
			Level:           "info",
			TimestampFormat: "Unix",
		},
		Trace: TraceConfig{
			Enabled: false,
			OTLP: OTLPTraceConfig{
				Endpoint: "0.0.0.0:4317",
			},
			SampleRatio: 0.2,
			ServiceName: "resultpipe",
		},
		QueryEngine: QueryEngineConfig{
			URL:        "http://localhost:8080/ehrbase/rest/openehr/v1",
			Timeout:    DefaultQueryEngineTimeout,
			MaxRetries: DefaultQueryEngineMaxRetries,
		},
		Templates: TemplatesConfig{
			Source:    "static",
			Dir:       "./templates",
			CacheSize: DefaultTemplateCacheSize,
			CacheTTL:  DefaultTemplateCacheTTL,
		},
		Pseudonymization: PseudonymizationConfig{
			Mode:           "none",
			MaxElapsedTime: DefaultExchangeMaxElapsedTime,
		},
		Privacy: PrivacyConfig{
			BlacklistFile: "",
			MinRowCount:   0,
		},
		Pipeline: PipelineConfig{
			IdentifierPath:        DefaultIdentifierPath,
			MalformedRecordPolicy: DefaultMalformedRecordPolicy,
		},
	}
}
