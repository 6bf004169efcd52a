package execute

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/researchportal/resultpipe/internal/config"
	"github.com/researchportal/resultpipe/pkg/httpclient"
	"github.com/researchportal/resultpipe/pkg/logger"
	"github.com/researchportal/resultpipe/pkg/pipeline"
	"github.com/researchportal/resultpipe/pkg/privacy"
	"github.com/researchportal/resultpipe/pkg/pseudonym"
	"github.com/researchportal/resultpipe/pkg/queryengine"
	"github.com/researchportal/resultpipe/pkg/telemetry"
	"github.com/researchportal/resultpipe/pkg/template"
)

// telemetryConfig returns the function that must be called to shut down tracing.
func telemetryConfig(cfg *config.Config, log logger.Logger) func() error {
	if cfg.Trace.Enabled {
		log.Info(fmt.Sprintf("tracing enabled: sampling ratio is %v and sending traces to '%s'", cfg.Trace.SampleRatio, cfg.Trace.OTLP.Endpoint))

		tp := telemetry.MustNewTracerProvider(
			telemetry.WithOTLPEndpoint(cfg.Trace.OTLP.Endpoint),
			telemetry.WithServiceName(cfg.Trace.ServiceName),
			telemetry.WithSamplingRatio(cfg.Trace.SampleRatio),
		)
		return func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 6*time.Second)
			defer cancel()
			return errors.Join(tp.ForceFlush(ctx), tp.Shutdown(ctx))
		}
	}
	otel.SetTracerProvider(noop.NewTracerProvider())
	return func() error {
		return nil
	}
}

// components holds everything the pipeline is assembled from.
type components struct {
	Pipeline *pipeline.Pipeline

	closers []func()
}

func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func newComponents(ctx context.Context, cfg *config.Config, log *logger.ZapLogger) (*components, error) {
	c := &components{}

	registry, err := templateRegistry(ctx, cfg, log, c)
	if err != nil {
		c.Close()
		return nil, err
	}

	exchanger, err := pseudonymExchanger(cfg, log)
	if err != nil {
		c.Close()
		return nil, err
	}

	engineClient := httpclient.New(log.With(zap.String("client", "query_engine")),
		httpclient.WithTimeout(cfg.QueryEngine.Timeout),
		httpclient.WithRetryMax(cfg.QueryEngine.MaxRetries),
	)
	engineOpts := []queryengine.HTTPEngineOpt{
		queryengine.WithIdentifierSelectionPath(cfg.Pipeline.IdentifierPath),
	}
	if cfg.QueryEngine.Username != "" {
		engineOpts = append(engineOpts, queryengine.WithBasicAuth(cfg.QueryEngine.Username, cfg.QueryEngine.Password))
	}

	opts := []pipeline.Option{
		pipeline.WithLogger(log),
		pipeline.WithQueryEngine(queryengine.NewHTTPEngine(cfg.QueryEngine.URL, engineClient, engineOpts...)),
		pipeline.WithTemplateRegistry(registry),
		pipeline.WithBlacklist(privacy.LoadPathBlacklist(cfg.Privacy.BlacklistFile, log)),
		pipeline.WithIdentifierPath(cfg.Pipeline.IdentifierPath),
		pipeline.WithMalformedRecordPolicy(pipeline.MalformedRecordPolicy(cfg.Pipeline.MalformedRecordPolicy)),
		pipeline.WithMinRowCount(cfg.Privacy.MinRowCount),
	}
	if exchanger != nil {
		opts = append(opts, pipeline.WithExchanger(exchanger))
	}

	c.Pipeline, err = pipeline.New(opts...)
	if err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func templateRegistry(ctx context.Context, cfg *config.Config, log *logger.ZapLogger, c *components) (template.Registry, error) {
	switch cfg.Templates.Source {
	case "static":
		registry, err := template.LoadStaticRegistry(ctx, cfg.Templates.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to load templates: %w", err)
		}
		log.Info("loaded templates", zap.String("dir", cfg.Templates.Dir), zap.Strings("template_ids", registry.TemplateIDs()))
		return registry, nil
	case "remote":
		client := httpclient.New(log.With(zap.String("client", "templates")))
		registry, err := template.NewCachedRegistry(
			template.NewRemoteRegistry(cfg.Templates.URL, client),
			template.WithCacheSize(cfg.Templates.CacheSize),
			template.WithCacheTTL(cfg.Templates.CacheTTL),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create template cache: %w", err)
		}
		c.closers = append(c.closers, registry.Close)
		return registry, nil
	default:
		return nil, fmt.Errorf("unsupported template source '%s'", cfg.Templates.Source)
	}
}

func pseudonymExchanger(cfg *config.Config, log logger.Logger) (pseudonym.Exchanger, error) {
	switch cfg.Pseudonymization.Mode {
	case "http":
		opts := []pseudonym.HTTPExchangerOpt{
			pseudonym.WithMaxElapsedTime(cfg.Pseudonymization.MaxElapsedTime),
			pseudonym.WithLogger(log),
		}
		if cfg.Pseudonymization.Token != "" {
			opts = append(opts, pseudonym.WithBearerToken(cfg.Pseudonymization.Token))
		}
		return pseudonym.NewHTTPExchanger(cfg.Pseudonymization.URL, opts...), nil
	case "local":
		return pseudonym.NewLocalExchanger([]byte(cfg.Pseudonymization.Secret), cfg.Pseudonymization.Prefix)
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported pseudonymization mode '%s'", cfg.Pseudonymization.Mode)
	}
}
