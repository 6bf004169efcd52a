// Package telemetry sets up the trace pipeline of the process and the span helpers used by the
// processing stages.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"

	"github.com/researchportal/resultpipe/internal/build"
)

const (
	RequestIDKey = attribute.Key("resultpipe.request_id")
	StageKey     = attribute.Key("resultpipe.stage")
	CommitKey    = attribute.Key("resultpipe.build.commit")
)

const exporterDialTimeout = 2 * time.Second

type tracerConfig struct {
	endpoint      string
	serviceName   string
	samplingRatio float64
	exporter      sdktrace.SpanExporter
}

type TracerOption func(c *tracerConfig)

func WithOTLPEndpoint(endpoint string) TracerOption {
	return func(c *tracerConfig) {
		c.endpoint = endpoint
	}
}

func WithServiceName(serviceName string) TracerOption {
	return func(c *tracerConfig) {
		c.serviceName = serviceName
	}
}

// WithSamplingRatio sets the share of root spans that are recorded. Child spans follow their
// parent.
func WithSamplingRatio(samplingRatio float64) TracerOption {
	return func(c *tracerConfig) {
		c.samplingRatio = samplingRatio
	}
}

// WithExporter replaces the OTLP gRPC exporter.
func WithExporter(exporter sdktrace.SpanExporter) TracerOption {
	return func(c *tracerConfig) {
		c.exporter = exporter
	}
}

// NewTracerProvider builds the tracer provider and installs it, together with the W3C
// propagators, as the global one.
func NewTracerProvider(ctx context.Context, opts ...TracerOption) (*sdktrace.TracerProvider, error) {
	cfg := tracerConfig{serviceName: build.ProjectName}
	for _, opt := range opts {
		opt(&cfg)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceNameKey.String(cfg.serviceName),
		semconv.ServiceVersionKey.String(build.Version),
		CommitKey.String(build.Commit),
	))
	if err != nil {
		return nil, fmt.Errorf("trace resource: %w", err)
	}

	exporter := cfg.exporter
	if exporter == nil {
		if exporter, err = newOTLPExporter(ctx, cfg.endpoint); err != nil {
			return nil, err
		}
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.samplingRatio))),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	otel.SetTracerProvider(tp)

	return tp, nil
}

func newOTLPExporter(ctx context.Context, endpoint string) (sdktrace.SpanExporter, error) {
	ctx, cancel := context.WithTimeout(ctx, exporterDialTimeout)
	defer cancel()

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithUserAgent(build.ProjectName+"/"+build.Version)),
	)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter for '%s': %w", endpoint, err)
	}
	return exporter, nil
}

func MustNewTracerProvider(opts ...TracerOption) *sdktrace.TracerProvider {
	tp, err := NewTracerProvider(context.Background(), opts...)
	if err != nil {
		panic(err)
	}
	return tp
}

// StartStage starts the span of one processing stage. The span is named after the stage and
// carries it as StageKey.
func StartStage(ctx context.Context, tracer trace.Tracer, stage string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, "pipeline."+stage, trace.WithAttributes(append([]attribute.KeyValue{StageKey.String(stage)}, attrs...)...))
}

func TraceError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
