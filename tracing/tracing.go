// Package tracing provides OpenTelemetry tracing for the Moodle web-service client.
// It configures trace exporters and provides utilities for creating spans.
package tracing

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/kelseyhightower/envconfig"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	TracerName     = "moodle-ws-mcp-server"
	ServiceVersion = "0.1.0"
)

// Span attribute keys for web-service calls
const (
	AttrFunction = attribute.Key("moodle.ws.function")
	AttrSite     = attribute.Key("moodle.site")
)

// Config holds tracing configuration, read from the standard OTEL_* variables
type Config struct {
	ServiceName    string  `envconfig:"OTEL_SERVICE_NAME" default:"moodle-ws-mcp-server"`
	ServiceVersion string  `ignored:"true"`
	Environment    string  `envconfig:"OTEL_ENVIRONMENT" default:"development"`
	Enabled        bool    `envconfig:"OTEL_ENABLED"`
	OTLPEndpoint   string  `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"` // If set, uses OTLP exporter; otherwise stdout
	SampleRate     float64 `envconfig:"OTEL_TRACES_SAMPLER_ARG" default:"1.0"`
}

// LoadConfig reads the tracing configuration from the environment.
// Setting an OTLP endpoint enables tracing on its own.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to load tracing configuration: %w", err)
	}
	cfg.ServiceVersion = ServiceVersion
	if cfg.OTLPEndpoint != "" {
		cfg.Enabled = true
	}
	return cfg, nil
}

// Setup initializes OpenTelemetry tracing and returns a shutdown function
func Setup(ctx context.Context, config Config) (func(context.Context) error, error) {
	if !config.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			attribute.String("environment", config.Environment),
		),
	)
	if err != nil {
		return nil, err
	}

	exporter, err := newExporter(ctx, config)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(newSampler(config.SampleRate))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

func newExporter(ctx context.Context, config Config) (sdktrace.SpanExporter, error) {
	if config.OTLPEndpoint != "" {
		return otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(config.OTLPEndpoint),
			otlptracehttp.WithInsecure(),
		)
	}
	// stdout carries the MCP protocol
	return stdouttrace.New(
		stdouttrace.WithWriter(os.Stderr),
		stdouttrace.WithPrettyPrint(),
	)
}

func newSampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Tracer returns the named tracer for the client
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// StartSpan starts a new span with the given name and returns the context and span
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// StartClientSpan starts a client-kind span for a request to a Moodle site.
// function may be empty for the token and upload scripts.
func StartClientSpan(ctx context.Context, name, function, site string) (context.Context, trace.Span) {
	ctx, span := StartSpan(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	AddRemoteCallAttributes(span, function, site)
	return ctx, span
}

// AddToolAttributes adds standard tool attributes to a span
func AddToolAttributes(span trace.Span, toolName, category string) {
	span.SetAttributes(
		attribute.String("mcp.tool.name", toolName),
		attribute.String("mcp.tool.category", category),
	)
}

// AddRemoteCallAttributes adds web-service call attributes to a span.
// The token is never recorded.
func AddRemoteCallAttributes(span trace.Span, function, site string) {
	if function != "" {
		span.SetAttributes(AttrFunction.String(function))
	}
	if site != "" {
		span.SetAttributes(AttrSite.String(site))
	}
}

// InjectHeaders writes the trace context of ctx into outgoing request headers
func InjectHeaders(ctx context.Context, header http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(header))
}

// RecordError records an error on the span and marks it failed
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
