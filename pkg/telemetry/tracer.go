package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Span attribute keys.
var (
	AttrStoreModel    = attribute.Key("store.model")
	AttrStoreLocation = attribute.Key("store.location")
	AttrStoreFormat   = attribute.Key("store.format")
	AttrLoadAttempt   = attribute.Key("store.load.attempt")
	AttrLoadResult    = attribute.Key("store.load.result")

	AttrEntityName  = attribute.Key("entity.name")
	AttrObjectCount = attribute.Key("object.count")

	AttrErrorKind    = attribute.Key("error.kind")
	AttrErrorMessage = attribute.Key("error.message")
)

// Tracer starts the spans around store loads, wipes, reads and saves.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracer builds a tracer for cfg. A disabled config yields NewNopTracer.
func NewTracer(cfg TracingConfig, serviceName, serviceVersion string) (*Tracer, error) {
	if !cfg.Enabled {
		return NewNopTracer(), nil
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))),
	}

	exporter, err := newSpanExporter(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter, sdktrace.WithExportTimeout(cfg.ExportTimeout)))
	}

	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Tracer{provider: provider, tracer: provider.Tracer(serviceName)}, nil
}

// newSpanExporter returns nil for the none exporter.
func newSpanExporter(cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "otlp":
		// The collector is expected on a local or sidecar address.
		return otlptracegrpc.New(context.Background(),
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()),
			otlptracegrpc.WithDialOption(grpc.WithUserAgent("datastack")),
		)
	case "stdout":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.Exporter)
	}
}

// NewNopTracer returns a tracer whose spans are never recorded.
func NewNopTracer() *Tracer {
	return &Tracer{tracer: noop.NewTracerProvider().Tracer("datastack")}
}

// NewTracerFromProvider wraps an existing SDK provider, e.g. one recording
// spans in memory.
func NewTracerFromProvider(provider *sdktrace.TracerProvider, name string) *Tracer {
	return &Tracer{provider: provider, tracer: provider.Tracer(name)}
}

// StartStoreSpan starts store.<operation> for a load or a wipe.
func (t *Tracer) StartStoreSpan(ctx context.Context, operation, model, location string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "store."+operation, trace.WithAttributes(
		AttrStoreModel.String(model),
		AttrStoreLocation.String(location),
	))
}

// StartEntitySpan starts store.<operation> for a read or save of entity.
func (t *Tracer) StartEntitySpan(ctx context.Context, operation, entity string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "store."+operation, trace.WithAttributes(
		AttrEntityName.String(entity),
	))
}

// RecordError marks span as failed with err. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// RecordSuccess marks span as successful.
func RecordSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// AddRecoveryEvent notes on span that the store is being wiped after a
// failed attempt.
func AddRecoveryEvent(span trace.Span, attempt int, reason error) {
	attrs := []attribute.KeyValue{AttrLoadAttempt.Int(attempt)}
	if reason != nil {
		attrs = append(attrs, AttrErrorMessage.String(reason.Error()))
	}
	span.AddEvent("store.recovery", trace.WithAttributes(attrs...))
}

// Shutdown flushes pending spans and stops the provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}
