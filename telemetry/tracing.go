package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// TracingOptions configures span export for the bot process.
type TracingOptions struct {
	// Endpoint is the OTLP/gRPC collector address; empty disables tracing.
	Endpoint       string
	ServiceVersion string
	// BotUsername is the authenticated bot account, recorded on every span's resource.
	BotUsername string
	// SampleRatio is the fraction of root traces kept, within 0..1.
	SampleRatio float64
}

const serviceName = "reelbot"

// resourceAttrs identifies this bot instance to the collector.
func resourceAttrs(opts TracingOptions) []attribute.KeyValue {
	version := opts.ServiceVersion
	if version == "" {
		version = "dev"
	}
	attrs := []attribute.KeyValue{semconv.ServiceName(serviceName), semconv.ServiceVersion(version)}
	if opts.BotUsername != "" {
		attrs = append(attrs, attribute.String("telegram.bot_username", opts.BotUsername))
	}
	return attrs
}

// sampler keeps the parent's decision and samples new roots at opts.SampleRatio.
func sampler(opts TracingOptions) sdktrace.Sampler {
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(opts.SampleRatio))
}

// InitTracing installs an OTLP/gRPC tracer provider. With no endpoint it is a no-op and
// spans go to the global no-op provider. The returned func flushes pending spans.
func InitTracing(ctx context.Context, opts TracingOptions) (func(), error) {
	if opts.Endpoint == "" {
		slog.Info("tracing disabled: no OTLP endpoint configured", slog.String("component", "tracing"))
		return func() {}, nil
	}

	initCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	exporter, err := otlptracegrpc.New(initCtx,
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithEndpoint(opts.Endpoint),
	)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	res, err := resource.New(initCtx, resource.WithAttributes(resourceAttrs(opts)...))
	if err != nil {
		return nil, fmt.Errorf("create trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(opts)),
	)
	otel.SetTracerProvider(provider)
	slog.Info("tracing initialized",
		slog.String("endpoint", opts.Endpoint),
		slog.String("bot", opts.BotUsername),
		slog.Float64("sample_ratio", opts.SampleRatio),
		slog.String("component", "tracing"))

	return func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to flush traces", slog.Any("err", err), slog.String("component", "tracing"))
		}
	}, nil
}

// StartSpan starts a span with common attributes and the correlation ID.
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	if corr := GetCorrelation(ctx); corr != "" {
		attrs = append(attrs, attribute.String("correlation_id", corr))
	}
	return tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// ChatAttr tags a span with a Telegram chat id.
func ChatAttr(chatID int64) attribute.KeyValue { return attribute.Int64("telegram.chat_id", chatID) }

// MovieAttr tags a span with a catalog movie id.
func MovieAttr(movieID int) attribute.KeyValue { return attribute.Int("reelbot.movie_id", movieID) }

// HTTPAttrs tags a server span with the request method and route.
func HTTPAttrs(method, route string) []attribute.KeyValue {
	return []attribute.KeyValue{semconv.HTTPMethod(method), semconv.HTTPRoute(route)}
}

// SetSpanHTTPStatus records the response status; 5xx marks the span as failed.
func SetSpanHTTPStatus(span trace.Span, status int) {
	span.SetAttributes(semconv.HTTPStatusCode(status))
	if status >= 500 {
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
	}
}

// RecordError records an error on the span and sets error status.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess sets span status to OK.
func SetSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}
