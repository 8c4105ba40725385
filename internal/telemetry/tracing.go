// Package telemetry installs the global tracer provider used by the weather,
// image search and resolver spans.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Setup exports spans over OTLP/HTTP to endpoint (a URL such as
// http://collector:4318). With an empty endpoint it returns a nil provider and
// spans stay no-ops. Headers and timeouts come from OTEL_EXPORTER_OTLP_*.
func Setup(ctx context.Context, endpoint, serviceName string) (*sdktrace.TracerProvider, error) {
	if endpoint == "" {
		return nil, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	tp := NewTracerProvider(sdktrace.WithBatcher(exporter), serviceName)
	otel.SetTracerProvider(tp)
	return tp, nil
}

// NewTracerProvider builds a provider around one span processor option,
// tagged with the service name.
func NewTracerProvider(processor sdktrace.TracerProviderOption, serviceName string) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		processor,
		sdktrace.WithResource(resource.NewWithAttributes(
			"",
			attribute.String("service.name", serviceName),
		)),
	)
}
