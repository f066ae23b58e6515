// Package observability wires OpenTelemetry tracing for syncs, streams and
// HTTP requests.
package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/shayan-nathan/airbyte"

// Attribute keys shared by spans.
const (
	AttrConnector = attribute.Key("connector.name")
	AttrStream    = attribute.Key("stream.name")
	AttrEndpoint  = attribute.Key("http.endpoint")
	AttrAttempt   = attribute.Key("retry.attempt")
	AttrRecords   = attribute.Key("records.count")
)

// Tracer returns the tracer from the current global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// StartSpan starts a span named name as a child of any span in ctx.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan marks span failed when err is non-nil and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
