// Package tracer is a small tracing abstraction over OpenTelemetry.
//
// Exchange code starts spans through the Tracer interface so tests can use
// NoopTracer while production wires OTelTracer against the global provider.
package tracer

import (
	"context"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span, recording err if non-nil. Call exactly once.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
//
//	ctx, span := t.Start(ctx, tracer.SpanVerifyPresentation,
//	    tracer.String(tracer.AttrFormat, "data_integrity"),
//	)
//	defer span.End(err)
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

// String creates a string attribute.
func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

// Bool creates a boolean attribute.
func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

// Int64 creates an int64 attribute.
func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Span names.
const (
	SpanCreateExchange     = "exchange.create"
	SpanSubmitResponse     = "exchange.submit_response"
	SpanCallback           = "exchange.callback"
	SpanVerifyPresentation = "verification.presentation"
	SpanVerifyCredential   = "verification.credential"
	SpanExchangerCall      = "upstream.exchanger"
	SpanEntraCall          = "upstream.entra"
)

// Attribute keys.
const (
	AttrWorkflowID   = "workflow.id"
	AttrWorkflowType = "workflow.type"
	AttrFormat       = "presentation.format"
	AttrVerified     = "verified"
	AttrReason       = "reason"
	AttrHTTPStatus   = "http.status_code"
	AttrCredentials  = "credentials.count"
)
