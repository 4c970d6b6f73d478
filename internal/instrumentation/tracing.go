package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the default tracer name for the inboxpilot package.
const TracerName = "github.com/mwain/inboxpilot"

// Span attribute keys for operations.
const (
	// SpanAttrTool is the tool name attribute.
	SpanAttrTool = "agent.tool"

	// SpanAttrEpisode is the reasoning episode identifier attribute.
	SpanAttrEpisode = "agent.episode"

	// SpanAttrRound is the tool-call round attribute.
	SpanAttrRound = "agent.round"

	// SpanAttrBackend is the source backend name attribute.
	SpanAttrBackend = "source.backend"

	// SpanAttrOperation is the source operation type attribute.
	SpanAttrOperation = "source.operation"

	// SpanAttrAccount is the account name attribute.
	SpanAttrAccount = "source.account"

	// SpanAttrStatus is the operation status attribute.
	SpanAttrStatus = "agent.status"

	// SpanAttrFingerprint is the cache fingerprint attribute.
	SpanAttrFingerprint = "cache.fingerprint"

	// SpanAttrCacheHit indicates whether the result came from the cache.
	SpanAttrCacheHit = "cache.hit"

	// SpanAttrRecordID is the record identifier (message ID, event ID).
	SpanAttrRecordID = "source.record_id"

	// SpanAttrRecordKind is the record kind (email, event).
	SpanAttrRecordKind = "source.record_kind"
)

// SpanAttributeBuilder helps construct OpenTelemetry span attributes
// with consistent naming.
type SpanAttributeBuilder struct {
	attrs []attribute.KeyValue
}

// NewSpanAttributeBuilder creates a new SpanAttributeBuilder.
func NewSpanAttributeBuilder() *SpanAttributeBuilder {
	return &SpanAttributeBuilder{
		attrs: make([]attribute.KeyValue, 0, 10),
	}
}

// WithTool adds the tool name attribute.
func (b *SpanAttributeBuilder) WithTool(tool string) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.String(SpanAttrTool, tool))
	return b
}

// WithEpisode adds the episode identifier attribute.
func (b *SpanAttributeBuilder) WithEpisode(episode string) *SpanAttributeBuilder {
	if episode != "" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrEpisode, episode))
	}
	return b
}

// WithBackend adds the source backend name attribute.
func (b *SpanAttributeBuilder) WithBackend(backend string) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.String(SpanAttrBackend, backend))
	return b
}

// WithOperation adds the operation type attribute.
func (b *SpanAttributeBuilder) WithOperation(operation string) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.String(SpanAttrOperation, operation))
	return b
}

// WithAccount adds the account attribute.
func (b *SpanAttributeBuilder) WithAccount(account string) *SpanAttributeBuilder {
	if account != "" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrAccount, account))
	}
	return b
}

// WithFingerprint adds the cache fingerprint attribute.
func (b *SpanAttributeBuilder) WithFingerprint(fp string) *SpanAttributeBuilder {
	if fp != "" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrFingerprint, fp))
	}
	return b
}

// WithCacheHit adds the cache hit indicator attribute.
func (b *SpanAttributeBuilder) WithCacheHit(hit bool) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.Bool(SpanAttrCacheHit, hit))
	return b
}

// WithRecord adds record attributes.
func (b *SpanAttributeBuilder) WithRecord(kind, recordID string) *SpanAttributeBuilder {
	if kind != "" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrRecordKind, kind))
	}
	if recordID != "" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrRecordID, recordID))
	}
	return b
}

// Build returns the constructed attributes.
func (b *SpanAttributeBuilder) Build() []attribute.KeyValue {
	return b.attrs
}

// StartSpan starts a new span with the given name and attributes.
// Returns the context with the span and the span itself.
// The caller is responsible for ending the span with defer span.End().
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartEpisodeSpan starts a span covering one reasoning episode.
func StartEpisodeSpan(ctx context.Context, episodeID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+1)
	allAttrs = append(allAttrs, attribute.String(SpanAttrEpisode, episodeID))
	allAttrs = append(allAttrs, attrs...)

	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, "agent.episode",
		trace.WithAttributes(allAttrs...),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// StartToolSpan starts a span for a tool invocation.
// Automatically adds tool name and sets appropriate span kind.
func StartToolSpan(ctx context.Context, toolName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+1)
	allAttrs = append(allAttrs, attribute.String(SpanAttrTool, toolName))
	allAttrs = append(allAttrs, attrs...)

	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, "tool."+toolName,
		trace.WithAttributes(allAttrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartUpstreamSpan starts a span for upstream source API operations.
// Includes backend and operation attributes.
func StartUpstreamSpan(ctx context.Context, backend, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+2)
	allAttrs = append(allAttrs,
		attribute.String(SpanAttrBackend, backend),
		attribute.String(SpanAttrOperation, operation),
	)
	allAttrs = append(allAttrs, attrs...)

	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, "source."+backend+"."+operation,
		trace.WithAttributes(allAttrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// SetSpanError records an error on the span and sets the status to error.
func SetSpanError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess sets the span status to OK.
func SetSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// AddSpanEvent adds an event to the span with optional attributes.
func AddSpanEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// GetTraceID returns the trace ID from the current span in context.
// Returns empty string if no valid span is present.
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}

// GetSpanID returns the span ID from the current span in context.
// Returns empty string if no valid span is present.
func GetSpanID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return span.SpanContext().SpanID().String()
	}
	return ""
}

// SpanContextString returns a human-readable trace context string.
// Format: "trace_id=X span_id=Y" or empty string if no valid context.
func SpanContextString(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return ""
	}
	return "trace_id=" + span.SpanContext().TraceID().String() +
		" span_id=" + span.SpanContext().SpanID().String()
}
