package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys - using constants for consistency and DRY
const (
	attrStatus    = "status"
	attrOperation = "operation"
	attrBackend   = "backend"
	attrResult    = "result"
	attrTool      = "tool"
	attrAccount   = "account"
)

// Metrics provides methods for recording observability metrics.
type Metrics struct {
	// Tool dispatch metrics
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	// Result cache metrics
	cacheAccessesTotal metric.Int64Counter

	// Upstream source API metrics
	upstreamOperationsTotal   metric.Int64Counter
	upstreamOperationDuration metric.Float64Histogram

	// Credential lifecycle metrics
	tokenRefreshTotal metric.Int64Counter

	// Reasoning episode metrics
	episodesTotal   metric.Int64Counter
	episodeRounds   metric.Int64Histogram
	episodeDuration metric.Float64Histogram
	activeEpisodes  metric.Int64UpDownCounter

	// detailedLabels controls whether high-cardinality labels are included
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The detailedLabels parameter controls whether high-cardinality labels are included.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	// Tool dispatch metrics
	m.toolInvocationsTotal, err = meter.Int64Counter(
		"tool_invocations_total",
		metric.WithDescription("Total number of tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool_invocations_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"tool_duration_seconds",
		metric.WithDescription("Tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool_duration_seconds histogram: %w", err)
	}

	// Result cache metrics
	m.cacheAccessesTotal, err = meter.Int64Counter(
		"cache_accesses_total",
		metric.WithDescription("Total number of result cache accesses by tool and result"),
		metric.WithUnit("{access}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache_accesses_total counter: %w", err)
	}

	// Upstream source API metrics
	m.upstreamOperationsTotal, err = meter.Int64Counter(
		"upstream_operations_total",
		metric.WithDescription("Total number of upstream source API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream_operations_total counter: %w", err)
	}

	m.upstreamOperationDuration, err = meter.Float64Histogram(
		"upstream_operation_duration_seconds",
		metric.WithDescription("Upstream source API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream_operation_duration_seconds histogram: %w", err)
	}

	// Credential lifecycle metrics
	m.tokenRefreshTotal, err = meter.Int64Counter(
		"token_refresh_total",
		metric.WithDescription("Total number of credential refresh attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token_refresh_total counter: %w", err)
	}

	// Reasoning episode metrics
	m.episodesTotal, err = meter.Int64Counter(
		"reasoning_episodes_total",
		metric.WithDescription("Total number of reasoning episodes"),
		metric.WithUnit("{episode}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create reasoning_episodes_total counter: %w", err)
	}

	m.episodeRounds, err = meter.Int64Histogram(
		"reasoning_rounds",
		metric.WithDescription("Tool-call rounds per reasoning episode"),
		metric.WithUnit("{round}"),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 3, 4, 5, 6, 8, 10),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create reasoning_rounds histogram: %w", err)
	}

	m.episodeDuration, err = meter.Float64Histogram(
		"episode_duration_seconds",
		metric.WithDescription("Reasoning episode duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 120.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create episode_duration_seconds histogram: %w", err)
	}

	m.activeEpisodes, err = meter.Int64UpDownCounter(
		"active_episodes",
		metric.WithDescription("Number of reasoning episodes currently running"),
		metric.WithUnit("{episode}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active_episodes gauge: %w", err)
	}

	return m, nil
}

// RecordToolInvocation records a tool invocation with tool name, status, and duration.
//
// Parameters:
//   - toolName: Name of the tool (e.g., "search_email_by_keyword")
//   - status: Result status ("success" or "error")
//   - duration: Time taken for the tool execution
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	if m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordCacheAccess records one result cache lookup for a cacheable tool.
func (m *Metrics) RecordCacheAccess(ctx context.Context, toolName string, hit bool) {
	if m.cacheAccessesTotal == nil {
		return // Instrumentation not initialized
	}

	result := CacheResultMiss
	if hit {
		result = CacheResultHit
	}

	m.cacheAccessesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrTool, toolName),
		attribute.String(attrResult, result),
	))
}

// RecordUpstreamOperation records an upstream source API operation.
//
// Parameters:
//   - backend: Source backend name (gmail, calendar)
//   - operation: Operation type (list, get, create, search)
//   - status: Result status ("success" or "error")
//   - duration: Time taken for the operation
func (m *Metrics) RecordUpstreamOperation(ctx context.Context, backend, operation, status string, duration time.Duration) {
	m.RecordUpstreamOperationWithAccount(ctx, backend, operation, status, "", duration)
}

// RecordUpstreamOperationWithAccount is the detailed variant that adds the
// account label when detailedLabels is enabled.
func (m *Metrics) RecordUpstreamOperationWithAccount(ctx context.Context, backend, operation, status, account string, duration time.Duration) {
	if m.upstreamOperationsTotal == nil || m.upstreamOperationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrBackend, backend),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	// Only add high-cardinality labels if explicitly enabled
	if m.detailedLabels && account != "" {
		attrs = append(attrs, attribute.String(attrAccount, account))
	}

	m.upstreamOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.upstreamOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordTokenRefresh records a credential refresh attempt with result.
// Result should be one of: "success", "failure", "expired"
func (m *Metrics) RecordTokenRefresh(ctx context.Context, result string) {
	if m.tokenRefreshTotal == nil {
		return // Instrumentation not initialized
	}

	m.tokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrResult, result),
	))
}

// RecordEpisode records a completed reasoning episode.
//
// Parameters:
//   - status: Terminal status ("success" or "error")
//   - rounds: Number of tool-call rounds the episode used
//   - duration: Wall time of the whole episode
func (m *Metrics) RecordEpisode(ctx context.Context, status string, rounds int, duration time.Duration) {
	if m.episodesTotal == nil || m.episodeRounds == nil || m.episodeDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrStatus, status),
	}

	m.episodesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.episodeRounds.Record(ctx, int64(rounds), metric.WithAttributes(attrs...))
	m.episodeDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// IncrementActiveEpisodes increments the active episodes counter.
func (m *Metrics) IncrementActiveEpisodes(ctx context.Context) {
	if m.activeEpisodes == nil {
		return // Instrumentation not initialized
	}

	m.activeEpisodes.Add(ctx, 1)
}

// DecrementActiveEpisodes decrements the active episodes counter.
func (m *Metrics) DecrementActiveEpisodes(ctx context.Context) {
	if m.activeEpisodes == nil {
		return // Instrumentation not initialized
	}

	m.activeEpisodes.Add(ctx, -1)
}
