// Package instrumentation provides OpenTelemetry instrumentation for
// the inboxpilot assistant core.
//
// This package enables production-grade observability through:
//   - OpenTelemetry metrics for tool dispatch, cache effectiveness,
//     upstream source calls, credential refreshes and reasoning episodes
//   - Distributed tracing for episodes, tool invocations and API calls
//   - Prometheus metrics export via /metrics endpoint on dedicated port
//   - OTLP export support for modern observability platforms
//
// # Metrics
//
// The package exposes the following metric categories:
//
// Tool Dispatch Metrics:
//   - tool_invocations_total: Counter of tool invocations by tool name and status
//   - tool_duration_seconds: Histogram of tool execution durations
//   - cache_accesses_total: Counter of result cache lookups by tool and hit/miss
//
// Upstream Source Metrics:
//   - upstream_operations_total: Counter of source API operations by backend, operation, status
//   - upstream_operation_duration_seconds: Histogram of source API operation durations
//
// Credential Lifecycle Metrics:
//   - token_refresh_total: Counter of credential refresh attempts by result
//
// Reasoning Episode Metrics:
//   - reasoning_episodes_total: Counter of episodes by terminal status
//   - reasoning_rounds: Histogram of tool-call rounds per episode
//   - episode_duration_seconds: Histogram of episode wall time
//   - active_episodes: Gauge of episodes currently running
//
// # Tracing
//
// Distributed tracing spans are created for:
//   - Reasoning episodes (agent.episode)
//   - Tool invocations (tool.<name>)
//   - Upstream source calls (source.<backend>.<operation>)
//
// # Configuration
//
// Instrumentation can be configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: Metrics exporter type (prometheus, otlp, stdout, default: prometheus)
//   - TRACING_EXPORTER: Tracing exporter type (otlp, stdout, none, default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: inboxpilot)
//
// # Example Usage
//
//	// Initialize instrumentation
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
//		ServiceName:    "inboxpilot",
//		ServiceVersion: "0.1.0",
//		Enabled:        true,
//	})
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	// Get metrics recorder
//	recorder := provider.Metrics()
//
//	// Record a tool invocation
//	recorder.RecordToolInvocation(ctx, "search_email_by_keyword", "success", time.Since(start))
//
//	// Record an upstream source operation
//	recorder.RecordUpstreamOperation(ctx, "gmail", "list", "success", time.Since(start))
package instrumentation
