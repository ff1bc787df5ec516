// Package instrumentation provides OpenTelemetry instrumentation for the
// Slack MCP server.
//
// This package enables production-grade observability through:
//   - OpenTelemetry metrics for HTTP requests, OAuth flows, and Slack API calls
//   - Prometheus metrics export via /metrics endpoint on a dedicated port
//
// # Metrics
//
// The package exposes the following metric categories:
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//
// OAuth Flow Metrics:
//   - oauth_flows_started_total: Counter of authorization flows started
//   - oauth_flows_completed_total: Counter of authorization flows completed
//   - oauth_flows_failed_total: Counter of failed flows by stage
//   - oauth_tokens_issued_total: Counter of issued tokens by grant type
//   - oauth_tokens_revoked_total: Counter of revoked tokens
//
// Slack API Metrics:
//   - slack_api_operations_total: Counter of Slack Web API calls by operation, status
//   - slack_api_operation_duration_seconds: Histogram of Slack API call durations
//
// MCP Tool Metrics:
//   - mcp_tool_invocations_total: Counter of MCP tool invocations by tool name and status
//   - mcp_tool_duration_seconds: Histogram of MCP tool execution durations
//
// # Configuration
//
// Instrumentation can be configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - OTEL_SERVICE_NAME: Service name (default: slack-mcp-server)
//   - PROMETHEUS_ENDPOINT: Metrics endpoint path (default: /metrics)
//   - METRICS_DETAILED_LABELS: Include anonymized per-user labels (default: false)
//
// # Example Usage
//
//	// Initialize instrumentation
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
//		ServiceName:    "slack-mcp-server",
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
//	// Record an HTTP request
//	recorder.RecordHTTPRequest(ctx, "POST", "/mcp", 200, time.Since(start))
//
//	// Record an MCP tool invocation
//	recorder.RecordToolInvocation(ctx, "slack_channels_list", "success", time.Since(start))
package instrumentation
