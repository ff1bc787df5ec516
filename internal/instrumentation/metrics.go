package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Omers-Frontegg/slack-mcp-server-session-demo/internal/logging"
	"github.com/Omers-Frontegg/slack-mcp-server-session-demo/internal/mcp/oauth"
)

// Metric attribute keys - using constants for consistency and DRY
const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrStage     = "stage"
	attrGrantType = "grant_type"
	attrOperation = "operation"
	attrTool      = "tool"
	attrUser      = "user"
)

// Metrics provides methods for recording observability metrics. The zero
// value is a no-op recorder; every Record call checks for uninitialized
// instruments.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// OAuth flow metrics
	authFlowsStartedTotal   metric.Int64Counter
	authFlowsCompletedTotal metric.Int64Counter
	authFlowsFailedTotal    metric.Int64Counter
	tokensIssuedTotal       metric.Int64Counter
	tokensRevokedTotal      metric.Int64Counter

	// Slack API metrics
	slackAPIOperationsTotal   metric.Int64Counter
	slackAPIOperationDuration metric.Float64Histogram

	// MCP Tool metrics
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	// detailedLabels controls whether high-cardinality labels are included
	detailedLabels bool
}

// Metrics satisfies the OAuth handler's recorder interface.
var _ oauth.FlowMetrics = (*Metrics)(nil)

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The detailedLabels parameter controls whether high-cardinality labels are included.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	// HTTP Metrics
	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	// OAuth flow metrics
	m.authFlowsStartedTotal, err = meter.Int64Counter(
		"oauth_flows_started_total",
		metric.WithDescription("Total number of authorization flows started"),
		metric.WithUnit("{flow}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_flows_started_total counter: %w", err)
	}

	m.authFlowsCompletedTotal, err = meter.Int64Counter(
		"oauth_flows_completed_total",
		metric.WithDescription("Total number of authorization flows completed"),
		metric.WithUnit("{flow}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_flows_completed_total counter: %w", err)
	}

	m.authFlowsFailedTotal, err = meter.Int64Counter(
		"oauth_flows_failed_total",
		metric.WithDescription("Total number of authorization flows failed, by stage"),
		metric.WithUnit("{flow}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_flows_failed_total counter: %w", err)
	}

	m.tokensIssuedTotal, err = meter.Int64Counter(
		"oauth_tokens_issued_total",
		metric.WithDescription("Total number of access tokens issued, by grant type"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_tokens_issued_total counter: %w", err)
	}

	m.tokensRevokedTotal, err = meter.Int64Counter(
		"oauth_tokens_revoked_total",
		metric.WithDescription("Total number of tokens revoked"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_tokens_revoked_total counter: %w", err)
	}

	// Slack API Metrics
	m.slackAPIOperationsTotal, err = meter.Int64Counter(
		"slack_api_operations_total",
		metric.WithDescription("Total number of Slack Web API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create slack_api_operations_total counter: %w", err)
	}

	m.slackAPIOperationDuration, err = meter.Float64Histogram(
		"slack_api_operation_duration_seconds",
		metric.WithDescription("Slack Web API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create slack_api_operation_duration_seconds histogram: %w", err)
	}

	// MCP Tool Metrics
	m.toolInvocationsTotal, err = meter.Int64Counter(
		"mcp_tool_invocations_total",
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_invocations_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"mcp_tool_duration_seconds",
		metric.WithDescription("MCP tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, path, status code, and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// AuthFlowStarted records the start of an authorization flow.
func (m *Metrics) AuthFlowStarted(ctx context.Context) {
	if m.authFlowsStartedTotal == nil {
		return
	}
	m.authFlowsStartedTotal.Add(ctx, 1)
}

// AuthFlowCompleted records a completed authorization flow.
func (m *Metrics) AuthFlowCompleted(ctx context.Context) {
	if m.authFlowsCompletedTotal == nil {
		return
	}
	m.authFlowsCompletedTotal.Add(ctx, 1)
}

// AuthFlowFailed records a failed authorization flow.
// Stage should be one of: "authorize", "callback", "exchange", "token".
func (m *Metrics) AuthFlowFailed(ctx context.Context, stage string) {
	if m.authFlowsFailedTotal == nil {
		return
	}
	m.authFlowsFailedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrStage, stage),
	))
}

// TokenIssued records an issued access token.
// GrantType should be one of: "authorization_code", "refresh_token".
func (m *Metrics) TokenIssued(ctx context.Context, grantType string) {
	if m.tokensIssuedTotal == nil {
		return
	}
	m.tokensIssuedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrGrantType, grantType),
	))
}

// TokenRevoked records a revoked token.
func (m *Metrics) TokenRevoked(ctx context.Context) {
	if m.tokensRevokedTotal == nil {
		return
	}
	m.tokensRevokedTotal.Add(ctx, 1)
}

// RecordSlackAPIOperation records a Slack Web API operation.
//
// Parameters:
//   - operation: API method name (auth_test, conversations_list, oauth_v2_access)
//   - status: Result status ("success" or "error")
//   - duration: Time taken for the operation
func (m *Metrics) RecordSlackAPIOperation(ctx context.Context, operation, status string, duration time.Duration) {
	if m.slackAPIOperationsTotal == nil || m.slackAPIOperationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.slackAPIOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.slackAPIOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordToolInvocation records an MCP tool invocation with tool name, status, and duration.
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

// RecordToolInvocationForUser records an MCP tool invocation attributed to a
// user. The user label is anonymized and only added when detailedLabels is
// enabled, to keep cardinality bounded by default.
func (m *Metrics) RecordToolInvocationForUser(ctx context.Context, toolName, status, userID string, duration time.Duration) {
	if m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}

	if m.detailedLabels && userID != "" {
		attrs = append(attrs, attribute.String(attrUser, logging.AnonymizeUser(userID)))
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
