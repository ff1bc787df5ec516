package instrumentation

import (
	"context"
	"testing"
	"time"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := NewProvider(ctx, Config{
		ServiceName:    "test-service",
		ServiceVersion: "1.0.0",
		Enabled:        true,
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	metrics := provider.Metrics()
	if metrics == nil {
		t.Fatal("expected metrics to be non-nil")
	}
	return metrics
}

func TestMetrics_RecordHTTPRequest(t *testing.T) {
	ctx := context.Background()
	metrics := newTestMetrics(t)

	// Should not panic
	metrics.RecordHTTPRequest(ctx, "GET", "/mcp", 200, 100*time.Millisecond)
	metrics.RecordHTTPRequest(ctx, "POST", "/oauth/token", 400, 50*time.Millisecond)
}

func TestMetrics_AuthFlowLifecycle(t *testing.T) {
	ctx := context.Background()
	metrics := newTestMetrics(t)

	// Should not panic
	metrics.AuthFlowStarted(ctx)
	metrics.AuthFlowCompleted(ctx)
	metrics.AuthFlowFailed(ctx, StageCallback)
	metrics.AuthFlowFailed(ctx, StageExchange)
}

func TestMetrics_TokenCounters(t *testing.T) {
	ctx := context.Background()
	metrics := newTestMetrics(t)

	// Should not panic
	metrics.TokenIssued(ctx, "authorization_code")
	metrics.TokenIssued(ctx, "refresh_token")
	metrics.TokenRevoked(ctx)
}

func TestMetrics_RecordSlackAPIOperation(t *testing.T) {
	ctx := context.Background()
	metrics := newTestMetrics(t)

	// Should not panic
	metrics.RecordSlackAPIOperation(ctx, "conversations_list", StatusSuccess, 200*time.Millisecond)
	metrics.RecordSlackAPIOperation(ctx, "auth_test", StatusError, 500*time.Millisecond)
}

func TestMetrics_RecordToolInvocation(t *testing.T) {
	ctx := context.Background()
	metrics := newTestMetrics(t)

	// Should not panic
	metrics.RecordToolInvocation(ctx, "slack_channels_list", StatusSuccess, 150*time.Millisecond)
	metrics.RecordToolInvocation(ctx, "slack_whoami", StatusError, 10*time.Millisecond)
	metrics.RecordToolInvocationForUser(ctx, "slack_whoami", StatusSuccess, "U024BE7LH", 10*time.Millisecond)
}

func TestMetrics_ZeroValueIsNoOp(t *testing.T) {
	ctx := context.Background()
	var metrics Metrics

	// All recorders must be safe on a zero-value Metrics
	metrics.RecordHTTPRequest(ctx, "GET", "/", 200, time.Millisecond)
	metrics.AuthFlowStarted(ctx)
	metrics.AuthFlowCompleted(ctx)
	metrics.AuthFlowFailed(ctx, StageAuthorize)
	metrics.TokenIssued(ctx, "authorization_code")
	metrics.TokenRevoked(ctx)
	metrics.RecordSlackAPIOperation(ctx, "auth_test", StatusSuccess, time.Millisecond)
	metrics.RecordToolInvocation(ctx, "slack_whoami", StatusSuccess, time.Millisecond)
	metrics.RecordToolInvocationForUser(ctx, "slack_whoami", StatusSuccess, "U1", time.Millisecond)
}
