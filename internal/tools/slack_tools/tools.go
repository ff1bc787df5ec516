package slack_tools

import (
	"context"
	"fmt"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Omers-Frontegg/slack-mcp-server-session-demo/internal/instrumentation"
	"github.com/Omers-Frontegg/slack-mcp-server-session-demo/internal/server"
)

// notAuthenticatedMsg is returned as a tool result when no Slack identity is
// bound to the request. It is deliberately not a protocol error so the MCP
// client can show it and start the OAuth flow.
const notAuthenticatedMsg = "not authenticated: no Slack identity is bound to this request. " +
	"Complete the OAuth authorization flow in your MCP client and retry."

// RegisterSlackTools registers all Slack-related tools with the MCP server
func RegisterSlackTools(s *mcpserver.MCPServer, sc *server.ServerContext, metrics *instrumentation.Metrics) error {
	if err := registerIdentityTools(s, metrics); err != nil {
		return fmt.Errorf("failed to register identity tools: %w", err)
	}

	if err := registerChannelTools(s, sc, metrics); err != nil {
		return fmt.Errorf("failed to register channel tools: %w", err)
	}

	return nil
}

// recordInvocation records one tool call. Safe with a nil metrics recorder.
func recordInvocation(ctx context.Context, metrics *instrumentation.Metrics, tool, status, userID string, start time.Time) {
	if metrics == nil {
		return
	}
	metrics.RecordToolInvocationForUser(ctx, tool, status, userID, time.Since(start))
}

// recordSlackAPICall records one Slack Web API operation made on behalf of a
// tool. Safe with a nil metrics recorder.
func recordSlackAPICall(ctx context.Context, metrics *instrumentation.Metrics, operation, status string, start time.Time) {
	if metrics == nil {
		return
	}
	metrics.RecordSlackAPIOperation(ctx, operation, status, time.Since(start))
}
