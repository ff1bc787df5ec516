package slack_tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Omers-Frontegg/slack-mcp-server-session-demo/internal/instrumentation"
	"github.com/Omers-Frontegg/slack-mcp-server-session-demo/internal/mcp/oauth"
)

// authStatusResult is the JSON payload of the slack_auth_status tool.
type authStatusResult struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id,omitempty"`
	UserName      string `json:"user,omitempty"`
	TeamID        string `json:"team_id,omitempty"`
	TeamName      string `json:"team,omitempty"`
	Scope         string `json:"scope,omitempty"`
	ExpiresAt     string `json:"expires_at,omitempty"`
}

// registerIdentityTools registers the whoami and auth status tools
func registerIdentityTools(s *mcpserver.MCPServer, metrics *instrumentation.Metrics) error {
	whoamiTool := mcp.NewTool("slack_whoami",
		mcp.WithDescription("Show the Slack identity (user, team) bound to the current session"),
	)
	s.AddTool(whoamiTool, whoamiHandler(metrics))

	authStatusTool := mcp.NewTool("slack_auth_status",
		mcp.WithDescription("Report whether the current session is authenticated with Slack, including granted scope and token expiry"),
	)
	s.AddTool(authStatusTool, authStatusHandler(metrics))

	return nil
}

func whoamiHandler(metrics *instrumentation.Metrics) func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()

		user, ok := oauth.GetUserFromContext(ctx)
		if !ok {
			recordInvocation(ctx, metrics, "slack_whoami", instrumentation.StatusError, "", start)
			return mcp.NewToolResultError(notAuthenticatedMsg), nil
		}

		result, _ := json.MarshalIndent(user, "", "  ")
		recordInvocation(ctx, metrics, "slack_whoami", instrumentation.StatusSuccess, user.UserID, start)
		return mcp.NewToolResultText(string(result)), nil
	}
}

func authStatusHandler(metrics *instrumentation.Metrics) func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()

		status := authStatusResult{}
		if user, ok := oauth.GetUserFromContext(ctx); ok {
			status.Authenticated = true
			status.UserID = user.UserID
			status.UserName = user.UserName
			status.TeamID = user.TeamID
			status.TeamName = user.TeamName
		}
		if session, ok := oauth.GetSessionFromContext(ctx); ok {
			status.Scope = session.Scope
			if session.ExpiresAt > 0 {
				status.ExpiresAt = time.Unix(session.ExpiresAt, 0).UTC().Format(time.RFC3339)
			}
		}

		// An unauthenticated status is still a successful status check
		result, _ := json.MarshalIndent(status, "", "  ")
		recordInvocation(ctx, metrics, "slack_auth_status", instrumentation.StatusSuccess, status.UserID, start)
		return mcp.NewToolResultText(string(result)), nil
	}
}
