package slack_tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Omers-Frontegg/slack-mcp-server-session-demo/internal/instrumentation"
	"github.com/Omers-Frontegg/slack-mcp-server-session-demo/internal/mcp/oauth"
	"github.com/Omers-Frontegg/slack-mcp-server-session-demo/internal/server"
	"github.com/Omers-Frontegg/slack-mcp-server-session-demo/internal/slack"
)

// channelListResult is the JSON payload of the slack_channels_list tool.
type channelListResult struct {
	Channels   []slack.Channel `json:"channels"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// registerChannelTools registers conversation listing tools
func registerChannelTools(s *mcpserver.MCPServer, sc *server.ServerContext, metrics *instrumentation.Metrics) error {
	channelsListTool := mcp.NewTool("slack_channels_list",
		mcp.WithDescription("List Slack channels visible to the authenticated user"),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of channels to return per page (default: 100, max: 200)"),
		),
		mcp.WithString("cursor",
			mcp.Description("Pagination cursor from a previous call's next_cursor"),
		),
		mcp.WithBoolean("include_private",
			mcp.Description("Include private channels the user is a member of (default: false)"),
		),
	)
	s.AddTool(channelsListTool, channelsListHandler(sc, metrics))

	return nil
}

func channelsListHandler(sc *server.ServerContext, metrics *instrumentation.Metrics) func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()

		session, ok := oauth.GetSessionFromContext(ctx)
		if !ok || session.SlackToken == nil || session.SlackToken.AccessToken == "" {
			recordInvocation(ctx, metrics, "slack_channels_list", instrumentation.StatusError, "", start)
			return mcp.NewToolResultError(notAuthenticatedMsg), nil
		}

		userID := ""
		if session.User != nil {
			userID = session.User.UserID
		}

		args, _ := request.Params.Arguments.(map[string]interface{})

		params := slack.ListChannelsParams{}
		if limit, ok := args["limit"].(float64); ok {
			params.Limit = int(limit)
		}
		if cursor, ok := args["cursor"].(string); ok {
			params.Cursor = cursor
		}
		if includePrivate, ok := args["include_private"].(bool); ok {
			params.IncludePrivate = includePrivate
		}

		client := sc.SlackClientForToken(session.SlackToken.AccessToken)

		apiStart := time.Now()
		channels, nextCursor, err := client.ListChannels(ctx, params)
		if err != nil {
			recordSlackAPICall(ctx, metrics, "conversations_list", instrumentation.StatusError, apiStart)
			recordInvocation(ctx, metrics, "slack_channels_list", instrumentation.StatusError, userID, start)
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list channels: %v", err)), nil
		}
		recordSlackAPICall(ctx, metrics, "conversations_list", instrumentation.StatusSuccess, apiStart)

		result, _ := json.MarshalIndent(channelListResult{
			Channels:   channels,
			NextCursor: nextCursor,
		}, "", "  ")

		recordInvocation(ctx, metrics, "slack_channels_list", instrumentation.StatusSuccess, userID, start)
		return mcp.NewToolResultText(string(result)), nil
	}
}
