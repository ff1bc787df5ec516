package slack

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"

	"github.com/Omers-Frontegg/slack-mcp-server-session-demo/internal/mcp/oauth"
)

// Channel is a trimmed view of a Slack conversation for tool output.
type Channel struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsPrivate  bool   `json:"is_private"`
	IsMember   bool   `json:"is_member"`
	NumMembers int    `json:"num_members"`
	Topic      string `json:"topic,omitempty"`
	Purpose    string `json:"purpose,omitempty"`
}

// ListChannelsParams narrows a channel listing.
type ListChannelsParams struct {
	Limit          int
	Cursor         string
	IncludePrivate bool
}

// Client wraps the Slack Web API for the MCP tool layer. Each client is
// bound to one brokered user token.
type Client struct {
	api *slackapi.Client
}

// NewClient creates a Slack Web API client for the given user token.
func NewClient(token string, opts ...slackapi.Option) *Client {
	return &Client{api: slackapi.New(token, opts...)}
}

// API exposes the underlying slack-go client.
func (c *Client) API() *slackapi.Client {
	return c.api
}

// Identity resolves who the bound token acts as.
func (c *Client) Identity(ctx context.Context) (*oauth.UserInfo, error) {
	authTest, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("auth.test failed: %w", err)
	}

	return &oauth.UserInfo{
		UserID:       authTest.UserID,
		UserName:     authTest.User,
		TeamID:       authTest.TeamID,
		TeamName:     authTest.Team,
		TeamURL:      authTest.URL,
		EnterpriseID: authTest.EnterpriseID,
	}, nil
}

// ListChannels lists conversations visible to the bound user. It returns the
// channel page and the cursor for the next one ("" when exhausted).
func (c *Client) ListChannels(ctx context.Context, params ListChannelsParams) ([]Channel, string, error) {
	limit := params.Limit
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	types := []string{"public_channel"}
	if params.IncludePrivate {
		types = append(types, "private_channel")
	}

	raw, nextCursor, err := c.api.GetConversationsContext(ctx, &slackapi.GetConversationsParameters{
		Cursor:          params.Cursor,
		ExcludeArchived: true,
		Limit:           limit,
		Types:           types,
	})
	if err != nil {
		return nil, "", fmt.Errorf("conversations.list failed: %w", err)
	}

	channels := make([]Channel, 0, len(raw))
	for _, ch := range raw {
		channels = append(channels, Channel{
			ID:         ch.ID,
			Name:       ch.Name,
			IsPrivate:  ch.IsPrivate,
			IsMember:   ch.IsMember,
			NumMembers: ch.NumMembers,
			Topic:      ch.Topic.Value,
			Purpose:    ch.Purpose.Value,
		})
	}

	return channels, nextCursor, nil
}
