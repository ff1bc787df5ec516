// Package slack_tools provides MCP (Model Context Protocol) tools for
// interacting with Slack on behalf of the authenticated user.
//
// Identity:
//   - slack_whoami: Report the Slack identity bound to the calling bearer token
//   - slack_auth_status: Report whether the caller is authenticated, with scope
//     and token expiry
//
// Channels:
//   - slack_channels_list: List conversations visible to the user, with cursor
//     pagination
//
// The identity comes from the OAuth validation middleware, which resolves the
// bearer token to a Slack user and stores it in the request context. Tools
// that need identity return a descriptive tool result when it is absent, never
// a protocol error, so MCP clients can surface the message and start the
// authorization flow.
package slack_tools
