// Package oauth implements an OAuth 2.1 authorization server facade for the
// MCP server. MCP clients register, authorize, and obtain tokens against this
// package; user authentication is brokered to Slack through an injected
// UpstreamProvider, and Slack credentials never reach the calling client.
//
// The package maintains two correlated but independent OAuth state spaces:
//
//   - client <-> facade: registered clients, client-supplied state and PKCE
//     challenge, facade-issued authorization codes and tokens
//   - facade <-> Slack: facade-generated signed state and PKCE verifier,
//     Slack-issued user tokens
//
// State for the upstream leg lives in the SessionStore and is consumed
// exactly once per callback. Issued tokens live in the TokenStore. Client
// registrations live in the ClientRegistry, optionally persisted to a JSON
// file so registrations survive restarts.
package oauth
