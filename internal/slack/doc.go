// Package slack implements the upstream side of the OAuth broker: building
// Slack authorization URLs, redeeming authorization codes against
// oauth.v2.access, and resolving the authenticated identity via auth.test.
// It also carries a thin Web API client used by the MCP tool layer with the
// brokered user token.
package slack
