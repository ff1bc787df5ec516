// Package server provides the MCP server context, health checks, and the
// OAuth-enabled HTTP server for the Slack MCP server.
//
// # Key Components
//
// ServerContext caches Slack Web API clients per user token so repeated
// tool calls by the same user reuse one client.
//
// OAuthHTTPServer wraps an MCP server with the OAuth 2.1 authorization
// server facade:
//   - Authorization Server Metadata (RFC 8414)
//   - Protected Resource Metadata (RFC 9728)
//   - Dynamic Client Registration (RFC 7591)
//   - Token Revocation (RFC 7009)
//
// MetricsServer exposes Prometheus metrics on a dedicated port, and
// HealthChecker serves liveness and readiness probes.
//
// # Security Features
//
// The OAuth server includes security-focused defaults:
//   - HTTPS required for production (localhost exempt for development)
//   - PKCE required for public clients (OAuth 2.1 compliance)
//   - State parameter required for CSRF protection
//   - Rate limiting per IP
//   - Security headers on all HTTP responses
package server
