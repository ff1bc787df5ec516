// Package logging provides structured logging utilities for the MCP server.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Structured logging with slog
//   - PII sanitization (Slack user ID anonymization)
//   - Consistent attribute naming across the codebase
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithTool(slog.Default(), "slack_channels_list")
//	logger.Info("listing channels",
//	    logging.Status("success"))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("user operation",
//	    logging.UserHash(user.UserID))
//
// # Security Considerations
//
// This package is designed with security in mind:
//   - Slack user IDs are hashed to prevent PII leakage while allowing correlation
//   - Tokens are never logged directly
package logging
