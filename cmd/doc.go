// Package cmd implements the command-line interface for slack-mcp-server.
//
// This package provides the following commands:
//   - serve: Start the MCP server (stdio or OAuth-protected HTTP transports)
//   - version: Display version information
package cmd
