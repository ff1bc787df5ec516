package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the slack-mcp-server application
var rootCmd = &cobra.Command{
	Use:   "slack-mcp-server",
	Short: "MCP server exposing Slack tools behind an OAuth 2.1 facade",
	Long: `slack-mcp-server is a Model Context Protocol (MCP) server that exposes
Slack tools to AI assistants.

MCP clients authenticate against the server's built-in OAuth 2.1
authorization server, which brokers the actual login to Slack. Slack
credentials never reach the calling client.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "slack-mcp-server version %s\n" .Version}}`)

	// Optional .env for local development; missing file is fine
	_ = godotenv.Load()

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
}
