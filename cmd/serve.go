package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Omers-Frontegg/slack-mcp-server-session-demo/internal/instrumentation"
	"github.com/Omers-Frontegg/slack-mcp-server-session-demo/internal/logging"
	"github.com/Omers-Frontegg/slack-mcp-server-session-demo/internal/server"
	"github.com/Omers-Frontegg/slack-mcp-server-session-demo/internal/slack"
	"github.com/Omers-Frontegg/slack-mcp-server-session-demo/internal/tools/slack_tools"
)

// defaultUserScopes are the Slack user scopes requested when none are
// configured. They cover identity resolution and channel listing.
var defaultUserScopes = []string{"channels:read", "groups:read", "users:read"}

// ServeConfig collects everything the serve command needs. Values come from
// flags first, environment variables second.
type ServeConfig struct {
	Transport        string
	HTTPAddr         string
	BaseURL          string
	Debug            bool
	DisableStreaming bool

	SlackClientID     string
	SlackClientSecret string
	UserScopes        []string

	StateSecret  string
	RegistryFile string

	AllowPublicClientRegistration bool
	RegistrationAccessToken       string
	MaxClientsPerIP               int

	RateLimitRate  int
	RateLimitBurst int
	TrustProxy     bool

	MetricsEnabled bool
	MetricsAddr    string
}

func newServeCmd() *cobra.Command {
	var cfg ServeConfig

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server exposing Slack tools.

Supports multiple transport types:
  - stdio: Standard input/output (default, no OAuth)
  - streamable-http: Streamable HTTP transport behind the OAuth facade
  - sse: Server-sent events transport behind the OAuth facade

OAuth Configuration (HTTP transports):
  Slack app credentials (required):
    --slack-client-id and --slack-client-secret flags
    OR SLACK_CLIENT_ID and SLACK_CLIENT_SECRET env vars

  State signing secret (required):
    --state-secret flag OR MCP_STATE_SECRET env var (at least 16 bytes)

  Base URL (required for deployed instances):
    --base-url https://your-domain.com OR MCP_BASE_URL env var
    Auto-detected for localhost (development only)`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			applyServeEnv(cmd, &cfg)
			return runServe(cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&cfg.Transport, "transport", "stdio", "Transport type: stdio, sse, or streamable-http")
	cmd.Flags().StringVar(&cfg.HTTPAddr, "http-addr", ":8080", "HTTP server address (for HTTP transports)")
	cmd.Flags().StringVar(&cfg.BaseURL, "base-url", "", "Public base URL for OAuth (HTTP transports only). Required for deployed instances. Can also use MCP_BASE_URL env var.")
	cmd.Flags().BoolVar(&cfg.DisableStreaming, "disable-streaming", false, "Disable streaming for HTTP transport (for compatibility with certain clients)")

	cmd.Flags().StringVar(&cfg.SlackClientID, "slack-client-id", "", "Slack app client ID. Can also use SLACK_CLIENT_ID env var.")
	cmd.Flags().StringVar(&cfg.SlackClientSecret, "slack-client-secret", "", "Slack app client secret. Can also use SLACK_CLIENT_SECRET env var.")
	cmd.Flags().StringSliceVar(&cfg.UserScopes, "slack-user-scopes", nil, "Slack user scopes to request upstream (comma-separated). Can also use SLACK_USER_SCOPES env var.")

	cmd.Flags().StringVar(&cfg.StateSecret, "state-secret", "", "HMAC key for signing upstream state values (at least 16 bytes). Can also use MCP_STATE_SECRET env var.")
	cmd.Flags().StringVar(&cfg.RegistryFile, "client-registry-file", "clients.json", "JSON file the OAuth client registry is persisted to. Can also use MCP_CLIENT_REGISTRY_FILE env var. Empty disables persistence.")

	cmd.Flags().BoolVar(&cfg.AllowPublicClientRegistration, "oauth-allow-public-registration", false, "WARNING: Allow unauthenticated client registration (NOT recommended for production). Can also use MCP_OAUTH_ALLOW_PUBLIC_REGISTRATION env var.")
	cmd.Flags().StringVar(&cfg.RegistrationAccessToken, "oauth-registration-token", "", "Registration access token required for client registration when public registration is disabled. Can also use MCP_OAUTH_REGISTRATION_TOKEN env var.")
	cmd.Flags().IntVar(&cfg.MaxClientsPerIP, "oauth-max-clients-per-ip", 10, "Maximum number of clients that can be registered per IP address (prevents DoS). Can also use MCP_OAUTH_MAX_CLIENTS_PER_IP env var.")

	cmd.Flags().IntVar(&cfg.RateLimitRate, "rate-limit", 10, "Requests per second allowed per IP on OAuth and MCP endpoints (0 disables)")
	cmd.Flags().IntVar(&cfg.RateLimitBurst, "rate-limit-burst", 20, "Maximum burst size allowed per IP")
	cmd.Flags().BoolVar(&cfg.TrustProxy, "trust-proxy", false, "Trust X-Forwarded-For/X-Real-IP headers for rate limiting. Only enable behind a trusted proxy. Can also use MCP_TRUST_PROXY env var.")

	cmd.Flags().BoolVar(&cfg.MetricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

// applyServeEnv fills config values from the environment for every flag the
// user did not set explicitly.
func applyServeEnv(cmd *cobra.Command, cfg *ServeConfig) {
	if cfg.SlackClientID == "" {
		cfg.SlackClientID = os.Getenv("SLACK_CLIENT_ID")
	}
	if cfg.SlackClientSecret == "" {
		cfg.SlackClientSecret = os.Getenv("SLACK_CLIENT_SECRET")
	}
	if len(cfg.UserScopes) == 0 {
		cfg.UserScopes = parseCommaSeparatedList(os.Getenv("SLACK_USER_SCOPES"))
	}
	if len(cfg.UserScopes) == 0 {
		cfg.UserScopes = defaultUserScopes
	}

	if cfg.StateSecret == "" {
		cfg.StateSecret = os.Getenv("MCP_STATE_SECRET")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("MCP_BASE_URL")
	}
	if !cmd.Flags().Changed("client-registry-file") {
		if path := os.Getenv("MCP_CLIENT_REGISTRY_FILE"); path != "" {
			cfg.RegistryFile = path
		}
	}

	if !cfg.AllowPublicClientRegistration && os.Getenv("MCP_OAUTH_ALLOW_PUBLIC_REGISTRATION") == "true" {
		cfg.AllowPublicClientRegistration = true
	}
	if cfg.RegistrationAccessToken == "" {
		cfg.RegistrationAccessToken = os.Getenv("MCP_OAUTH_REGISTRATION_TOKEN")
	}
	if !cmd.Flags().Changed("oauth-max-clients-per-ip") {
		if envMax := os.Getenv("MCP_OAUTH_MAX_CLIENTS_PER_IP"); envMax != "" {
			if maxClients, err := strconv.Atoi(envMax); err == nil && maxClients > 0 {
				cfg.MaxClientsPerIP = maxClients
			}
		}
	}

	if !cfg.TrustProxy && os.Getenv("MCP_TRUST_PROXY") == "true" {
		cfg.TrustProxy = true
	}

	if !cmd.Flags().Changed("metrics-enabled") {
		if os.Getenv("METRICS_ENABLED") == "false" {
			cfg.MetricsEnabled = false
		}
	}
	if !cmd.Flags().Changed("metrics-addr") {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			cfg.MetricsAddr = addr
		}
	}
}

func runServe(cfg ServeConfig) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Logs go to stderr; stdout belongs to the stdio transport
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Warn("instrumentation shutdown failed", logging.Err(err))
		}
	}()

	// Start the dedicated metrics listener for HTTP transports
	var metricsServer *server.MetricsServer
	if cfg.Transport != "stdio" && cfg.MetricsEnabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.MetricsAddr,
			Endpoint:                instrConfig.PrometheusEndpoint,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", logging.Err(err))
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(ctx); err != nil {
				logger.Warn("metrics server shutdown failed", logging.Err(err))
			}
		}()
	}

	// Create server context
	serverContext := server.NewServerContext(shutdownCtx)
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			logger.Warn("server context shutdown failed", logging.Err(err))
		}
	}()

	// Create MCP server
	mcpSrv := mcpserver.NewMCPServer("slack-mcp-server", version,
		mcpserver.WithToolCapabilities(true),
	)

	var toolMetrics *instrumentation.Metrics
	if provider.Enabled() {
		toolMetrics = provider.Metrics()
	}

	if err := slack_tools.RegisterSlackTools(mcpSrv, serverContext, toolMetrics); err != nil {
		return fmt.Errorf("failed to register Slack tools: %w", err)
	}

	// Start the appropriate server based on transport type
	switch cfg.Transport {
	case "stdio":
		return runStdioServer(mcpSrv)
	case "sse", "streamable-http":
		return runHTTPServer(shutdownCtx, mcpSrv, serverContext, cfg, provider, logger)
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, sse, streamable-http)", cfg.Transport)
	}
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func runHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, serverContext *server.ServerContext, cfg ServeConfig, provider *instrumentation.Provider, logger *slog.Logger) error {
	// HTTP transports require the OAuth facade; its prerequisites are
	// fatal when missing.
	if cfg.SlackClientID == "" || cfg.SlackClientSecret == "" {
		return fmt.Errorf("Slack credentials are required for HTTP transports: set --slack-client-id/--slack-client-secret or SLACK_CLIENT_ID/SLACK_CLIENT_SECRET")
	}
	if cfg.StateSecret == "" {
		return fmt.Errorf("a state signing secret is required for HTTP transports: set --state-secret or MCP_STATE_SECRET")
	}

	baseURL := resolveBaseURL(cfg.BaseURL, cfg.HTTPAddr)
	logger.Info("using base URL", "base_url", baseURL)

	bridge, err := slack.NewBridge(slack.BridgeConfig{
		ClientID:     cfg.SlackClientID,
		ClientSecret: cfg.SlackClientSecret,
		RedirectURL:  baseURL + "/oauth/callback",
		UserScopes:   cfg.UserScopes,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create Slack bridge: %w", err)
	}

	var metrics *instrumentation.Metrics
	if provider.Enabled() {
		metrics = provider.Metrics()
	}

	oauthServer, err := server.NewOAuthHTTPServer(mcpSrv, cfg.Transport, server.OAuthConfig{
		BaseURL:                       baseURL,
		SupportedScopes:               cfg.UserScopes,
		StateSecret:                   []byte(cfg.StateSecret),
		RegistryPath:                  cfg.RegistryFile,
		AllowPublicClientRegistration: cfg.AllowPublicClientRegistration,
		RegistrationAccessToken:       cfg.RegistrationAccessToken,
		MaxClientsPerIP:               cfg.MaxClientsPerIP,
		RateLimitRate:                 cfg.RateLimitRate,
		RateLimitBurst:                cfg.RateLimitBurst,
		TrustProxy:                    cfg.TrustProxy,
		DisableStreaming:              cfg.DisableStreaming,
		Upstream:                      bridge,
		Metrics:                       metrics,
		Logger:                        logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create OAuth HTTP server: %w", err)
	}

	healthChecker := server.NewHealthChecker(serverContext)
	healthChecker.SetOAuthHandler(oauthServer.OAuthHandler())
	oauthServer.SetHealthChecker(healthChecker)

	logger.Info("starting MCP server",
		"transport", cfg.Transport,
		"addr", cfg.HTTPAddr,
		"authorization_server", baseURL)

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := oauthServer.Start(cfg.HTTPAddr); err != nil && err != http.ErrServerClosed {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping HTTP server")
		healthChecker.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := oauthServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	logger.Info("HTTP server stopped")
	return nil
}

// resolveBaseURL falls back to a loopback URL derived from the listen
// address when no public base URL is configured. Deployed instances must
// configure one explicitly.
func resolveBaseURL(baseURL, addr string) string {
	if baseURL != "" {
		return strings.TrimSuffix(baseURL, "/")
	}
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

// parseCommaSeparatedList parses a comma-separated string into a slice,
// trimming whitespace from each element and filtering out empty strings.
// Returns nil if the input is empty or contains only whitespace/commas.
func parseCommaSeparatedList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
