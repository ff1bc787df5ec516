package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Omers-Frontegg/slack-mcp-server-session-demo/internal/instrumentation"
	"github.com/Omers-Frontegg/slack-mcp-server-session-demo/internal/mcp/oauth"
)

// OAuthConfig holds the configuration for the OAuth-enabled HTTP server.
type OAuthConfig struct {
	// BaseURL is the externally visible base URL of this server.
	// Used as the OAuth issuer and RFC 8707 resource identifier.
	BaseURL string

	// SupportedScopes are the Slack user scopes requested upstream.
	SupportedScopes []string

	// StateSecret signs the state values sent to Slack.
	StateSecret []byte

	// RegistryPath persists registered clients to a JSON file.
	// Empty keeps registrations in memory only.
	RegistryPath string

	// AllowPublicClientRegistration allows unauthenticated dynamic
	// client registration. When false, RegistrationAccessToken is required.
	AllowPublicClientRegistration bool
	RegistrationAccessToken       string
	MaxClientsPerIP               int

	// Rate limiting for all HTTP endpoints (0 disables).
	RateLimitRate  int
	RateLimitBurst int
	TrustProxy     bool

	// DisableStreaming turns off SSE upgrades on the streamable-http
	// transport for clients that cannot handle streamed responses.
	DisableStreaming bool

	// Upstream brokers the authorization leg against Slack.
	Upstream oauth.UpstreamProvider

	// Metrics records HTTP, flow, and token metrics (optional).
	Metrics *instrumentation.Metrics

	// Logger for structured logging (optional).
	Logger *slog.Logger
}

// OAuthHTTPServer wraps an MCP server with the OAuth 2.1 authorization
// server facade. It serves the discovery, registration, authorization,
// token, and revocation endpoints alongside the bearer-protected MCP
// transport, and RFC 9728 Protected Resource Metadata so MCP clients can
// discover the authorization server.
type OAuthHTTPServer struct {
	mcpServer        *mcpserver.MCPServer
	oauthHandler     *oauth.Handler
	httpServer       *http.Server
	healthChecker    *HealthChecker
	metrics          *instrumentation.Metrics
	serverType       string // "sse" or "streamable-http"
	disableStreaming bool
}

// NewOAuthHTTPServer creates a new OAuth-enabled HTTP server for MCP
func NewOAuthHTTPServer(mcpServer *mcpserver.MCPServer, serverType string, config OAuthConfig) (*OAuthHTTPServer, error) {
	oauthConfig := &oauth.Config{
		Resource:        config.BaseURL,
		SupportedScopes: config.SupportedScopes,
		StateSecret:     config.StateSecret,
		RegistryPath:    config.RegistryPath,
		RateLimit: oauth.RateLimitConfig{
			Rate:       config.RateLimitRate,
			Burst:      config.RateLimitBurst,
			TrustProxy: config.TrustProxy,
		},
		Security: oauth.SecurityConfig{
			AllowPublicClientRegistration: config.AllowPublicClientRegistration,
			RegistrationAccessToken:       config.RegistrationAccessToken,
			MaxClientsPerIP:               config.MaxClientsPerIP,
		},
		Logger: config.Logger,
	}

	// A typed nil must not end up in the interface field; the handler
	// only checks the interface against nil.
	if config.Metrics != nil {
		oauthConfig.Metrics = config.Metrics
	}

	oauthHandler, err := oauth.NewHandler(oauthConfig, config.Upstream)
	if err != nil {
		return nil, fmt.Errorf("failed to create OAuth handler: %w", err)
	}

	return &OAuthHTTPServer{
		mcpServer:        mcpServer,
		oauthHandler:     oauthHandler,
		metrics:          config.Metrics,
		serverType:       serverType,
		disableStreaming: config.DisableStreaming,
	}, nil
}

// SetHealthChecker attaches a health checker whose endpoints are
// registered when the server starts.
func (s *OAuthHTTPServer) SetHealthChecker(hc *HealthChecker) {
	s.healthChecker = hc
}

// Start starts the OAuth-enabled HTTP server
func (s *OAuthHTTPServer) Start(addr string) error {
	// Validate HTTPS requirement for OAuth 2.1
	// Exception: localhost is allowed to use HTTP for development
	baseURL := s.oauthHandler.Config().Resource
	if err := validateHTTPSRequirement(baseURL); err != nil {
		return err
	}

	mux := http.NewServeMux()
	h := s.oauthHandler

	// oauthEndpoint wraps an endpoint with rate limiting and HTTP metrics.
	oauthEndpoint := func(fn http.HandlerFunc) http.Handler {
		return s.instrumentationMiddleware(h.RateLimitMiddleware(fn))
	}

	// ========== OAuth 2.1 Endpoints ==========

	// Protected Resource Metadata endpoint (RFC 9728)
	mux.Handle("/.well-known/oauth-protected-resource", oauthEndpoint(h.ServeProtectedResourceMetadata))

	// Authorization Server Metadata endpoint (RFC 8414)
	mux.Handle("/.well-known/oauth-authorization-server", oauthEndpoint(h.ServeAuthorizationServerMetadata))

	// Dynamic Client Registration endpoint (RFC 7591)
	mux.Handle("/oauth/register", oauthEndpoint(h.ServeClientRegistration))

	// OAuth Authorization endpoint
	mux.Handle("/oauth/authorize", oauthEndpoint(h.ServeAuthorization))

	// OAuth Callback endpoint (redirect back from Slack)
	mux.Handle("/oauth/callback", oauthEndpoint(h.ServeCallback))

	// OAuth Token endpoint
	mux.Handle("/oauth/token", oauthEndpoint(h.ServeToken))

	// Token Revocation endpoint (RFC 7009)
	mux.Handle("/oauth/revoke", oauthEndpoint(h.ServeTokenRevocation))

	// ========== Health Endpoints ==========

	if s.healthChecker != nil {
		s.healthChecker.RegisterHealthEndpoints(mux)
	}

	// ========== MCP Endpoints ==========

	// protected wraps the MCP transport with rate limiting, bearer token
	// validation, and HTTP metrics.
	protected := func(next http.Handler) http.Handler {
		return s.instrumentationMiddleware(h.RateLimitMiddleware(h.ValidateToken(next)))
	}

	switch s.serverType {
	case "sse":
		sseServer := mcpserver.NewSSEServer(s.mcpServer,
			mcpserver.WithSSEEndpoint("/sse"),
			mcpserver.WithMessageEndpoint("/message"),
		)

		mux.Handle("/sse", protected(sseServer))
		mux.Handle("/message", protected(sseServer))

	case "streamable-http":
		var streamServer http.Handler
		if s.disableStreaming {
			streamServer = mcpserver.NewStreamableHTTPServer(s.mcpServer,
				mcpserver.WithEndpointPath("/mcp"),
				mcpserver.WithDisableStreaming(true),
			)
		} else {
			streamServer = mcpserver.NewStreamableHTTPServer(s.mcpServer,
				mcpserver.WithEndpointPath("/mcp"),
			)
		}

		mux.Handle("/mcp", protected(streamServer))

	default:
		return fmt.Errorf("unsupported server type: %s", s.serverType)
	}

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Start server
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *OAuthHTTPServer) Shutdown(ctx context.Context) error {
	// Stop the OAuth handler's background sweepers first so no new
	// sessions or tokens are issued while draining
	if s.oauthHandler != nil {
		s.oauthHandler.Stop()
	}

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// OAuthHandler returns the OAuth handler for testing or direct access
func (s *OAuthHTTPServer) OAuthHandler() *oauth.Handler {
	return s.oauthHandler
}

// responseWriter captures the status code written by the wrapped handler
// so it can be recorded as a metric label.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// instrumentationMiddleware records request counts and durations per
// method, path, and status. A nil metrics recorder makes it a pass-through.
func (s *OAuthHTTPServer) instrumentationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)
		s.metrics.RecordHTTPRequest(r.Context(), r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}

// validateHTTPSRequirement ensures OAuth 2.1 HTTPS compliance
// Allows HTTP only for loopback addresses (localhost, 127.0.0.1, ::1)
func validateHTTPSRequirement(baseURL string) error {
	if baseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	// Parse URL to properly validate scheme and host
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	// Allow HTTP only for loopback addresses
	if u.Scheme == "http" {
		host := u.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			return fmt.Errorf("OAuth 2.1 requires HTTPS for production (got: %s). Use HTTPS or localhost for development", baseURL)
		}
	} else if u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s. Must be http (localhost only) or https", u.Scheme)
	}

	return nil
}
