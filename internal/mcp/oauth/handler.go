package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
)

// UpstreamProvider brokers the second OAuth leg against Slack. AuthCodeURL
// builds the upstream authorization URL for the given signed state and S256
// code challenge; Exchange redeems the upstream code with the stored verifier
// and resolves the Slack identity the user authenticated as.
type UpstreamProvider interface {
	AuthCodeURL(state, codeChallenge string) string
	Exchange(ctx context.Context, code, codeVerifier string) (*UserInfo, *oauth2.Token, error)
}

// Handler implements the OAuth 2.1 endpoints for the MCP server.
// It acts as both an OAuth 2.1 Authorization Server (brokering to Slack)
// and an OAuth 2.1 Resource Server (validating issued tokens).
type Handler struct {
	config      *Config
	registry    *ClientRegistry // Registered MCP clients, optionally file-persisted
	sessions    *SessionStore   // Pending authorization flows and issued codes
	tokens      *TokenStore     // Issued access and refresh tokens
	rateLimiter *RateLimiter    // Optional IP-based rate limiter
	upstream    UpstreamProvider
	metrics     FlowMetrics
	logger      *slog.Logger
}

// NewHandler creates a new OAuth handler. A malformed client registry file is
// returned as an error so startup fails loudly instead of losing clients.
func NewHandler(config *Config, upstream UpstreamProvider) (*Handler, error) {
	if config.Resource == "" {
		return nil, fmt.Errorf("resource is required")
	}

	// Allow HTTP only for loopback addresses (development);
	// require HTTPS everywhere else.
	parsedURL, err := url.Parse(config.Resource)
	if err != nil {
		return nil, fmt.Errorf("invalid resource URL: %w", err)
	}
	if parsedURL.Scheme != "https" && !isLoopback(parsedURL.Hostname()) {
		return nil, fmt.Errorf("resource must use HTTPS in production (got %s://)", parsedURL.Scheme)
	}

	if len(config.StateSecret) < MinStateSecretLength {
		return nil, fmt.Errorf("state secret must be at least %d bytes", MinStateSecretLength)
	}

	if upstream == nil {
		return nil, fmt.Errorf("upstream provider is required")
	}

	if config.CleanupInterval == 0 {
		config.CleanupInterval = DefaultCleanupInterval
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Secure defaults
	if config.Security.RefreshTokenTTL == 0 {
		config.Security.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
	if config.Security.MaxClientsPerIP == 0 {
		config.Security.MaxClientsPerIP = DefaultMaxClientsPerIP
	}

	if config.Security.AllowPublicClientRegistration {
		logger.Warn("Public client registration is ENABLED (DoS risk)",
			"recommendation", "set Security.AllowPublicClientRegistration=false and use RegistrationAccessToken")
	}
	if config.Security.DisableRefreshTokenRotation {
		logger.Warn("Refresh token rotation is DISABLED",
			"recommendation", "set Security.DisableRefreshTokenRotation=false for production")
	}

	var rateLimiter *RateLimiter
	if config.RateLimit.Rate > 0 {
		burst := config.RateLimit.Burst
		if burst == 0 {
			burst = config.RateLimit.Rate * 2
		}
		cleanupInterval := config.RateLimit.CleanupInterval
		if cleanupInterval == 0 {
			cleanupInterval = DefaultRateLimitCleanupInterval
		}
		rateLimiter = NewRateLimiter(config.RateLimit.Rate, burst, config.RateLimit.TrustProxy, cleanupInterval)
		logger.Info("IP-based rate limiting enabled",
			"rate", config.RateLimit.Rate,
			"burst", burst)
	}

	registry, err := NewClientRegistry(config.RegistryPath, logger)
	if err != nil {
		return nil, err
	}

	sessions := NewSessionStore(logger)
	tokens := NewTokenStoreWithInterval(config.CleanupInterval, logger)

	return &Handler{
		config:      config,
		registry:    registry,
		sessions:    sessions,
		tokens:      tokens,
		rateLimiter: rateLimiter,
		upstream:    upstream,
		metrics:     config.Metrics,
		logger:      logger,
	}, nil
}

// Stop terminates the handler's background goroutines and flushes the
// client registry to disk.
func (h *Handler) Stop() {
	h.sessions.Stop()
	h.tokens.Stop()
	if h.rateLimiter != nil {
		h.rateLimiter.Stop()
	}
	if err := h.registry.Flush(); err != nil {
		h.logger.Warn("Failed to flush client registry on shutdown", "error", err)
	}
}

// Registry returns the client registry (for testing and server wiring).
func (h *Handler) Registry() *ClientRegistry {
	return h.registry
}

// Tokens returns the token store (for testing and server wiring).
func (h *Handler) Tokens() *TokenStore {
	return h.tokens
}

// Config returns the OAuth configuration.
func (h *Handler) Config() *Config {
	return h.config
}

// VerifyAccessToken resolves an access token to the Slack identity it was
// issued for. Unknown, expired, or revoked tokens return ErrTokenInvalid.
func (h *Handler) VerifyAccessToken(accessToken string) (*UserInfo, error) {
	session, err := h.tokens.GetSession(accessToken)
	if err != nil {
		return nil, err
	}
	return session.User, nil
}

// ServeProtectedResourceMetadata serves the OAuth 2.0 Protected Resource Metadata (RFC 9728)
//
// The MCP client will:
//  1. Make an unauthenticated request to the MCP server
//  2. Receive a 401 with WWW-Authenticate header pointing to this endpoint
//  3. Fetch this metadata to discover the authorization server
//  4. Optionally use Dynamic Client Registration to register
//  5. Run the OAuth 2.1 flow (which brokers to Slack) to obtain an access token
//  6. Include the token in subsequent requests to the MCP server
func (h *Handler) ServeProtectedResourceMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// We are our own authorization server; the Slack leg is an
	// implementation detail clients never see.
	metadata := ProtectedResourceMetadata{
		Resource:               h.config.Resource,
		AuthorizationServers:   []string{h.config.Resource},
		BearerMethodsSupported: []string{"header"},
		ScopesSupported:        h.config.SupportedScopes,
	}

	h.setSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(metadata); err != nil {
		h.logger.Error("Failed to encode metadata", "error", err)
	}
}

// setSecurityHeaders sets security headers on HTTP responses
func (h *Handler) setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
	w.Header().Set("Referrer-Policy", "no-referrer")

	if parsedURL, err := url.Parse(h.config.Resource); err == nil && parsedURL.Scheme == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}
}

// writeError is a helper to write OAuth error responses
func (h *Handler) writeError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	h.logger.Debug("OAuth error", "code", errorCode, "description", description, "status", statusCode)
	h.setSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:            errorCode,
		ErrorDescription: description,
	})
}

// writeOAuthError writes an *OAuthError as an HTTP response
func (h *Handler) writeOAuthError(w http.ResponseWriter, err *OAuthError) {
	h.writeError(w, err.Code, err.Description, err.Status)
}

// Metrics helpers; all safe on a nil recorder.

func (h *Handler) recordFlowStarted(ctx context.Context) {
	if h.metrics != nil {
		h.metrics.AuthFlowStarted(ctx)
	}
}

func (h *Handler) recordFlowCompleted(ctx context.Context) {
	if h.metrics != nil {
		h.metrics.AuthFlowCompleted(ctx)
	}
}

func (h *Handler) recordFlowFailed(ctx context.Context, stage string) {
	if h.metrics != nil {
		h.metrics.AuthFlowFailed(ctx, stage)
	}
}

func (h *Handler) recordTokenIssued(ctx context.Context, grantType string) {
	if h.metrics != nil {
		h.metrics.TokenIssued(ctx, grantType)
	}
}

func (h *Handler) recordTokenRevoked(ctx context.Context) {
	if h.metrics != nil {
		h.metrics.TokenRevoked(ctx)
	}
}
