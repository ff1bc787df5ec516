package oauth

import (
	"context"
	"log/slog"
	"time"
)

// Config holds the OAuth handler configuration
type Config struct {
	// Resource is the MCP server resource identifier for RFC 8707
	// This should be the base URL of the MCP server
	Resource string

	// SupportedScopes are the Slack user scopes this server requests upstream
	SupportedScopes []string

	// StateSecret is the HMAC key used to sign upstream state values.
	// Must be at least MinStateSecretLength bytes.
	StateSecret []byte

	// RegistryPath is the JSON file the client registry is persisted to.
	// Empty disables persistence (registrations are lost on restart).
	RegistryPath string

	// Rate limiting configuration
	RateLimit RateLimitConfig

	// Security settings (secure by default)
	Security SecurityConfig

	// CleanupInterval is how often to cleanup expired tokens and sessions
	// Default: 1 minute
	CleanupInterval time.Duration

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger

	// Metrics receives flow and token counters (optional)
	Metrics FlowMetrics
}

// FlowMetrics receives authorization flow and token lifecycle events.
// Implemented by the instrumentation package; a nil value disables recording.
type FlowMetrics interface {
	AuthFlowStarted(ctx context.Context)
	AuthFlowCompleted(ctx context.Context)
	AuthFlowFailed(ctx context.Context, stage string)
	TokenIssued(ctx context.Context, grantType string)
	TokenRevoked(ctx context.Context)
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// Rate is the number of requests per second allowed per IP (0 = no limit)
	Rate int

	// Burst is the maximum burst size allowed per IP
	Burst int

	// CleanupInterval is how often to cleanup inactive rate limiters
	// Default: 5 minutes
	CleanupInterval time.Duration

	// TrustProxy indicates whether to trust X-Forwarded-For and X-Real-IP headers.
	// Only set to true if the server is behind a trusted proxy.
	// Default: false (secure by default)
	TrustProxy bool
}

// SecurityConfig holds OAuth security settings (secure by default)
type SecurityConfig struct {
	// AllowPublicClientRegistration allows unauthenticated dynamic client registration.
	// WARNING: This can lead to DoS attacks via unlimited client registration.
	// When false, client registration requires a registration access token.
	// Default: false (authentication REQUIRED)
	AllowPublicClientRegistration bool

	// RegistrationAccessToken is the token required for client registration.
	// Only checked if AllowPublicClientRegistration is false.
	RegistrationAccessToken string

	// DisableRefreshTokenRotation disables automatic refresh token rotation.
	// WARNING: Disabling this violates OAuth 2.1 security best practices.
	// Default: false (rotation is ENABLED)
	DisableRefreshTokenRotation bool

	// RefreshTokenTTL is the time-to-live for refresh tokens
	// Default: 90 days
	RefreshTokenTTL time.Duration

	// MaxClientsPerIP limits the number of clients that can be registered per IP.
	// 0 = use default.
	// Default: 10
	MaxClientsPerIP int
}
