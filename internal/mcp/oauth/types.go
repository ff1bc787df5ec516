package oauth

import "golang.org/x/oauth2"

// ProtectedResourceMetadata represents OAuth 2.0 Protected Resource Metadata (RFC 9728)
type ProtectedResourceMetadata struct {
	// Resource is the identifier for the protected resource
	Resource string `json:"resource"`

	// AuthorizationServers lists the authorization servers that can issue tokens for this resource
	AuthorizationServers []string `json:"authorization_servers"`

	// BearerMethodsSupported lists the ways Bearer tokens can be sent (RFC 6750)
	BearerMethodsSupported []string `json:"bearer_methods_supported,omitempty"`

	// ScopesSupported lists the scopes understood by this resource
	ScopesSupported []string `json:"scopes_supported,omitempty"`
}

// AuthorizationServerMetadata represents OAuth 2.0 Authorization Server Metadata (RFC 8414)
type AuthorizationServerMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	RegistrationEndpoint              string   `json:"registration_endpoint,omitempty"`
	RevocationEndpoint                string   `json:"revocation_endpoint,omitempty"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported,omitempty"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported,omitempty"`
}

// ClientRegistrationRequest represents a Dynamic Client Registration request (RFC 7591)
type ClientRegistrationRequest struct {
	RedirectURIs            []string `json:"redirect_uris"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	ClientName              string   `json:"client_name,omitempty"`
	ClientURI               string   `json:"client_uri,omitempty"`
	Scope                   string   `json:"scope,omitempty"`
}

// ClientRegistrationResponse represents a Dynamic Client Registration response (RFC 7591)
type ClientRegistrationResponse struct {
	ClientID                string   `json:"client_id"`
	ClientSecret            string   `json:"client_secret,omitempty"`
	ClientIDIssuedAt        int64    `json:"client_id_issued_at"`
	ClientSecretExpiresAt   int64    `json:"client_secret_expires_at"`
	RedirectURIs            []string `json:"redirect_uris"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	ClientName              string   `json:"client_name,omitempty"`
	Scope                   string   `json:"scope,omitempty"`
}

// RegisteredClient is a registered OAuth client. The plain client secret is
// returned once at registration time and only its bcrypt hash is kept. The
// JSON tags are the on-disk registry format.
type RegisteredClient struct {
	ClientID                string   `json:"client_id"`
	ClientSecretHash        string   `json:"client_secret_hash,omitempty"`
	ClientIDIssuedAt        int64    `json:"client_id_issued_at"`
	ClientSecretExpiresAt   int64    `json:"client_secret_expires_at"`
	RedirectURIs            []string `json:"redirect_uris"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	ClientName              string   `json:"client_name,omitempty"`
	Scope                   string   `json:"scope,omitempty"`
	RegistrationIP          string   `json:"registration_ip,omitempty"`
}

// TokenResponse represents an OAuth token endpoint response
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// ErrorResponse represents an OAuth error response
type ErrorResponse struct {
	// Error is the error code
	Error string `json:"error"`

	// ErrorDescription provides additional information
	ErrorDescription string `json:"error_description,omitempty"`
}

// UserInfo is the Slack identity resolved during the upstream exchange
// (auth.test). It is the principal every issued token is bound to.
type UserInfo struct {
	// UserID is the Slack user ID (e.g. U0123456789)
	UserID string `json:"user_id"`

	// UserName is the Slack display name
	UserName string `json:"user"`

	// TeamID is the Slack workspace ID (e.g. T0123456789)
	TeamID string `json:"team_id"`

	// TeamName is the Slack workspace name
	TeamName string `json:"team"`

	// TeamURL is the workspace URL
	TeamURL string `json:"url,omitempty"`

	// EnterpriseID is set for Enterprise Grid workspaces
	EnterpriseID string `json:"enterprise_id,omitempty"`
}

// AuthorizationSession is the pending state of one authorization flow,
// created at /oauth/authorize and consumed exactly once at the Slack
// callback. It correlates the client leg (redirect URI, client state, client
// PKCE challenge) with the upstream leg (signed state, upstream PKCE
// verifier). The upstream verifier and the client challenge belong to
// different PKCE handshakes and are never interchangeable.
type AuthorizationSession struct {
	// ClientID is the registered MCP client that started the flow
	ClientID string

	// UpstreamState is the signed state sent to Slack; it is also the
	// session key
	UpstreamState string

	// CodeVerifier is the PKCE verifier for the facade->Slack leg
	CodeVerifier string

	// RedirectURI is the validated client redirect target
	RedirectURI string

	// ClientState is the client's original state, echoed back verbatim
	ClientState string

	// CodeChallenge and CodeChallengeMethod are the client's PKCE
	// parameters, re-checked at the token endpoint
	CodeChallenge       string
	CodeChallengeMethod string

	// Scope is the scope string requested by the client
	Scope string

	CreatedAt int64
	ExpiresAt int64
}

// AuthorizationCode is a single-use code issued to the MCP client after a
// successful Slack callback. It carries the resolved identity and the Slack
// token so the token endpoint can bind both to the issued access token.
type AuthorizationCode struct {
	Code                string
	ClientID            string
	RedirectURI         string
	Scope               string
	CodeChallenge       string
	CodeChallengeMethod string
	User                *UserInfo
	SlackToken          *oauth2.Token
	CreatedAt           int64
	ExpiresAt           int64
}

// TokenSession is what an issued access token resolves to: the Slack
// identity, the upstream token used for Slack API calls, and the issuing
// client.
type TokenSession struct {
	User       *UserInfo
	SlackToken *oauth2.Token
	ClientID   string
	Scope      string
	ExpiresAt  int64
}

// RefreshRecord is the binding behind an issued refresh token. It carries
// enough to mint a fresh access token without another upstream round trip.
type RefreshRecord struct {
	User       *UserInfo
	SlackToken *oauth2.Token
	ClientID   string
	Scope      string
	ExpiresAt  int64
}
