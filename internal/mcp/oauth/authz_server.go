package oauth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ServeAuthorizationServerMetadata serves the OAuth 2.0 Authorization Server Metadata (RFC 8414).
// This endpoint tells MCP clients about the OAuth endpoints of this server.
func (h *Handler) ServeAuthorizationServerMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	metadata := AuthorizationServerMetadata{
		Issuer:                            h.config.Resource,
		AuthorizationEndpoint:             h.config.Resource + "/oauth/authorize",
		TokenEndpoint:                     h.config.Resource + "/oauth/token",
		RegistrationEndpoint:              h.config.Resource + "/oauth/register",
		RevocationEndpoint:                h.config.Resource + "/oauth/revoke",
		ScopesSupported:                   h.config.SupportedScopes,
		ResponseTypesSupported:            DefaultResponseTypes,
		GrantTypesSupported:               DefaultGrantTypes,
		TokenEndpointAuthMethodsSupported: SupportedTokenAuthMethods,
		CodeChallengeMethodsSupported:     SupportedCodeChallengeMethods,
	}

	h.setSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(metadata); err != nil {
		h.logger.Error("Failed to encode authorization server metadata", "error", err)
	}
}

// ServeClientRegistration handles Dynamic Client Registration (RFC 7591)
func (h *Handler) ServeClientRegistration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// OAuth 2.1: registration requires authentication unless explicitly opened up
	if !h.config.Security.AllowPublicClientRegistration {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			h.logger.Warn("Client registration rejected: missing authorization",
				"client_ip", r.RemoteAddr)
			w.Header().Set("WWW-Authenticate", "Bearer")
			h.writeError(w, "invalid_token", "Registration access token required", http.StatusUnauthorized)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			h.logger.Warn("Client registration rejected: invalid authorization header",
				"client_ip", r.RemoteAddr)
			w.Header().Set("WWW-Authenticate", "Bearer")
			h.writeError(w, "invalid_token", "Invalid Authorization header format", http.StatusUnauthorized)
			return
		}

		if h.config.Security.RegistrationAccessToken == "" {
			h.logger.Error("RegistrationAccessToken not configured but AllowPublicClientRegistration=false")
			h.writeError(w, "server_error", "Registration token not configured", http.StatusInternalServerError)
			return
		}

		if parts[1] != h.config.Security.RegistrationAccessToken {
			h.logger.Warn("Client registration rejected: invalid registration token",
				"client_ip", r.RemoteAddr)
			h.writeError(w, "invalid_token", "Invalid registration access token", http.StatusUnauthorized)
			return
		}
	}

	var req ClientRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "invalid_request", "Failed to parse registration request", http.StatusBadRequest)
		return
	}

	// At least one redirect_uri is required for the authorization_code flow
	if len(req.RedirectURIs) == 0 {
		h.writeError(w, "invalid_redirect_uri", "At least one redirect_uri is required", http.StatusBadRequest)
		return
	}

	for _, uri := range req.RedirectURIs {
		if err := validateRedirectURI(uri, h.config.Resource); err != nil {
			h.writeError(w, "invalid_redirect_uri", err.Error(), http.StatusBadRequest)
			return
		}
	}

	// Per-IP registration cap for DoS protection
	clientIP := getClientIP(r, h.config.RateLimit.TrustProxy)
	if err := h.registry.CheckIPLimit(clientIP, h.config.Security.MaxClientsPerIP); err != nil {
		h.logger.Warn("Client registration limit exceeded",
			"client_ip", clientIP,
			"limit", h.config.Security.MaxClientsPerIP)
		h.writeError(w, "invalid_request",
			fmt.Sprintf("Client registration limit exceeded for your IP address (%d max)", h.config.Security.MaxClientsPerIP),
			http.StatusTooManyRequests)
		return
	}

	resp, err := h.registry.Register(&req, clientIP)
	if err != nil {
		h.logger.Error("Failed to register client", "error", err)
		h.writeError(w, "server_error", "Failed to register client", http.StatusInternalServerError)
		return
	}

	h.logger.Info("Client registered",
		"client_id", resp.ClientID,
		"client_name", resp.ClientName,
	)

	h.setSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

// ServeAuthorization handles the OAuth authorization endpoint.
// It validates the client request, opens a fresh upstream flow with its own
// signed state and PKCE pair, and redirects the user agent to Slack.
func (h *Handler) ServeAuthorization(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.upstream == nil {
		h.logger.Error("Upstream provider not configured")
		h.writeError(w, "server_error", "OAuth broker not configured", http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	clientID := query.Get("client_id")
	redirectURI := query.Get("redirect_uri")
	clientState := query.Get("state")
	scope := query.Get("scope")
	codeChallenge := query.Get("code_challenge")
	codeChallengeMethod := query.Get("code_challenge_method")

	if clientID == "" {
		h.writeError(w, "invalid_request", "client_id is required", http.StatusBadRequest)
		return
	}

	// OAuth 2.1: state is required for CSRF protection
	if clientState == "" {
		h.logger.Warn("Authorization request rejected: missing state parameter",
			"client_id", clientID,
			"redirect_uri", redirectURI)
		h.writeError(w, "invalid_request", "state parameter is required for CSRF protection", http.StatusBadRequest)
		return
	}

	client, err := h.registry.Get(clientID)
	if err != nil {
		h.logger.Warn("Invalid client_id", "client_id", clientID, "error", err)
		h.writeError(w, "invalid_client", "Invalid client_id", http.StatusUnauthorized)
		return
	}

	// The redirect target is always taken from the registered set: an
	// explicit redirect_uri must match a registered one exactly, and an
	// absent one falls back to the first registered URI.
	if redirectURI == "" {
		redirectURI = client.RedirectURIs[0]
	} else if err := h.registry.ValidateRedirectURI(clientID, redirectURI); err != nil {
		h.logger.Warn("Invalid redirect_uri",
			"client_id", clientID,
			"redirect_uri", redirectURI,
			"error", err,
		)
		h.writeError(w, "invalid_request", "redirect_uri not registered for this client", http.StatusBadRequest)
		return
	}

	// OAuth 2.1 requires PKCE for public clients
	if codeChallenge == "" && client.TokenEndpointAuthMethod == "none" {
		h.writeError(w, "invalid_request", "PKCE is required for public clients", http.StatusBadRequest)
		return
	}

	if codeChallenge != "" {
		if codeChallengeMethod == "" {
			codeChallengeMethod = "S256"
		}
		if codeChallengeMethod != "S256" {
			h.writeError(w, "invalid_request", "Only the S256 code_challenge_method is supported", http.StatusBadRequest)
			return
		}
	}

	h.recordFlowStarted(r.Context())

	// Fresh signed state and PKCE pair for the upstream leg. These are
	// independent of the client's state and challenge, which are stored
	// alongside and replayed later.
	upstreamState, err := newSignedState(h.config.StateSecret)
	if err != nil {
		h.logger.Error("Failed to generate state", "error", err)
		h.recordFlowFailed(r.Context(), "authorize")
		h.writeError(w, "server_error", "Failed to generate state", http.StatusInternalServerError)
		return
	}

	verifier, err := GenerateCodeVerifier()
	if err != nil {
		h.logger.Error("Failed to generate code verifier", "error", err)
		h.recordFlowFailed(r.Context(), "authorize")
		h.writeError(w, "server_error", "Failed to generate code verifier", http.StatusInternalServerError)
		return
	}

	now := time.Now().Unix()
	session := &AuthorizationSession{
		ClientID:            clientID,
		UpstreamState:       upstreamState,
		CodeVerifier:        verifier,
		RedirectURI:         redirectURI,
		ClientState:         clientState,
		CodeChallenge:       codeChallenge,
		CodeChallengeMethod: codeChallengeMethod,
		Scope:               scope,
		CreatedAt:           now,
		ExpiresAt:           now + int64(DefaultAuthorizationFlowTTL.Seconds()),
	}

	if err := h.sessions.SaveSession(session); err != nil {
		h.logger.Error("Failed to save authorization session", "error", err)
		h.recordFlowFailed(r.Context(), "authorize")
		h.writeError(w, "server_error", "Failed to save authorization session", http.StatusInternalServerError)
		return
	}

	authURL := h.upstream.AuthCodeURL(upstreamState, GenerateCodeChallenge(verifier))

	h.logger.Info("Redirecting to Slack for authorization",
		"client_id", clientID,
		"redirect_uri", redirectURI,
	)

	http.Redirect(w, r, authURL, http.StatusFound)
}

// ServeCallback handles the redirect back from Slack. The session is
// consumed exactly once, success or failure: a state value that reaches this
// handler never survives it.
func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	upstreamState := query.Get("state")
	code := query.Get("code")
	errorParam := query.Get("error")

	// Signature check before any store lookup; forged states never reach the store.
	if !verifySignedState(h.config.StateSecret, upstreamState) {
		h.logger.Warn("Callback state failed signature verification")
		h.recordFlowFailed(r.Context(), "callback")
		h.writeError(w, "invalid_request", "Invalid or expired state", http.StatusBadRequest)
		return
	}

	session, err := h.sessions.ConsumeSession(upstreamState)
	if err != nil {
		h.logger.Warn("Unknown or already-used callback state", "error", err)
		h.recordFlowFailed(r.Context(), "callback")
		h.writeError(w, "invalid_request", "Invalid or expired state", http.StatusBadRequest)
		return
	}

	// Upstream denial (e.g. the user cancelled the Slack consent screen).
	// The session is already consumed; relay the error to the client.
	if errorParam != "" {
		errorDesc := query.Get("error_description")
		h.logger.Warn("Slack OAuth error",
			"error", errorParam,
			"description", errorDesc,
			"client_id", session.ClientID,
		)
		h.recordFlowFailed(r.Context(), "callback")
		h.redirectWithError(w, r, session, "access_denied", errorDesc)
		return
	}

	// Redeem the upstream code with the stored upstream verifier. The
	// client's verifier plays no role in this leg.
	user, slackToken, err := h.upstream.Exchange(r.Context(), code, session.CodeVerifier)
	if err != nil {
		h.logger.Error("Failed to exchange code with Slack", "error", err)
		h.recordFlowFailed(r.Context(), "exchange")
		h.redirectWithError(w, r, session, "server_error", "Upstream token exchange failed")
		return
	}

	h.logger.Info("Slack OAuth successful",
		"user_id", user.UserID,
		"team_id", user.TeamID,
		"client_id", session.ClientID,
	)

	authCode, err := generateSecureToken(StateTokenLength)
	if err != nil {
		h.logger.Error("Failed to generate authorization code", "error", err)
		h.recordFlowFailed(r.Context(), "callback")
		h.redirectWithError(w, r, session, "server_error", "Failed to generate authorization code")
		return
	}

	now := time.Now().Unix()
	authCodeData := &AuthorizationCode{
		Code:                authCode,
		ClientID:            session.ClientID,
		RedirectURI:         session.RedirectURI,
		Scope:               session.Scope,
		CodeChallenge:       session.CodeChallenge,
		CodeChallengeMethod: session.CodeChallengeMethod,
		User:                user,
		SlackToken:          slackToken,
		CreatedAt:           now,
		ExpiresAt:           now + int64(DefaultAuthorizationCodeTTL.Seconds()),
	}

	if err := h.sessions.SaveCode(authCodeData); err != nil {
		h.logger.Error("Failed to save authorization code", "error", err)
		h.recordFlowFailed(r.Context(), "callback")
		h.redirectWithError(w, r, session, "server_error", "Failed to save authorization code")
		return
	}

	redirectURL, err := url.Parse(session.RedirectURI)
	if err != nil {
		h.logger.Error("Invalid redirect URI", "redirect_uri", session.RedirectURI, "error", err)
		http.Error(w, "Invalid redirect URI", http.StatusInternalServerError)
		return
	}

	redirectQuery := redirectURL.Query()
	redirectQuery.Set("code", authCode)
	redirectQuery.Set("state", session.ClientState)
	redirectURL.RawQuery = redirectQuery.Encode()

	h.recordFlowCompleted(r.Context())

	h.logger.Info("Redirecting back to MCP client",
		"client_id", session.ClientID,
		"redirect_uri", session.RedirectURI,
	)

	http.Redirect(w, r, redirectURL.String(), http.StatusFound)
}

// redirectWithError sends the user agent back to the client's redirect URI
// with an OAuth error, echoing the client's original state.
func (h *Handler) redirectWithError(w http.ResponseWriter, r *http.Request, session *AuthorizationSession, errorCode, description string) {
	redirectURL, err := url.Parse(session.RedirectURI)
	if err != nil {
		http.Error(w, "Invalid redirect URI", http.StatusInternalServerError)
		return
	}

	redirectQuery := redirectURL.Query()
	redirectQuery.Set("error", errorCode)
	if description != "" {
		redirectQuery.Set("error_description", description)
	}
	redirectQuery.Set("state", session.ClientState)
	redirectURL.RawQuery = redirectQuery.Encode()

	http.Redirect(w, r, redirectURL.String(), http.StatusFound)
}

// ServeToken handles the OAuth token endpoint
func (h *Handler) ServeToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.writeError(w, "invalid_request", "Failed to parse request", http.StatusBadRequest)
		return
	}

	grantType := r.FormValue("grant_type")

	switch grantType {
	case "authorization_code":
		h.handleAuthorizationCodeGrant(w, r)
	case "refresh_token":
		h.handleRefreshTokenGrant(w, r)
	default:
		h.writeError(w, "unsupported_grant_type", fmt.Sprintf("Grant type %s not supported", grantType), http.StatusBadRequest)
	}
}

// validateRedirectURI validates a redirect URI registered by a client
// according to OAuth 2.0 Security Best Current Practice.
func validateRedirectURI(uri string, serverResource string) error {
	parsed, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("invalid redirect_uri format: %s", uri)
	}

	// Reject fragments (OAuth 2.0 Security BCP Section 4.1.3)
	if parsed.Fragment != "" {
		return fmt.Errorf("redirect_uri must not contain fragments: %s", uri)
	}

	if parsed.Scheme == "" {
		return fmt.Errorf("redirect_uri must have a scheme: %s", uri)
	}

	// Custom schemes (native apps like myapp://callback) are allowed,
	// minus the dangerous ones.
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		schemeLower := strings.ToLower(parsed.Scheme)
		for _, dangerous := range DangerousSchemes {
			if schemeLower == dangerous {
				return fmt.Errorf("redirect_uri scheme '%s' is not allowed for security reasons", parsed.Scheme)
			}
		}
		return nil
	}

	if parsed.Host == "" {
		return fmt.Errorf("http/https redirect_uri must have a host: %s", uri)
	}

	serverURL, err := url.Parse(serverResource)
	if err != nil {
		return fmt.Errorf("cannot validate redirect_uri: invalid server resource")
	}

	// Loopback redirects stay permitted in production; they cannot be
	// intercepted remotely. Everything else must be HTTPS when the server is.
	isProduction := !isLoopback(serverURL.Hostname())
	if isProduction && !isLoopback(parsed.Hostname()) && parsed.Scheme != "https" {
		return fmt.Errorf("redirect_uri must use HTTPS in production (non-localhost redirects): %s", uri)
	}

	return nil
}

// isLoopback checks if a hostname is a loopback address
func isLoopback(hostname string) bool {
	hostname = strings.Trim(hostname, "[]")

	for _, loopback := range LoopbackAddresses {
		if hostname == loopback {
			return true
		}
	}

	return strings.HasPrefix(hostname, "127.")
}
