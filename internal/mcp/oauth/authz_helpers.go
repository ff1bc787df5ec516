package oauth

import (
	"encoding/json"
	"net/http"
	"time"
)

// authCodeRequest holds parsed authorization code grant request parameters
type authCodeRequest struct {
	Code         string
	RedirectURI  string
	ClientID     string
	CodeVerifier string
}

// handleAuthorizationCodeGrant handles the authorization_code grant type
func (h *Handler) handleAuthorizationCodeGrant(w http.ResponseWriter, r *http.Request) {
	params, oauthErr := h.parseAuthCodeRequest(r)
	if oauthErr != nil {
		h.writeOAuthError(w, oauthErr)
		return
	}

	// Consuming the code here means a failed exchange burns it; the client
	// has to restart the flow rather than retry the same code.
	authCode, oauthErr := h.validateAndRetrieveAuthCode(params)
	if oauthErr != nil {
		h.writeOAuthError(w, oauthErr)
		return
	}

	// OAuth 2.1: public clients using PKCE may omit client_id at the token
	// endpoint; it is then taken from the code.
	clientID := params.ClientID
	if clientID == "" {
		clientID = authCode.ClientID
	}

	if oauthErr := h.validatePKCE(authCode, params.CodeVerifier, clientID); oauthErr != nil {
		h.writeOAuthError(w, oauthErr)
		return
	}

	if _, oauthErr := h.authenticateClient(r, clientID); oauthErr != nil {
		h.writeOAuthError(w, oauthErr)
		return
	}

	accessToken, err := generateSecureToken(AccessTokenLength)
	if err != nil {
		h.logger.Error("Failed to generate access token", "error", err)
		h.writeOAuthError(w, ErrServerError("Failed to generate access token"))
		return
	}

	now := time.Now()
	expiresAt := now.Add(DefaultAccessTokenTTL)

	// Clamp to the Slack token's own expiry when it has one (token
	// rotation enabled workspaces).
	if authCode.SlackToken != nil && !authCode.SlackToken.Expiry.IsZero() && authCode.SlackToken.Expiry.Before(expiresAt) {
		expiresAt = authCode.SlackToken.Expiry
	}

	session := &TokenSession{
		User:       authCode.User,
		SlackToken: authCode.SlackToken,
		ClientID:   clientID,
		Scope:      authCode.Scope,
		ExpiresAt:  expiresAt.Unix(),
	}

	if err := h.tokens.SaveSession(accessToken, session); err != nil {
		h.logger.Error("Failed to store token session", "error", err)
		h.writeOAuthError(w, ErrServerError("Failed to store token"))
		return
	}

	h.logger.Info("Issued access token",
		"client_id", clientID,
		"user_id", authCode.User.UserID,
		"team_id", authCode.User.TeamID,
		"scope", authCode.Scope)

	h.recordTokenIssued(r.Context(), "authorization_code")

	tokenResp := TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   expiresAt.Unix() - now.Unix(),
		Scope:       authCode.Scope,
	}

	if refreshToken, err := h.issueRefreshToken(session); err == nil {
		tokenResp.RefreshToken = refreshToken
	}

	h.writeTokenResponse(w, tokenResp)
}

// handleRefreshTokenGrant handles the refresh_token grant type
func (h *Handler) handleRefreshTokenGrant(w http.ResponseWriter, r *http.Request) {
	refreshToken := r.FormValue("refresh_token")
	clientID := r.FormValue("client_id")

	if refreshToken == "" {
		h.writeError(w, "invalid_request", "refresh_token is required", http.StatusBadRequest)
		return
	}

	record, err := h.tokens.GetRefreshToken(refreshToken)
	if err != nil {
		h.logger.Warn("Invalid refresh token", "error", err)
		h.writeError(w, "invalid_grant", "Invalid or expired refresh token", http.StatusBadRequest)
		return
	}

	// Refresh tokens are bound to the issuing client
	if clientID != "" && clientID != record.ClientID {
		h.logger.Warn("Refresh token client mismatch",
			"expected", record.ClientID,
			"got", clientID)
		h.writeError(w, "invalid_grant", "Refresh token was not issued to this client", http.StatusBadRequest)
		return
	}

	if _, oauthErr := h.authenticateClient(r, record.ClientID); oauthErr != nil {
		h.writeOAuthError(w, oauthErr)
		return
	}

	accessToken, err := generateSecureToken(AccessTokenLength)
	if err != nil {
		h.logger.Error("Failed to generate access token", "error", err)
		h.writeError(w, "server_error", "Failed to generate access token", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	session := &TokenSession{
		User:       record.User,
		SlackToken: record.SlackToken,
		ClientID:   record.ClientID,
		Scope:      record.Scope,
		ExpiresAt:  now.Add(DefaultAccessTokenTTL).Unix(),
	}

	if err := h.tokens.SaveSession(accessToken, session); err != nil {
		h.logger.Error("Failed to store token session", "error", err)
		h.writeError(w, "server_error", "Failed to store token", http.StatusInternalServerError)
		return
	}

	h.logger.Info("Issued access token via refresh_token grant",
		"client_id", record.ClientID,
		"user_id", record.User.UserID)

	h.recordTokenIssued(r.Context(), "refresh_token")

	tokenResp := TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(DefaultAccessTokenTTL.Seconds()),
		Scope:       record.Scope,
	}

	// OAuth 2.1 refresh token rotation: invalidate the presented token and
	// issue a replacement.
	if !h.config.Security.DisableRefreshTokenRotation {
		newRefreshToken, rotateErr := generateSecureToken(RefreshTokenLength)
		if rotateErr == nil {
			h.tokens.DeleteRefreshToken(refreshToken)

			newRecord := &RefreshRecord{
				User:       record.User,
				SlackToken: record.SlackToken,
				ClientID:   record.ClientID,
				Scope:      record.Scope,
				ExpiresAt:  now.Add(h.config.Security.RefreshTokenTTL).Unix(),
			}
			if saveErr := h.tokens.SaveRefreshToken(newRefreshToken, newRecord); saveErr != nil {
				h.logger.Warn("Failed to store rotated refresh token",
					"user_id", record.User.UserID,
					"error", saveErr)
				tokenResp.RefreshToken = refreshToken
			} else {
				tokenResp.RefreshToken = newRefreshToken
			}
		} else {
			h.logger.Warn("Failed to generate rotated refresh token",
				"user_id", record.User.UserID,
				"error", rotateErr)
			tokenResp.RefreshToken = refreshToken
		}
	} else {
		tokenResp.RefreshToken = refreshToken
	}

	h.writeTokenResponse(w, tokenResp)
}

// parseAuthCodeRequest extracts and validates authorization code grant parameters
func (h *Handler) parseAuthCodeRequest(r *http.Request) (*authCodeRequest, *OAuthError) {
	code := r.FormValue("code")

	if code == "" {
		return nil, ErrInvalidRequest("code is required")
	}

	return &authCodeRequest{
		Code:         code,
		RedirectURI:  r.FormValue("redirect_uri"),
		ClientID:     r.FormValue("client_id"),
		CodeVerifier: r.FormValue("code_verifier"),
	}, nil
}

// validateAndRetrieveAuthCode consumes the authorization code and validates
// its client and redirect URI bindings.
func (h *Handler) validateAndRetrieveAuthCode(params *authCodeRequest) (*AuthorizationCode, *OAuthError) {
	authCode, err := h.sessions.ConsumeCode(params.Code)
	if err != nil {
		h.logger.Warn("Invalid authorization code", "error", err)
		return nil, ErrInvalidGrant("Invalid or expired authorization code")
	}

	if params.ClientID != "" && authCode.ClientID != params.ClientID {
		h.logger.Warn("Client ID mismatch",
			"expected", authCode.ClientID,
			"got", params.ClientID)
		return nil, ErrInvalidGrant("Client ID mismatch")
	}

	if authCode.RedirectURI != params.RedirectURI {
		h.logger.Warn("Redirect URI mismatch",
			"expected", authCode.RedirectURI,
			"got", params.RedirectURI)
		return nil, ErrInvalidGrant("Redirect URI mismatch")
	}

	return authCode, nil
}

// validatePKCE validates the client's code_verifier against the challenge
// captured at authorization time.
func (h *Handler) validatePKCE(authCode *AuthorizationCode, codeVerifier string, clientID string) *OAuthError {
	if authCode.CodeChallenge == "" {
		return nil // No PKCE on this authorization
	}

	if codeVerifier == "" {
		return ErrInvalidRequest("code_verifier is required")
	}

	// RFC 7636: 43-128 characters
	if len(codeVerifier) < MinCodeVerifierLength {
		h.logger.Warn("code_verifier too short",
			"client_id", clientID,
			"length", len(codeVerifier))
		return ErrInvalidRequest("code_verifier must be at least 43 characters (RFC 7636)")
	}
	if len(codeVerifier) > MaxCodeVerifierLength {
		h.logger.Warn("code_verifier too long",
			"client_id", clientID,
			"length", len(codeVerifier))
		return ErrInvalidRequest("code_verifier must be at most 128 characters (RFC 7636)")
	}

	if !ValidateCodeChallenge(codeVerifier, authCode.CodeChallenge, authCode.CodeChallengeMethod) {
		h.logger.Warn("PKCE verification failed", "client_id", clientID)
		return ErrInvalidGrant("Invalid code_verifier")
	}

	return nil
}

// authenticateClient validates client credentials. Public clients
// (token_endpoint_auth_method "none") pass without a secret.
func (h *Handler) authenticateClient(r *http.Request, clientID string) (*RegisteredClient, *OAuthError) {
	client, err := h.registry.Get(clientID)
	if err != nil {
		h.logger.Warn("Unknown client at token endpoint", "client_id", clientID, "error", err)
		return nil, ErrInvalidClient("Invalid client")
	}

	if client.TokenEndpointAuthMethod != "none" {
		clientSecret := r.FormValue("client_secret")
		if clientSecret == "" {
			username, password, ok := r.BasicAuth()
			if !ok || username != clientID {
				return nil, ErrInvalidClient("Client authentication required")
			}
			clientSecret = password
		}

		if err := h.registry.ValidateClientSecret(clientID, clientSecret); err != nil {
			h.logger.Warn("Client authentication failed", "client_id", clientID)
			return nil, ErrInvalidClient("Client authentication failed")
		}
	}

	return client, nil
}

// issueRefreshToken generates and stores a refresh token for the session.
func (h *Handler) issueRefreshToken(session *TokenSession) (string, error) {
	refreshToken, err := generateSecureToken(RefreshTokenLength)
	if err != nil {
		return "", err
	}

	record := &RefreshRecord{
		User:       session.User,
		SlackToken: session.SlackToken,
		ClientID:   session.ClientID,
		Scope:      session.Scope,
		ExpiresAt:  time.Now().Add(h.config.Security.RefreshTokenTTL).Unix(),
	}

	if err := h.tokens.SaveRefreshToken(refreshToken, record); err != nil {
		h.logger.Warn("Failed to store refresh token",
			"user_id", session.User.UserID,
			"error", err)
		return "", err
	}

	return refreshToken, nil
}

// writeTokenResponse writes a successful token endpoint response with the
// cache headers RFC 6749 requires.
func (h *Handler) writeTokenResponse(w http.ResponseWriter, resp TokenResponse) {
	h.setSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}
