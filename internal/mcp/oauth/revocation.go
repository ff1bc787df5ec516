package oauth

import (
	"fmt"
	"net/http"
)

// ServeTokenRevocation handles token revocation requests (RFC 7009)
// POST /oauth/revoke with form-encoded token and optional token_type_hint.
//
//   - Client authentication is required; tokens can only be revoked by the
//     client they were issued to.
//   - Processed requests always return 200 OK, including unknown or
//     already-revoked tokens, to prevent token scanning.
func (h *Handler) ServeTokenRevocation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	clientIP := getClientIP(r, h.config.RateLimit.TrustProxy)

	if err := r.ParseForm(); err != nil {
		h.writeError(w, "invalid_request", "Failed to parse request", http.StatusBadRequest)
		return
	}

	token := r.FormValue("token")
	if token == "" {
		h.logger.Warn("Missing token parameter in revocation request", "ip", clientIP)
		h.writeError(w, "invalid_request", "Missing token parameter", http.StatusBadRequest)
		return
	}

	clientID, authErr := h.authenticateRevocationClient(r)
	if authErr != nil {
		h.logger.Warn("Client authentication failed for revocation",
			"error", authErr,
			"ip", clientIP)
		h.writeError(w, "invalid_client", "Client authentication required", http.StatusUnauthorized)
		return
	}

	tokenTypeHint := r.FormValue("token_type_hint")
	if tokenTypeHint == "" {
		tokenTypeHint = h.guessTokenType(token)
	}

	var revokeErr error
	switch tokenTypeHint {
	case "refresh_token":
		revokeErr = h.revokeRefreshToken(token, clientID)
	case "access_token":
		revokeErr = h.revokeAccessToken(token, clientID)
	default:
		revokeErr = h.revokeRefreshToken(token, clientID)
		if revokeErr != nil {
			revokeErr = h.revokeAccessToken(token, clientID)
		}
	}

	// RFC 7009 Section 2.2: return 200 even for invalid or already-revoked
	// tokens, so the endpoint cannot be used to probe token validity.
	if revokeErr != nil {
		h.logger.Debug("Token revocation no-op",
			"client_id", clientID,
			"token_type_hint", tokenTypeHint,
			"error", revokeErr,
			"ip", clientIP)
	} else {
		h.logger.Info("Token revoked",
			"client_id", clientID,
			"token_type", tokenTypeHint,
			"ip", clientIP)
		h.recordTokenRevoked(r.Context())
	}

	w.WriteHeader(http.StatusOK)
}

// authenticateRevocationClient authenticates a client for token revocation,
// mirroring token endpoint authentication.
func (h *Handler) authenticateRevocationClient(r *http.Request) (string, error) {
	// Basic Authentication first
	clientID, clientSecret, ok := r.BasicAuth()
	if ok && clientID != "" {
		if err := h.registry.ValidateClientSecret(clientID, clientSecret); err != nil {
			return "", fmt.Errorf("invalid client credentials")
		}
		return clientID, nil
	}

	clientID = r.FormValue("client_id")
	clientSecret = r.FormValue("client_secret")

	if clientID == "" {
		return "", fmt.Errorf("missing client_id")
	}

	// Public clients (no secret) must be registered with the "none" auth method
	if clientSecret == "" {
		client, err := h.registry.Get(clientID)
		if err != nil {
			return "", fmt.Errorf("invalid client")
		}
		if client.TokenEndpointAuthMethod != "none" {
			return "", fmt.Errorf("client secret required")
		}
		return clientID, nil
	}

	if err := h.registry.ValidateClientSecret(clientID, clientSecret); err != nil {
		return "", fmt.Errorf("invalid client credentials")
	}

	return clientID, nil
}

// guessTokenType tries to determine if a token is an access_token or refresh_token
func (h *Handler) guessTokenType(token string) string {
	if _, err := h.tokens.GetRefreshToken(token); err == nil {
		return "refresh_token"
	}
	if _, err := h.tokens.GetSession(token); err == nil {
		return "access_token"
	}
	// Unknown - default to refresh_token per RFC 7009 recommendation
	return "refresh_token"
}

// revokeRefreshToken revokes a refresh token issued to the given client.
func (h *Handler) revokeRefreshToken(refreshToken, clientID string) error {
	record, err := h.tokens.GetRefreshToken(refreshToken)
	if err != nil {
		return fmt.Errorf("refresh token not found: %w", err)
	}

	// One client cannot revoke another client's tokens
	if record.ClientID != clientID {
		return fmt.Errorf("refresh token was not issued to client %s", clientID)
	}

	h.tokens.DeleteRefreshToken(refreshToken)
	return nil
}

// revokeAccessToken revokes an access token issued to the given client.
func (h *Handler) revokeAccessToken(accessToken, clientID string) error {
	session, err := h.tokens.GetSession(accessToken)
	if err != nil {
		return fmt.Errorf("access token not found: %w", err)
	}

	if session.ClientID != clientID {
		return fmt.Errorf("access token was not issued to client %s", clientID)
	}

	h.tokens.DeleteSession(accessToken)
	return nil
}
