package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// contextKey is the type for context keys
type contextKey string

const (
	// userContextKey is the key for storing the Slack user info in the request context
	userContextKey contextKey = "oauth_user"

	// sessionContextKey is the key for storing the token session in the request context
	sessionContextKey contextKey = "oauth_session"

	// bearerContextKey is the key for storing the presented bearer token
	bearerContextKey contextKey = "oauth_bearer"
)

// ValidateToken is middleware that validates Bearer tokens issued by this
// server. Valid requests proceed with the resolved Slack user, the token
// session, and the raw bearer token stored in the request context.
func (h *Handler) ValidateToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			// 401 with WWW-Authenticate pointing at the resource metadata,
			// which is how MCP clients discover the authorization server
			w.Header().Set("WWW-Authenticate", fmt.Sprintf(
				`Bearer realm="%s", resource_metadata="/.well-known/oauth-protected-resource"`,
				h.config.Resource,
			))
			h.writeUnauthorizedError(w, "missing_token", "Missing Authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			w.Header().Set("WWW-Authenticate", fmt.Sprintf(
				`Bearer realm="%s", resource_metadata="/.well-known/oauth-protected-resource", error="invalid_token", error_description="Invalid Authorization header format"`,
				h.config.Resource,
			))
			h.writeUnauthorizedError(w, "invalid_token", "Invalid Authorization header format")
			return
		}

		accessToken := parts[1]

		session, err := h.tokens.GetSession(accessToken)
		if err != nil {
			h.logger.Debug("Bearer token rejected", "error", err)
			w.Header().Set("WWW-Authenticate", fmt.Sprintf(
				`Bearer realm="%s", resource_metadata="/.well-known/oauth-protected-resource", error="invalid_token", error_description="Access token is invalid or expired"`,
				h.config.Resource,
			))
			h.writeUnauthorizedError(w, "invalid_token",
				"Access token is invalid or expired. Please re-authenticate through your MCP client.")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, session.User)
		ctx = context.WithValue(ctx, sessionContextKey, session)
		ctx = context.WithValue(ctx, bearerContextKey, accessToken)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ContextWithUser returns a context carrying the given Slack user. Used by
// transports that bypass the bearer middleware, and by tests.
func ContextWithUser(ctx context.Context, user *UserInfo) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// ContextWithSession returns a context carrying the given token session.
func ContextWithSession(ctx context.Context, session *TokenSession) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

// GetUserFromContext retrieves the Slack user info from the request context.
func GetUserFromContext(ctx context.Context) (*UserInfo, bool) {
	user, ok := ctx.Value(userContextKey).(*UserInfo)
	return user, ok
}

// GetSessionFromContext retrieves the token session from the request context.
func GetSessionFromContext(ctx context.Context) (*TokenSession, bool) {
	session, ok := ctx.Value(sessionContextKey).(*TokenSession)
	return session, ok
}

// GetBearerFromContext retrieves the presented bearer token from the request context.
func GetBearerFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(bearerContextKey).(string)
	return token, ok
}

// writeUnauthorizedError writes an OAuth error response with 401 status
func (h *Handler) writeUnauthorizedError(w http.ResponseWriter, errorCode, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:            errorCode,
		ErrorDescription: description,
	})
}
