package oauth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func newMiddlewareTestHandler(t *testing.T) *Handler {
	t.Helper()
	return newTestHandler(t, newFakeUpstream())
}

// protectedEcho reports whether the context carries an authenticated user.
func protectedEcho(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := GetUserFromContext(r.Context())
		if !ok {
			t.Error("no user in request context")
			http.Error(w, "no user", http.StatusInternalServerError)
			return
		}
		if _, ok := GetSessionFromContext(r.Context()); !ok {
			t.Error("no session in request context")
		}
		if _, ok := GetBearerFromContext(r.Context()); !ok {
			t.Error("no bearer token in request context")
		}
		w.Write([]byte(user.UserID))
	})
}

func TestValidateToken_MissingHeader(t *testing.T) {
	h := newMiddlewareTestHandler(t)

	handler := h.ValidateToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("inner handler must not run without a token")
	}))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}

	// The challenge header is how MCP clients discover the authorization server
	challenge := w.Header().Get("WWW-Authenticate")
	if !strings.Contains(challenge, "resource_metadata") {
		t.Errorf("WWW-Authenticate = %q, want resource_metadata pointer", challenge)
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("failed to parse error response: %v", err)
	}
	if errResp.Error == "" {
		t.Error("empty error code in 401 body")
	}
}

func TestValidateToken_MalformedHeader(t *testing.T) {
	h := newMiddlewareTestHandler(t)

	handler := h.ValidateToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("inner handler must not run with a malformed header")
	}))

	for _, header := range []string{"Basic dXNlcjpwYXNz", "Bearer", "just-a-token"} {
		req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
		req.Header.Set("Authorization", header)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, w.Code)
		}
	}
}

func TestValidateToken_UnknownToken(t *testing.T) {
	h := newMiddlewareTestHandler(t)

	handler := h.ValidateToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("inner handler must not run with an unknown token")
	}))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer never-issued")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if !strings.Contains(w.Header().Get("WWW-Authenticate"), `error="invalid_token"`) {
		t.Errorf("WWW-Authenticate = %q, want invalid_token error", w.Header().Get("WWW-Authenticate"))
	}
}

func TestValidateToken_ValidToken(t *testing.T) {
	h := newMiddlewareTestHandler(t)

	err := h.Tokens().SaveSession("good-token", &TokenSession{
		User:       &UserInfo{UserID: "U0MIDDLEWARE", TeamID: "T1"},
		SlackToken: &oauth2.Token{AccessToken: "xoxp-test"},
		ClientID:   "client-1",
		ExpiresAt:  time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	handler := h.ValidateToken(protectedEcho(t))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if w.Body.String() != "U0MIDDLEWARE" {
		t.Errorf("body = %s, want U0MIDDLEWARE", w.Body.String())
	}
}

func TestValidateToken_ExpiredToken(t *testing.T) {
	h := newMiddlewareTestHandler(t)

	h.Tokens().SaveSession("stale-token", &TokenSession{
		User:      &UserInfo{UserID: "U1"},
		ExpiresAt: time.Now().Add(-time.Minute).Unix(),
	})

	handler := h.ValidateToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("inner handler must not run with an expired token")
	}))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer stale-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestContextAccessors_EmptyContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	if _, ok := GetUserFromContext(req.Context()); ok {
		t.Error("GetUserFromContext() = true on an empty context")
	}
	if _, ok := GetSessionFromContext(req.Context()); ok {
		t.Error("GetSessionFromContext() = true on an empty context")
	}
	if _, ok := GetBearerFromContext(req.Context()); ok {
		t.Error("GetBearerFromContext() = true on an empty context")
	}
}
