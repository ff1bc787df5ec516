package oauth

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestTokenStore_SessionLifecycle(t *testing.T) {
	store := NewTokenStore(slog.Default())
	defer store.Stop()

	session := &TokenSession{
		User:       &UserInfo{UserID: "U123", UserName: "alice", TeamID: "T123"},
		SlackToken: &oauth2.Token{AccessToken: "xoxp-test", TokenType: "Bearer"},
		ClientID:   "client-123",
		Scope:      "channels:read",
		ExpiresAt:  time.Now().Add(time.Hour).Unix(),
	}

	if err := store.SaveSession("access-token-1", session); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	retrieved, err := store.GetSession("access-token-1")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if retrieved.User.UserID != "U123" {
		t.Errorf("User.UserID = %s, want U123", retrieved.User.UserID)
	}
	if retrieved.SlackToken.AccessToken != "xoxp-test" {
		t.Errorf("SlackToken.AccessToken = %s, want xoxp-test", retrieved.SlackToken.AccessToken)
	}

	store.DeleteSession("access-token-1")

	_, err = store.GetSession("access-token-1")
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("GetSession() after delete error = %v, want ErrTokenInvalid", err)
	}
}

func TestTokenStore_SaveSessionValidation(t *testing.T) {
	store := NewTokenStore(slog.Default())
	defer store.Stop()

	session := &TokenSession{User: &UserInfo{UserID: "U123"}}

	if err := store.SaveSession("", session); err == nil {
		t.Error("SaveSession() should reject an empty token")
	}
	if err := store.SaveSession("token", nil); err == nil {
		t.Error("SaveSession() should reject a nil session")
	}
	if err := store.SaveSession("token", &TokenSession{}); err == nil {
		t.Error("SaveSession() should reject a session without a user")
	}
}

func TestTokenStore_ExpiredSession(t *testing.T) {
	store := NewTokenStore(slog.Default())
	defer store.Stop()

	store.SaveSession("stale-token", &TokenSession{
		User:      &UserInfo{UserID: "U123"},
		ExpiresAt: time.Now().Add(-time.Minute).Unix(),
	})

	_, err := store.GetSession("stale-token")
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("GetSession() error = %v, want ErrTokenInvalid", err)
	}
}

func TestTokenStore_UnknownToken(t *testing.T) {
	store := NewTokenStore(slog.Default())
	defer store.Stop()

	_, err := store.GetSession("nonexistent")
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("GetSession() error = %v, want ErrTokenInvalid", err)
	}
}

func TestTokenStore_RefreshTokenLifecycle(t *testing.T) {
	store := NewTokenStore(slog.Default())
	defer store.Stop()

	record := &RefreshRecord{
		User:      &UserInfo{UserID: "U123", TeamID: "T123"},
		ClientID:  "client-123",
		Scope:     "channels:read",
		ExpiresAt: time.Now().Add(24 * time.Hour).Unix(),
	}

	if err := store.SaveRefreshToken("refresh-1", record); err != nil {
		t.Fatalf("SaveRefreshToken() error = %v", err)
	}

	retrieved, err := store.GetRefreshToken("refresh-1")
	if err != nil {
		t.Fatalf("GetRefreshToken() error = %v", err)
	}
	if retrieved.ClientID != "client-123" {
		t.Errorf("ClientID = %s, want client-123", retrieved.ClientID)
	}

	store.DeleteRefreshToken("refresh-1")

	_, err = store.GetRefreshToken("refresh-1")
	if !errors.Is(err, ErrGrantInvalid) {
		t.Errorf("GetRefreshToken() after delete error = %v, want ErrGrantInvalid", err)
	}
}

func TestTokenStore_ExpiredRefreshToken(t *testing.T) {
	store := NewTokenStore(slog.Default())
	defer store.Stop()

	store.SaveRefreshToken("stale-refresh", &RefreshRecord{
		User:      &UserInfo{UserID: "U123"},
		ExpiresAt: time.Now().Add(-time.Minute).Unix(),
	})

	_, err := store.GetRefreshToken("stale-refresh")
	if !errors.Is(err, ErrGrantInvalid) {
		t.Errorf("GetRefreshToken() error = %v, want ErrGrantInvalid", err)
	}
}

func TestTokenStore_SweepExpired(t *testing.T) {
	store := NewTokenStoreWithInterval(time.Hour, slog.Default())
	defer store.Stop()

	now := time.Now()
	store.SaveSession("expired", &TokenSession{
		User:      &UserInfo{UserID: "U1"},
		ExpiresAt: now.Add(-time.Minute).Unix(),
	})
	store.SaveSession("valid", &TokenSession{
		User:      &UserInfo{UserID: "U2"},
		ExpiresAt: now.Add(time.Hour).Unix(),
	})
	store.SaveRefreshToken("expired-refresh", &RefreshRecord{
		User:      &UserInfo{UserID: "U1"},
		ExpiresAt: now.Add(-time.Minute).Unix(),
	})

	store.sweepExpired()

	stats := store.Stats()
	if stats["access_tokens"] != 1 {
		t.Errorf("access_tokens = %d, want 1", stats["access_tokens"])
	}
	if stats["refresh_tokens"] != 0 {
		t.Errorf("refresh_tokens = %d, want 0", stats["refresh_tokens"])
	}
}
