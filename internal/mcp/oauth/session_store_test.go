package oauth

import (
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func TestSessionStore_ConsumeOnce(t *testing.T) {
	store := NewSessionStore(slog.Default())
	defer store.Stop()

	now := time.Now().Unix()
	session := &AuthorizationSession{
		ClientID:            "client-123",
		UpstreamState:       "upstream-state-456",
		CodeVerifier:        "verifier-abc",
		RedirectURI:         "http://localhost:8080/callback",
		ClientState:         "client-state-789",
		CodeChallenge:       "challenge",
		CodeChallengeMethod: "S256",
		Scope:               "channels:read",
		CreatedAt:           now,
		ExpiresAt:           now + 600,
	}

	if err := store.SaveSession(session); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	retrieved, err := store.ConsumeSession("upstream-state-456")
	if err != nil {
		t.Fatalf("ConsumeSession() error = %v", err)
	}

	if retrieved.ClientID != "client-123" {
		t.Errorf("ClientID = %s, want client-123", retrieved.ClientID)
	}
	if retrieved.CodeVerifier != "verifier-abc" {
		t.Errorf("CodeVerifier = %s, want verifier-abc", retrieved.CodeVerifier)
	}
	if retrieved.ClientState != "client-state-789" {
		t.Errorf("ClientState = %s, want client-state-789", retrieved.ClientState)
	}

	// Second consume must behave as not-found
	_, err = store.ConsumeSession("upstream-state-456")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second ConsumeSession() error = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionStore_SaveEmptyStateKey(t *testing.T) {
	store := NewSessionStore(slog.Default())
	defer store.Stop()

	err := store.SaveSession(&AuthorizationSession{ClientID: "client-123"})
	if !errors.Is(err, ErrMissingStateKey) {
		t.Errorf("SaveSession() error = %v, want ErrMissingStateKey", err)
	}
}

func TestSessionStore_ConsumeExpired(t *testing.T) {
	store := NewSessionStore(slog.Default())
	defer store.Stop()

	now := time.Now().Unix()
	session := &AuthorizationSession{
		ClientID:      "client-123",
		UpstreamState: "expired-state",
		CreatedAt:     now - 1000,
		ExpiresAt:     now - 100,
	}

	if err := store.SaveSession(session); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	_, err := store.ConsumeSession("expired-state")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("ConsumeSession() error = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionStore_ConsumeUnknown(t *testing.T) {
	store := NewSessionStore(slog.Default())
	defer store.Stop()

	_, err := store.ConsumeSession("nonexistent")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("ConsumeSession() error = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionStore_ConcurrentConsume(t *testing.T) {
	store := NewSessionStore(slog.Default())
	defer store.Stop()

	now := time.Now().Unix()
	store.SaveSession(&AuthorizationSession{
		ClientID:      "client-123",
		UpstreamState: "contended-state",
		CreatedAt:     now,
		ExpiresAt:     now + 600,
	})

	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.ConsumeSession("contended-state"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("session consumed %d times, want exactly 1", successes)
	}
}

func TestSessionStore_AuthorizationCode(t *testing.T) {
	store := NewSessionStore(slog.Default())
	defer store.Stop()

	now := time.Now().Unix()
	authCode := &AuthorizationCode{
		Code:                "auth-code-123",
		ClientID:            "client-123",
		RedirectURI:         "http://localhost:8080/callback",
		Scope:               "channels:read",
		CodeChallenge:       "challenge",
		CodeChallengeMethod: "S256",
		User:                &UserInfo{UserID: "U123", TeamID: "T123"},
		CreatedAt:           now,
		ExpiresAt:           now + 600,
	}

	if err := store.SaveCode(authCode); err != nil {
		t.Fatalf("SaveCode() error = %v", err)
	}

	retrieved, err := store.ConsumeCode("auth-code-123")
	if err != nil {
		t.Fatalf("ConsumeCode() error = %v", err)
	}

	if retrieved.ClientID != "client-123" {
		t.Errorf("ClientID = %s, want client-123", retrieved.ClientID)
	}
	if retrieved.User.UserID != "U123" {
		t.Errorf("User.UserID = %s, want U123", retrieved.User.UserID)
	}

	// Codes are single-use
	_, err = store.ConsumeCode("auth-code-123")
	if !errors.Is(err, ErrGrantInvalid) {
		t.Errorf("second ConsumeCode() error = %v, want ErrGrantInvalid", err)
	}
}

func TestSessionStore_AuthorizationCode_Expired(t *testing.T) {
	store := NewSessionStore(slog.Default())
	defer store.Stop()

	now := time.Now().Unix()
	store.SaveCode(&AuthorizationCode{
		Code:      "expired-code",
		ClientID:  "client-123",
		CreatedAt: now - 1000,
		ExpiresAt: now - 100,
	})

	_, err := store.ConsumeCode("expired-code")
	if !errors.Is(err, ErrGrantInvalid) {
		t.Errorf("ConsumeCode() error = %v, want ErrGrantInvalid", err)
	}
}

func TestSessionStore_SweepExpired(t *testing.T) {
	store := NewSessionStore(slog.Default())
	defer store.Stop()

	now := time.Now().Unix()

	store.SaveSession(&AuthorizationSession{
		UpstreamState: "expired-state",
		CreatedAt:     now - 1000,
		ExpiresAt:     now - 100,
	})
	store.SaveSession(&AuthorizationSession{
		UpstreamState: "valid-state",
		CreatedAt:     now,
		ExpiresAt:     now + 600,
	})
	store.SaveCode(&AuthorizationCode{
		Code:      "expired-code",
		CreatedAt: now - 1000,
		ExpiresAt: now - 100,
	})

	store.sweepExpired()

	store.mu.RLock()
	_, expiredSessionPresent := store.sessions["expired-state"]
	_, validSessionPresent := store.sessions["valid-state"]
	_, expiredCodePresent := store.codes["expired-code"]
	store.mu.RUnlock()

	if expiredSessionPresent {
		t.Error("expired session should be swept")
	}
	if !validSessionPresent {
		t.Error("valid session should survive the sweep")
	}
	if expiredCodePresent {
		t.Error("expired code should be swept")
	}
}
