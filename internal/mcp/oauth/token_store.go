package oauth

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// TokenStore maps issued access tokens to their sessions (Slack identity +
// upstream token) and refresh tokens to their bindings. Everything is
// in-memory; a background sweep removes expired entries.
type TokenStore struct {
	mu              sync.RWMutex
	sessions        map[string]*TokenSession  // access token -> session
	refreshRecords  map[string]*RefreshRecord // refresh token -> binding
	cleanupInterval time.Duration
	logger          *slog.Logger
	stopCh          chan struct{}
	stopOnce        sync.Once
}

// NewTokenStore creates a token store with the default cleanup interval.
func NewTokenStore(logger *slog.Logger) *TokenStore {
	return NewTokenStoreWithInterval(DefaultCleanupInterval, logger)
}

// NewTokenStoreWithInterval creates a token store with a custom cleanup interval.
func NewTokenStoreWithInterval(cleanupInterval time.Duration, logger *slog.Logger) *TokenStore {
	if logger == nil {
		logger = slog.Default()
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}

	s := &TokenStore{
		sessions:        make(map[string]*TokenSession),
		refreshRecords:  make(map[string]*RefreshRecord),
		cleanupInterval: cleanupInterval,
		logger:          logger,
		stopCh:          make(chan struct{}),
	}

	go s.sweep()

	return s
}

// Stop terminates the background sweep goroutine.
func (s *TokenStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// SaveSession stores the session behind an issued access token.
func (s *TokenStore) SaveSession(accessToken string, session *TokenSession) error {
	if accessToken == "" {
		return fmt.Errorf("access token cannot be empty")
	}
	if session == nil || session.User == nil {
		return fmt.Errorf("token session requires a user")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[accessToken] = session
	s.logger.Debug("Saved token session",
		"client_id", session.ClientID,
		"expires_at", time.Unix(session.ExpiresAt, 0),
	)
	return nil
}

// GetSession resolves an access token to its session. Unknown, expired, or
// revoked tokens return ErrTokenInvalid.
func (s *TokenStore) GetSession(accessToken string) (*TokenSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[accessToken]
	if !ok {
		return nil, ErrTokenInvalid
	}

	if session.ExpiresAt > 0 && time.Now().Unix() > session.ExpiresAt {
		return nil, fmt.Errorf("%w: expired", ErrTokenInvalid)
	}

	return session, nil
}

// DeleteSession removes an access token. Deleting an unknown token is a no-op.
func (s *TokenStore) DeleteSession(accessToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, accessToken)
	s.logger.Debug("Deleted token session")
}

// SaveRefreshToken stores the binding behind an issued refresh token.
func (s *TokenStore) SaveRefreshToken(refreshToken string, record *RefreshRecord) error {
	if refreshToken == "" {
		return fmt.Errorf("refresh token cannot be empty")
	}
	if record == nil || record.User == nil {
		return fmt.Errorf("refresh record requires a user")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.refreshRecords[refreshToken] = record
	s.logger.Debug("Saved refresh token",
		"client_id", record.ClientID,
		"expires_at", time.Unix(record.ExpiresAt, 0),
	)
	return nil
}

// GetRefreshToken resolves a refresh token to its binding.
func (s *TokenStore) GetRefreshToken(refreshToken string) (*RefreshRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.refreshRecords[refreshToken]
	if !ok {
		return nil, fmt.Errorf("%w: refresh token not found", ErrGrantInvalid)
	}

	if record.ExpiresAt > 0 && time.Now().Unix() > record.ExpiresAt {
		return nil, fmt.Errorf("%w: refresh token expired", ErrGrantInvalid)
	}

	return record, nil
}

// DeleteRefreshToken removes a refresh token. Idempotent.
func (s *TokenStore) DeleteRefreshToken(refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.refreshRecords, refreshToken)
	s.logger.Debug("Deleted refresh token")
}

// Stats returns entry counts, used by the detailed health endpoint.
func (s *TokenStore) Stats() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]int{
		"access_tokens":  len(s.sessions),
		"refresh_tokens": len(s.refreshRecords),
	}
}

// sweep periodically removes expired tokens. Expired entries are collected
// under a read lock first so the write lock is only taken when needed.
func (s *TokenStore) sweep() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepExpired()
		case <-s.stopCh:
			return
		}
	}
}

func (s *TokenStore) sweepExpired() {
	now := time.Now().Unix()

	s.mu.RLock()
	var expiredSessions, expiredRefresh []string
	for token, session := range s.sessions {
		if session.ExpiresAt > 0 && now > session.ExpiresAt {
			expiredSessions = append(expiredSessions, token)
		}
	}
	for token, record := range s.refreshRecords {
		if record.ExpiresAt > 0 && now > record.ExpiresAt {
			expiredRefresh = append(expiredRefresh, token)
		}
	}
	s.mu.RUnlock()

	if len(expiredSessions) == 0 && len(expiredRefresh) == 0 {
		return
	}

	s.mu.Lock()
	// Re-check under the write lock; an entry may have been replaced between locks.
	now = time.Now().Unix()
	for _, token := range expiredSessions {
		if session, ok := s.sessions[token]; ok && session.ExpiresAt > 0 && now > session.ExpiresAt {
			delete(s.sessions, token)
		}
	}
	for _, token := range expiredRefresh {
		if record, ok := s.refreshRecords[token]; ok && record.ExpiresAt > 0 && now > record.ExpiresAt {
			delete(s.refreshRecords, token)
		}
	}
	s.mu.Unlock()

	s.logger.Debug("Swept expired tokens",
		"access_tokens", len(expiredSessions),
		"refresh_tokens", len(expiredRefresh),
	)
}
