package oauth

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SessionStore manages pending authorization sessions and issued
// authorization codes. Both are single-use: Consume returns the entry and
// deletes it in the same critical section, so a second caller observes
// not-found. A background sweep removes entries whose flow never completed.
type SessionStore struct {
	sessions map[string]*AuthorizationSession
	codes    map[string]*AuthorizationCode
	mu       sync.RWMutex
	logger   *slog.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewSessionStore creates a new session store and starts its sweep goroutine.
func NewSessionStore(logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.Default()
	}

	s := &SessionStore{
		sessions: make(map[string]*AuthorizationSession),
		codes:    make(map[string]*AuthorizationCode),
		logger:   logger,
		stopCh:   make(chan struct{}),
	}

	go s.sweep()

	return s
}

// Stop terminates the background sweep goroutine.
func (s *SessionStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// SaveSession stores a pending authorization session keyed by its upstream state.
func (s *SessionStore) SaveSession(session *AuthorizationSession) error {
	if session.UpstreamState == "" {
		return ErrMissingStateKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.UpstreamState] = session
	s.logger.Debug("Saved authorization session",
		"client_id", session.ClientID,
		"expires_at", time.Unix(session.ExpiresAt, 0),
	)

	return nil
}

// ConsumeSession retrieves and deletes the session for the given upstream
// state. A session is observed at most once; expired or already-consumed
// sessions behave as not-found.
func (s *SessionStore) ConsumeSession(upstreamState string) (*AuthorizationSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[upstreamState]
	if !exists {
		return nil, ErrSessionNotFound
	}

	// Deleted regardless of outcome: a state value never survives its
	// first lookup, expired or not.
	delete(s.sessions, upstreamState)

	if time.Now().Unix() > session.ExpiresAt {
		return nil, fmt.Errorf("%w: expired", ErrSessionNotFound)
	}

	s.logger.Debug("Authorization session consumed",
		"client_id", session.ClientID,
	)

	return session, nil
}

// SaveCode stores an issued authorization code.
func (s *SessionStore) SaveCode(code *AuthorizationCode) error {
	if code.Code == "" {
		return fmt.Errorf("authorization code is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.codes[code.Code] = code
	s.logger.Debug("Saved authorization code",
		"code_prefix", code.Code[:8]+"...",
		"client_id", code.ClientID,
		"expires_at", time.Unix(code.ExpiresAt, 0),
	)

	return nil
}

// ConsumeCode retrieves and immediately deletes an authorization code.
// This prevents replay: a code can only ever be exchanged once.
func (s *SessionStore) ConsumeCode(code string) (*AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	authCode, exists := s.codes[code]
	if !exists {
		return nil, fmt.Errorf("%w: authorization code not found", ErrGrantInvalid)
	}

	delete(s.codes, code)

	if time.Now().Unix() > authCode.ExpiresAt {
		return nil, fmt.Errorf("%w: authorization code expired", ErrGrantInvalid)
	}

	s.logger.Info("Authorization code consumed",
		"code_prefix", code[:8]+"...",
		"client_id", authCode.ClientID,
	)

	return authCode, nil
}

// sweep periodically removes expired sessions and codes.
func (s *SessionStore) sweep() {
	ticker := time.NewTicker(1 * time.Minute)
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

// sweepExpired removes expired sessions and codes.
func (s *SessionStore) sweepExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Unix()
	sessionsDeleted := 0
	codesDeleted := 0

	for state, session := range s.sessions {
		if now > session.ExpiresAt {
			delete(s.sessions, state)
			sessionsDeleted++
		}
	}

	// Consumed codes are already gone; this only catches abandoned flows.
	for code, authCode := range s.codes {
		if now > authCode.ExpiresAt {
			delete(s.codes, code)
			codesDeleted++
		}
	}

	if sessionsDeleted > 0 || codesDeleted > 0 {
		s.logger.Debug("Swept expired authorization flow data",
			"sessions_deleted", sessionsDeleted,
			"codes_deleted", codesDeleted,
		)
	}
}
