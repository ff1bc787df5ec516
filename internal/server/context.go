package server

import (
	"context"
	"sync"

	"github.com/Omers-Frontegg/slack-mcp-server-session-demo/internal/slack"
)

// ServerContext holds the shared state for the MCP server: a cancellable
// lifecycle context and a cache of Slack Web API clients keyed by the
// upstream user token they authenticate with.
type ServerContext struct {
	ctx          context.Context
	cancel       context.CancelFunc
	slackClients map[string]*slack.Client // Maps Slack user token to Web API client
	mu           sync.RWMutex
	shutdown     bool
}

// NewServerContext creates a new server context
func NewServerContext(ctx context.Context) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)

	return &ServerContext{
		ctx:          shutdownCtx,
		cancel:       cancel,
		slackClients: make(map[string]*slack.Client),
	}
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// SlackClientForToken returns the Slack client for the given user token.
// Creates and caches the client if it doesn't exist yet. Returns nil for
// an empty token.
func (sc *ServerContext) SlackClientForToken(token string) *slack.Client {
	if token == "" {
		return nil
	}

	sc.mu.RLock()
	client, ok := sc.slackClients[token]
	sc.mu.RUnlock()
	if ok {
		return client
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()

	// Re-check under the write lock; another request may have won the race
	if client, ok := sc.slackClients[token]; ok {
		return client
	}

	client = slack.NewClient(token)
	sc.slackClients[token] = client
	return client
}

// SetSlackClientForToken sets the Slack client for a specific token.
// Used by tests to inject clients backed by a stub API server.
func (sc *ServerContext) SetSlackClientForToken(token string, client *slack.Client) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.slackClients[token] = client
}

// DropSlackClientForToken removes a cached client, e.g. after the token
// backing it has been revoked.
func (sc *ServerContext) DropSlackClientForToken(token string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	delete(sc.slackClients, token)
}

// CachedClientCount returns the number of cached Slack clients.
func (sc *ServerContext) CachedClientCount() int {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return len(sc.slackClients)
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()

	// Cached clients hold user tokens; drop them on shutdown
	sc.slackClients = make(map[string]*slack.Client)
	return nil
}
