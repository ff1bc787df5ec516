package server

import (
	"context"
	"testing"

	"github.com/Omers-Frontegg/slack-mcp-server-session-demo/internal/slack"
)

func TestServerContext_SlackClientForToken(t *testing.T) {
	sc := NewServerContext(context.Background())
	t.Cleanup(func() { _ = sc.Shutdown() })

	t.Run("empty token returns nil", func(t *testing.T) {
		if client := sc.SlackClientForToken(""); client != nil {
			t.Error("expected nil client for empty token")
		}
	})

	t.Run("creates and caches client", func(t *testing.T) {
		first := sc.SlackClientForToken("xoxp-token-a")
		if first == nil {
			t.Fatal("expected a client")
		}

		second := sc.SlackClientForToken("xoxp-token-a")
		if first != second {
			t.Error("expected the cached client to be reused")
		}
		if sc.CachedClientCount() != 1 {
			t.Errorf("CachedClientCount() = %d, want 1", sc.CachedClientCount())
		}
	})

	t.Run("distinct tokens get distinct clients", func(t *testing.T) {
		a := sc.SlackClientForToken("xoxp-token-a")
		b := sc.SlackClientForToken("xoxp-token-b")
		if a == b {
			t.Error("expected different clients for different tokens")
		}
	})
}

func TestServerContext_SetAndDropClient(t *testing.T) {
	sc := NewServerContext(context.Background())
	t.Cleanup(func() { _ = sc.Shutdown() })

	injected := slack.NewClient("xoxp-injected")
	sc.SetSlackClientForToken("xoxp-injected", injected)

	if got := sc.SlackClientForToken("xoxp-injected"); got != injected {
		t.Error("expected the injected client to be returned")
	}

	sc.DropSlackClientForToken("xoxp-injected")
	if sc.CachedClientCount() != 0 {
		t.Errorf("CachedClientCount() = %d, want 0 after drop", sc.CachedClientCount())
	}
}

func TestServerContext_Shutdown(t *testing.T) {
	sc := NewServerContext(context.Background())

	sc.SlackClientForToken("xoxp-token")
	if sc.IsShutdown() {
		t.Error("expected IsShutdown() to be false before shutdown")
	}

	if err := sc.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	if !sc.IsShutdown() {
		t.Error("expected IsShutdown() to be true after shutdown")
	}
	if sc.CachedClientCount() != 0 {
		t.Error("expected the client cache to be cleared on shutdown")
	}
	select {
	case <-sc.Context().Done():
	default:
		t.Error("expected the lifecycle context to be cancelled")
	}

	// Second shutdown is a no-op
	if err := sc.Shutdown(); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
}
