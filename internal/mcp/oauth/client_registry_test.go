package oauth

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func newTestRegistry(t *testing.T, path string) *ClientRegistry {
	t.Helper()
	registry, err := NewClientRegistry(path, slog.Default())
	if err != nil {
		t.Fatalf("NewClientRegistry() error = %v", err)
	}
	return registry
}

func TestClientRegistry_RegisterAndGet(t *testing.T) {
	registry := newTestRegistry(t, "")

	resp, err := registry.Register(&ClientRegistrationRequest{
		RedirectURIs: []string{"http://localhost:8080/callback"},
		ClientName:   "Test Client",
	}, "192.0.2.1")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if resp.ClientID == "" {
		t.Fatal("Register() returned empty client_id")
	}
	if resp.ClientSecret == "" {
		t.Fatal("Register() returned empty client_secret")
	}
	if resp.TokenEndpointAuthMethod != DefaultTokenEndpointAuthMethod {
		t.Errorf("TokenEndpointAuthMethod = %s, want %s", resp.TokenEndpointAuthMethod, DefaultTokenEndpointAuthMethod)
	}

	client, err := registry.Get(resp.ClientID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if client.ClientName != "Test Client" {
		t.Errorf("ClientName = %s, want Test Client", client.ClientName)
	}
	// Only the hash is stored
	if client.ClientSecretHash == resp.ClientSecret {
		t.Error("client secret stored in plain text")
	}
	if client.ClientSecretHash == "" {
		t.Error("client secret hash not stored")
	}
}

func TestClientRegistry_GetUnknown(t *testing.T) {
	registry := newTestRegistry(t, "")

	_, err := registry.Get("nonexistent")
	if !errors.Is(err, ErrClientNotFound) {
		t.Errorf("Get() error = %v, want ErrClientNotFound", err)
	}
}

func TestClientRegistry_ValidateClientSecret(t *testing.T) {
	registry := newTestRegistry(t, "")

	resp, err := registry.Register(&ClientRegistrationRequest{
		RedirectURIs: []string{"http://localhost:8080/callback"},
	}, "")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := registry.ValidateClientSecret(resp.ClientID, resp.ClientSecret); err != nil {
		t.Errorf("ValidateClientSecret() error = %v for correct secret", err)
	}
	if err := registry.ValidateClientSecret(resp.ClientID, "wrong-secret"); err == nil {
		t.Error("ValidateClientSecret() should reject a wrong secret")
	}
}

func TestClientRegistry_ValidateRedirectURI(t *testing.T) {
	registry := newTestRegistry(t, "")

	resp, _ := registry.Register(&ClientRegistrationRequest{
		RedirectURIs: []string{
			"http://localhost:8080/callback",
			"http://localhost:9090/callback",
		},
	}, "")

	if err := registry.ValidateRedirectURI(resp.ClientID, "http://localhost:9090/callback"); err != nil {
		t.Errorf("ValidateRedirectURI() error = %v for registered URI", err)
	}
	if err := registry.ValidateRedirectURI(resp.ClientID, "http://evil.example.com/callback"); err == nil {
		t.Error("ValidateRedirectURI() should reject an unregistered URI")
	}
}

func TestClientRegistry_PersistenceAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clients.json")

	registry := newTestRegistry(t, path)
	resp, err := registry.Register(&ClientRegistrationRequest{
		RedirectURIs: []string{"http://localhost:8080/callback"},
		ClientName:   "Persistent Client",
	}, "192.0.2.1")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := registry.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	// Simulate a restart by loading a fresh registry from the same file
	reloaded := newTestRegistry(t, path)

	client, err := reloaded.Get(resp.ClientID)
	if err != nil {
		t.Fatalf("Get() after reload error = %v", err)
	}
	if client.ClientName != "Persistent Client" {
		t.Errorf("ClientName = %s, want Persistent Client", client.ClientName)
	}
	if len(client.RedirectURIs) != 1 || client.RedirectURIs[0] != "http://localhost:8080/callback" {
		t.Errorf("RedirectURIs = %v, want the registered URI", client.RedirectURIs)
	}

	// The bcrypt hash survives, so the original secret still validates
	if err := reloaded.ValidateClientSecret(resp.ClientID, resp.ClientSecret); err != nil {
		t.Errorf("ValidateClientSecret() after reload error = %v", err)
	}
}

func TestClientRegistry_MissingFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")

	registry := newTestRegistry(t, path)
	if registry.Count() != 0 {
		t.Errorf("Count() = %d, want 0", registry.Count())
	}
}

func TestClientRegistry_MalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clients.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	_, err := NewClientRegistry(path, slog.Default())
	if err == nil {
		t.Fatal("NewClientRegistry() should fail on a malformed registry file")
	}
}

func TestClientRegistry_ConcurrentRegistration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clients.json")
	registry := newTestRegistry(t, path)

	const workers = 20
	var wg sync.WaitGroup
	ids := make([]string, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := registry.Register(&ClientRegistrationRequest{
				RedirectURIs: []string{fmt.Sprintf("http://localhost:%d/callback", 8000+i)},
				ClientName:   fmt.Sprintf("client-%d", i),
			}, "")
			if err != nil {
				t.Errorf("Register() error = %v", err)
				return
			}
			ids[i] = resp.ClientID
		}(i)
	}
	wg.Wait()

	if registry.Count() != workers {
		t.Fatalf("Count() = %d, want %d", registry.Count(), workers)
	}

	if err := registry.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	// No registration may be lost by the serialized rewrites
	reloaded := newTestRegistry(t, path)
	for i, id := range ids {
		if id == "" {
			continue
		}
		if _, err := reloaded.Get(id); err != nil {
			t.Errorf("client %d (%s) missing after reload: %v", i, id, err)
		}
	}
	if reloaded.Count() != workers {
		t.Errorf("reloaded Count() = %d, want %d", reloaded.Count(), workers)
	}
}

func TestClientRegistry_CheckIPLimit(t *testing.T) {
	registry := newTestRegistry(t, "")

	for i := 0; i < 3; i++ {
		if _, err := registry.Register(&ClientRegistrationRequest{
			RedirectURIs: []string{"http://localhost:8080/callback"},
		}, "192.0.2.7"); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
	}

	if err := registry.CheckIPLimit("192.0.2.7", 3); err == nil {
		t.Error("CheckIPLimit() should fail at the limit")
	}
	if err := registry.CheckIPLimit("192.0.2.7", 10); err != nil {
		t.Errorf("CheckIPLimit() error = %v below the limit", err)
	}
	if err := registry.CheckIPLimit("192.0.2.8", 3); err != nil {
		t.Errorf("CheckIPLimit() error = %v for a different IP", err)
	}
	// 0 disables the limit
	if err := registry.CheckIPLimit("192.0.2.7", 0); err != nil {
		t.Errorf("CheckIPLimit() error = %v with no limit", err)
	}
}
