package oauth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ClientRegistry manages registered OAuth clients. The in-memory map is
// authoritative; when a registry path is configured, every mutation schedules
// an asynchronous rewrite of the whole registry file so registrations survive
// restarts. Write failures are logged and never fail the registration.
type ClientRegistry struct {
	clients      map[string]*RegisteredClient
	clientsPerIP map[string]int // registrations per IP for DoS protection
	mu           sync.RWMutex
	path         string     // "" disables persistence
	writeMu      sync.Mutex // serializes file rewrites
	logger       *slog.Logger
}

// NewClientRegistry creates a client registry backed by the JSON file at
// path. A missing file starts an empty registry; a malformed file is an
// error, so a corrupted registry is caught at startup instead of silently
// dropping clients.
func NewClientRegistry(path string, logger *slog.Logger) (*ClientRegistry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	r := &ClientRegistry{
		clients:      make(map[string]*RegisteredClient),
		clientsPerIP: make(map[string]int),
		path:         path,
		logger:       logger,
	}

	if path != "" {
		if err := r.load(); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// load reads the registry file into memory.
func (r *ClientRegistry) load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			r.logger.Debug("Client registry file not found, starting empty", "path", r.path)
			return nil
		}
		return fmt.Errorf("failed to read client registry %s: %w", r.path, err)
	}

	clients := make(map[string]*RegisteredClient)
	if err := json.Unmarshal(data, &clients); err != nil {
		return fmt.Errorf("failed to parse client registry %s: %w", r.path, err)
	}

	r.clients = clients
	for _, client := range clients {
		if client.RegistrationIP != "" {
			r.clientsPerIP[client.RegistrationIP]++
		}
	}

	r.logger.Info("Loaded client registry", "path", r.path, "clients", len(clients))
	return nil
}

// CheckIPLimit checks if an IP has reached the client registration limit.
func (r *ClientRegistry) CheckIPLimit(ip string, maxClientsPerIP int) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if maxClientsPerIP <= 0 {
		return nil // No limit
	}

	count := r.clientsPerIP[ip]
	if count >= maxClientsPerIP {
		return fmt.Errorf("client registration limit reached for IP %s (%d/%d)", ip, count, maxClientsPerIP)
	}

	return nil
}

// Register registers a new OAuth client and returns the registration
// response carrying the plain client secret (returned exactly once).
func (r *ClientRegistry) Register(req *ClientRegistrationRequest, clientIP string) (*ClientRegistrationResponse, error) {
	clientID := uuid.NewString()

	clientSecret, err := generateSecureToken(ClientSecretTokenLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate client secret: %w", err)
	}

	secretHash, err := bcrypt.GenerateFromPassword([]byte(clientSecret), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash client secret: %w", err)
	}

	now := time.Now().Unix()

	// Defaults for omitted fields
	tokenEndpointAuthMethod := req.TokenEndpointAuthMethod
	if tokenEndpointAuthMethod == "" {
		tokenEndpointAuthMethod = DefaultTokenEndpointAuthMethod
	}

	grantTypes := req.GrantTypes
	if len(grantTypes) == 0 {
		grantTypes = DefaultGrantTypes
	}

	responseTypes := req.ResponseTypes
	if len(responseTypes) == 0 {
		responseTypes = DefaultResponseTypes
	}

	client := &RegisteredClient{
		ClientID:                clientID,
		ClientSecretHash:        string(secretHash),
		ClientIDIssuedAt:        now,
		ClientSecretExpiresAt:   0, // Never expires
		RedirectURIs:            req.RedirectURIs,
		TokenEndpointAuthMethod: tokenEndpointAuthMethod,
		GrantTypes:              grantTypes,
		ResponseTypes:           responseTypes,
		ClientName:              req.ClientName,
		Scope:                   req.Scope,
		RegistrationIP:          clientIP,
	}

	r.mu.Lock()
	r.clients[clientID] = client
	if clientIP != "" {
		r.clientsPerIP[clientIP]++
	}
	clientsFromIP := r.clientsPerIP[clientIP]
	r.mu.Unlock()

	r.scheduleWrite()

	r.logger.Info("Registered new OAuth client",
		"client_id", clientID,
		"client_name", req.ClientName,
		"client_ip", clientIP,
		"clients_from_ip", clientsFromIP,
		"redirect_uris", req.RedirectURIs,
		"grant_types", grantTypes,
	)

	return &ClientRegistrationResponse{
		ClientID:                clientID,
		ClientSecret:            clientSecret, // Only returned once
		ClientIDIssuedAt:        now,
		ClientSecretExpiresAt:   0,
		RedirectURIs:            req.RedirectURIs,
		TokenEndpointAuthMethod: tokenEndpointAuthMethod,
		GrantTypes:              grantTypes,
		ResponseTypes:           responseTypes,
		ClientName:              req.ClientName,
		Scope:                   req.Scope,
	}, nil
}

// Get retrieves a registered client by ID.
func (r *ClientRegistry) Get(clientID string) (*RegisteredClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, exists := r.clients[clientID]
	if !exists {
		return nil, ErrClientNotFound
	}

	return client, nil
}

// ValidateClientSecret validates a client's secret against its stored hash.
func (r *ClientRegistry) ValidateClientSecret(clientID, clientSecret string) error {
	r.mu.RLock()
	client, exists := r.clients[clientID]
	r.mu.RUnlock()

	if !exists {
		return ErrClientNotFound
	}

	if err := bcrypt.CompareHashAndPassword([]byte(client.ClientSecretHash), []byte(clientSecret)); err != nil {
		return fmt.Errorf("invalid client secret")
	}

	return nil
}

// ValidateRedirectURI checks if a redirect URI is registered for a client.
func (r *ClientRegistry) ValidateRedirectURI(clientID, redirectURI string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, exists := r.clients[clientID]
	if !exists {
		return ErrClientNotFound
	}

	for _, uri := range client.RedirectURIs {
		if uri == redirectURI {
			return nil
		}
	}

	return fmt.Errorf("redirect_uri not registered for this client")
}

// Count returns the number of registered clients.
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// scheduleWrite rewrites the registry file in the background. Writers
// serialize through writeMu, and each write snapshots the full map, so
// concurrent registrations cannot lose each other's entries.
func (r *ClientRegistry) scheduleWrite() {
	if r.path == "" {
		return
	}

	go func() {
		if err := r.writeFile(); err != nil {
			r.logger.Error("Failed to persist client registry",
				"path", r.path,
				"error", err,
			)
		}
	}()
}

// Flush synchronously writes the registry file, waiting for any in-flight
// background write first. Used on shutdown and in tests.
func (r *ClientRegistry) Flush() error {
	if r.path == "" {
		return nil
	}
	return r.writeFile()
}

// writeFile writes the registry snapshot to a temp file in the target
// directory and renames it into place, so a crash mid-write leaves the
// previous file intact.
func (r *ClientRegistry) writeFile() error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.RLock()
	snapshot := make(map[string]*RegisteredClient, len(r.clients))
	for id, client := range r.clients {
		snapshot[id] = client
	}
	r.mu.RUnlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal client registry: %w", err)
	}

	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp registry file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write temp registry file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp registry file: %w", err)
	}

	if err := os.Rename(tmp.Name(), r.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace registry file: %w", err)
	}

	return nil
}

// generateSecureToken generates a cryptographically secure random token
func generateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
