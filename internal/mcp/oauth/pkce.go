package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// GenerateCodeVerifier generates a random code verifier for PKCE.
// The code verifier is a cryptographically random string using the characters
// [A-Z] / [a-z] / [0-9] / "-" / "." / "_" / "~" with a minimum length of 43
// characters and a maximum length of 128 characters (RFC 7636).
func GenerateCodeVerifier() (string, error) {
	// 32 bytes (256 bits) encode to exactly 43 characters
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	// base64 URL encoding without padding as per RFC 7636
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateCodeChallenge generates the code challenge from a code verifier
// using the S256 method: code_challenge = BASE64URL(SHA256(ASCII(code_verifier)))
func GenerateCodeChallenge(verifier string) string {
	h := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(h[:])
}

// ValidateCodeChallenge validates that the code verifier matches the code
// challenge. Only the S256 method is accepted; "plain" violates OAuth 2.1.
func ValidateCodeChallenge(verifier, challenge, method string) bool {
	if method != "S256" {
		return false
	}
	computed := GenerateCodeChallenge(verifier)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
}
