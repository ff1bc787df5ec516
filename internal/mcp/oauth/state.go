package oauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// Upstream state values are "<nonce>.<sig>" where sig is an HMAC-SHA256 over
// the nonce keyed with the configured state secret. The signature is checked
// before any session lookup, so forged callback states are rejected without
// touching the store.

// newSignedState generates a fresh random nonce and returns the signed state value.
func newSignedState(secret []byte) (string, error) {
	nonce, err := generateSecureToken(StateTokenLength)
	if err != nil {
		return "", err
	}
	return nonce + "." + signState(secret, nonce), nil
}

// verifySignedState checks the HMAC signature of a state value.
func verifySignedState(secret []byte, state string) bool {
	i := strings.LastIndexByte(state, '.')
	if i <= 0 || i == len(state)-1 {
		return false
	}
	nonce, sig := state[:i], state[i+1:]

	want, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(nonce))
	return hmac.Equal(mac.Sum(nil), want)
}

func signState(secret []byte, nonce string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(nonce))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
