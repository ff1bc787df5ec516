package oauth

import (
	"strings"
	"testing"
)

func TestSignedState_RoundTrip(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")

	state, err := newSignedState(secret)
	if err != nil {
		t.Fatalf("newSignedState() error = %v", err)
	}

	if !strings.Contains(state, ".") {
		t.Fatalf("signed state %q has no signature separator", state)
	}

	if !verifySignedState(secret, state) {
		t.Error("verifySignedState() = false for freshly signed state")
	}
}

func TestSignedState_TamperedNonce(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")

	state, err := newSignedState(secret)
	if err != nil {
		t.Fatalf("newSignedState() error = %v", err)
	}

	tampered := "x" + state[1:]
	if tampered != state && verifySignedState(secret, tampered) {
		t.Error("verifySignedState() = true for tampered nonce")
	}
}

func TestSignedState_WrongSecret(t *testing.T) {
	state, err := newSignedState([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("newSignedState() error = %v", err)
	}

	if verifySignedState([]byte("another-secret-another-secret!!!"), state) {
		t.Error("verifySignedState() = true under a different secret")
	}
}

func TestSignedState_Malformed(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")

	for _, state := range []string{"", "no-separator", ".leading", "trailing.", "nonce.!!!not-base64!!!"} {
		if verifySignedState(secret, state) {
			t.Errorf("verifySignedState(%q) = true, want false", state)
		}
	}
}

func TestSignedState_Unique(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")

	a, _ := newSignedState(secret)
	b, _ := newSignedState(secret)
	if a == b {
		t.Error("newSignedState() produced a duplicate")
	}
}
