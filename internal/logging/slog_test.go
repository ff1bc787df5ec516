package logging

import (
	"errors"
	"log/slog"
	"testing"
)

func TestWithOperation(t *testing.T) {
	logger := slog.Default()
	result := WithOperation(logger, "test_operation")
	if result == nil {
		t.Error("WithOperation returned nil")
	}
}

func TestWithTool(t *testing.T) {
	logger := slog.Default()
	result := WithTool(logger, "test_tool")
	if result == nil {
		t.Error("WithTool returned nil")
	}
}

func TestWithClient(t *testing.T) {
	logger := slog.Default()
	result := WithClient(logger, "client-123")
	if result == nil {
		t.Error("WithClient returned nil")
	}
}

func TestOperationAttr(t *testing.T) {
	attr := Operation("test_op")
	if attr.Key != KeyOperation {
		t.Errorf("Operation key = %q, want %q", attr.Key, KeyOperation)
	}
	if attr.Value.String() != "test_op" {
		t.Errorf("Operation value = %q, want %q", attr.Value.String(), "test_op")
	}
}

func TestToolAttr(t *testing.T) {
	attr := Tool("slack_channels_list")
	if attr.Key != KeyTool {
		t.Errorf("Tool key = %q, want %q", attr.Key, KeyTool)
	}
	if attr.Value.String() != "slack_channels_list" {
		t.Errorf("Tool value = %q, want %q", attr.Value.String(), "slack_channels_list")
	}
}

func TestClientIDAttr(t *testing.T) {
	attr := ClientID("client-123")
	if attr.Key != KeyClientID {
		t.Errorf("ClientID key = %q, want %q", attr.Key, KeyClientID)
	}
	if attr.Value.String() != "client-123" {
		t.Errorf("ClientID value = %q, want %q", attr.Value.String(), "client-123")
	}
}

func TestTeamAttr(t *testing.T) {
	attr := Team("T0TEST")
	if attr.Key != KeyTeam {
		t.Errorf("Team key = %q, want %q", attr.Key, KeyTeam)
	}
	if attr.Value.String() != "T0TEST" {
		t.Errorf("Team value = %q, want %q", attr.Value.String(), "T0TEST")
	}
}

func TestStatusAttr(t *testing.T) {
	attr := Status(StatusSuccess)
	if attr.Key != KeyStatus {
		t.Errorf("Status key = %q, want %q", attr.Key, KeyStatus)
	}
	if attr.Value.String() != StatusSuccess {
		t.Errorf("Status value = %q, want %q", attr.Value.String(), StatusSuccess)
	}
}

func TestErr(t *testing.T) {
	// Test with error
	err := errors.New("test error")
	attr := Err(err)
	if attr.Key != KeyError {
		t.Errorf("Err key = %q, want %q", attr.Key, KeyError)
	}
	if attr.Value.String() != "test error" {
		t.Errorf("Err value = %q, want %q", attr.Value.String(), "test error")
	}

	// Test with nil - should return an empty group that slog will omit
	attr = Err(nil)
	// Empty Group has empty key
	if attr.Key != "" {
		t.Errorf("Err(nil) key = %q, want empty string (empty group)", attr.Key)
	}
}

func TestAnonymizeUser(t *testing.T) {
	tests := []struct {
		userID   string
		wantLen  int  // Expected length of result (0 for empty)
		hasValue bool // Whether result should have a value
	}{
		{"U024BE7LH", 21, true}, // "user:" + 16 hex chars
		{"W012A3CDE", 21, true},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.userID, func(t *testing.T) {
			result := AnonymizeUser(tt.userID)
			if tt.hasValue {
				if len(result) != tt.wantLen {
					t.Errorf("AnonymizeUser(%q) length = %d, want %d", tt.userID, len(result), tt.wantLen)
				}
				if result[:5] != "user:" {
					t.Errorf("AnonymizeUser(%q) should start with 'user:', got %q", tt.userID, result)
				}
			} else {
				if result != "" {
					t.Errorf("AnonymizeUser(%q) = %q, want empty string", tt.userID, result)
				}
			}
		})
	}

	// Test deterministic hashing
	hash1 := AnonymizeUser("U024BE7LH")
	hash2 := AnonymizeUser("U024BE7LH")
	if hash1 != hash2 {
		t.Error("AnonymizeUser should return deterministic results")
	}

	// Test different users produce different hashes
	hash3 := AnonymizeUser("U0OTHER")
	if hash1 == hash3 {
		t.Error("Different user IDs should produce different hashes")
	}
}

func TestUserHash(t *testing.T) {
	attr := UserHash("U024BE7LH")
	if attr.Key != KeyUserHash {
		t.Errorf("UserHash key = %q, want %q", attr.Key, KeyUserHash)
	}
	if len(attr.Value.String()) != 21 {
		t.Errorf("UserHash value length = %d, want 21", len(attr.Value.String()))
	}
}

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		token    string
		expected string
	}{
		{"", "<empty>"},
		{"abc123", "[token:6 chars]"},
		{"xoxp-a_very_long_token_str", "[token:26 chars]"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := SanitizeToken(tt.token)
			if result != tt.expected {
				t.Errorf("SanitizeToken(%q) = %q, want %q", tt.token, result, tt.expected)
			}
		})
	}
}

func TestStatusConstants(t *testing.T) {
	if StatusSuccess != "success" {
		t.Errorf("StatusSuccess = %q, want %q", StatusSuccess, "success")
	}
	if StatusError != "error" {
		t.Errorf("StatusError = %q, want %q", StatusError, "error")
	}
}
