package cmd

import (
	"testing"
)

func TestResolveBaseURL(t *testing.T) {
	tests := []struct {
		name     string
		baseURL  string
		addr     string
		expected string
	}{
		{
			name:     "configured base URL wins",
			baseURL:  "https://mcp.example.com",
			addr:     ":8080",
			expected: "https://mcp.example.com",
		},
		{
			name:     "trailing slash is trimmed",
			baseURL:  "https://mcp.example.com/",
			addr:     ":8080",
			expected: "https://mcp.example.com",
		},
		{
			name:     "port-only addr becomes localhost",
			baseURL:  "",
			addr:     ":8080",
			expected: "http://localhost:8080",
		},
		{
			name:     "host:port addr is used as-is",
			baseURL:  "",
			addr:     "127.0.0.1:9000",
			expected: "http://127.0.0.1:9000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveBaseURL(tt.baseURL, tt.addr); got != tt.expected {
				t.Errorf("resolveBaseURL(%q, %q) = %q, want %q", tt.baseURL, tt.addr, got, tt.expected)
			}
		})
	}
}

func TestParseCommaSeparatedList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: nil,
		},
		{
			name:     "single scope",
			input:    "channels:read",
			expected: []string{"channels:read"},
		},
		{
			name:     "multiple scopes",
			input:    "channels:read,users:read",
			expected: []string{"channels:read", "users:read"},
		},
		{
			name:     "scopes with spaces around commas",
			input:    "channels:read, groups:read , users:read",
			expected: []string{"channels:read", "groups:read", "users:read"},
		},
		{
			name:     "trailing and leading commas",
			input:    ",channels:read,users:read,",
			expected: []string{"channels:read", "users:read"},
		},
		{
			name:     "only commas and spaces",
			input:    ",  , , ",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseCommaSeparatedList(tt.input)

			// Handle nil vs empty slice comparison
			if tt.expected == nil {
				if result != nil {
					t.Errorf("parseCommaSeparatedList(%q) = %v, want nil", tt.input, result)
				}
				return
			}

			if len(result) != len(tt.expected) {
				t.Errorf("parseCommaSeparatedList(%q) = %v (len %d), want %v (len %d)",
					tt.input, result, len(result), tt.expected, len(tt.expected))
				return
			}

			for i, v := range result {
				if v != tt.expected[i] {
					t.Errorf("parseCommaSeparatedList(%q)[%d] = %q, want %q",
						tt.input, i, v, tt.expected[i])
				}
			}
		})
	}
}
