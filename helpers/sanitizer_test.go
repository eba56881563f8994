package helpers

import (
	"reflect"
	"strings"
	"testing"
)

func TestSanitizeFlags(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "Nil flags",
			input:    nil,
			expected: []string{},
		},
		{
			name:     "Valid flags only",
			input:    []string{"\\Seen", "$Important"},
			expected: []string{"\\Seen", "$Important"},
		},
		{
			name:     "Empty and whitespace flags",
			input:    []string{"", "\\Seen", "   ", "\\Flagged"},
			expected: []string{"\\Seen", "\\Flagged"},
		},
		{
			name:     "Padded flags are trimmed",
			input:    []string{" \\Seen "},
			expected: []string{"\\Seen"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeFlags(tt.input)
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestSanitizeUTF8(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Valid UTF-8 string",
			input:    "Hello, World!",
			expected: "Hello, World!",
		},
		{
			name:     "UTF-8 with emoji",
			input:    "Hello 👋 World 🌍",
			expected: "Hello 👋 World 🌍",
		},
		{
			name:     "String with NULL byte in middle",
			input:    "Hello\x00World",
			expected: "HelloWorld",
		},
		{
			name:     "String with invalid UTF-8 sequences",
			input:    "Hello\xFFWorld",
			expected: "HelloWorld",
		},
		{
			name:     "Latin-1 subject left undecoded",
			input:    "Caf\xe9",
			expected: "Caf",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeUTF8(tt.input)
			if result != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, result)
			}
			if strings.ContainsRune(result, '\x00') {
				t.Errorf("Result still contains NULL bytes: %q", result)
			}
		})
	}
}

func TestMaskSensitive(t *testing.T) {
	tests := []struct {
		line     string
		expected string
	}{
		{"PASS secret", "PASS [REDACTED]"},
		{"pass secret", "pass [REDACTED]"},
		{"APOP john c4c9334bac560ecc979e58001b3e22fb", "APOP john [REDACTED]"},
		{"AUTH PLAIN AGpvaG4Ac2VjcmV0", "AUTH PLAIN [REDACTED]"},
		{"AUTH PLAIN", "AUTH PLAIN"},
		{"USER john", "USER john"},
		{"RETR 1", "RETR 1"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := MaskSensitive(tt.line); got != tt.expected {
			t.Errorf("MaskSensitive(%q) = %q, want %q", tt.line, got, tt.expected)
		}
	}
}

func TestSplitEmailAddressSanitizer(t *testing.T) {
	tests := []struct {
		in          string
		local, host string
	}{
		{"john@example.com", "john", "example.com"},
		{"john", "john", ""},
		{"@example.com", "", "example.com"},
		{"a@b@c", "a", "b@c"},
		{"", "", ""},
	}
	for _, tt := range tests {
		local, host := SplitEmailAddress(tt.in)
		if local != tt.local || host != tt.host {
			t.Errorf("SplitEmailAddress(%q) = (%q, %q), want (%q, %q)", tt.in, local, host, tt.local, tt.host)
		}
	}
}
