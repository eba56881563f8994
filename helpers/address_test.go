package helpers

import "testing"

func TestSplitEmailAddress(t *testing.T) {
	tests := []struct {
		input string
		local string
		host  string
	}{
		{"john@example.com", "john", "example.com"},
		{" john @ example.com ", "john", "example.com"},
		{"a@b@c", "a", "b@c"},
		{"john", "john", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		local, host := SplitEmailAddress(tt.input)
		if local != tt.local || host != tt.host {
			t.Errorf("SplitEmailAddress(%q) = (%q, %q), want (%q, %q)", tt.input, local, host, tt.local, tt.host)
		}
	}
}
