package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestLoadConfigFromFile_UnknownKeys tests that unknown keys produce warnings but don't fail
func TestLoadConfigFromFile_UnknownKeys(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_unknown.toml")

	content := `
[account]
host = "pop.example.com"
username = "john"
typo_setting = 123

[fetch]
range = 25
another_unknown = "value"
`

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}

	cfg := NewDefaultConfig()
	if err := LoadConfigFromFile(configPath, &cfg); err != nil {
		t.Errorf("LoadConfigFromFile returned unexpected error: %v", err)
	}

	if cfg.Account.Host != "pop.example.com" {
		t.Errorf("Expected host=pop.example.com, got %s", cfg.Account.Host)
	}
	if cfg.Fetch.Range != 25 {
		t.Errorf("Expected range=25, got %d", cfg.Fetch.Range)
	}
	// Defaults not mentioned in the file survive
	if cfg.Logging.Format != "console" {
		t.Errorf("Expected default format to survive, got %s", cfg.Logging.Format)
	}
}

func TestLoadConfigFromFile_TrimsStrings(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "trim.toml")

	content := `
[account]
host = "  pop.example.com  "
username = " john "
connect_timeout = " 10s "
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}

	cfg := NewDefaultConfig()
	if err := LoadConfigFromFile(configPath, &cfg); err != nil {
		t.Fatalf("LoadConfigFromFile failed: %v", err)
	}
	if cfg.Account.Host != "pop.example.com" || cfg.Account.Username != "john" {
		t.Errorf("Expected trimmed values, got host=%q username=%q", cfg.Account.Host, cfg.Account.Username)
	}
	if _, err := cfg.Account.GetConnectTimeout(); err != nil {
		t.Errorf("Expected trimmed timeout to parse, got %v", err)
	}
}

func TestLoadConfigFromFile_BooleanTypo(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "typo.toml")

	if err := os.WriteFile(configPath, []byte("[account]\nssl = f\n"), 0644); err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}

	cfg := NewDefaultConfig()
	if err := LoadConfigFromFile(configPath, &cfg); err == nil {
		t.Fatal("Expected error for invalid boolean")
	}
}

func TestLoadConfigFromFile_Missing(t *testing.T) {
	cfg := NewDefaultConfig()
	err := LoadConfigFromFile(filepath.Join(t.TempDir(), "nope.toml"), &cfg)
	if !os.IsNotExist(err) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}
