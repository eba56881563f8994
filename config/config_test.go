package config

import (
	"testing"
	"time"
)

func TestAccountConfig_GetPort(t *testing.T) {
	tests := []struct {
		name     string
		account  AccountConfig
		expected int
	}{
		{name: "plain default", account: AccountConfig{}, expected: 110},
		{name: "ssl default", account: AccountConfig{SSL: true}, expected: 995},
		{name: "stls keeps plain port", account: AccountConfig{TLS: true}, expected: 110},
		{name: "explicit port wins", account: AccountConfig{SSL: true, Port: 1995}, expected: 1995},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.account.GetPort(); got != tt.expected {
				t.Errorf("GetPort() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestAccountConfig_Timeouts(t *testing.T) {
	cfg := AccountConfig{}

	timeout, err := cfg.GetConnectTimeout()
	if err != nil {
		t.Fatalf("Failed to get default connect timeout: %v", err)
	}
	if timeout != 30*time.Second {
		t.Errorf("Expected default connect timeout 30s, got %v", timeout)
	}

	readTimeout, err := cfg.GetReadTimeout()
	if err != nil {
		t.Fatalf("Failed to get default read timeout: %v", err)
	}
	if readTimeout != 0 {
		t.Errorf("Expected no read timeout by default, got %v", readTimeout)
	}

	cfg.ConnectTimeout = "5s"
	cfg.ReadTimeout = "2m"
	if timeout, _ := cfg.GetConnectTimeout(); timeout != 5*time.Second {
		t.Errorf("Expected connect timeout 5s, got %v", timeout)
	}
	if readTimeout, _ := cfg.GetReadTimeout(); readTimeout != 2*time.Minute {
		t.Errorf("Expected read timeout 2m, got %v", readTimeout)
	}

	cfg.ReadTimeout = "soon"
	if _, err := cfg.GetReadTimeout(); err == nil {
		t.Error("Expected error for invalid read timeout")
	}
}

func TestRetryConfig_Intervals(t *testing.T) {
	cfg := RetryConfig{}
	initial, err := cfg.GetInitialInterval()
	if err != nil || initial != time.Second {
		t.Errorf("GetInitialInterval() = %v, %v; want 1s, nil", initial, err)
	}
	max, err := cfg.GetMaxInterval()
	if err != nil || max != 30*time.Second {
		t.Errorf("GetMaxInterval() = %v, %v; want 30s, nil", max, err)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		cfg := NewDefaultConfig()
		cfg.Account.Host = "mail.example.com"
		cfg.Account.Username = "john"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing host", mutate: func(c *Config) { c.Account.Host = "" }, wantErr: true},
		{name: "missing username", mutate: func(c *Config) { c.Account.Username = "" }, wantErr: true},
		{name: "port out of range", mutate: func(c *Config) { c.Account.Port = 70000 }, wantErr: true},
		{name: "ssl and tls", mutate: func(c *Config) { c.Account.SSL = true; c.Account.TLS = true }, wantErr: true},
		{name: "bad connect timeout", mutate: func(c *Config) { c.Account.ConnectTimeout = "x" }, wantErr: true},
		{name: "bad retry interval", mutate: func(c *Config) { c.Retry.MaxInterval = "x" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	if cfg.Fetch.Range != 10 {
		t.Errorf("Expected default range 10, got %d", cfg.Fetch.Range)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Expected default log level info, got %s", cfg.Logging.Level)
	}
	if !cfg.Account.TLSVerify {
		t.Error("Expected certificate verification to be on by default")
	}
}

func TestFetchConfig_GetPollInterval(t *testing.T) {
	f := FetchConfig{}
	if d, err := f.GetPollInterval(); err != nil || d != time.Minute {
		t.Errorf("default poll interval = %v, %v; want 1m", d, err)
	}

	f.PollInterval = "15s"
	if d, err := f.GetPollInterval(); err != nil || d != 15*time.Second {
		t.Errorf("poll interval = %v, %v; want 15s", d, err)
	}

	for _, bad := range []string{"0s", "-5s", "soon"} {
		f.PollInterval = bad
		if _, err := f.GetPollInterval(); err == nil {
			t.Errorf("expected error for poll_interval %q", bad)
		}
	}
}
