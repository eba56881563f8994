package config

import (
	"fmt"
	"log"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultPOP3Port       = 110
	DefaultPOP3SecurePort = 995
)

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Output string `toml:"output"` // Log output: "stderr", "stdout", "syslog", or file path
	Format string `toml:"format"` // Log format: "json" or "console"
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", "error"
}

// AccountConfig describes the mailbox to connect to.
type AccountConfig struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"` // 0 selects 110, or 995 when ssl is set
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	SSL            bool   `toml:"ssl"`             // Implicit TLS on connect
	TLS            bool   `toml:"tls"`             // Upgrade a plaintext connection with STLS
	TLSVerify      bool   `toml:"tls_verify"`      // Verify the server certificate
	SASLPlain      bool   `toml:"sasl_plain"`      // Use AUTH PLAIN instead of USER/PASS
	Debug          bool   `toml:"debug"`           // Log every command and response line
	ConnectTimeout string `toml:"connect_timeout"` // Dial timeout (default: "30s")
	ReadTimeout    string `toml:"read_timeout"`    // Per-response read timeout, "0" blocks indefinitely
}

// GetPort returns the configured port or the protocol default.
func (a *AccountConfig) GetPort() int {
	if a.Port > 0 {
		return a.Port
	}
	if a.SSL {
		return DefaultPOP3SecurePort
	}
	return DefaultPOP3Port
}

func (a *AccountConfig) GetConnectTimeout() (time.Duration, error) {
	if a.ConnectTimeout == "" {
		return 30 * time.Second, nil
	}
	return time.ParseDuration(a.ConnectTimeout)
}

func (a *AccountConfig) GetReadTimeout() (time.Duration, error) {
	if a.ReadTimeout == "" || a.ReadTimeout == "0" {
		return 0, nil
	}
	return time.ParseDuration(a.ReadTimeout)
}

// FetchConfig holds the default pagination window.
type FetchConfig struct {
	Start        int    `toml:"start"`         // Offset from the newest message
	Range        int    `toml:"range"`         // Page size
	PollInterval string `toml:"poll_interval"` // Mailbox check interval for "watch" (default: "60s")
}

func (f *FetchConfig) GetPollInterval() (time.Duration, error) {
	if f.PollInterval == "" {
		return 60 * time.Second, nil
	}
	d, err := time.ParseDuration(f.PollInterval)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive")
	}
	return d, nil
}

// RetryConfig controls reconnect attempts when the server cannot be reached.
type RetryConfig struct {
	MaxRetries      int     `toml:"max_retries"`
	InitialInterval string  `toml:"initial_interval"`
	MaxInterval     string  `toml:"max_interval"`
	Multiplier      float64 `toml:"multiplier"`
	Jitter          bool    `toml:"jitter"`
}

func (r *RetryConfig) GetInitialInterval() (time.Duration, error) {
	if r.InitialInterval == "" {
		return time.Second, nil
	}
	return time.ParseDuration(r.InitialInterval)
}

func (r *RetryConfig) GetMaxInterval() (time.Duration, error) {
	if r.MaxInterval == "" {
		return 30 * time.Second, nil
	}
	return time.ParseDuration(r.MaxInterval)
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
	Path    string `toml:"path"`
}

// Config holds all configuration for the application.
type Config struct {
	Logging LoggingConfig `toml:"logging"`
	Account AccountConfig `toml:"account"`
	Fetch   FetchConfig   `toml:"fetch"`
	Retry   RetryConfig   `toml:"retry"`
	Metrics MetricsConfig `toml:"metrics"`
}

// NewDefaultConfig creates a Config struct with default values.
func NewDefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{
			Output: "stderr",
			Format: "console",
			Level:  "info",
		},
		Account: AccountConfig{
			ConnectTimeout: "30s",
			ReadTimeout:    "0",
			TLSVerify:      true,
		},
		Fetch: FetchConfig{
			Start:        0,
			Range:        10,
			PollInterval: "60s",
		},
		Retry: RetryConfig{
			MaxRetries:      0,
			InitialInterval: "1s",
			MaxInterval:     "30s",
			Multiplier:      2.0,
			Jitter:          true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9101",
			Path:    "/metrics",
		},
	}
}

// Validate checks the fields a session cannot be built without.
func (c *Config) Validate() error {
	if c.Account.Host == "" {
		return fmt.Errorf("account.host is required")
	}
	if c.Account.Username == "" {
		return fmt.Errorf("account.username is required")
	}
	if c.Account.Port < 0 || c.Account.Port > 65535 {
		return fmt.Errorf("account.port %d out of range", c.Account.Port)
	}
	if c.Account.SSL && c.Account.TLS {
		return fmt.Errorf("account.ssl and account.tls are mutually exclusive")
	}
	if _, err := c.Account.GetConnectTimeout(); err != nil {
		return fmt.Errorf("account.connect_timeout: %w", err)
	}
	if _, err := c.Account.GetReadTimeout(); err != nil {
		return fmt.Errorf("account.read_timeout: %w", err)
	}
	if _, err := c.Fetch.GetPollInterval(); err != nil {
		return fmt.Errorf("fetch.poll_interval: %w", err)
	}
	if _, err := c.Retry.GetInitialInterval(); err != nil {
		return fmt.Errorf("retry.initial_interval: %w", err)
	}
	if _, err := c.Retry.GetMaxInterval(); err != nil {
		return fmt.Errorf("retry.max_interval: %w", err)
	}
	return nil
}

// LoadConfigFromFile loads configuration from a TOML file and trims whitespace from all string fields.
// Unknown keys are reported as warnings and ignored.
func LoadConfigFromFile(configPath string, cfg *Config) error {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	metadata, err := toml.Decode(string(content), cfg)
	if err != nil {
		return enhanceConfigError(err)
	}

	if len(metadata.Undecoded()) > 0 {
		log.Printf("WARNING: Configuration file '%s' contains unknown keys that will be ignored:", configPath)
		for _, key := range metadata.Undecoded() {
			log.Printf("WARNING:   - %s", key)
		}
	}

	trimStringFields(reflect.ValueOf(cfg).Elem())
	return nil
}

func enhanceConfigError(err error) error {
	errMsg := err.Error()

	if strings.Contains(errMsg, "has already been defined") {
		return fmt.Errorf("%w\n\nHINT: You have a duplicate configuration key in your TOML file", err)
	}

	if strings.Contains(errMsg, "expected value but found \"f\"") ||
		strings.Contains(errMsg, "expected value but found \"t\"") {
		return fmt.Errorf("%w\n\nHINT: In TOML, boolean values must be exactly 'true' or 'false'", err)
	}

	return err
}

// trimStringFields recursively trims whitespace from all string fields in a struct
func trimStringFields(v reflect.Value) {
	if !v.IsValid() || !v.CanSet() {
		return
	}

	switch v.Kind() {
	case reflect.String:
		v.SetString(strings.TrimSpace(v.String()))

	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			field := v.Field(i)
			if field.CanSet() {
				trimStringFields(field)
			}
		}

	case reflect.Ptr:
		if !v.IsNil() {
			trimStringFields(v.Elem())
		}
	}
}
