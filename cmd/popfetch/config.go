package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/migadu/popfetch/client/pop3"
	"github.com/migadu/popfetch/config"
	"github.com/migadu/popfetch/pkg/retry"
)

// passwordEnv is read when neither the file nor a flag sets a password.
const passwordEnv = "POPFETCH_PASSWORD"

// commonFlags are accepted by every command and override the config file.
type commonFlags struct {
	fs *flag.FlagSet

	configPath *string
	host       *string
	port       *int
	username   *string
	password   *string
	ssl        *bool
	tls        *bool
	insecure   *bool
	saslPlain  *bool
	debug      *bool
	logLevel   *string
	metrics    *string
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		fs:         fs,
		configPath: fs.String("config", "popfetch.toml", "Path to TOML configuration file"),
		host:       fs.String("host", "", "POP3 server host (overrides config)"),
		port:       fs.Int("port", 0, "POP3 server port (overrides config)"),
		username:   fs.String("user", "", "Mailbox user name (overrides config)"),
		password:   fs.String("password", "", "Mailbox password (overrides config, or set "+passwordEnv+")"),
		ssl:        fs.Bool("ssl", false, "Use implicit TLS (overrides config)"),
		tls:        fs.Bool("tls", false, "Upgrade with STLS (overrides config)"),
		insecure:   fs.Bool("insecure", false, "Skip server certificate verification"),
		saslPlain:  fs.Bool("sasl-plain", false, "Authenticate with AUTH PLAIN instead of USER/PASS"),
		debug:      fs.Bool("debug", false, "Log every command and reply line"),
		logLevel:   fs.String("log-level", "", "Log level: debug, info, warn, error (overrides config)"),
		metrics:    fs.String("metrics", "", "Serve Prometheus metrics on this address (overrides config)"),
	}
}

// load builds the effective configuration: defaults, then the config file
// if present, then explicitly set flags, then the password environment
// variable.
func (f *commonFlags) load() (config.Config, error) {
	cfg := config.NewDefaultConfig()

	set := make(map[string]bool)
	f.fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	if err := config.LoadConfigFromFile(*f.configPath, &cfg); err != nil {
		// A missing default file is fine; a missing explicit one is not.
		if !errors.Is(err, os.ErrNotExist) || set["config"] {
			return cfg, fmt.Errorf("failed to load configuration from %s: %w", *f.configPath, err)
		}
	}

	if set["host"] {
		cfg.Account.Host = *f.host
	}
	if set["port"] {
		cfg.Account.Port = *f.port
	}
	if set["user"] {
		cfg.Account.Username = *f.username
	}
	if set["password"] {
		cfg.Account.Password = *f.password
	}
	if set["ssl"] {
		cfg.Account.SSL = *f.ssl
	}
	if set["tls"] {
		cfg.Account.TLS = *f.tls
	}
	if set["insecure"] {
		cfg.Account.TLSVerify = !*f.insecure
	}
	if set["sasl-plain"] {
		cfg.Account.SASLPlain = *f.saslPlain
	}
	if set["debug"] {
		cfg.Account.Debug = *f.debug
		if *f.debug {
			cfg.Logging.Level = "debug"
		}
	}
	if set["log-level"] {
		cfg.Logging.Level = *f.logLevel
	}
	if set["metrics"] {
		cfg.Metrics.Enabled = *f.metrics != ""
		if *f.metrics != "" {
			cfg.Metrics.Addr = *f.metrics
		}
	}

	if cfg.Account.Password == "" {
		cfg.Account.Password = os.Getenv(passwordEnv)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// clientOptions maps the account and retry settings onto client options.
func clientOptions(cfg config.Config) (pop3.Options, error) {
	connectTimeout, err := cfg.Account.GetConnectTimeout()
	if err != nil {
		return pop3.Options{}, fmt.Errorf("account.connect_timeout: %w", err)
	}
	readTimeout, err := cfg.Account.GetReadTimeout()
	if err != nil {
		return pop3.Options{}, fmt.Errorf("account.read_timeout: %w", err)
	}
	initial, err := cfg.Retry.GetInitialInterval()
	if err != nil {
		return pop3.Options{}, fmt.Errorf("retry.initial_interval: %w", err)
	}
	maxInterval, err := cfg.Retry.GetMaxInterval()
	if err != nil {
		return pop3.Options{}, fmt.Errorf("retry.max_interval: %w", err)
	}

	return pop3.Options{
		Host:               cfg.Account.Host,
		Port:               cfg.Account.GetPort(),
		Username:           cfg.Account.Username,
		Password:           cfg.Account.Password,
		UseSSL:             cfg.Account.SSL,
		UseTLS:             cfg.Account.TLS,
		InsecureSkipVerify: !cfg.Account.TLSVerify,
		SASLPlain:          cfg.Account.SASLPlain,
		Debug:              cfg.Account.Debug,
		ConnectTimeout:     connectTimeout,
		ReadTimeout:        readTimeout,
		Retry: retry.BackoffConfig{
			InitialInterval: initial,
			MaxInterval:     maxInterval,
			Multiplier:      cfg.Retry.Multiplier,
			Jitter:          cfg.Retry.Jitter,
			MaxRetries:      cfg.Retry.MaxRetries,
		},
	}, nil
}
