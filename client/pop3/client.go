// Package pop3 is a POP3 mailbox client. A Client owns one connection and
// runs one command at a time: it greets, optionally upgrades with STLS,
// authenticates (APOP first, then USER/PASS or AUTH PLAIN), and retrieves or
// deletes messages.
package pop3

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/migadu/popfetch/config"
	"github.com/migadu/popfetch/logger"
	"github.com/migadu/popfetch/pkg/metrics"
	"github.com/migadu/popfetch/pkg/retry"
)

const defaultConnectTimeout = 30 * time.Second

// State is the connection and authentication state of a Client.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

// Options configures a Client.
type Options struct {
	Host     string
	Port     int // 0 selects 110, or 995 with UseSSL
	Username string
	Password string

	UseSSL             bool        // TLS from the first byte
	UseTLS             bool        // plaintext greeting, then STLS
	InsecureSkipVerify bool        // ignored when TLSConfig is set
	TLSConfig          *tls.Config // optional; ServerName defaults to Host

	SASLPlain bool // AUTH PLAIN instead of USER/PASS
	Debug     bool // log every command and reply line

	ConnectTimeout time.Duration // dial, handshakes, greeting and STLS; default 30s
	ReadTimeout    time.Duration // per reply line; 0 waits indefinitely

	Retry   retry.BackoffConfig // dial retries; zero value dials once
	Dialer  Dialer              // default *net.Dialer
	Dialect Dialect             // default POP3Dialect
}

// Client is a POP3 session. Methods are safe to call from several
// goroutines but never overlap on the wire.
type Client struct {
	mu sync.Mutex

	opts      Options
	addr      string
	tlsConfig *tls.Config
	dialect   Dialect
	log       *sessionLog

	ch          *channel
	state       State
	challenge   string
	connectedAt time.Time
}

// New validates opts and returns a disconnected Client.
func New(opts Options) (*Client, error) {
	if opts.Host == "" {
		return nil, &ArgumentError{Name: "host", Reason: "must not be empty"}
	}
	if opts.Username == "" {
		return nil, &ArgumentError{Name: "username", Reason: "must not be empty"}
	}
	if opts.Port < 0 || opts.Port > 65535 {
		return nil, &ArgumentError{Name: "port", Reason: fmt.Sprintf("%d out of range", opts.Port)}
	}
	if opts.UseSSL && opts.UseTLS {
		return nil, &ArgumentError{Name: "security", Reason: "ssl and tls are mutually exclusive"}
	}
	if opts.ConnectTimeout < 0 || opts.ReadTimeout < 0 {
		return nil, &ArgumentError{Name: "timeout", Reason: "must not be negative"}
	}

	if opts.Port == 0 {
		opts.Port = config.DefaultPOP3Port
		if opts.UseSSL {
			opts.Port = config.DefaultPOP3SecurePort
		}
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	if opts.Dialer == nil {
		opts.Dialer = &net.Dialer{Timeout: opts.ConnectTimeout}
	}
	if opts.Dialect == nil {
		opts.Dialect = POP3Dialect{}
	}

	var tlsConfig *tls.Config
	if opts.TLSConfig != nil {
		tlsConfig = opts.TLSConfig.Clone()
	} else {
		tlsConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: opts.InsecureSkipVerify,
		}
	}
	if tlsConfig.ServerName == "" {
		tlsConfig.ServerName = opts.Host
	}

	addr := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	return &Client{
		opts:      opts,
		addr:      addr,
		tlsConfig: tlsConfig,
		dialect:   opts.Dialect,
		log:       &sessionLog{proto: opts.Dialect.Name() + "_client", addr: displayAddr(addr, opts.UseSSL), user: opts.Username, debug: opts.Debug},
	}, nil
}

// displayAddr prefixes implicit-TLS addresses with a tls:// scheme.
func displayAddr(addr string, ssl bool) string {
	if ssl {
		return "tls://" + addr
	}
	return addr
}

// Addr returns host:port.
func (c *Client) Addr() string { return c.addr }

// State returns the current state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Challenge returns the APOP challenge of the current connection.
func (c *Client) Challenge() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.challenge
}

// Connect dials the server, reads the greeting and, with UseTLS, upgrades
// the stream. It does not log in. Connecting an already connected client is
// a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) error {
	if c.state != StateDisconnected {
		return nil
	}

	security := "plain"
	var dialTLS *tls.Config
	switch {
	case c.opts.UseSSL:
		security = "ssl"
		dialTLS = c.tlsConfig
	case c.opts.UseTLS:
		security = "starttls"
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	defer cancel()

	var t *transport
	err := retry.WithRetry(dialCtx, func() error {
		var err error
		t, err = dial(dialCtx, c.opts.Dialer, c.addr, dialTLS, c.opts.ReadTimeout)
		var hsErr *handshakeError
		if errors.As(err, &hsErr) {
			return retry.Stop(err)
		}
		return err
	}, c.opts.Retry)
	if err != nil {
		metrics.ConnectionsTotal.WithLabelValues(security, "failure").Inc()
		c.WarnLog("connect failed: %v", err)
		return &ServerError{Addr: c.addr, Err: err}
	}

	ch := newChannel(t, c.tlsConfig, c.log)

	if deadline, ok := dialCtx.Deadline(); ok {
		t.setDeadline(deadline)
	}
	greeting, ok := ch.Receive(false)
	if !ok {
		ch.close()
		metrics.ConnectionsTotal.WithLabelValues(security, "failure").Inc()
		if ch.err != nil {
			return &ServerError{Addr: c.addr, Err: ch.err}
		}
		return &ServerError{Addr: c.addr, Err: fmt.Errorf("unexpected greeting: %q", ch.LastReply())}
	}

	c.ch = ch
	c.state = StateConnected
	c.connectedAt = time.Now()
	c.challenge = c.dialect.Challenge(greeting)
	metrics.ConnectionsCurrent.Inc()

	if c.challenge != "" {
		c.DebugLog("greeting carries APOP challenge %s", c.challenge)
	}

	if c.opts.UseTLS {
		if err := c.dialect.StartTLS(dialCtx, c.ch); err != nil {
			metrics.ConnectionsTotal.WithLabelValues(security, "failure").Inc()
			c.disconnectLocked()
			return &TLSError{Addr: c.addr, Err: err}
		}
		c.DebugLog("STLS negotiated")
	}
	// The connect deadline covers the greeting and STLS only.
	t.setDeadline(time.Time{})

	metrics.ConnectionsTotal.WithLabelValues(security, "success").Inc()
	c.Log("connected (%s)", security)
	return nil
}

// Login connects when needed and authenticates. Logging in twice is a
// no-op. A rejected login leaves the client disconnected and returns
// *LoginError.
func (c *Client) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loginLocked(ctx)
}

func (c *Client) loginLocked(ctx context.Context) error {
	if c.state == StateAuthenticated {
		return nil
	}
	if err := c.connectLocked(ctx); err != nil {
		return err
	}

	creds := Credentials{
		Username:  c.opts.Username,
		Password:  c.opts.Password,
		Challenge: c.challenge,
		SASLPlain: c.opts.SASLPlain,
	}
	if err := c.dialect.Authorize(ctx, c.ch, creds); err != nil {
		c.WarnLog("login failed: %v", err)
		c.disconnectLocked()
		return err
	}

	c.state = StateAuthenticated
	c.Log("authenticated")
	return nil
}

// Disconnect logs out when authenticated, without waiting for the reply,
// and closes the connection. It is safe to call repeatedly.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectLocked()
}

func (c *Client) disconnectLocked() {
	if c.ch == nil {
		c.state = StateDisconnected
		return
	}

	if c.state == StateAuthenticated {
		c.dialect.Logout(c.ch)
	}
	if err := c.ch.close(); err != nil {
		c.DebugLog("close: %v", err)
	}

	metrics.ConnectionsCurrent.Dec()
	metrics.ConnectionDuration.Observe(time.Since(c.connectedAt).Seconds())

	c.ch = nil
	c.state = StateDisconnected
	c.challenge = ""
	c.Log("disconnected")
}

// Close implements io.Closer.
func (c *Client) Close() error {
	c.Disconnect()
	return nil
}

// sessionLog carries the fields every client log line repeats.
type sessionLog struct {
	proto string
	addr  string
	user  string
	debug bool
}

func (l *sessionLog) Log(format string, args ...any) {
	logger.Info("Client", "proto", l.proto, "addr", l.addr, "user", l.user, "msg", fmt.Sprintf(format, args...))
}

func (l *sessionLog) DebugLog(format string, args ...any) {
	if l.debug {
		logger.Debug("Client", "proto", l.proto, "addr", l.addr, "user", l.user, "msg", fmt.Sprintf(format, args...))
	}
}

func (l *sessionLog) WarnLog(format string, args ...any) {
	logger.Warn("Client", "proto", l.proto, "addr", l.addr, "user", l.user, "msg", fmt.Sprintf(format, args...))
}

// Log logs at INFO level with session context.
func (c *Client) Log(format string, args ...any) { c.log.Log(format, args...) }

// DebugLog logs at DEBUG level when Debug is set.
func (c *Client) DebugLog(format string, args ...any) { c.log.DebugLog(format, args...) }

// WarnLog logs at WARN level with session context.
func (c *Client) WarnLog(format string, args ...any) { c.log.WarnLog(format, args...) }
