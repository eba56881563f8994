package testutils

import (
	"bufio"
	"crypto/md5"
	"crypto/tls"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// POP3ServerConfig scripts a POP3Server.
type POP3ServerConfig struct {
	// Greeting is sent verbatim on connect. Default "+OK POP3 ready".
	Greeting string
	// Users maps usernames to passwords.
	Users map[string]string
	// Messages are served as message numbers 1..n. Lines are dot-stuffed
	// on the wire.
	Messages []string
	// RejectAPOP answers every APOP with -ERR.
	RejectAPOP bool
	// TLSConfig enables STLS. With ImplicitTLS the listener itself is TLS.
	TLSConfig   *tls.Config
	ImplicitTLS bool
	// RejectSTLS answers STLS with -ERR even when TLSConfig is set.
	RejectSTLS bool
	// StallSTLS answers STLS with +OK and then never starts the handshake.
	StallSTLS bool
	// DropOn closes the connection without replying when this command verb
	// is received.
	DropOn string
}

// POP3Server is an in-process POP3 server for client tests. It records
// every command line it receives.
type POP3Server struct {
	cfg      POP3ServerConfig
	listener net.Listener

	mu       sync.Mutex
	commands []string
	deleted  map[int]bool
	sessions int
	conns    map[net.Conn]struct{}

	wg sync.WaitGroup
}

// StartPOP3Server listens on 127.0.0.1 and stops when the test ends.
func StartPOP3Server(t *testing.T, cfg POP3ServerConfig) *POP3Server {
	t.Helper()

	if cfg.Greeting == "" {
		cfg.Greeting = "+OK POP3 ready"
	}

	var (
		ln  net.Listener
		err error
	)
	if cfg.ImplicitTLS {
		require.NotNil(t, cfg.TLSConfig, "implicit TLS needs a TLSConfig")
		ln, err = tls.Listen("tcp", "127.0.0.1:0", cfg.TLSConfig)
	} else {
		ln, err = net.Listen("tcp", "127.0.0.1:0")
	}
	require.NoError(t, err)

	s := &POP3Server{
		cfg:      cfg,
		listener: ln,
		deleted:  make(map[int]bool),
		conns:    make(map[net.Conn]struct{}),
	}

	s.wg.Add(1)
	go s.serve()

	t.Cleanup(s.Close)
	return s
}

// Host returns the listening IP.
func (s *POP3Server) Host() string {
	return s.listener.Addr().(*net.TCPAddr).IP.String()
}

// Port returns the listening port.
func (s *POP3Server) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Addr returns host:port.
func (s *POP3Server) Addr() string {
	return s.listener.Addr().String()
}

// Commands returns every command received so far, across connections.
func (s *POP3Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.commands))
	copy(out, s.commands)
	return out
}

// Verbs returns the upper-cased verb of every command received so far.
func (s *POP3Server) Verbs() []string {
	cmds := s.Commands()
	out := make([]string, len(cmds))
	for i, c := range cmds {
		verb, _, _ := strings.Cut(c, " ")
		out[i] = strings.ToUpper(verb)
	}
	return out
}

// Deleted reports whether message n was deleted with DELE.
func (s *POP3Server) Deleted(n int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleted[n]
}

// Sessions returns the number of accepted connections.
func (s *POP3Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions
}

// Close stops accepting, drops open sessions and waits for them to end.
func (s *POP3Server) Close() {
	s.listener.Close()
	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *POP3Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.sessions++
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(conn)
			s.mu.Lock()
			delete(s.conns, conn)
			s.mu.Unlock()
		}()
	}
}

type pop3ServerSession struct {
	conn          net.Conn
	reader        *bufio.Reader
	writer        *bufio.Writer
	user          string
	authenticated bool
}

func (ss *pop3ServerSession) reply(format string, args ...any) bool {
	if _, err := fmt.Fprintf(ss.writer, format+"\r\n", args...); err != nil {
		return false
	}
	return ss.writer.Flush() == nil
}

func (s *POP3Server) handle(conn net.Conn) {
	defer conn.Close()

	ss := &pop3ServerSession{
		conn:   conn,
		reader: bufio.NewReader(conn),
		writer: bufio.NewWriter(conn),
	}
	if !ss.reply("%s", s.cfg.Greeting) {
		return
	}
	if !strings.HasPrefix(s.cfg.Greeting, "+OK") {
		return
	}

	for {
		line, err := ss.reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")

		s.mu.Lock()
		s.commands = append(s.commands, line)
		s.mu.Unlock()

		verb, arg, _ := strings.Cut(line, " ")
		verb = strings.ToUpper(verb)

		if s.cfg.DropOn != "" && verb == strings.ToUpper(s.cfg.DropOn) {
			return
		}

		if !s.dispatch(ss, verb, arg) {
			return
		}
	}
}

// dispatch handles one command and reports whether the session continues.
func (s *POP3Server) dispatch(ss *pop3ServerSession, verb, arg string) bool {
	switch verb {
	case "QUIT":
		ss.reply("+OK bye")
		return false

	case "NOOP":
		return ss.reply("+OK")

	case "STLS":
		if s.cfg.StallSTLS {
			ss.reply("+OK begin TLS negotiation")
			io.Copy(io.Discard, ss.conn)
			return false
		}
		if s.cfg.TLSConfig == nil || s.cfg.RejectSTLS || s.cfg.ImplicitTLS {
			return ss.reply("-ERR STLS not available")
		}
		if !ss.reply("+OK begin TLS negotiation") {
			return false
		}
		tlsConn := tls.Server(ss.conn, s.cfg.TLSConfig)
		if err := tlsConn.Handshake(); err != nil {
			return false
		}
		ss.conn = tlsConn
		ss.reader = bufio.NewReader(tlsConn)
		ss.writer = bufio.NewWriter(tlsConn)
		return true

	case "USER":
		ss.user = arg
		if _, ok := s.cfg.Users[arg]; !ok {
			return ss.reply("-ERR unknown user")
		}
		return ss.reply("+OK")

	case "PASS":
		if pw, ok := s.cfg.Users[ss.user]; ok && pw == arg {
			ss.authenticated = true
			return ss.reply("+OK logged in")
		}
		return ss.reply("-ERR invalid credentials")

	case "APOP":
		user, digest, _ := strings.Cut(arg, " ")
		pw, ok := s.cfg.Users[user]
		if s.cfg.RejectAPOP || !ok || digest != apopDigest(s.challenge(), pw) {
			return ss.reply("-ERR APOP failed")
		}
		ss.user = user
		ss.authenticated = true
		return ss.reply("+OK logged in")

	case "AUTH":
		mech, ir, _ := strings.Cut(arg, " ")
		if !strings.EqualFold(mech, "PLAIN") {
			return ss.reply("-ERR unsupported mechanism")
		}
		decoded, err := base64.StdEncoding.DecodeString(ir)
		if err != nil {
			return ss.reply("-ERR invalid base64")
		}
		fields := strings.Split(string(decoded), "\x00")
		if len(fields) != 3 {
			return ss.reply("-ERR malformed PLAIN")
		}
		if pw, ok := s.cfg.Users[fields[1]]; ok && pw == fields[2] {
			ss.user = fields[1]
			ss.authenticated = true
			return ss.reply("+OK logged in")
		}
		return ss.reply("-ERR invalid credentials")
	}

	if !ss.authenticated {
		return ss.reply("-ERR not authenticated")
	}

	switch verb {
	case "STAT":
		count, size := s.stat()
		return ss.reply("+OK %d %d", count, size)

	case "RETR":
		_, msg, ok := s.message(arg)
		if !ok {
			return ss.reply("-ERR no such message")
		}
		if !ss.reply("+OK %d octets", len(msg)) {
			return false
		}
		for _, l := range splitLines(msg) {
			if strings.HasPrefix(l, ".") {
				l = "." + l
			}
			if _, err := ss.writer.WriteString(l); err != nil {
				return false
			}
		}
		return ss.reply(".")

	case "DELE":
		n, _, ok := s.message(arg)
		if !ok {
			return ss.reply("-ERR no such message")
		}
		s.mu.Lock()
		s.deleted[n] = true
		s.mu.Unlock()
		return ss.reply("+OK message %d deleted", n)
	}

	return ss.reply("-ERR unknown command")
}

func (s *POP3Server) stat() (count, size int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.cfg.Messages {
		if s.deleted[i+1] {
			continue
		}
		count++
		size += len(m)
	}
	return count, size
}

func (s *POP3Server) message(arg string) (int, string, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || n < 1 || n > len(s.cfg.Messages) {
		return 0, "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleted[n] {
		return 0, "", false
	}
	return n, s.cfg.Messages[n-1], true
}

func (s *POP3Server) challenge() string {
	open := strings.IndexByte(s.cfg.Greeting, '<')
	end := strings.LastIndexByte(s.cfg.Greeting, '>')
	if open < 0 || end < open {
		return ""
	}
	return s.cfg.Greeting[open : end+1]
}

func apopDigest(challenge, password string) string {
	sum := md5.Sum([]byte(challenge + password))
	return hex.EncodeToString(sum[:])
}

// splitLines splits msg into CRLF-terminated wire lines.
func splitLines(msg string) []string {
	msg = strings.ReplaceAll(msg, "\r\n", "\n")
	msg = strings.TrimSuffix(msg, "\n")
	if msg == "" {
		return nil
	}
	lines := strings.Split(msg, "\n")
	for i, l := range lines {
		lines[i] = l + "\r\n"
	}
	return lines
}
