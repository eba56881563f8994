package pop3

import (
	"bufio"
	"context"
	"crypto/tls"
	"net"
	"time"
)

// Dialer opens the underlying stream. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// transport is the byte stream under the command channel. It can be
// upgraded to TLS in place.
type transport struct {
	conn        net.Conn
	reader      *bufio.Reader
	writer      *bufio.Writer
	readTimeout time.Duration
}

func newTransport(conn net.Conn, readTimeout time.Duration) *transport {
	return &transport{
		conn:        conn,
		reader:      bufio.NewReader(conn),
		writer:      bufio.NewWriter(conn),
		readTimeout: readTimeout,
	}
}

// dial connects to addr, wrapping the stream in TLS immediately when
// tlsConfig is non-nil.
func dial(ctx context.Context, d Dialer, addr string, tlsConfig *tls.Config, readTimeout time.Duration) (*transport, error) {
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	if tlsConfig != nil {
		tlsConn := tls.Client(conn, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, &handshakeError{err: err}
		}
		conn = tlsConn
	}

	return newTransport(conn, readTimeout), nil
}

// handshakeError marks a TLS failure on a stream that was dialed
// successfully. Dialing again does not fix it.
type handshakeError struct {
	err error
}

func (e *handshakeError) Error() string { return "tls handshake: " + e.err.Error() }

func (e *handshakeError) Unwrap() error { return e.err }

// readLine returns one line including its terminator.
func (t *transport) readLine() (string, error) {
	if t.readTimeout > 0 {
		if err := t.conn.SetReadDeadline(time.Now().Add(t.readTimeout)); err != nil {
			return "", err
		}
	}
	return t.reader.ReadString('\n')
}

func (t *transport) writeLine(line string) error {
	if _, err := t.writer.WriteString(line + "\r\n"); err != nil {
		return err
	}
	return t.writer.Flush()
}

// setDeadline bounds the next reads and writes; the zero time clears it.
func (t *transport) setDeadline(deadline time.Time) error {
	return t.conn.SetDeadline(deadline)
}

// upgradeTLS performs a client handshake over the existing stream and
// replaces the buffered reader and writer.
func (t *transport) upgradeTLS(ctx context.Context, config *tls.Config) error {
	tlsConn := tls.Client(t.conn, config)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return err
	}
	t.conn = tlsConn
	t.reader = bufio.NewReader(tlsConn)
	t.writer = bufio.NewWriter(tlsConn)
	return nil
}

func (t *transport) close() error {
	return t.conn.Close()
}
