package pop3

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/migadu/popfetch/helpers"
	"github.com/migadu/popfetch/pkg/metrics"
)

// Framer is the command channel a Dialect drives.
type Framer interface {
	// Send writes one command line. It reports whether the write succeeded.
	Send(command string) bool
	// Receive reads a reply. ok is false for anything but +OK. In multiline
	// mode the dot-unstuffed payload up to the terminating "." is returned.
	Receive(multiline bool) (reply string, ok bool)
	// Call sends command and reads its reply. It returns false without
	// reading when the send failed.
	Call(command string, multiline bool) (reply string, ok bool)
	// LastReply returns the most recent status line as received.
	LastReply() string
	// UpgradeTLS starts a TLS handshake over the current stream.
	UpgradeTLS(ctx context.Context) error
}

// channel implements Framer over a transport. The first I/O error is kept
// and every later command fails immediately.
type channel struct {
	t         *transport
	tlsConfig *tls.Config
	log       *sessionLog
	lastReply string
	err       error
}

func newChannel(t *transport, tlsConfig *tls.Config, log *sessionLog) *channel {
	return &channel{t: t, tlsConfig: tlsConfig, log: log}
}

func (ch *channel) Send(command string) bool {
	if ch.err != nil {
		return false
	}
	ch.log.DebugLog("C: %s", helpers.MaskSensitive(command))
	if err := ch.t.writeLine(command); err != nil {
		ch.fail(fmt.Errorf("write: %w", err))
		return false
	}
	return true
}

func (ch *channel) Receive(multiline bool) (string, bool) {
	if ch.err != nil {
		return "", false
	}

	line, err := ch.t.readLine()
	if err != nil {
		ch.fail(fmt.Errorf("read: %w", err))
		return "", false
	}

	line = strings.TrimSpace(line)
	ch.lastReply = line
	ch.log.DebugLog("S: %s", line)

	status, message, _ := strings.Cut(line, " ")
	if status != "+OK" {
		return "", false
	}
	if !multiline {
		return message, true
	}

	var body strings.Builder
	for {
		line, err := ch.t.readLine()
		if err != nil {
			ch.fail(fmt.Errorf("read: %w", err))
			return "", false
		}
		if strings.TrimRight(line, "\r\n") == "." {
			break
		}
		if strings.HasPrefix(line, ".") {
			line = line[1:]
		}
		body.WriteString(line)
	}

	metrics.BytesReceived.Add(float64(body.Len()))
	ch.log.DebugLog("S: <%d bytes>", body.Len())
	return body.String(), true
}

func (ch *channel) Call(command string, multiline bool) (string, bool) {
	name := commandName(command)
	start := time.Now()

	if !ch.Send(command) {
		metrics.CommandsTotal.WithLabelValues(name, metrics.StatusLabel(false, false)).Inc()
		return "", false
	}
	reply, ok := ch.Receive(multiline)

	metrics.CommandsTotal.WithLabelValues(name, metrics.StatusLabel(true, ok)).Inc()
	metrics.CommandDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	return reply, ok
}

func (ch *channel) LastReply() string { return ch.lastReply }

func (ch *channel) UpgradeTLS(ctx context.Context) error {
	if ch.err != nil {
		return ch.err
	}
	if err := ch.t.upgradeTLS(ctx, ch.tlsConfig); err != nil {
		ch.fail(err)
		return err
	}
	return nil
}

func (ch *channel) fail(err error) {
	if ch.err == nil {
		ch.err = err
		ch.log.WarnLog("connection broken: %v", err)
	}
}

func (ch *channel) close() error {
	return ch.t.close()
}

// commandName returns the upper-cased verb of a command line.
func commandName(command string) string {
	verb, _, _ := strings.Cut(command, " ")
	return strings.ToUpper(verb)
}
