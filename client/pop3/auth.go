package pop3

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/emersion/go-sasl"

	"github.com/migadu/popfetch/pkg/metrics"
)

var errAPOPRejected = errors.New("APOP rejected")

// POP3Dialect implements Dialect for RFC 1939 servers with the STLS (RFC
// 2595) and AUTH (RFC 5034) extensions.
type POP3Dialect struct{}

func (POP3Dialect) Name() string { return "pop3" }

// Challenge returns the <...@...> timestamp of an APOP-capable greeting.
func (POP3Dialect) Challenge(greeting string) string {
	return ExtractChallenge(greeting)
}

// ExtractChallenge returns the first angle-bracketed token of a greeting,
// brackets included, when it contains an '@' after its first character.
func ExtractChallenge(greeting string) string {
	open := strings.IndexByte(greeting, '<')
	if open < 0 {
		return ""
	}
	token := greeting[open+1:]
	if end := strings.IndexByte(token, '>'); end >= 0 {
		token = token[:end]
	}
	if strings.IndexByte(token, '@') < 1 {
		return ""
	}
	return "<" + token + ">"
}

// APOPDigest returns the hex MD5 of challenge followed by password.
func APOPDigest(challenge, password string) string {
	sum := md5.Sum([]byte(challenge + password))
	return hex.EncodeToString(sum[:])
}

func (POP3Dialect) StartTLS(ctx context.Context, f Framer) error {
	if _, ok := f.Call("STLS", false); !ok {
		return fmt.Errorf("STLS rejected: %q", f.LastReply())
	}
	return f.UpgradeTLS(ctx)
}

// Authorize tries APOP first when the greeting carried a challenge. A
// rejected APOP falls back to USER/PASS, or AUTH PLAIN when configured.
func (d POP3Dialect) Authorize(ctx context.Context, f Framer, creds Credentials) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if creds.Challenge != "" {
		err := d.apop(f, creds)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if creds.SASLPlain {
		return d.authPlain(f, creds)
	}
	return d.userPass(f, creds)
}

func (POP3Dialect) apop(f Framer, creds Credentials) error {
	_, ok := f.Call(fmt.Sprintf("APOP %s %s", creds.Username, APOPDigest(creds.Challenge, creds.Password)), false)
	metrics.AuthenticationAttempts.WithLabelValues("apop", authResult(ok)).Inc()
	if !ok {
		return errAPOPRejected
	}
	return nil
}

func (POP3Dialect) userPass(f Framer, creds Credentials) error {
	// A rejected USER still gets a PASS; the PASS reply decides.
	f.Call("USER "+creds.Username, false)

	_, ok := f.Call("PASS "+creds.Password, false)
	metrics.AuthenticationAttempts.WithLabelValues("user", authResult(ok)).Inc()
	if !ok {
		return &LoginError{User: creds.Username, Reply: f.LastReply()}
	}
	return nil
}

func (POP3Dialect) authPlain(f Framer, creds Credentials) error {
	mech, ir, err := sasl.NewPlainClient("", creds.Username, creds.Password).Start()
	if err != nil {
		return &LoginError{User: creds.Username, Reply: err.Error()}
	}

	_, ok := f.Call(fmt.Sprintf("AUTH %s %s", mech, base64.StdEncoding.EncodeToString(ir)), false)
	metrics.AuthenticationAttempts.WithLabelValues("plain", authResult(ok)).Inc()
	if !ok {
		return &LoginError{User: creds.Username, Reply: f.LastReply()}
	}
	return nil
}

func (POP3Dialect) Logout(f Framer) {
	f.Send("QUIT")
}

func authResult(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
