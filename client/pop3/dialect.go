package pop3

import "context"

// Credentials are handed to a Dialect during authorization.
type Credentials struct {
	Username  string
	Password  string
	Challenge string // APOP timestamp from the greeting, brackets included
	SASLPlain bool
}

// Dialect holds the protocol-specific steps of a session: reading the
// greeting, upgrading to TLS, authorizing and logging out. The Client owns
// the connection and state; a Dialect only drives the Framer it is given.
type Dialect interface {
	Name() string
	// Challenge extracts the authentication challenge from the greeting,
	// or returns "" when there is none.
	Challenge(greeting string) string
	StartTLS(ctx context.Context, f Framer) error
	// Authorize returns *LoginError when the server rejects the
	// credentials.
	Authorize(ctx context.Context, f Framer, creds Credentials) error
	// Logout must not wait for a reply.
	Logout(f Framer)
}
