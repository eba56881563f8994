package pop3

import "fmt"

// ServerError reports that a connection to the server could not be
// established or the server did not greet with +OK.
type ServerError struct {
	Addr string
	Err  error
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("pop3: cannot connect to %s: %v", e.Addr, e.Err)
}

func (e *ServerError) Unwrap() error { return e.Err }

// TLSError reports a failed STLS upgrade.
type TLSError struct {
	Addr string
	Err  error
}

func (e *TLSError) Error() string {
	return fmt.Sprintf("pop3: TLS upgrade with %s failed: %v", e.Addr, e.Err)
}

func (e *TLSError) Unwrap() error { return e.Err }

// LoginError reports rejected credentials.
type LoginError struct {
	User  string
	Reply string // last server reply, if any
}

func (e *LoginError) Error() string {
	if e.Reply == "" {
		return fmt.Sprintf("pop3: login failed for %s", e.User)
	}
	return fmt.Sprintf("pop3: login failed for %s: %s", e.User, e.Reply)
}

// ArgumentError reports an invalid caller-supplied value.
type ArgumentError struct {
	Name   string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("pop3: invalid %s: %s", e.Name, e.Reason)
}
