// Package testutils provides testing utilities for the popfetch project.
//
// Key components:
//   - POP3Server: a scripted in-process POP3 server on a loopback port that
//     records every command it receives
//   - GenerateTLS: a throwaway self-signed certificate for STLS and
//     implicit-TLS tests
//
// Example usage:
//
//	import "github.com/migadu/popfetch/testutils"
//
//	func TestMyFunction(t *testing.T) {
//		srv := testutils.StartPOP3Server(t, testutils.POP3ServerConfig{
//			Users:    map[string]string{"john": "secret"},
//			Messages: []string{"From: a@example.com\r\n\r\nhi\r\n"},
//		})
//		// Dial srv.Host(), srv.Port() ...
//	}
package testutils
