package consts

import "errors"

var (
	ErrNotConnected     = errors.New("not connected")
	ErrCommandRejected  = errors.New("command rejected by server")
	ErrMalformedMessage = errors.New("malformed message")
	ErrMissingFrom      = errors.New("missing From header")
)
