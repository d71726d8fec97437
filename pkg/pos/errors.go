package pos

import "errors"

// Session-level error values.
var (
	ErrInvalidSessionConfig = errors.New("invalid session config")
	ErrInvalidMode          = errors.New("invalid payment mode")
	ErrSessionClosed        = errors.New("session closed")
	ErrSessionNotFound      = errors.New("session not found")
)
