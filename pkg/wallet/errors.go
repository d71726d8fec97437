package wallet

import "errors"

// Action-level error values.
var (
	ErrInvalidSendInput     = errors.New("invalid send input")
	ErrInvalidServiceConfig = errors.New("invalid wallet service config")
)
