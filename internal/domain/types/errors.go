package types

import "errors"

// Sentinel errors shared by the service and its adapters.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotRunning   = errors.New("service not running")
)
