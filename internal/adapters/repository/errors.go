package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound = errors.New("event not found")
	ErrConflict = errors.New("event appeal state conflict")
	ErrClosed   = errors.New("store closed")
)
