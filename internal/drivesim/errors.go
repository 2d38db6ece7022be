package drivesim

import "errors"

var (
	// ErrInvalidConfig is returned when a drive cannot be simulated as configured.
	ErrInvalidConfig = errors.New("invalid drive configuration")
	// ErrUnexpectedStatus is returned when the service answers with an unexpected HTTP status.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrVerification is returned when the server state does not match the drive.
	ErrVerification = errors.New("verification failed")
)
