package appeal

import "errors"

// Sentinel errors for appeal transitions.
var (
	ErrEmptyStatement  = errors.New("cannot submit empty appeal")
	ErrNotAppealable   = errors.New("event kind cannot be appealed")
	ErrAlreadyAppealed = errors.New("event already appealed")
	ErrNotAppealed     = errors.New("event has no pending appeal")
	ErrTerminalState   = errors.New("appeal already resolved")
	ErrInvalidDecision = errors.New("decision must be validated or rejected")
)
