// Package appeal implements the driver appeal state machine attached to road
// events: none -> appealed -> validated | rejected.
package appeal

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/logtech/roadsafe/internal/domain/model"
)

// Machine validates appeal transitions. It never mutates its input; callers
// persist the returned event.
type Machine struct {
	strict bool
}

// New creates an appeal state machine.
func New(opts ...Option) *Machine {
	m := &Machine{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Strict reports whether terminal transitions panic.
func (m *Machine) Strict() bool { return m.strict }

// Submit records the driver's statement and seals it with an integrity hash.
func (m *Machine) Submit(ev model.RoadEvent, statement string) (model.RoadEvent, error) {
	statement = strings.TrimSpace(statement)
	if ev.Kind.Marker() {
		return ev, ErrNotAppealable
	}
	switch ev.Status {
	case model.AppealNone, "":
	case model.AppealAppealed:
		return ev, ErrAlreadyAppealed
	default:
		return ev, ErrTerminalState
	}
	if statement == "" {
		return ev, ErrEmptyStatement
	}
	ev.VocalDefense = statement
	ev.IntegrityHash = IntegrityHash(ev.ID, statement, ev.Timestamp)
	ev.Status = model.AppealAppealed
	return ev, nil
}

// Resolve applies a reviewer decision to an appealed event.
func (m *Machine) Resolve(ev model.RoadEvent, decision model.AppealStatus) (model.RoadEvent, error) {
	if !decision.Terminal() {
		return ev, ErrInvalidDecision
	}
	switch {
	case ev.Status.Terminal():
		if m.strict {
			panic(fmt.Sprintf("appeal: event %d already %s, cannot move to %s", ev.ID, ev.Status, decision))
		}
		return ev, ErrTerminalState
	case ev.Status != model.AppealAppealed:
		return ev, ErrNotAppealed
	}
	ev.Status = decision
	return ev, nil
}

type sealed struct {
	EventID   int64  `json:"event_id"`
	Statement string `json:"statement"`
	Timestamp int64  `json:"timestamp"`
}

// IntegrityHash returns the hex SHA-256 of the canonical JSON encoding of
// the appeal content.
func IntegrityHash(eventID int64, statement string, timestamp int64) string {
	// Marshalling a struct of scalars cannot fail.
	b, _ := json.Marshal(sealed{EventID: eventID, Statement: statement, Timestamp: timestamp})
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Verify recomputes the integrity hash of an appealed event.
func Verify(ev model.RoadEvent) bool {
	if ev.IntegrityHash == "" {
		return false
	}
	return IntegrityHash(ev.ID, ev.VocalDefense, ev.Timestamp) == ev.IntegrityHash
}
