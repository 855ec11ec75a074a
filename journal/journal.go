// Package journal records what happened on each greeter connection so tests
// and operators can inspect past exchanges.
package journal

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no events exist for a connection.
var ErrNotFound = errors.New("connection not found")

// Kind identifies the type of event being recorded.
type Kind string

const (
	KindConnectionOpened   Kind = "connection_opened"
	KindUsernameChecked    Kind = "username_checked"
	KindCredentialMismatch Kind = "credential_mismatch"
	KindPromptSent         Kind = "prompt_sent"
	KindAuthSucceeded      Kind = "auth_succeeded"
	KindBiometricAttempted Kind = "biometric_attempted"
	KindSessionStarted     Kind = "session_started"
	KindSessionCancelled   Kind = "session_cancelled"
	KindUnexpectedRequest  Kind = "unexpected_request"
	KindProtocolError      Kind = "protocol_error"
	KindConnectionClosed   Kind = "connection_closed"
)

// Event is a single journal entry.
type Event struct {
	ID        string    `json:"id"`
	ConnID    string    `json:"conn_id"`
	Kind      Kind      `json:"kind"`
	State     string    `json:"state,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists events. Implementations must be safe for concurrent use:
// the status API reads while the listener writes.
type Store interface {
	// Append adds an event to the end of its connection's history.
	Append(ev Event) error
	// List returns the events of a connection in append order.
	List(connID string) ([]Event, error)
	// Connections returns connection IDs in the order they were first seen.
	Connections() ([]string, error)
	Close() error
}
