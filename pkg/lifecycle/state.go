// Package lifecycle owns the client-side auth session state machine. A
// single goroutine applies every state change, so readers always observe a
// consistent snapshot and redirects fire exactly once per settled change.
package lifecycle

import "painel-auth/pkg/identity"

// State is the current phase of the session lifecycle.
type State int

const (
	// StateUninitialized means Start has not run yet.
	StateUninitialized State = iota
	// StateChecking means the initial session restore is in flight.
	StateChecking
	// StateAuthenticated means a session is present.
	StateAuthenticated
	// StateUnauthenticated means no session is present.
	StateUnauthenticated
	// StateMutating means a sign-in, sign-up or sign-out is in flight.
	StateMutating
)

func (s State) String() string {
	switch s {
	case StateChecking:
		return "checking"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateMutating:
		return "mutating"
	default:
		return "uninitialized"
	}
}

// Snapshot is a point-in-time view of the lifecycle.
//
// IsInitialized flips to true exactly once, when the first session restore
// settles, and never flips back. IsLoading is true while any lifecycle
// operation is in flight.
type Snapshot struct {
	State         State
	Session       *identity.Session
	IsInitialized bool
	IsLoading     bool
}

// Authenticated reports whether the snapshot carries a live session.
func (s Snapshot) Authenticated() bool {
	return s.State == StateAuthenticated && s.Session != nil
}
