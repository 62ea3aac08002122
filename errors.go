package evcore

import "errors"

// Precondition-violation errors.
//
// These are returned, never panicked, when a caller breaks an explicit
// contract (wrong goroutine, inactive loop). They are programming errors
// the caller is expected to check for, not transient conditions.
var (
	// ErrEventLoopInactive is returned when an operation that requires a
	// started EventLoop (Run, ProcessEvents, or a Blocking Signal dispatch
	// into it) is attempted while the loop is stopped.
	ErrEventLoopInactive = errors.New("evcore: event loop is not started")

	// ErrEventLoopWrongThread is returned when Run or ProcessEvents is
	// called from a goroutine other than the loop's owner.
	ErrEventLoopWrongThread = errors.New("evcore: event loop method called from the wrong goroutine")
)

// ErrBindingCycle is returned by Bind or, during propagation, by the
// Assign/Bind call that triggered it, when installing a binding would
// create a dependency cycle. Not fatal: the property retains its previous
// value and the binding is discarded.
var ErrBindingCycle = errors.New("evcore: property binding rejected, dependency cycle detected")

// ErrAlreadyDisconnected describes a Disconnect call for a connection id
// that is already gone. Disconnect itself reports this as a bool rather
// than an error; the sentinel exists so the signal's logger can name the
// condition precisely.
var ErrAlreadyDisconnected = errors.New("evcore: connection already disconnected")
