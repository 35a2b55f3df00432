package session

import "errors"

// Domain errors surfaced by the session controller. The HTTP/WS boundary
// maps these to response codes; only capability denial and the single
// persistence retry are recoverable locally.
var (
	// ErrCapabilityDenied means the candidate refused camera/microphone
	// access. No attempt exists yet; granting access may be retried.
	ErrCapabilityDenied = errors.New("camera and microphone access denied")

	// ErrInvalidTransition means the requested lifecycle operation is not
	// legal from the current state.
	ErrInvalidTransition = errors.New("operation not valid in current session state")

	// ErrSessionClosed means the session is submitting or terminal and no
	// longer accepts answer or navigation input.
	ErrSessionClosed = errors.New("session no longer accepts input")

	// ErrInteractionBlocked means fullscreen was exited; input is refused
	// until it is restored. The countdown keeps running.
	ErrInteractionBlocked = errors.New("interaction blocked until fullscreen is restored")

	// ErrInvalidPosition means the question position is outside the
	// delivered set.
	ErrInvalidPosition = errors.New("question position out of range")

	// ErrInvalidOption means the chosen option index is outside the
	// delivered question's option list.
	ErrInvalidOption = errors.New("option index out of range")

	// ErrInvalidDuration means the test definition carries a non-positive
	// duration and cannot run a countdown.
	ErrInvalidDuration = errors.New("test duration must be at least one minute")

	// ErrPersistence means an attempt write failed after its bounded retry.
	// The computed in-memory result is retained for RetryCompletion.
	ErrPersistence = errors.New("attempt persistence failed")
)
