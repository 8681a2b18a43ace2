package session

import (
	"errors"
	"fmt"
)

// ErrorKind represents the category of a session failure
type ErrorKind int

const (
	// KindPreflightUnreachable means the preflight request got no response
	KindPreflightUnreachable ErrorKind = iota
	// KindPreflightRejected means the preflight body was not "Ok"
	KindPreflightRejected
	// KindPreflightUnparseable means the preflight body could not be read
	KindPreflightUnparseable
	// KindSocketUnavailable means the socket could not be opened or written
	KindSocketUnavailable
	KindAuthRejected
	KindAuthAlreadyLoggedIn
	KindPairingNoSuchUser
	KindPairingSelfPair
	KindPairingAlreadyTied
	KindFrameMalformed
	KindTransportDropped
	KindGenericRemoteFault
)

// String returns a human-readable name for the error kind
func (k ErrorKind) String() string {
	switch k {
	case KindPreflightUnreachable:
		return "Preflight Unreachable"
	case KindPreflightRejected:
		return "Preflight Rejected"
	case KindPreflightUnparseable:
		return "Preflight Unparseable"
	case KindSocketUnavailable:
		return "Socket Unavailable"
	case KindAuthRejected:
		return "Auth Rejected"
	case KindAuthAlreadyLoggedIn:
		return "Already Logged In"
	case KindPairingNoSuchUser:
		return "No Such User"
	case KindPairingSelfPair:
		return "Self Pair"
	case KindPairingAlreadyTied:
		return "Already Tied"
	case KindFrameMalformed:
		return "Frame Malformed"
	case KindTransportDropped:
		return "Transport Dropped"
	case KindGenericRemoteFault:
		return "Remote Fault"
	default:
		return fmt.Sprintf("ErrorKind(%d)", k)
	}
}

// ErrInvalidAction is returned when an action is not allowed in the current state.
var ErrInvalidAction = errors.New("action not allowed in current state")

// ErrEmptyInput is returned when a credential, subject or message is empty.
var ErrEmptyInput = errors.New("input is empty")

// ErrStopped is returned by actions sent after the machine has stopped.
var ErrStopped = errors.New("session machine stopped")

// Error is a recoverable session failure. It ends up as a failed job plus
// a log line, never as a process exit.
type Error struct {
	Kind    ErrorKind // Category of error
	Message string    // Human-readable error message
	Err     error     // Underlying error (if any)
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// IsKind reports whether err is a session Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// IsPreflightError checks if an error came from the preflight step
func IsPreflightError(err error) bool {
	return IsKind(err, KindPreflightUnreachable) ||
		IsKind(err, KindPreflightRejected) ||
		IsKind(err, KindPreflightUnparseable)
}

// IsPairingError checks if an error is a pairing refusal
func IsPairingError(err error) bool {
	return IsKind(err, KindPairingNoSuchUser) ||
		IsKind(err, KindPairingSelfPair) ||
		IsKind(err, KindPairingAlreadyTied)
}

// ShortMessage returns the line written to a job log for err.
func ShortMessage(err error) string {
	var se *Error
	if !errors.As(err, &se) {
		return err.Error()
	}

	switch se.Kind {
	case KindPreflightUnreachable:
		return "Server unreachable"
	case KindPreflightRejected:
		return "Server disapproved connection: " + se.Message
	case KindPreflightUnparseable:
		return "Unreadable server response"
	case KindSocketUnavailable:
		return "Socket unavailable"
	case KindAuthRejected:
		return "Access denied"
	case KindAuthAlreadyLoggedIn:
		return "User already logged in"
	case KindPairingNoSuchUser:
		return "No such user"
	case KindPairingSelfPair:
		return "Cannot tie with yourself"
	case KindPairingAlreadyTied:
		return "One of you is already tied"
	case KindFrameMalformed:
		return "message corrupted"
	case KindTransportDropped:
		return "connection dropped"
	case KindGenericRemoteFault:
		return "Server reported a fault"
	default:
		return se.Message
	}
}
