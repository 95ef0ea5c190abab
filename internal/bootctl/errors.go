package bootctl

import (
	"errors"
	"fmt"
)

// Kind classifies a session failure.
type Kind int

const (
	// KindTimeout means no matching reply arrived in time.
	KindTimeout Kind = iota + 1
	// KindRejected means the device refused the command (rejected, BAD packet).
	KindRejected
	// KindFailed means the device accepted the command but could not carry it out.
	KindFailed
	// KindPrecondition means the command was refused before anything was sent.
	KindPrecondition
	// KindIdentityUnavailable means a command needing the device identity
	// could not get it.
	KindIdentityUnavailable
	// KindUnknownResponse means a reply matched the family but not any known status.
	KindUnknownResponse
	// KindTransport means the port could not send.
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "Timeout"
	case KindRejected:
		return "Rejected"
	case KindFailed:
		return "Failed"
	case KindPrecondition:
		return "Precondition"
	case KindIdentityUnavailable:
		return "Identity Unavailable"
	case KindUnknownResponse:
		return "Unknown Response"
	case KindTransport:
		return "Transport"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is returned by every failing Session operation.
type Error struct {
	Op      string // Operation name, e.g. "activate bank"
	Kind    Kind
	Message string // Human-readable reason
	Err     error  // Underlying error (if any)
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the operation may succeed: true for
// a missing reply or an explicit rejection only.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindRejected:
		return true
	}
	return false
}

// IsKind reports whether err is a session *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
