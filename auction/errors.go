package auction

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure so presentation code can decide how to
// display it without string matching.
type ErrorKind string

const (
	// KindTransport covers connect, ping and generic network failures. The
	// connection layer retries these automatically; nothing else does.
	KindTransport ErrorKind = "transport"
	// KindFreshnessConflict means an update referred to a resource the
	// reconciler cannot yet fully describe. Resolved internally by a forced
	// refetch and never surfaced to the user.
	KindFreshnessConflict ErrorKind = "freshness_conflict"
	// KindTerminalAuction means the auction the user is interacting with has
	// ended or been cancelled. Surfaced once, then the snapshot is dropped.
	KindTerminalAuction ErrorKind = "terminal_auction"
	// KindBidRejected means the server refused the amount, typically because
	// someone else's bid was accepted first. Never retried automatically.
	KindBidRejected ErrorKind = "bid_rejected"
	// KindValidation means a local pre-flight check failed before any
	// network call was made.
	KindValidation ErrorKind = "validation"
	// KindAuthRequired means the caller is not authenticated. No network
	// call is attempted.
	KindAuthRequired ErrorKind = "auth_required"
)

// Error is a classified failure from the auction core.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError builds a classified error.
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the classification from err, or KindTransport when the
// error carries no classification (unknown failures are treated as network
// trouble, the only kind that is safe to retry).
func KindOf(err error) ErrorKind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindTransport
}

// IsKind reports whether err carries the given classification.
func IsKind(err error, kind ErrorKind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}
