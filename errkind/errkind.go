// Package errkind classifies errors returned by the catalog, the build
// ledger and the upstream feed so callers can map them onto responses.
package errkind

import (
	"errors"
	"fmt"
)

// Kind is a string code so it logs and serializes as-is.
type Kind string

const (
	// Unknown is reported for errors that were never classified.
	Unknown Kind = "UNKNOWN"

	// Validation means a field was missing or malformed. Nothing was written.
	Validation Kind = "VALIDATION"

	// Conflict means a uniqueness constraint rejected an insert that has no
	// update fallback, such as a resubmitted build id.
	Conflict Kind = "CONFLICT"

	// NotFound means the repository, package or build does not exist.
	NotFound Kind = "NOT_FOUND"

	// LimitExceeded means a page size above the allowed maximum.
	LimitExceeded Kind = "LIMIT_EXCEEDED"

	// FeedUnavailable means the upstream descriptor or artifact could not be fetched.
	FeedUnavailable Kind = "FEED_UNAVAILABLE"

	// FeedMalformed means the upstream documents could not be decoded.
	FeedMalformed Kind = "FEED_MALFORMED"

	// StoreUnavailable means the database could not serve the operation.
	StoreUnavailable Kind = "STORE_UNAVAILABLE"

	// NotificationFailure means a webhook delivery failed. Only ever logged.
	NotificationFailure Kind = "NOTIFICATION_FAILURE"
)

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind with a formatted message.
func New(kind Kind, op string, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches a kind to err. A nil err stays nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost classified error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
