// Package merr defines the error taxonomy which the pool layers
// share. Callers test with errors.Is; the rpc layer carries the
// messages over the wire and maps them back with FromMessage.
package merr

import (
	"errors"
	"strings"

	pkgerr "github.com/pkg/errors"
)

var (
	// ErrInvalidArgument is used when an argument fails validation,
	// including handles and ids that were never issued.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is used when no object with the given id exists.
	ErrNotFound = errors.New("object not found")

	// ErrAlreadyCommitted is used when an operation requires an
	// uncommitted mblock but the mblock is committed.
	ErrAlreadyCommitted = errors.New("mblock already committed")

	// ErrNotReady is used when an operation requires a committed
	// mblock but the mblock is still being written.
	ErrNotReady = errors.New("mblock not committed")

	// ErrBusy is used when other handles still reference the object
	// or a conflicting operation is in flight.
	ErrBusy = errors.New("object busy")

	// ErrNoSpace is used when the media class has no free slots left.
	ErrNoSpace = errors.New("no space left in media class")

	// ErrDevice is used when device io fails underneath the pool.
	ErrDevice = errors.New("device io failed")

	// ErrExists is used when creating a pool which already exists.
	ErrExists = errors.New("pool already exists")

	// ErrInvariant is used when internal bookkeeping disagrees with
	// itself. It always indicates a bug.
	ErrInvariant = errors.New("internal invariant violated")
)

var taxonomy = []error{
	ErrInvalidArgument,
	ErrNotFound,
	ErrAlreadyCommitted,
	ErrNotReady,
	ErrBusy,
	ErrNoSpace,
	ErrDevice,
	ErrExists,
	ErrInvariant,
}

// FromMessage maps an error message back to its sentinel so that
// errors.Is keeps working across the rpc boundary. Context added
// by wrapping is preserved.
func FromMessage(msg string) error {
	if msg == "" {
		return nil
	}

	for _, sentinel := range taxonomy {
		if msg == sentinel.Error() {
			return sentinel
		}
		if suffix := ": " + sentinel.Error(); strings.HasSuffix(msg, suffix) {
			return pkgerr.Wrap(sentinel, strings.TrimSuffix(msg, suffix))
		}
	}
	return errors.New(msg)
}
