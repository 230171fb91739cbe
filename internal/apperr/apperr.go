// Package apperr defines the error kinds surfaced by session lifecycle operations.
//
// Callers classify errors with errors.Is against the kind sentinels. Every
// returned error wraps exactly one kind.
package apperr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds.
var (
	ErrValidation           = errors.New("validation failed")
	ErrUnauthenticated      = errors.New("no authenticated owner")
	ErrConstraintViolation  = errors.New("constraint violation")
	ErrNotFound             = errors.New("not found")
	ErrTransientPersistence = errors.New("persistence unavailable")
)

// Validation errors raised before any remote call.
var (
	ErrAlreadyActive    = fmt.Errorf("%w: a session is already active", ErrValidation)
	ErrNoSession        = fmt.Errorf("%w: no open session", ErrValidation)
	ErrBusy             = fmt.Errorf("%w: another operation is in progress", ErrValidation)
	ErrAbandonedPending = fmt.Errorf("%w: an abandoned session is waiting for recover or discard", ErrValidation)
	ErrNoAbandoned      = fmt.Errorf("%w: no abandoned session is pending", ErrValidation)
)

// Constraint returns a ConstraintViolation carrying msg.
func Constraint(msg string) error {
	return errors.Wrap(ErrConstraintViolation, msg)
}

// Transient wraps a store failure that is unrelated to business rules.
func Transient(err error, msg string) error {
	return errors.Wrap(fmt.Errorf("%w: %v", ErrTransientPersistence, err), msg)
}

// Kind returns the kind sentinel err belongs to, or nil if it is unclassified.
func Kind(err error) error {
	for _, k := range []error{ErrValidation, ErrUnauthenticated, ErrConstraintViolation, ErrNotFound, ErrTransientPersistence} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
