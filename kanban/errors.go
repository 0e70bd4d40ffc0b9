package kanban

import (
	"errors"
	"fmt"

	"github.com/emrecunlu/trello-clone/store"
)

// ValidationError is returned when an input fails its shape or length
// constraints. Nothing is written.
type ValidationError struct {
	Field  string
	Reason string
	Min    int
	Max    int
}

func (e *ValidationError) Error() string {
	if e.Max > 0 {
		return fmt.Sprintf("invalid %s: %s (%d-%d)", e.Field, e.Reason, e.Min, e.Max)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

type AuthError struct{}

func (*AuthError) Error() string { return "no authenticated user" }

// ErrAuth is returned by every operation called without an identity.
var ErrAuth error = &AuthError{}

// NotFoundError covers both a missing entity and one owned by another user.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string { return e.Entity + " not found: " + e.ID }

// TransactionError wraps a failure of the underlying atomic commit.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *TransactionError) Unwrap() error { return e.Err }

// Constraint reports whether the store rejected the write on a constraint.
func (e *TransactionError) Constraint() bool { return store.ConstraintViolation(e.Err) }

const (
	entityBoard = "board"
	entityTask  = "task"
)

func notFound(entity, id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return &NotFoundError{Entity: entity, ID: id}
	}
	return err
}

// classify leaves taxonomy errors alone and wraps everything else as a
// TransactionError for op.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	var nf *NotFoundError
	var ae *AuthError
	var te *TransactionError
	if errors.As(err, &ve) || errors.As(err, &nf) || errors.As(err, &ae) || errors.As(err, &te) {
		return err
	}
	return &TransactionError{Op: op, Err: err}
}
