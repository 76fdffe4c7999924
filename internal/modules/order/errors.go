package order

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrUnauthorized  = errors.New("not authorized for this order")
	ErrAlreadyRated  = errors.New("order already rated by this party")

	// ErrStatusConflict is returned by Repository.UpdateStatus when the stored
	// status no longer matches the expected one.
	ErrStatusConflict = errors.New("order status changed concurrently")

	// ErrDuplicateNumber is returned by Repository.CreateOrder when the
	// generated order number is already taken.
	ErrDuplicateNumber = errors.New("order number already exists")
)

// ValidationError reports malformed input on a single field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// UnavailableError reports a line whose product cannot fill the order.
// Reason is the catalog's message and is shown to the user unchanged.
type UnavailableError struct {
	ProductID uuid.UUID
	Reason    string
}

func (e *UnavailableError) Error() string { return e.Reason }

// InvalidTransitionError reports an edge missing from the state table.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}

// StorageError wraps a persistence failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

// storage wraps err as a StorageError unless it is already one of the
// package's classified errors.
func storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if isClassified(err) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func isClassified(err error) bool {
	var (
		ve *ValidationError
		ue *UnavailableError
		te *InvalidTransitionError
		se *StorageError
	)
	return errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrAlreadyRated) ||
		errors.As(err, &ve) ||
		errors.As(err, &ue) ||
		errors.As(err, &te) ||
		errors.As(err, &se)
}
