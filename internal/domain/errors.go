package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrUnauthenticated  = errors.New("you must be logged in to access this route")
	ErrProfileRequired  = errors.New("a profile is required before booking")
	ErrForbidden        = errors.New("forbidden")
	ErrPropertyNotFound = fmt.Errorf("property %w", ErrNotFound)
	ErrBookingNotFound  = fmt.Errorf("booking %w", ErrNotFound)
	ErrInvalidRange     = errors.New("check-out must be at least one night after check-in")
	ErrInvalidPrice     = errors.New("nightly price must be positive")
	ErrBookingConflict  = errors.New("dates overlap a confirmed booking")
	ErrReviewNotFound   = fmt.Errorf("review %w", ErrNotFound)
	ErrInvalidRating    = fmt.Errorf("rating must be between %d and %d", MinRating, MaxRating)
	ErrDuplicateReview  = errors.New("you have already reviewed this property")
	ErrOwnProperty      = fmt.Errorf("%w: owners cannot review their own property", ErrForbidden)
)

var passthrough = []error{
	ErrNotFound, ErrUnauthenticated, ErrProfileRequired, ErrForbidden,
	ErrInvalidRange, ErrInvalidPrice, ErrBookingConflict,
	ErrInvalidRating, ErrDuplicateReview,
}

// PersistenceError wraps any failure coming from a store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return "persistence: " + e.Op + ": " + e.Err.Error() }

func (e *PersistenceError) Unwrap() error { return e.Err }

// Persist wraps err as a PersistenceError unless it is nil or already a
// domain sentinel the caller should see as-is.
func Persist(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, target := range passthrough {
		if errors.Is(err, target) {
			return err
		}
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// IsRetryable reports whether the caller may retry with different dates.
func IsRetryable(err error) bool { return errors.Is(err, ErrBookingConflict) }
