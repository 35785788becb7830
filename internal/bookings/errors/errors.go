package errors

import (
	"errors"
	"fmt"

	"peerpair/pkg/model"
)

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	// ErrTokenAlreadySet means the tracking token is already attached to
	// another booking.
	ErrTokenAlreadySet = errors.New("gateway tracking token already in use")

	ErrDuplicateInitiationKey = errors.New("initiation key already used by this party")

	ErrIllegalTransition = errors.New("transition not allowed by the booking state machine")
)

// ConflictError is returned when a guarded transition finds the booking in a
// state other than the one it expected. Current is the booking as re-read
// after the failed update.
type ConflictError struct {
	Current *model.Booking
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("booking %s is %s (token set: %t)", e.Current.ID, e.Current.Status, e.Current.HasToken())
}

func AsConflict(err error) (*ConflictError, bool) {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return conflict, true
	}
	return nil, false
}
