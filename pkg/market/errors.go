package market

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Error taxonomy shared by every engine. The transport layer maps these to
// status codes; callers match them with errors.Is.
var (
	// ErrValidation means the input was malformed or out of range. Safe to retry once corrected.
	ErrValidation = errors.New("validation failed")

	// ErrAuthorization means the caller lacks the role required for the transition.
	ErrAuthorization = errors.New("not authorized")

	// ErrInvalidState means the entity's current status does not permit the transition.
	ErrInvalidState = errors.New("invalid state")

	// ErrConflict means the caller lost a race or collided with an existing entity.
	ErrConflict = errors.New("conflict")

	// ErrNotFound means the referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrSlotUnavailable means a listing has no open slot left to reserve.
	ErrSlotUnavailable = errors.New("no slot available")

	// ErrReservationExpired means a slot reservation was released before it was committed.
	ErrReservationExpired = errors.New("reservation expired")
)

// Validationf returns an error wrapping ErrValidation.
func Validationf(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, a...))
}

// Authorizationf returns an error wrapping ErrAuthorization.
func Authorizationf(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrAuthorization, fmt.Sprintf(format, a...))
}

// InvalidStatef returns an error wrapping ErrInvalidState.
func InvalidStatef(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, a...))
}

// Conflictf returns an error wrapping ErrConflict.
func Conflictf(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, a...))
}

// NotFoundf returns an error wrapping ErrNotFound.
func NotFoundf(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, a...))
}

// IsNotFound returns true if the error is a not-found error, either from the
// taxonomy or a raw redis.Nil.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, redis.Nil)
}
