package services

import (
	"errors"
	"fmt"

	"github.com/dealroom/backend/internal/repositories"
)

var (
	// ErrInvalidTransition marks an operation whose precondition does not hold.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrValidation marks a malformed request payload.
	ErrValidation = errors.New("validation failed")
)

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string {
	return e.Entity + " not found"
}

// lookup converts a repository miss into a NotFoundError for entity.
func lookup(entity string, err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return &NotFoundError{Entity: entity}
	}
	return err
}

func invalidTransition(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransition, fmt.Sprintf(format, args...))
}

func validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// IsNotFound reports whether err carries a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func isMissing(err error) bool {
	return errors.Is(err, repositories.ErrNotFound)
}
