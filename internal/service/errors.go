package service

import (
	"errors"
	"fmt"

	"github.com/teresa-solution/agency-hub-service/internal/store"
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrUnauthenticated      = errors.New("unauthenticated")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrForbidden            = errors.New("forbidden")
	ErrRateLimited          = errors.New("rate limited")
	ErrDeadlinePassed       = errors.New("deadline passed")
	ErrAlreadySubmitted     = errors.New("already submitted")
	ErrConfirmationRequired = errors.New("confirmation required")
)

// ConfirmationWord must be typed to delete an agency that still owns data
const ConfirmationWord = "EXCLUIR"

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// fromStore converts store sentinels into service errors, leaving anything
// else untouched
func fromStore(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, store.ErrConflict):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case errors.Is(err, store.ErrReferenced):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func isForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

func isConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
