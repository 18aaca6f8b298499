package portfolio

import (
	"errors"
	"fmt"
)

var (
	ErrIndexOutOfRange      = errors.New("transaction index out of range")
	ErrConfirmationRequired = errors.New("reset requires explicit confirmation")
)

// ValidationError reports a rejected field on a submitted or edited transaction.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func indexError(index, length int) error {
	return fmt.Errorf("%w: index %d, log has %d entries", ErrIndexOutOfRange, index, length)
}
