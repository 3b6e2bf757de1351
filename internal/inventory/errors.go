package inventory

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var (
	ErrProductNotFound = errors.New("inventory: product not found")
	ErrNotConfirmed    = errors.New("inventory: operation was not confirmed")

	errIDExhausted = errors.New("inventory: could not generate a unique product id")
)

// ValidationError reports form input that cannot be turned into a record.
// Nothing is written when it is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// fromValidator converts go-playground validator errors, keeping the first failure.
func fromValidator(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("inventory: input validation failed: %w", err)
	}
	fe := verrs[0]
	msg := fmt.Sprintf("failed on the '%s' rule", fe.Tag())
	if fe.Param() != "" {
		msg = fmt.Sprintf("failed on the '%s=%s' rule", fe.Tag(), fe.Param())
	}
	return newValidationError(fe.Field(), msg)
}
