package keys

import (
	"errors"
	"fmt"
)

// Validation error codes. These are client-detected failures that never reach
// the platform.
const (
	CodeInvalidEmailSyntax = "INVALID_EMAIL_SYNTAX"
	CodeDuplicateRecipient = "DUPLICATE_RECIPIENT"
	CodeCapacityExceeded   = "CAPACITY_EXCEEDED"
	CodeEmptySelection     = "EMPTY_SELECTION"
	CodeQuantityOutOfRange = "QUANTITY_OUT_OF_RANGE"
)

// ValidationError is a pre-submission guard violation. It is always
// recoverable by the operator correcting their input.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newValidationError(code, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsValidation unwraps err into a ValidationError if it is one.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

var (
	// ErrInsufficientKeys is the allocation precondition failure: more
	// recipients than keys. Guards enforce this upstream, so hitting it is a
	// programming error and no distribution call is issued.
	ErrInsufficientKeys = errors.New("more recipients than available keys")

	// ErrAlreadyDistributed rejects assignment flows opened on a key that
	// already has a distribution target.
	ErrAlreadyDistributed = errors.New("key already distributed")

	// ErrInvalidTransition signals a single-assignment call out of order.
	ErrInvalidTransition = errors.New("invalid assignment state transition")

	// ErrConfirmationRequired rejects an account assignment submitted
	// without the mandatory confirmation step.
	ErrConfirmationRequired = errors.New("assignment requires confirmation")

	// ErrKeyNotFound means the requested key is not in the plan's listing.
	ErrKeyNotFound = errors.New("authentication key not found")
)
