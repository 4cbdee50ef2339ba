package ledger

import (
	"errors"
	"fmt"
)

// Kind tags a domain-level failure so the API layer can map it to the
// right HTTP status without string-matching error messages.
type Kind string

const (
	KindInvalidAmount          Kind = "INVALID_AMOUNT"
	KindSameAccount            Kind = "SAME_ACCOUNT"
	KindCurrencyMismatch       Kind = "CURRENCY_MISMATCH"
	KindInsufficientFunds      Kind = "INSUFFICIENT_FUNDS"
	KindNotFound               Kind = "NOT_FOUND"
	KindIdempotencyConflict    Kind = "IDEMPOTENCY_CONFLICT"
	KindIdempotencyInProgress  Kind = "IDEMPOTENCY_IN_PROGRESS"
	KindMissingIdempotencyKey  Kind = "MISSING_IDEMPOTENCY_KEY"
	KindUniqueViolation        Kind = "UNIQUE_VIOLATION"
	KindOptimisticConflict     Kind = "OPTIMISTIC_CONFLICT"
	KindValidation             Kind = "VALIDATION"
	KindInternal               Kind = "INTERNAL"
)

// Error is the typed error every domain operation (registry, engine,
// gate, coordinator) returns instead of an ad-hoc error string.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// As reports whether err is (or wraps) a *ledger.Error, returning it.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
