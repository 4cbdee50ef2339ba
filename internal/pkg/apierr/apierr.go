// Package apierr maps the typed ledger.Error values domain operations
// return to the HTTP status/code/message triple the API surface replies
// with.
package apierr

import (
	"net/http"

	"ledger-api/internal/domain/ledger"
)

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e APIError) Error() string {
	return e.Message
}

const (
	CodeValidation            = "VALIDATION_ERROR"
	CodeNotFound              = "NOT_FOUND"
	CodeInternalServer        = "INTERNAL_SERVER_ERROR"
	CodeInsufficientFunds     = "INSUFFICIENT_FUNDS"
	CodeInvalidAmount         = "INVALID_AMOUNT"
	CodeSameAccount           = "SAME_ACCOUNT_NOT_ALLOWED"
	CodeCurrencyMismatch      = "CURRENCY_MISMATCH"
	CodeIdempotencyConflict   = "IDEMPOTENCY_CONFLICT"
	CodeIdempotencyInProgress = "IDEMPOTENCY_IN_PROGRESS"
	CodeMissingIdempotencyKey = "MISSING_IDEMPOTENCY_KEY"
	CodeUniqueViolation       = "UNIQUE_VIOLATION"
	CodeOptimisticConflict    = "OPTIMISTIC_CONFLICT"
)

func NewValidationError(message string) APIError {
	return APIError{Code: CodeValidation, Message: message, Status: http.StatusBadRequest}
}

func NewNotFoundError(message string) APIError {
	return APIError{Code: CodeNotFound, Message: message, Status: http.StatusNotFound}
}

func NewInternalServerError() APIError {
	return APIError{Code: CodeInternalServer, Message: "internal server error", Status: http.StatusInternalServerError}
}

func NewInsufficientFundsError() APIError {
	return APIError{Code: CodeInsufficientFunds, Message: "insufficient funds for this operation", Status: http.StatusBadRequest}
}

func NewInvalidAmountError(message string) APIError {
	return APIError{Code: CodeInvalidAmount, Message: message, Status: http.StatusBadRequest}
}

func NewSameAccountError() APIError {
	return APIError{Code: CodeSameAccount, Message: "source and destination accounts must differ", Status: http.StatusBadRequest}
}

func NewCurrencyMismatchError() APIError {
	return APIError{Code: CodeCurrencyMismatch, Message: "accounts involved do not share a currency", Status: http.StatusBadRequest}
}

func NewIdempotencyConflictError() APIError {
	return APIError{Code: CodeIdempotencyConflict, Message: "idempotency key reused with a different request body", Status: http.StatusConflict}
}

func NewIdempotencyInProgressError() APIError {
	return APIError{Code: CodeIdempotencyInProgress, Message: "a request with this idempotency key is already in flight", Status: http.StatusConflict}
}

func NewMissingIdempotencyKeyError() APIError {
	return APIError{Code: CodeMissingIdempotencyKey, Message: "Idempotency-Key header is required", Status: http.StatusBadRequest}
}

// FromLedgerError maps a domain ledger.Error to its HTTP representation
// per the error-kind table. Anything not recognized falls back to a
// generic internal error so a forgotten Kind never leaks internals.
func FromLedgerError(err *ledger.Error) APIError {
	switch err.Kind {
	case ledger.KindInvalidAmount, ledger.KindValidation:
		return NewInvalidAmountError(err.Message)
	case ledger.KindSameAccount:
		return NewSameAccountError()
	case ledger.KindCurrencyMismatch:
		return NewCurrencyMismatchError()
	case ledger.KindInsufficientFunds:
		return NewInsufficientFundsError()
	case ledger.KindNotFound:
		return NewNotFoundError(err.Message)
	case ledger.KindIdempotencyConflict:
		return NewIdempotencyConflictError()
	case ledger.KindIdempotencyInProgress:
		return NewIdempotencyInProgressError()
	case ledger.KindMissingIdempotencyKey:
		return NewMissingIdempotencyKeyError()
	case ledger.KindUniqueViolation:
		return APIError{Code: CodeUniqueViolation, Message: err.Message, Status: http.StatusConflict}
	case ledger.KindOptimisticConflict:
		return APIError{Code: CodeOptimisticConflict, Message: "account was modified concurrently, retry the request", Status: http.StatusConflict}
	default:
		return NewInternalServerError()
	}
}
