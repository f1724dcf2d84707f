package domain

import "errors"

var (
	// ErrValidation indicates malformed input; it is never retried.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates the request cannot be applied to the current state.
	ErrConflict = errors.New("conflict")
	// ErrServiceUnavailable indicates a downstream service could not be reached.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrPaymentFailed indicates the payment service explicitly rejected a charge.
	ErrPaymentFailed = errors.New("payment failed")
)

var (
	ErrEmptyCart          = kindError(ErrConflict, "cart is empty")
	ErrProductUnavailable = kindError(ErrConflict, "product is not available")
	ErrInsufficientStock  = kindError(ErrConflict, "insufficient stock")

	ErrOrderNotFound    = kindError(ErrNotFound, "order not found")
	ErrProductNotFound  = kindError(ErrNotFound, "product not found")
	ErrCartItemNotFound = kindError(ErrNotFound, "cart item not found")
)

// Error is a specific failure that also matches its broader category with errors.Is.
type Error struct {
	kind error
	msg  string
}

func kindError(kind error, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return e.kind }
