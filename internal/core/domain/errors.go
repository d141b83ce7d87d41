package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrDuplicate          = errors.New("already exists")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrProductUnavailable = errors.New("product not available")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrCartChanged        = errors.New("cart changed during checkout")
	ErrCouponExhausted    = errors.New("coupon usage limit reached")
	ErrPaymentFailed      = errors.New("payment failed")
	ErrDuplicateRequest   = errors.New("duplicate request")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account is deactivated")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrForbidden          = errors.New("admin access required")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidTransition  = errors.New("invalid order status transition")
)

// ValidationError is returned for bad input. Message is safe to show to clients.
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

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// Invalid builds a ValidationError without a field.
func Invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
