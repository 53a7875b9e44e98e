package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidTransition = errors.New("order status does not allow this operation")
	ErrDuplicateIdentity = errors.New("identity already registered")
	ErrUnauthenticated   = errors.New("authentication required")
	ErrValidation        = errors.New("validation failed")
	ErrCartEmpty         = errors.New("cart is empty, nothing to checkout")
	ErrForbidden         = errors.New("access denied")
)

var (
	ErrInvalidCredentials = fmt.Errorf("%w: invalid username or password", ErrUnauthenticated)
	ErrUsernameTaken      = fmt.Errorf("%w: username is taken", ErrDuplicateIdentity)
	ErrEmailTaken         = fmt.Errorf("%w: email is taken", ErrDuplicateIdentity)
)

// StockError reports which product could not cover the requested quantity.
type StockError struct {
	ProductID   int64
	ProductName string
	Requested   int
	Available   int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q (id %d): requested %d, available %d",
		e.ProductName, e.ProductID, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error {
	return ErrInsufficientStock
}

// TransitionError is returned when an order is asked to move along an edge
// that does not exist in the status graph.
type TransitionError struct {
	OrderNumber string
	From        OrderStatus
	To          OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order %s cannot move from %s to %s", e.OrderNumber, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// Validationf wraps ErrValidation with a formatted reason.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
