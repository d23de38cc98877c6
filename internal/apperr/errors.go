package apperr

import (
	"errors"
	"fmt"
)

// Sentinel errors for comparison using errors.Is().
// Operations wrap them in *Error so callers keep the operation and entity id.
var (
	// Missing entities
	ErrNotFound         = errors.New("not found")
	ErrCartNotFound     = fmt.Errorf("cart %w", ErrNotFound)
	ErrCartLineNotFound = fmt.Errorf("cart line %w", ErrNotFound)
	ErrOrderNotFound    = fmt.Errorf("order %w", ErrNotFound)
	ErrItemNotFound     = fmt.Errorf("item %w", ErrNotFound)
	ErrCustomerNotFound = fmt.Errorf("customer %w", ErrNotFound)
	ErrCouponNotFound   = fmt.Errorf("coupon %w", ErrNotFound)
	ErrHistoryNotFound  = fmt.Errorf("order history %w", ErrNotFound)

	// ErrConflict is returned by stores on a unique constraint violation.
	ErrConflict = errors.New("already exists")

	// State errors
	ErrInvalidState      = errors.New("invalid state")
	ErrInvalidTransition = fmt.Errorf("%w: transition not permitted", ErrInvalidState)
	ErrEmptyCart         = errors.New("cart is empty")

	// Inventory errors
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrItemUnavailable   = errors.New("item unavailable")

	// Payment errors
	ErrPaymentVerificationFailed = errors.New("payment verification failed")
	ErrDuplicatePayment          = errors.New("payment already used for an order")

	// Request errors
	ErrUnauthorized     = errors.New("unauthorized")
	ErrValidationFailed = errors.New("validation failed")

	// Coupon errors
	ErrCouponInvalid     = errors.New("invalid coupon code")
	ErrCouponInactive    = errors.New("coupon is not active")
	ErrCouponExpired     = errors.New("coupon has expired or is not yet valid")
	ErrMinimumNotMet     = errors.New("minimum order amount not met")
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
)

// Error carries the failing operation and the entity involved.
// It implements the error interface and supports error wrapping.
type Error struct {
	Op  string // Operation that failed (e.g., "orders.PlaceOrder")
	ID  string // Optional ID of the entity involved
	Err error  // Underlying error, usually one of the sentinels above
}

func (e *Error) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s [%s]: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E wraps err for operation op. An optional id names the entity.
func E(op string, err error, id ...any) error {
	if err == nil {
		return nil
	}
	e := &Error{Op: op, Err: err}
	if len(id) > 0 {
		e.ID = fmt.Sprint(id[0])
	}
	return e
}

// Wrapf attaches a detail message to a sentinel while keeping it matchable.
func Wrapf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// IsNotFound checks if an error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInventoryError checks if an error came from a failed stock check
func IsInventoryError(err error) bool {
	return errors.Is(err, ErrInsufficientStock) || errors.Is(err, ErrItemUnavailable)
}

// IsCouponError checks if an error is a coupon validation failure
func IsCouponError(err error) bool {
	return errors.Is(err, ErrCouponInvalid) ||
		errors.Is(err, ErrCouponInactive) ||
		errors.Is(err, ErrCouponExpired) ||
		errors.Is(err, ErrMinimumNotMet) ||
		errors.Is(err, ErrUsageLimitReached)
}
