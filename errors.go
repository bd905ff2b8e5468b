package loyalty

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("loyalty: not found")
	ErrAlreadyExists = errors.New("loyalty: already exists")
	ErrInvalidInput  = errors.New("loyalty: invalid input")
	ErrForbidden     = errors.New("loyalty: forbidden")

	// Customer errors
	ErrCustomerNotFound = errors.New("loyalty: customer not found")
	ErrCustomerExists   = errors.New("loyalty: customer already registered")
	ErrCustomerInactive = errors.New("loyalty: customer is inactive")

	// Ledger errors
	ErrBalanceNotFound     = errors.New("loyalty: bonus balance not found")
	ErrInvalidAmount       = errors.New("loyalty: amount must be positive")
	ErrInsufficientBalance = errors.New("loyalty: insufficient bonus balance")

	// Discount rule errors
	ErrRuleNotFound  = errors.New("loyalty: discount rule not found")
	ErrRuleInactive  = errors.New("loyalty: discount rule is inactive")
	ErrRuleExpired   = errors.New("loyalty: discount rule expired")
	ErrRuleExhausted = errors.New("loyalty: discount rule uses exhausted")

	// Settlement errors
	ErrPurchaseNotFound = errors.New("loyalty: purchase not found")
	ErrDuplicateReceipt = errors.New("loyalty: receipt number already settled")

	// ErrStoreMismatch wraps ErrForbidden so callers can match either.
	ErrStoreMismatch = fmt.Errorf("%w: actor cannot settle for this store", ErrForbidden)

	// Notification errors
	ErrNotificationNotFound = errors.New("loyalty: notification not found")
	ErrDispatchQueueFull    = errors.New("loyalty: notification dispatch queue full")

	// Store errors
	ErrStoreNotReady     = errors.New("loyalty: store not ready")
	ErrStoreClosed       = errors.New("loyalty: store is closed")
	ErrTransactionFailed = errors.New("loyalty: transaction failed")
	ErrMigrationFailed   = errors.New("loyalty: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("loyalty: validation failed for %s: %s", e.Field, e.Message)
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrBalanceNotFound) ||
		errors.Is(err, ErrRuleNotFound) ||
		errors.Is(err, ErrPurchaseNotFound) ||
		errors.Is(err, ErrNotificationNotFound)
}

// IsRecoverable returns true for conditions a settlement degrades
// around rather than aborting on.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrDispatchQueueFull)
}

// IsRetryable returns true if the error is temporary and the operation
// can be retried wholesale. Settlement retries are not idempotent
// unless the request carries a receipt number.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed)
}
