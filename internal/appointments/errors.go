package appointments

import "errors"

var (
	// ErrNotFound is returned when no appointment has the requested id.
	ErrNotFound = errors.New("appointment not found")
	// ErrInvalidCategory is returned for categories outside the price table.
	ErrInvalidCategory = errors.New("invalid category")
	// ErrInvalidClient is returned when the client name is blank.
	ErrInvalidClient = errors.New("client name is required")
	// ErrNegativeAmount is returned when payment or tip is below zero.
	ErrNegativeAmount = errors.New("amounts must not be negative")
	// ErrReasonRequired is returned when a cancellation or admin edit has no reason.
	ErrReasonRequired = errors.New("update reason is required")
	// ErrInvalidTransition is returned for status changes that make no sense,
	// such as completing a cancelled appointment.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrStoreFailure hides infrastructure errors from callers.
	ErrStoreFailure = errors.New("operation failed")
)

// IsValidation reports whether err is a request validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidCategory) ||
		errors.Is(err, ErrInvalidClient) ||
		errors.Is(err, ErrNegativeAmount) ||
		errors.Is(err, ErrReasonRequired)
}
