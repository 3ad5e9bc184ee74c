package services

import "errors"

// Common service errors.
//
// ErrNotFound, ErrInvalidTransition and ErrValidation are terminal: the
// caller gets them back with no writes performed. ErrConflict means the
// operation lost a serialization race and is safe to retry. ErrStoreFailure
// means a write failed mid-sequence; by the time the caller sees it the
// transaction has been rolled back.
var (
	ErrNotFound             = errors.New("record not found")
	ErrInvalidTransition    = errors.New("invalid state transition")
	ErrValidation           = errors.New("validation failed")
	ErrConflict             = errors.New("concurrent modification detected")
	ErrStoreFailure         = errors.New("store operation failed")
	ErrInsufficientFunds    = errors.New("bank account balance cannot go negative")
	ErrEntryLinkedToPayment = errors.New("cash flow entry is linked to a payment; reverse the payment instead")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrUnauthorized         = errors.New("unauthorized")
)
