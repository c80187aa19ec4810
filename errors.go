package dialogsdk

import (
	"errors"
	"fmt"
)

// ──────────────────────────────────────────────
// Error taxonomy — slot validation and dispatch failures
// ──────────────────────────────────────────────

// Sentinel errors for the validation and dispatch layers.
// All of them are matchable with errors.Is.
var (
	// ErrInvalidFormat means the raw value does not parse as the slot's type.
	ErrInvalidFormat = errors.New("invalid format")

	// ErrBelowMinimum means a monetary value parsed but is under the slot's floor.
	ErrBelowMinimum = errors.New("below minimum")

	// ErrConflictingChoice means a mutually exclusive alternate slot is already filled.
	ErrConflictingChoice = errors.New("conflicting choice")

	// ErrSelfReference means the value equals the requesting user's own identifier.
	ErrSelfReference = errors.New("self reference")

	// ErrVerificationRejected means an external verifier judged the value invalid.
	ErrVerificationRejected = errors.New("verification rejected")

	// ErrVerificationUnavailable means the external verifier could not be reached.
	// Transient: the user may retry by re-sending the same value.
	ErrVerificationUnavailable = errors.New("verification unavailable")

	// ErrHandlerFailure means the intent handler failed after slot collection.
	// The dialogue stays at awaiting_confirmation so the user can retry.
	ErrHandlerFailure = errors.New("handler failure")

	// ErrIntentBusy is returned under the Reject intent-switch policy when a
	// different dialogue is still in progress for the user.
	ErrIntentBusy = errors.New("another dialogue in progress")

	// ErrUnknownIntent means no IntentDefinition is registered under that name.
	ErrUnknownIntent = errors.New("unknown intent")

	// ErrUnknownSlot means the slot ID is not part of the active intent's schema.
	ErrUnknownSlot = errors.New("unknown slot")
)

// ValidationError wraps a sentinel with the slot it occurred on and a
// user-facing corrective hint. The dialogue re-prompts the same slot.
type ValidationError struct {
	Slot string
	Err  error
	Hint string
}

func (e *ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("slot %q: %v: %s", e.Slot, e.Err, e.Hint)
	}
	return fmt.Sprintf("slot %q: %v", e.Slot, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// newValidationError builds a ValidationError bound to a slot.
func newValidationError(slot string, sentinel error, hint string) *ValidationError {
	return &ValidationError{Slot: slot, Err: sentinel, Hint: hint}
}

// IsRetryable reports whether the user can recover by re-sending a value.
// Everything except a hard handler failure is retryable in this core.
func IsRetryable(err error) bool {
	return !errors.Is(err, ErrHandlerFailure)
}
