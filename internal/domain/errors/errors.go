package errors

import (
	"errors"
	"fmt"
)

var (
	// Generic
	ErrInternal = errors.New("internal error")
	ErrNotFound = errors.New("not found")

	// Linking
	ErrInvalidCode           = errors.New("invalid link code")
	ErrCodeExpired           = errors.New("link code expired")
	ErrAlreadyLinked         = errors.New("account already linked")
	ErrExternalAlreadyLinked = errors.New("external identity already linked to another account")
	ErrCooldownActive        = errors.New("link cooldown active")

	// Challenges
	ErrNotEligible      = errors.New("second factor not enabled or account not linked")
	ErrChallengePending = errors.New("a challenge is already awaiting approval")

	// Collaborators
	ErrStore   = errors.New("store operation failed")
	ErrChannel = errors.New("notification delivery failed")
)

// WrapStore tags a persistence failure so callers can match it with errors.Is.
func WrapStore(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrStore, err)
}

// WrapChannel tags a notification delivery failure.
func WrapChannel(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrChannel, err)
}

// IsRetryable reports whether the error is a transient collaborator failure
// rather than a definitive outcome.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStore) || errors.Is(err, ErrChannel)
}
