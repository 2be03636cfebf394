package authcore

import (
	"errors"
	"strings"
)

var (
	// ErrUnauthorized is the uniform outcome for every token failure:
	// expired, malformed, wrong class, bad signature, or blacklisted.
	// Transport adapters map it to a generic 401 without detail.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials covers both bad password and unknown identity,
	// collapsed to one message to avoid account enumeration.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountExists is returned by Register for a duplicate email.
	ErrAccountExists = errors.New("account already exists")
	// ErrUserNotFound is returned by [UserProvider] implementations; the
	// engine never surfaces it to clients.
	ErrUserNotFound = errors.New("user not found")
	// ErrPasswordPolicy marks password-policy violations; the concrete
	// reasons travel in [PolicyError].
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrStoreUnavailable marks a degraded shared state store.
	ErrStoreUnavailable = errors.New("state store unavailable")
	// ErrEngineNotReady is returned when methods are called on a nil or
	// unbuilt engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// PolicyError carries the itemized list of violated password rules so
// clients can show every failed rule at once.
type PolicyError struct {
	Reasons []string
}

func (e *PolicyError) Error() string {
	return "password policy violation: " + strings.Join(e.Reasons, "; ")
}

func (e *PolicyError) Unwrap() error {
	return ErrPasswordPolicy
}
