// Package common defines shared constants and sentinel errors used across
// client and server layers of novakeeper. Callers should use errors.Is to
// match these values.
package common

import (
	"errors"
	"fmt"
	"time"
)

// Error classes. Every error that crosses a component boundary wraps exactly
// one of these, so retry and UI decisions can be made on the class alone.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrUnavailable  = errors.New("unavailable")
	ErrRateLimited  = errors.New("rate limited")
	ErrInvalid      = errors.New("invalid")
	ErrInternal     = errors.New("internal error")
)

// Component-specific errors.
var (
	ErrNameTaken         = fmt.Errorf("%w: name taken", ErrConflict)
	ErrAlreadyLinked     = fmt.Errorf("%w: identifier already linked to an account", ErrConflict)
	ErrInsufficientFunds = errors.New("insufficient funds")

	ErrLedgerUnavailable  = fmt.Errorf("%w: ledger", ErrUnavailable)
	ErrCustodyUnavailable = fmt.Errorf("%w: custody", ErrUnavailable)
	ErrFundingUnavailable = fmt.Errorf("%w: funding", ErrUnavailable)

	ErrAccountNotFound = fmt.Errorf("%w: no account", ErrNotFound)
	ErrKeyNotFound     = fmt.Errorf("%w: no key", ErrNotFound)
	ErrFundingNotFound = fmt.Errorf("%w: no funding record", ErrNotFound)

	ErrBlacklisted = fmt.Errorf("%w: blacklisted", ErrForbidden)

	ErrInvalidName  = fmt.Errorf("%w: account name must match [a-z0-9_-]{2,64}", ErrInvalid)
	ErrInvalidToken = fmt.Errorf("%w: invalid token", ErrUnauthorized)
	ErrTokenExpired = fmt.Errorf("%w: token expired", ErrUnauthorized)
)

// RateLimitedError reports a throttled call together with the server's hint
// on how long to wait before trying again.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter <= 0 {
		return ErrRateLimited.Error()
	}
	return fmt.Sprintf("%s: retry after %s", ErrRateLimited, e.RetryAfter)
}

// Unwrap lets errors.Is(err, ErrRateLimited) match.
func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// Class is the coarse error category from the error taxonomy.
type Class string

const (
	ClassNone         Class = ""
	ClassUnauthorized Class = "unauthorized"
	ClassNotFound     Class = "not_found"
	ClassForbidden    Class = "forbidden"
	ClassConflict     Class = "conflict"
	ClassUnavailable  Class = "unavailable"
	ClassRateLimited  Class = "rate_limited"
	ClassInvalid      Class = "invalid"
	ClassFunds        Class = "insufficient_funds"
	ClassInternal     Class = "internal"
)

// Classify maps err onto its taxonomy class. Unknown errors are internal.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrUnauthorized):
		return ClassUnauthorized
	case errors.Is(err, ErrNotFound):
		return ClassNotFound
	case errors.Is(err, ErrForbidden):
		return ClassForbidden
	case errors.Is(err, ErrConflict):
		return ClassConflict
	case errors.Is(err, ErrUnavailable):
		return ClassUnavailable
	case errors.Is(err, ErrRateLimited):
		return ClassRateLimited
	case errors.Is(err, ErrInvalid):
		return ClassInvalid
	case errors.Is(err, ErrInsufficientFunds):
		return ClassFunds
	default:
		return ClassInternal
	}
}

// Retryable reports whether the class may be retried without new user input.
func (c Class) Retryable() bool {
	return c == ClassUnavailable
}
