package economy

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInsufficientFunds  = errors.New("insufficient_funds")
	ErrBelowMinimumWager  = errors.New("below_minimum_wager")
	ErrCooldownActive     = errors.New("cooldown_active")
	ErrActionInProgress   = errors.New("action_in_progress")
	ErrInvalidParameters  = errors.New("invalid_parameters")
	ErrMaxTierReached     = errors.New("max_tier_reached")
	ErrStoreUnavailable   = errors.New("store_unavailable")
	ErrDuplicateRequest   = errors.New("duplicate_request")
	ErrNoDebt             = errors.New("no_debt")
	ErrPendingNotFound    = errors.New("pending_not_found")
	ErrUnknownInstrument  = fmt.Errorf("%w: unknown instrument", ErrInvalidParameters)
	ErrSelfTarget         = fmt.Errorf("%w: counterparty is the caller", ErrInvalidParameters)
	ErrNonPositiveAmount  = fmt.Errorf("%w: amount must be positive", ErrInvalidParameters)
	ErrAmountAboveMaximum = fmt.Errorf("%w: amount above maximum", ErrInvalidParameters)
)

// CooldownError is returned when a periodic action is attempted before its
// interval has elapsed.
type CooldownError struct {
	Key       string
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s: %s retry in %s", ErrCooldownActive.Error(), e.Key, e.Remaining.Round(time.Second))
}

func (e *CooldownError) Unwrap() error {
	return ErrCooldownActive
}

// RemainingCooldown extracts the wait time from a cooldown rejection.
func RemainingCooldown(err error) (time.Duration, bool) {
	var ce *CooldownError
	if errors.As(err, &ce) {
		return ce.Remaining, true
	}
	return 0, false
}

// IsRejection reports whether err is a business rejection, meaning nothing was
// applied and the outcome is known.
func IsRejection(err error) bool {
	switch {
	case errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrBelowMinimumWager),
		errors.Is(err, ErrCooldownActive),
		errors.Is(err, ErrActionInProgress),
		errors.Is(err, ErrInvalidParameters),
		errors.Is(err, ErrMaxTierReached),
		errors.Is(err, ErrNoDebt):
		return true
	default:
		return false
	}
}

// Code returns the snake_case rejection code for err, or "internal_error".
func Code(err error) string {
	for _, s := range []error{
		ErrInsufficientFunds, ErrBelowMinimumWager, ErrCooldownActive,
		ErrActionInProgress, ErrMaxTierReached, ErrStoreUnavailable,
		ErrDuplicateRequest, ErrNoDebt, ErrPendingNotFound,
		ErrInvalidParameters,
	} {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal_error"
}
