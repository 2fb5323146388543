package httptransport

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"guild-economy/internal/economy"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, economy.ErrCooldownActive):
		return http.StatusTooManyRequests
	case errors.Is(err, economy.ErrActionInProgress), errors.Is(err, economy.ErrDuplicateRequest):
		return http.StatusConflict
	case errors.Is(err, economy.ErrPendingNotFound):
		return http.StatusNotFound
	case errors.Is(err, economy.ErrInsufficientFunds),
		errors.Is(err, economy.ErrBelowMinimumWager),
		errors.Is(err, economy.ErrMaxTierReached),
		errors.Is(err, economy.ErrNoDebt):
		return http.StatusUnprocessableEntity
	case errors.Is(err, economy.ErrInvalidParameters):
		return http.StatusBadRequest
	case errors.Is(err, economy.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeSettleError renders a typed rejection. Cooldowns carry the wait as
// remaining_ms and Retry-After.
func writeSettleError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	body := map[string]any{"error": economy.Code(err)}
	if remaining, ok := economy.RemainingCooldown(err); ok {
		body["remaining_ms"] = remaining.Milliseconds()
		secs := int64(remaining.Seconds())
		if remaining%time.Second != 0 {
			secs++
		}
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	if status != http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		body["detail"] = err.Error()
	}
	writeJSON(w, status, body)
}
