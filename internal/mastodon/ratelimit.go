package mastodon

import (
	"net/http"
	"strconv"
	"time"
)

// resetSafetyMargin pads the computed wait so a retry never lands just
// before the window actually opens.
const resetSafetyMargin = 3 * time.Second

// RateLimit is the remote rate-limit budget as of the last response. It is
// a plain value passed around explicitly, never hidden process state.
type RateLimit struct {
	Limit     int
	Remaining int
	Reset     time.Duration
}

// fromHeaders returns the budget refreshed from a response's rate-limit
// headers. The reset header is an absolute timestamp in the remote service's
// format; it is converted to a wait relative to now, clamped at zero, plus a
// safety margin. Missing or unparsable headers leave the old values.
func (rl RateLimit) fromHeaders(h http.Header, now time.Time) RateLimit {
	next := rl
	if v := h.Get("x-ratelimit-limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			next.Limit = n
		}
	}
	if v := h.Get("x-ratelimit-remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			next.Remaining = n
		}
	}
	if v := h.Get("x-ratelimit-reset"); v != "" {
		if at, err := time.Parse(time.RFC3339Nano, v); err == nil {
			wait := at.Sub(now)
			if wait < 0 {
				wait = 0
			}
			next.Reset = wait + resetSafetyMargin
		}
	}
	return next
}
