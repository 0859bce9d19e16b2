// Package ratelimit implements the fixed-window counter applied on every
// verification attempt. Windows reset lazily on the first request after
// expiry; there is no scheduler. A caller concentrating requests at the
// reset instant can reach up to 2x the nominal limit across the boundary,
// which is an accepted property of the fixed-window strategy.
package ratelimit

import "github.com/filipexyz/keygate/internal/domain"

// Check applies the window rule to a usage counter. The reset is idempotent:
// running it twice within the same window is a no-op the second time. On
// success the request is counted and the counter's last-used slot advances;
// when the limit is hit the counter is left untouched and
// ErrRateLimitExceeded is returned.
func Check(u *domain.UsageCounter, limit uint32, now, windowSlots uint64) error {
	if now >= u.WindowStart && now-u.WindowStart >= windowSlots {
		u.WindowStart = now
		u.RequestCount = 0
	}
	if u.RequestCount >= limit {
		return domain.ErrRateLimitExceeded
	}
	u.RequestCount++
	u.LastUsedAt = now
	return nil
}
