// Package countdown renders and drives the time left on an auction.
package countdown

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

const Ended = "ended"

// Format renders remaining time as "1d 2h 3m 4s", dropping leading zero units
func Format(remaining time.Duration) string {
	if remaining <= 0 {
		return Ended
	}

	total := int64(remaining / time.Second)
	if total == 0 {
		total = 1
	}
	days := total / 86400
	hours := total % 86400 / 3600
	minutes := total % 3600 / 60
	seconds := total % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// Remaining is the time left until deadline, never negative
func Remaining(clock clockwork.Clock, deadline time.Time) time.Duration {
	if deadline.IsZero() {
		return 0
	}
	if d := deadline.Sub(clock.Now()); d > 0 {
		return d
	}
	return 0
}

// Run calls tick right away and then once a second with the time left.
// deadline is read on every tick so an extension is picked up in place.
// It returns after the tick that reports zero, or when ctx is done.
func Run(ctx context.Context, clock clockwork.Clock, deadline func() time.Time, tick func(time.Duration)) {
	ticker := clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		remaining := Remaining(clock, deadline())
		tick(remaining)
		if remaining <= 0 {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}
	}
}
