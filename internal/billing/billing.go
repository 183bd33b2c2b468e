// Package billing holds the pure duration and amount math for completed
// parking entries. No I/O happens here; both functions are referentially
// transparent so the lifecycle can be audited against them.
package billing

import (
	"errors"
	"fmt"
	"time"
)

// ErrExitBeforeEntry is returned when the exit timestamp precedes the entry
// timestamp. Callers must treat this as a usage error, never as a free stay.
var ErrExitBeforeEntry = errors.New("exit time is before entry time")

// CalculateDuration returns the parked duration in minutes, rounding any
// started minute up: ceil((exit-entry) in ms / 60000).
func CalculateDuration(entryTime, exitTime time.Time) (int64, error) {
	const op = "billing.CalculateDuration"

	if exitTime.Before(entryTime) {
		return 0, fmt.Errorf("%s:%w", op, ErrExitBeforeEntry)
	}

	ms := exitTime.Sub(entryTime).Milliseconds()

	return (ms + 59_999) / 60_000, nil
}

// CalculateAmount bills every started hour at the full hourly price:
// ceil(durationMinutes / 60) * pricePerHour.
//
// A zero-minute stay bills zero. The counter is reserved and released in the
// same instant, so nothing is owed; operators wanting a minimum charge
// configure it through tariffs, not here.
func CalculateAmount(durationMinutes, pricePerHour int64) int64 {
	if durationMinutes <= 0 {
		return 0
	}

	hours := (durationMinutes + 59) / 60

	return hours * pricePerHour
}
