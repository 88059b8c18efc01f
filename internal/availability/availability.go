// Package availability decides whether a stay collides with confirmed bookings.
package availability

import (
	"time"

	"staybook/internal/calendar"
	"staybook/internal/domain"
)

// Overlaps reports whether two half-open ranges intersect. A check-out on
// the same day as another check-in does not overlap.
func Overlaps(a, b domain.DateRange) bool {
	aIn, aOut := calendar.Day(a.CheckIn), calendar.Day(a.CheckOut)
	bIn, bOut := calendar.Day(b.CheckIn), calendar.Day(b.CheckOut)
	return aIn.Before(bOut) && bIn.Before(aOut)
}

// HasConflict checks [checkIn, checkOut) against the confirmed ranges of
// propertyID. Callers pass confirmed (paid) ranges only; holds never block.
func HasConflict(propertyID string, checkIn, checkOut time.Time, confirmed []domain.DateRange) bool {
	want := domain.DateRange{CheckIn: checkIn, CheckOut: checkOut}
	for _, r := range confirmed {
		if Overlaps(want, r) {
			return true
		}
	}
	return false
}
