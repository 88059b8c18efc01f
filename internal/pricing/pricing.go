// Package pricing derives booking totals from a nightly price.
package pricing

import (
	"time"

	"staybook/internal/calendar"
	"staybook/internal/domain"
)

// ComputeTotals returns the night count and the order total in minor units.
func ComputeTotals(checkIn, checkOut time.Time, nightlyPrice int64) (domain.Totals, error) {
	if nightlyPrice <= 0 {
		return domain.Totals{}, domain.ErrInvalidPrice
	}
	nights, err := calendar.NightCount(checkIn, checkOut)
	if err != nil {
		return domain.Totals{}, err
	}
	return domain.Totals{
		TotalNights: nights,
		OrderTotal:  int64(nights) * nightlyPrice,
	}, nil
}
