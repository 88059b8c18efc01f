package domain

import "time"

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// DateRange is a half-open stay [CheckIn, CheckOut) at day granularity.
type DateRange struct {
	CheckIn  time.Time `json:"checkIn"`
	CheckOut time.Time `json:"checkOut"`
}

// Totals are captured on the booking at creation time. Money is in minor units.
type Totals struct {
	TotalNights int   `json:"totalNights"`
	OrderTotal  int64 `json:"orderTotal"`
}

type Booking struct {
	ID            string
	PropertyID    string
	ProfileID     string
	CheckIn       time.Time
	CheckOut      time.Time
	TotalNights   int
	OrderTotal    int64
	PaymentStatus PaymentStatus
	CreatedAt     time.Time
}

func (b Booking) Range() DateRange { return DateRange{CheckIn: b.CheckIn, CheckOut: b.CheckOut} }

func (b Booking) Paid() bool { return b.PaymentStatus == PaymentPaid }

// BookingView is the renter-facing list row.
type BookingView struct {
	ID              string        `json:"id"`
	PropertyID      string        `json:"propertyId"`
	PropertyName    string        `json:"propertyName"`
	PropertyCountry string        `json:"propertyCountry"`
	CheckIn         time.Time     `json:"checkIn"`
	CheckOut        time.Time     `json:"checkOut"`
	TotalNights     int           `json:"totalNights"`
	OrderTotal      int64         `json:"orderTotal"`
	PaymentStatus   PaymentStatus `json:"paymentStatus"`
	CreatedAt       time.Time     `json:"createdAt"`
}
