package domain

import (
	"context"
	"time"
)

// IdentityResolver returns the renter making the current request.
// It fails with ErrUnauthenticated when the request carries no identity.
type IdentityResolver interface {
	CurrentRenter(ctx context.Context) (Renter, error)
}

type ProfileStore interface {
	// ProfileByExternalID returns ok=false when the identity has no profile.
	ProfileByExternalID(ctx context.Context, externalID string) (p Profile, ok bool, err error)
}

type PropertyStore interface {
	// NightlyPrice fails with ErrPropertyNotFound when the property does not exist.
	NightlyPrice(ctx context.Context, propertyID string) (int64, error)
	// PropertyOwner returns the owning profile id, or ErrPropertyNotFound.
	PropertyOwner(ctx context.Context, propertyID string) (string, error)
	ListRentals(ctx context.Context, ownerProfileID string) ([]RentalSummary, error)
}

type BookingStore interface {
	// InTx runs fn in one transaction; fn's error rolls everything back.
	InTx(ctx context.Context, fn func(tx BookingTx) error) error

	ListConfirmedRanges(ctx context.Context, propertyID string) ([]DateRange, error)
	ListForProfile(ctx context.Context, profileID string) ([]BookingView, error)
	ListConfirmed(ctx context.Context) ([]Booking, error)
	DeleteForProfile(ctx context.Context, bookingID, profileID string) (propertyID string, err error)
}

// BookingTx is the transactional view of BookingStore.
type BookingTx interface {
	DeletePendingFor(ctx context.Context, profileID string) (int64, error)
	InsertPending(ctx context.Context, b Booking) (string, error)

	// LockProperty serialises payment confirmation per property.
	LockProperty(ctx context.Context, propertyID string) error
	GetBooking(ctx context.Context, bookingID string) (Booking, error)
	// ListConfirmedRanges excludes the booking with id exceptID.
	ListConfirmedRanges(ctx context.Context, propertyID, exceptID string) ([]DateRange, error)
	MarkPaid(ctx context.Context, bookingID string) error
}

type ReviewStore interface {
	// InsertReview fails with ErrDuplicateReview when the profile already
	// reviewed the property.
	InsertReview(ctx context.Context, r Review) error
	HasReview(ctx context.Context, profileID, propertyID string) (bool, error)
	ListPropertyReviews(ctx context.Context, propertyID string) ([]ReviewView, error)
	ListProfileReviews(ctx context.Context, profileID string) ([]ReviewView, error)
	// DeleteReview removes a review owned by profileID and returns its property.
	DeleteReview(ctx context.Context, reviewID, profileID string) (propertyID string, err error)
	RatingTotals(ctx context.Context, propertyID string) (sum int64, count int, err error)
}

type FavoriteStore interface {
	// ToggleFavorite adds the pair when absent and removes it when present.
	ToggleFavorite(ctx context.Context, profileID, propertyID string) (added bool, err error)
	IsFavorite(ctx context.Context, profileID, propertyID string) (bool, error)
	ListFavorites(ctx context.Context, profileID string) ([]PropertyCard, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// EventPublisher announces confirmed bookings to downstream consumers.
type EventPublisher interface {
	PublishBookingConfirmed(ctx context.Context, ev BookingConfirmed) error
}

type BookingConfirmed struct {
	BookingID   string    `json:"bookingId"`
	PropertyID  string    `json:"propertyId"`
	ProfileID   string    `json:"profileId"`
	CheckIn     string    `json:"checkIn"`
	CheckOut    string    `json:"checkOut"`
	TotalNights int       `json:"totalNights"`
	OrderTotal  int64     `json:"orderTotal"`
	ConfirmedAt time.Time `json:"confirmedAt"`
}

// Read models

type RentalSummary struct {
	PropertyID     string `json:"propertyId"`
	Name           string `json:"name"`
	PriceMinor     int64  `json:"price"`
	TotalNightsSum int64  `json:"totalNightsSum"`
	OrderTotalSum  int64  `json:"orderTotalSum"`
}

type Aggregate struct {
	Count      int   `json:"count"`
	NightsSum  int64 `json:"nightsSum"`
	RevenueSum int64 `json:"revenueSum"`
}

type PeriodAggregate struct {
	Period string `json:"period"`
	Aggregate
}

type PropertyAggregate struct {
	PropertyID string `json:"propertyId"`
	Aggregate
}

type BookingReport struct {
	Total       Aggregate           `json:"total"`
	ByProperty  []PropertyAggregate `json:"byProperty"`
	ByPeriod    []PeriodAggregate   `json:"byPeriod"`
	GeneratedAt time.Time           `json:"generatedAt"`
}
