package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"staybook/internal/adapters/observability"
	"staybook/internal/availability"
	"staybook/internal/calendar"
	"staybook/internal/domain"
	"staybook/internal/pricing"
)

// ReservationService creates holds and confirms them once payment is captured.
type ReservationService struct {
	identity   domain.IdentityResolver
	properties domain.PropertyStore
	bookings   domain.BookingStore
	cache      domain.Cache
	events     domain.EventPublisher
	now        func() time.Time
}

type Option func(*ReservationService)

// WithEvents publishes booking.confirmed after a payment is recorded.
func WithEvents(p domain.EventPublisher) Option { return func(s *ReservationService) { s.events = p } }

// WithClock overrides time.Now for CreatedAt stamps.
func WithClock(now func() time.Time) Option { return func(s *ReservationService) { s.now = now } }

func NewReservationService(id domain.IdentityResolver, p domain.PropertyStore, b domain.BookingStore, c domain.Cache, opts ...Option) *ReservationService {
	s := &ReservationService{identity: id, properties: p, bookings: b, cache: c, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

type Reservation struct {
	BookingID string               `json:"id"`
	Status    domain.PaymentStatus `json:"status"`
	domain.Totals
}

// Quote prices a stay without touching any state.
func (s *ReservationService) Quote(ctx context.Context, propertyID string, checkIn, checkOut time.Time) (domain.Totals, error) {
	if _, err := calendar.NightCount(checkIn, checkOut); err != nil {
		return domain.Totals{}, err
	}
	price, err := s.properties.NightlyPrice(ctx, propertyID)
	if err != nil {
		return domain.Totals{}, domain.Persist("nightly_price", err)
	}
	return pricing.ComputeTotals(checkIn, checkOut, price)
}

// Reserve replaces the renter's unpaid holds with a new pending booking and
// returns its id for payment capture. Every validation runs before the
// delete+insert transaction, so a failed call leaves no partial state.
func (s *ReservationService) Reserve(ctx context.Context, propertyID string, checkIn, checkOut time.Time) (Reservation, error) {
	renter, err := s.renterWithProfile(ctx)
	if err != nil {
		return Reservation{}, err
	}
	totals, err := s.Quote(ctx, propertyID, checkIn, checkOut)
	if err != nil {
		return Reservation{}, err
	}

	b := domain.Booking{
		ID:            uuid.NewString(),
		PropertyID:    propertyID,
		ProfileID:     renter.Profile.ID,
		CheckIn:       calendar.Day(checkIn),
		CheckOut:      calendar.Day(checkOut),
		TotalNights:   totals.TotalNights,
		OrderTotal:    totals.OrderTotal,
		PaymentStatus: domain.PaymentPending,
		CreatedAt:     s.now().UTC(),
	}

	var pruned int64
	err = s.bookings.InTx(ctx, func(tx domain.BookingTx) error {
		n, err := tx.DeletePendingFor(ctx, b.ProfileID)
		if err != nil {
			return err
		}
		pruned = n
		id, err := tx.InsertPending(ctx, b)
		if err != nil {
			return err
		}
		b.ID = id
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("property", propertyID).Str("profile", b.ProfileID).Msg("reserve failed")
		return Reservation{}, domain.Persist("reserve", err)
	}

	if pruned > 0 {
		observability.ObserveBookings("holds_pruned", int(pruned))
	}
	observability.ObserveBooking("reserved")
	log.Info().
		Str("booking", b.ID).
		Str("property", propertyID).
		Str("profile", b.ProfileID).
		Int("nights", totals.TotalNights).
		Int64("total", totals.OrderTotal).
		Int64("holds_pruned", pruned).
		Msg("booking reserved")

	return Reservation{BookingID: b.ID, Status: domain.PaymentPending, Totals: totals}, nil
}

// ConfirmPayment marks a hold paid after re-checking it against the
// property's other confirmed bookings. The property row lock makes two
// concurrent confirmations for the same property run one after the other.
func (s *ReservationService) ConfirmPayment(ctx context.Context, bookingID string) (domain.Booking, error) {
	var (
		b           domain.Booking
		alreadyPaid bool
	)
	err := s.bookings.InTx(ctx, func(tx domain.BookingTx) error {
		var err error
		if b, err = tx.GetBooking(ctx, bookingID); err != nil {
			return err
		}
		if err := tx.LockProperty(ctx, b.PropertyID); err != nil {
			return err
		}
		if b.Paid() {
			alreadyPaid = true
			return nil
		}
		confirmed, err := tx.ListConfirmedRanges(ctx, b.PropertyID, b.ID)
		if err != nil {
			return err
		}
		if availability.HasConflict(b.PropertyID, b.CheckIn, b.CheckOut, confirmed) {
			return domain.ErrBookingConflict
		}
		if err := tx.MarkPaid(ctx, b.ID); err != nil {
			return err
		}
		b.PaymentStatus = domain.PaymentPaid
		return nil
	})
	if errors.Is(err, domain.ErrBookingConflict) {
		observability.ObserveBooking("conflict")
		log.Warn().Str("booking", bookingID).Str("property", b.PropertyID).Msg("payment rejected: dates taken")
		return domain.Booking{}, err
	}
	if err != nil {
		return domain.Booking{}, domain.Persist("confirm_payment", err)
	}
	if alreadyPaid {
		return b, nil
	}

	observability.ObserveBooking("paid")
	log.Info().Str("booking", b.ID).Str("property", b.PropertyID).Msg("booking paid")
	invalidateProperty(ctx, s.cache, b.PropertyID)

	if s.events != nil {
		ev := domain.BookingConfirmed{
			BookingID:   b.ID,
			PropertyID:  b.PropertyID,
			ProfileID:   b.ProfileID,
			CheckIn:     b.CheckIn.Format(calendar.DateLayout),
			CheckOut:    b.CheckOut.Format(calendar.DateLayout),
			TotalNights: b.TotalNights,
			OrderTotal:  b.OrderTotal,
			ConfirmedAt: s.now().UTC(),
		}
		if err := s.events.PublishBookingConfirmed(ctx, ev); err != nil {
			log.Warn().Err(err).Str("booking", b.ID).Msg("publish booking.confirmed failed")
		}
	}
	return b, nil
}

// ListBookings returns the current renter's bookings, latest check-in first.
func (s *ReservationService) ListBookings(ctx context.Context) ([]domain.BookingView, error) {
	renter, err := s.renterWithProfile(ctx)
	if err != nil {
		return nil, err
	}
	out, err := s.bookings.ListForProfile(ctx, renter.Profile.ID)
	if err != nil {
		return nil, domain.Persist("list_bookings", err)
	}
	return out, nil
}

// CancelBooking deletes one of the current renter's bookings.
func (s *ReservationService) CancelBooking(ctx context.Context, bookingID string) error {
	renter, err := s.renterWithProfile(ctx)
	if err != nil {
		return err
	}
	propertyID, err := s.bookings.DeleteForProfile(ctx, bookingID, renter.Profile.ID)
	if err != nil {
		return domain.Persist("cancel_booking", err)
	}
	observability.ObserveBooking("cancelled")
	log.Info().Str("booking", bookingID).Str("profile", renter.Profile.ID).Msg("booking cancelled")
	invalidateProperty(ctx, s.cache, propertyID)
	return nil
}

func (s *ReservationService) renterWithProfile(ctx context.Context) (domain.Renter, error) {
	return requireProfile(ctx, s.identity)
}

func requireProfile(ctx context.Context, id domain.IdentityResolver) (domain.Renter, error) {
	r, err := id.CurrentRenter(ctx)
	if err != nil {
		return domain.Renter{}, domain.Persist("current_renter", err)
	}
	if !r.HasProfile() {
		return domain.Renter{}, domain.ErrProfileRequired
	}
	return r, nil
}
