package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"staybook/internal/domain"
)

// QueryService serves cached read models for property pages and owners.
type QueryService struct {
	identity   domain.IdentityResolver
	properties domain.PropertyStore
	bookings   domain.BookingStore
	cache      domain.Cache
	cacheTTL   time.Duration
}

func NewQueryService(id domain.IdentityResolver, p domain.PropertyStore, b domain.BookingStore, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{identity: id, properties: p, bookings: b, cache: c, cacheTTL: ttl}
}

func rangesKey(propertyID string) string { return fmt.Sprintf("ranges:%s", propertyID) }

// BookedRanges lists the confirmed stays of a property for calendar display.
func (s *QueryService) BookedRanges(ctx context.Context, propertyID string) ([]domain.DateRange, error) {
	key := rangesKey(propertyID)
	var out []domain.DateRange
	if cached(ctx, s.cache, key, &out) {
		return out, nil
	}
	return s.refreshRanges(ctx, propertyID)
}

func (s *QueryService) refreshRanges(ctx context.Context, propertyID string) ([]domain.DateRange, error) {
	rs, err := s.bookings.ListConfirmedRanges(ctx, propertyID)
	if err != nil {
		return nil, domain.Persist("list_confirmed_ranges", err)
	}
	// copy so later mutation of the store's slice cannot leak into the cache
	out := make([]domain.DateRange, len(rs))
	copy(out, rs)
	_ = s.cache.Set(ctx, rangesKey(propertyID), out, int(s.cacheTTL.Seconds()))
	return out, nil
}

// WarmRanges recomputes and caches the booked ranges of one property.
func (s *QueryService) WarmRanges(ctx context.Context, propertyID string) error {
	_, err := s.refreshRanges(ctx, propertyID)
	return err
}

// Rentals sums nights and revenue of paid bookings per property owned by the caller.
func (s *QueryService) Rentals(ctx context.Context) ([]domain.RentalSummary, error) {
	renter, err := requireProfile(ctx, s.identity)
	if err != nil {
		return nil, err
	}
	out, err := s.properties.ListRentals(ctx, renter.Profile.ID)
	if err != nil {
		return nil, domain.Persist("list_rentals", err)
	}
	return out, nil
}

// cached reports a usable hit. An entry that fails to decode is dropped and
// treated as a miss so the caller rebuilds it from the store.
func cached(ctx context.Context, c domain.Cache, key string, dst any) bool {
	ok, err := c.Get(ctx, key, dst)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache read failed, rebuilding")
		_ = c.Del(ctx, key)
		return false
	}
	return ok
}

// invalidateProperty drops every cached view a booking change can affect.
func invalidateProperty(ctx context.Context, c domain.Cache, propertyID string) {
	if c == nil {
		return
	}
	_ = c.Del(ctx, rangesKey(propertyID))
	_ = c.Del(ctx, reportKey(true))
	_ = c.Del(ctx, reportKey(false))
}
