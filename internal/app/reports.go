package app

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"staybook/internal/calendar"
	"staybook/internal/domain"
)

// ReportService aggregates paid bookings for the admin dashboard.
type ReportService struct {
	identity domain.IdentityResolver
	bookings domain.BookingStore
	cache    domain.Cache
	cacheTTL time.Duration
	now      func() time.Time
}

func NewReportService(id domain.IdentityResolver, b domain.BookingStore, c domain.Cache, ttl time.Duration) *ReportService {
	return &ReportService{identity: id, bookings: b, cache: c, cacheTTL: ttl, now: time.Now}
}

func reportKey(monthly bool) string {
	if monthly {
		return "report:month"
	}
	return "report:day"
}

// Report returns the cached booking report; admins only.
func (s *ReportService) Report(ctx context.Context, monthly bool) (domain.BookingReport, error) {
	renter, err := requireProfile(ctx, s.identity)
	if err != nil {
		return domain.BookingReport{}, err
	}
	if !renter.Profile.IsAdmin() {
		return domain.BookingReport{}, domain.ErrForbidden
	}
	var out domain.BookingReport
	if cached(ctx, s.cache, reportKey(monthly), &out) {
		return out, nil
	}
	return s.Sweep(ctx, monthly)
}

// Sweep re-scans every paid booking, caches and returns the aggregate.
func (s *ReportService) Sweep(ctx context.Context, monthly bool) (domain.BookingReport, error) {
	bs, err := s.bookings.ListConfirmed(ctx)
	if err != nil {
		return domain.BookingReport{}, domain.Persist("list_confirmed", err)
	}
	rep := Aggregate(bs, monthly)
	rep.GeneratedAt = s.now().UTC()
	_ = s.cache.Set(ctx, reportKey(monthly), rep, int(s.cacheTTL.Seconds()))
	log.Info().
		Bool("monthly", monthly).
		Int("bookings", rep.Total.Count).
		Int64("revenue", rep.Total.RevenueSum).
		Msg("reconciliation sweep done")
	return rep, nil
}

// Aggregate folds paid bookings into totals per property and per period
// (bucketed by creation time). Pending holds are skipped. Output slices are
// sorted by key.
func Aggregate(bs []domain.Booking, monthly bool) domain.BookingReport {
	var rep domain.BookingReport
	byProp := map[string]*domain.Aggregate{}
	byPeriod := map[string]*domain.Aggregate{}

	for _, b := range bs {
		if !b.Paid() {
			continue
		}
		add(&rep.Total, b)
		add(bucket(byProp, b.PropertyID), b)
		add(bucket(byPeriod, calendar.GroupKey(b.CreatedAt, monthly)), b)
	}

	rep.ByProperty = make([]domain.PropertyAggregate, 0, len(byProp))
	for id, a := range byProp {
		rep.ByProperty = append(rep.ByProperty, domain.PropertyAggregate{PropertyID: id, Aggregate: *a})
	}
	sort.Slice(rep.ByProperty, func(i, j int) bool { return rep.ByProperty[i].PropertyID < rep.ByProperty[j].PropertyID })

	rep.ByPeriod = make([]domain.PeriodAggregate, 0, len(byPeriod))
	for k, a := range byPeriod {
		rep.ByPeriod = append(rep.ByPeriod, domain.PeriodAggregate{Period: k, Aggregate: *a})
	}
	sort.Slice(rep.ByPeriod, func(i, j int) bool { return rep.ByPeriod[i].Period < rep.ByPeriod[j].Period })
	return rep
}

func bucket(m map[string]*domain.Aggregate, k string) *domain.Aggregate {
	a, ok := m[k]
	if !ok {
		a = &domain.Aggregate{}
		m[k] = a
	}
	return a
}

func add(a *domain.Aggregate, b domain.Booking) {
	a.Count++
	a.NightsSum += int64(b.TotalNights)
	a.RevenueSum += b.OrderTotal
}
