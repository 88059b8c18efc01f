package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"staybook/internal/domain"
)

// ---- identity ----

type fakeIdentity struct {
	renter *domain.Renter
	err    error
}

func (f *fakeIdentity) CurrentRenter(ctx context.Context) (domain.Renter, error) {
	if f.err != nil {
		return domain.Renter{}, f.err
	}
	if f.renter == nil {
		return domain.Renter{}, domain.ErrUnauthenticated
	}
	return *f.renter, nil
}

func renterWith(profileID string, role domain.Role) *fakeIdentity {
	return &fakeIdentity{renter: &domain.Renter{
		ExternalID: "ext-" + profileID,
		Profile:    &domain.Profile{ID: profileID, ExternalID: "ext-" + profileID, Role: role},
	}}
}

// ---- properties ----

type fakeProperties struct {
	prices  map[string]int64
	owners  map[string]string
	rentals []domain.RentalSummary
	calls   int
}

func (f *fakeProperties) NightlyPrice(ctx context.Context, id string) (int64, error) {
	f.calls++
	p, ok := f.prices[id]
	if !ok {
		return 0, domain.ErrPropertyNotFound
	}
	return p, nil
}

func (f *fakeProperties) PropertyOwner(ctx context.Context, id string) (string, error) {
	if owner, ok := f.owners[id]; ok {
		return owner, nil
	}
	if _, ok := f.prices[id]; ok {
		return "", nil
	}
	return "", domain.ErrPropertyNotFound
}

func (f *fakeProperties) ListRentals(ctx context.Context, owner string) ([]domain.RentalSummary, error) {
	return f.rentals, nil
}

// ---- bookings: copy-on-write transactions ----

type memBookings struct {
	mu         sync.Mutex
	rows       map[string]domain.Booking
	mutations  int
	failInsert error
	nextID     int
}

func newMemBookings(seed ...domain.Booking) *memBookings {
	m := &memBookings{rows: map[string]domain.Booking{}}
	for _, b := range seed {
		m.rows[b.ID] = b
	}
	return m
}

type memTx struct {
	m    *memBookings
	rows map[string]domain.Booking
}

func (m *memBookings) InTx(ctx context.Context, fn func(tx domain.BookingTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	work := make(map[string]domain.Booking, len(m.rows))
	for k, v := range m.rows {
		work[k] = v
	}
	if err := fn(&memTx{m: m, rows: work}); err != nil {
		return err // rollback: work is dropped
	}
	m.rows = work
	return nil
}

func (t *memTx) DeletePendingFor(ctx context.Context, profileID string) (int64, error) {
	var n int64
	for id, b := range t.rows {
		if b.ProfileID == profileID && !b.Paid() {
			delete(t.rows, id)
			n++
		}
	}
	t.m.mutations++
	return n, nil
}

func (t *memTx) InsertPending(ctx context.Context, b domain.Booking) (string, error) {
	if t.m.failInsert != nil {
		return "", t.m.failInsert
	}
	t.m.mutations++
	t.rows[b.ID] = b
	return b.ID, nil
}

func (t *memTx) LockProperty(ctx context.Context, propertyID string) error { return nil }

func (t *memTx) GetBooking(ctx context.Context, id string) (domain.Booking, error) {
	b, ok := t.rows[id]
	if !ok {
		return domain.Booking{}, domain.ErrBookingNotFound
	}
	return b, nil
}

func (t *memTx) ListConfirmedRanges(ctx context.Context, propertyID, exceptID string) ([]domain.DateRange, error) {
	return confirmedRanges(t.rows, propertyID, exceptID), nil
}

func (t *memTx) MarkPaid(ctx context.Context, id string) error {
	b, ok := t.rows[id]
	if !ok {
		return domain.ErrBookingNotFound
	}
	b.PaymentStatus = domain.PaymentPaid
	t.rows[id] = b
	t.m.mutations++
	return nil
}

func (m *memBookings) ListConfirmedRanges(ctx context.Context, propertyID string) ([]domain.DateRange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return confirmedRanges(m.rows, propertyID, ""), nil
}

func (m *memBookings) ListForProfile(ctx context.Context, profileID string) ([]domain.BookingView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.BookingView
	for _, b := range m.rows {
		if b.ProfileID == profileID {
			out = append(out, domain.BookingView{ID: b.ID, PropertyID: b.PropertyID, CheckIn: b.CheckIn, CheckOut: b.CheckOut,
				TotalNights: b.TotalNights, OrderTotal: b.OrderTotal, PaymentStatus: b.PaymentStatus})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckIn.After(out[j].CheckIn) })
	return out, nil
}

func (m *memBookings) ListConfirmed(ctx context.Context) ([]domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Booking
	for _, b := range m.rows {
		if b.Paid() {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memBookings) DeleteForProfile(ctx context.Context, id, profileID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[id]
	if !ok || b.ProfileID != profileID {
		return "", domain.ErrBookingNotFound
	}
	delete(m.rows, id)
	return b.PropertyID, nil
}

func (m *memBookings) all() []domain.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Booking, 0, len(m.rows))
	for _, b := range m.rows {
		out = append(out, b)
	}
	return out
}

func confirmedRanges(rows map[string]domain.Booking, propertyID, exceptID string) []domain.DateRange {
	var out []domain.DateRange
	for _, b := range rows {
		if b.PropertyID == propertyID && b.Paid() && b.ID != exceptID {
			out = append(out, b.Range())
		}
	}
	return out
}

// ---- reviews and favorites: one row per (profile, property) ----

type pair struct{ profile, property string }

type memReviews struct {
	mu   sync.Mutex
	rows map[pair]domain.Review
}

func newMemReviews() *memReviews { return &memReviews{rows: map[pair]domain.Review{}} }

func (m *memReviews) InsertReview(ctx context.Context, r domain.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := pair{r.ProfileID, r.PropertyID}
	if _, ok := m.rows[k]; ok {
		return domain.ErrDuplicateReview
	}
	m.rows[k] = r
	return nil
}

func (m *memReviews) HasReview(ctx context.Context, profileID, propertyID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[pair{profileID, propertyID}]
	return ok, nil
}

func (m *memReviews) list(keep func(domain.Review) bool) []domain.ReviewView {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ReviewView
	for _, r := range m.rows {
		if keep(r) {
			out = append(out, domain.ReviewView{ID: r.ID, PropertyID: r.PropertyID, Rating: r.Rating, Comment: r.Comment, CreatedAt: r.CreatedAt})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memReviews) ListPropertyReviews(ctx context.Context, propertyID string) ([]domain.ReviewView, error) {
	return m.list(func(r domain.Review) bool { return r.PropertyID == propertyID }), nil
}

func (m *memReviews) ListProfileReviews(ctx context.Context, profileID string) ([]domain.ReviewView, error) {
	return m.list(func(r domain.Review) bool { return r.ProfileID == profileID }), nil
}

func (m *memReviews) DeleteReview(ctx context.Context, reviewID, profileID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, r := range m.rows {
		if r.ID == reviewID && r.ProfileID == profileID {
			delete(m.rows, k)
			return r.PropertyID, nil
		}
	}
	return "", domain.ErrReviewNotFound
}

func (m *memReviews) RatingTotals(ctx context.Context, propertyID string) (int64, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	var n int
	for _, r := range m.rows {
		if r.PropertyID == propertyID {
			sum += int64(r.Rating)
			n++
		}
	}
	return sum, n, nil
}

type memFavorites struct {
	mu   sync.Mutex
	rows map[pair]bool
}

func newMemFavorites() *memFavorites { return &memFavorites{rows: map[pair]bool{}} }

func (m *memFavorites) ToggleFavorite(ctx context.Context, profileID, propertyID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := pair{profileID, propertyID}
	if m.rows[k] {
		delete(m.rows, k)
		return false, nil
	}
	m.rows[k] = true
	return true, nil
}

func (m *memFavorites) IsFavorite(ctx context.Context, profileID, propertyID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[pair{profileID, propertyID}], nil
}

func (m *memFavorites) ListFavorites(ctx context.Context, profileID string) ([]domain.PropertyCard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PropertyCard
	for k := range m.rows {
		if k.profile == profileID {
			out = append(out, domain.PropertyCard{ID: k.property})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---- cache (JSON round trip like the Redis adapter) ----

type fakeCache struct {
	store map[string][]byte
	dels  []string
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	v, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(v, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.dels = append(c.dels, key)
	delete(c.store, key)
	return nil
}

// ---- events ----

type fakePublisher struct {
	events []domain.BookingConfirmed
	err    error
}

func (p *fakePublisher) PublishBookingConfirmed(ctx context.Context, ev domain.BookingConfirmed) error {
	p.events = append(p.events, ev)
	return p.err
}

var errDB = errors.New("db down")
