package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"staybook/internal/adapters/observability"
	"staybook/internal/domain"
)

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// observe records the latency of one store call and passes err through.
func observe(op string, start time.Time, err error) error {
	observability.ObserveStore(op, err, time.Since(start))
	return err
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ---- seeding paths (profiles and properties are owned elsewhere) ----

func (r *Repo) UpsertProfile(ctx context.Context, p domain.Profile) error {
	role := p.Role
	if role == "" {
		role = domain.RoleUser
	}
	_, err := r.db.ExecContext(ctx, upsertProfileSQL, p.ID, p.ExternalID, p.Username, string(role))
	return err
}

func (r *Repo) UpsertProperty(ctx context.Context, p domain.Property) error {
	_, err := r.db.ExecContext(ctx, upsertPropertySQL,
		p.ID, p.ProfileID, p.Name, p.Country, p.PriceMinor, p.Beds, p.Baths, p.Guests)
	return err
}

// ---- ProfileStore ----

func (r *Repo) ProfileByExternalID(ctx context.Context, externalID string) (domain.Profile, bool, error) {
	start := time.Now()
	var p domain.Profile
	var role string
	err := r.db.QueryRowContext(ctx, profileByExternalIDSQL, externalID).Scan(&p.ID, &p.ExternalID, &p.Username, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Profile{}, false, observe("profile_by_external_id", start, nil)
	}
	if err != nil {
		return domain.Profile{}, false, observe("profile_by_external_id", start, err)
	}
	p.Role = domain.Role(role)
	return p, true, observe("profile_by_external_id", start, nil)
}

// ---- PropertyStore ----

func (r *Repo) NightlyPrice(ctx context.Context, propertyID string) (int64, error) {
	start := time.Now()
	var price int64
	err := r.db.QueryRowContext(ctx, nightlyPriceSQL, propertyID).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, observe("nightly_price", start, domain.ErrPropertyNotFound)
	}
	return price, observe("nightly_price", start, err)
}

func (r *Repo) ListRentals(ctx context.Context, ownerProfileID string) ([]domain.RentalSummary, error) {
	start := time.Now()
	rows, err := r.db.QueryContext(ctx, listRentalsSQL, ownerProfileID)
	if err != nil {
		return nil, observe("list_rentals", start, err)
	}
	defer rows.Close()

	var out []domain.RentalSummary
	for rows.Next() {
		var rs domain.RentalSummary
		if err := rows.Scan(&rs.PropertyID, &rs.Name, &rs.PriceMinor, &rs.TotalNightsSum, &rs.OrderTotalSum); err != nil {
			return nil, observe("list_rentals", start, err)
		}
		out = append(out, rs)
	}
	return out, observe("list_rentals", start, rows.Err())
}

// ---- BookingStore ----

func (r *Repo) InTx(ctx context.Context, fn func(tx domain.BookingTx) error) (err error) {
	start := time.Now()
	defer func() { _ = observe("tx", start, err) }()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(&bookingTx{q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Repo) ListConfirmedRanges(ctx context.Context, propertyID string) ([]domain.DateRange, error) {
	start := time.Now()
	out, err := listConfirmedRanges(ctx, r.db, listConfirmedRangesSQL, propertyID, "")
	return out, observe("list_confirmed_ranges", start, err)
}

func (r *Repo) ListForProfile(ctx context.Context, profileID string) ([]domain.BookingView, error) {
	start := time.Now()
	rows, err := r.db.QueryContext(ctx, listForProfileSQL, profileID)
	if err != nil {
		return nil, observe("list_for_profile", start, err)
	}
	defer rows.Close()

	var out []domain.BookingView
	for rows.Next() {
		var v domain.BookingView
		var status string
		if err := rows.Scan(&v.ID, &v.PropertyID, &v.PropertyName, &v.PropertyCountry, &v.CheckIn, &v.CheckOut,
			&v.TotalNights, &v.OrderTotal, &status, &v.CreatedAt); err != nil {
			return nil, observe("list_for_profile", start, err)
		}
		v.PaymentStatus = domain.PaymentStatus(status)
		out = append(out, v)
	}
	return out, observe("list_for_profile", start, rows.Err())
}

func (r *Repo) ListConfirmed(ctx context.Context) ([]domain.Booking, error) {
	start := time.Now()
	rows, err := r.db.QueryContext(ctx, listConfirmedSQL)
	if err != nil {
		return nil, observe("list_confirmed", start, err)
	}
	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, observe("list_confirmed", start, err)
		}
		out = append(out, b)
	}
	return out, observe("list_confirmed", start, rows.Err())
}

func (r *Repo) DeleteForProfile(ctx context.Context, bookingID, profileID string) (string, error) {
	start := time.Now()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", observe("delete_for_profile", start, err)
	}
	defer func() { _ = tx.Rollback() }()

	var propertyID string
	err = tx.QueryRowContext(ctx, ownedBookingSQL, bookingID, profileID).Scan(&propertyID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", observe("delete_for_profile", start, domain.ErrBookingNotFound)
	}
	if err != nil {
		return "", observe("delete_for_profile", start, err)
	}
	if _, err := tx.ExecContext(ctx, deleteForProfileSQL, bookingID, profileID); err != nil {
		return "", observe("delete_for_profile", start, err)
	}
	return propertyID, observe("delete_for_profile", start, tx.Commit())
}

// ---- BookingTx ----

type bookingTx struct{ q queryer }

func (t *bookingTx) DeletePendingFor(ctx context.Context, profileID string) (int64, error) {
	start := time.Now()
	res, err := t.q.ExecContext(ctx, deletePendingForSQL, profileID)
	if err != nil {
		return 0, observe("delete_pending", start, err)
	}
	n, err := res.RowsAffected()
	return n, observe("delete_pending", start, err)
}

func (t *bookingTx) InsertPending(ctx context.Context, b domain.Booking) (string, error) {
	start := time.Now()
	_, err := t.q.ExecContext(ctx, insertPendingSQL,
		b.ID,
		b.PropertyID,
		b.ProfileID,
		b.CheckIn.Format("2006-01-02"),
		b.CheckOut.Format("2006-01-02"),
		b.TotalNights,
		b.OrderTotal,
		b.CreatedAt.UTC(),
	)
	if err != nil {
		return "", observe("insert_pending", start, err)
	}
	return b.ID, observe("insert_pending", start, nil)
}

func (t *bookingTx) LockProperty(ctx context.Context, propertyID string) error {
	start := time.Now()
	var id string
	err := t.q.QueryRowContext(ctx, lockPropertySQL, propertyID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return observe("lock_property", start, domain.ErrPropertyNotFound)
	}
	return observe("lock_property", start, err)
}

func (t *bookingTx) GetBooking(ctx context.Context, bookingID string) (domain.Booking, error) {
	start := time.Now()
	b, err := scanBooking(t.q.QueryRowContext(ctx, getBookingForUpdateSQL, bookingID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Booking{}, observe("get_booking", start, domain.ErrBookingNotFound)
	}
	return b, observe("get_booking", start, err)
}

func (t *bookingTx) ListConfirmedRanges(ctx context.Context, propertyID, exceptID string) ([]domain.DateRange, error) {
	start := time.Now()
	out, err := listConfirmedRanges(ctx, t.q, lockedConfirmedRangesSQL, propertyID, exceptID)
	return out, observe("list_confirmed_ranges", start, err)
}

func (t *bookingTx) MarkPaid(ctx context.Context, bookingID string) error {
	start := time.Now()
	res, err := t.q.ExecContext(ctx, markPaidSQL, bookingID)
	if err != nil {
		return observe("mark_paid", start, err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		err = domain.ErrBookingNotFound
	}
	return observe("mark_paid", start, err)
}

// ---- scanning ----

type scanner interface{ Scan(dest ...any) error }

func scanBooking(s scanner) (domain.Booking, error) {
	var b domain.Booking
	var status string
	if err := s.Scan(&b.ID, &b.PropertyID, &b.ProfileID, &b.CheckIn, &b.CheckOut,
		&b.TotalNights, &b.OrderTotal, &status, &b.CreatedAt); err != nil {
		return domain.Booking{}, err
	}
	b.PaymentStatus = domain.PaymentStatus(status)
	b.CheckIn, b.CheckOut = b.CheckIn.UTC(), b.CheckOut.UTC()
	return b, nil
}

func listConfirmedRanges(ctx context.Context, q queryer, query, propertyID, exceptID string) ([]domain.DateRange, error) {
	rows, err := q.QueryContext(ctx, query, propertyID, exceptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DateRange
	for rows.Next() {
		var dr domain.DateRange
		if err := rows.Scan(&dr.CheckIn, &dr.CheckOut); err != nil {
			return nil, err
		}
		dr.CheckIn, dr.CheckOut = dr.CheckIn.UTC(), dr.CheckOut.UTC()
		out = append(out, dr)
	}
	return out, rows.Err()
}
