package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"staybook/internal/domain"
)

const (
	errDupEntry     = 1062
	errNoReferenced = 1452
)

func mysqlCode(err error) uint16 {
	var me *mysqldrv.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

func (r *Repo) PropertyOwner(ctx context.Context, propertyID string) (string, error) {
	start := time.Now()
	var owner string
	err := r.db.QueryRowContext(ctx, propertyOwnerSQL, propertyID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", observe("property_owner", start, domain.ErrPropertyNotFound)
	}
	return owner, observe("property_owner", start, err)
}

// ---- ReviewStore ----

func (r *Repo) InsertReview(ctx context.Context, rv domain.Review) error {
	start := time.Now()
	_, err := r.db.ExecContext(ctx, insertReviewSQL,
		rv.ID, rv.PropertyID, rv.ProfileID, rv.Rating, rv.Comment, rv.CreatedAt.UTC())
	switch mysqlCode(err) {
	case errDupEntry:
		err = domain.ErrDuplicateReview
	case errNoReferenced:
		err = domain.ErrPropertyNotFound
	}
	return observe("insert_review", start, err)
}

func (r *Repo) HasReview(ctx context.Context, profileID, propertyID string) (bool, error) {
	start := time.Now()
	var ok bool
	err := r.db.QueryRowContext(ctx, hasReviewSQL, profileID, propertyID).Scan(&ok)
	return ok, observe("has_review", start, err)
}

func (r *Repo) ListPropertyReviews(ctx context.Context, propertyID string) ([]domain.ReviewView, error) {
	start := time.Now()
	out, err := listReviews(ctx, r.db, listPropertyReviewsSQL, propertyID)
	return out, observe("list_property_reviews", start, err)
}

func (r *Repo) ListProfileReviews(ctx context.Context, profileID string) ([]domain.ReviewView, error) {
	start := time.Now()
	out, err := listReviews(ctx, r.db, listProfileReviewsSQL, profileID)
	return out, observe("list_profile_reviews", start, err)
}

func (r *Repo) DeleteReview(ctx context.Context, reviewID, profileID string) (string, error) {
	start := time.Now()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", observe("delete_review", start, err)
	}
	defer func() { _ = tx.Rollback() }()

	var propertyID string
	err = tx.QueryRowContext(ctx, ownedReviewSQL, reviewID, profileID).Scan(&propertyID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", observe("delete_review", start, domain.ErrReviewNotFound)
	}
	if err != nil {
		return "", observe("delete_review", start, err)
	}
	if _, err := tx.ExecContext(ctx, deleteReviewSQL, reviewID, profileID); err != nil {
		return "", observe("delete_review", start, err)
	}
	return propertyID, observe("delete_review", start, tx.Commit())
}

func (r *Repo) RatingTotals(ctx context.Context, propertyID string) (int64, int, error) {
	start := time.Now()
	var sum int64
	var n int
	err := r.db.QueryRowContext(ctx, ratingTotalsSQL, propertyID).Scan(&sum, &n)
	return sum, n, observe("rating_totals", start, err)
}

func listReviews(ctx context.Context, q queryer, query, arg string) ([]domain.ReviewView, error) {
	rows, err := q.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ReviewView
	for rows.Next() {
		var v domain.ReviewView
		if err := rows.Scan(&v.ID, &v.PropertyID, &v.PropertyName, &v.Author, &v.Rating, &v.Comment, &v.CreatedAt); err != nil {
			return nil, err
		}
		v.CreatedAt = v.CreatedAt.UTC()
		out = append(out, v)
	}
	return out, rows.Err()
}

// ---- FavoriteStore ----

// ToggleFavorite locks the (profile, property) row so two toggles from the
// same renter apply one after the other.
func (r *Repo) ToggleFavorite(ctx context.Context, profileID, propertyID string) (added bool, err error) {
	start := time.Now()
	defer func() { _ = observe("toggle_favorite", start, err) }()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	var id string
	err = tx.QueryRowContext(ctx, findFavoriteForUpdateSQL, profileID, propertyID).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx, insertFavoriteSQL, uuid.NewString(), propertyID, profileID)
		switch mysqlCode(err) {
		case errDupEntry:
			// a concurrent toggle inserted it first; the pair is set either way
			return true, nil
		case errNoReferenced:
			return false, domain.ErrPropertyNotFound
		}
		added = true
	case err == nil:
		_, err = tx.ExecContext(ctx, deleteFavoriteSQL, id)
	}
	if err != nil {
		return false, err
	}
	return added, tx.Commit()
}

func (r *Repo) IsFavorite(ctx context.Context, profileID, propertyID string) (bool, error) {
	start := time.Now()
	var ok bool
	err := r.db.QueryRowContext(ctx, isFavoriteSQL, profileID, propertyID).Scan(&ok)
	return ok, observe("is_favorite", start, err)
}

func (r *Repo) ListFavorites(ctx context.Context, profileID string) ([]domain.PropertyCard, error) {
	start := time.Now()
	rows, err := r.db.QueryContext(ctx, listFavoritesSQL, profileID)
	if err != nil {
		return nil, observe("list_favorites", start, err)
	}
	defer rows.Close()

	var out []domain.PropertyCard
	for rows.Next() {
		var c domain.PropertyCard
		if err := rows.Scan(&c.ID, &c.Name, &c.Country, &c.PriceMinor); err != nil {
			return nil, observe("list_favorites", start, err)
		}
		out = append(out, c)
	}
	return out, observe("list_favorites", start, rows.Err())
}
