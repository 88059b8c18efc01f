package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"staybook/internal/domain"
)

// ReviewService owns property reviews, ratings and renter favorites.
type ReviewService struct {
	identity   domain.IdentityResolver
	properties domain.PropertyStore
	reviews    domain.ReviewStore
	favorites  domain.FavoriteStore
	cache      domain.Cache
	cacheTTL   time.Duration
	now        func() time.Time
}

func NewReviewService(id domain.IdentityResolver, p domain.PropertyStore, r domain.ReviewStore, f domain.FavoriteStore, c domain.Cache, ttl time.Duration) *ReviewService {
	return &ReviewService{identity: id, properties: p, reviews: r, favorites: f, cache: c, cacheTTL: ttl, now: time.Now}
}

func reviewsKey(propertyID string) string { return fmt.Sprintf("reviews:%s", propertyID) }

func ratingKey(propertyID string) string { return fmt.Sprintf("rating:%s", propertyID) }

// CreateReview records the caller's review. Owners may not review their own
// property, and a second review of the same property is rejected.
func (s *ReviewService) CreateReview(ctx context.Context, propertyID string, rating int, comment string) (domain.Review, error) {
	renter, err := requireProfile(ctx, s.identity)
	if err != nil {
		return domain.Review{}, err
	}
	if !domain.ValidRating(rating) {
		return domain.Review{}, domain.ErrInvalidRating
	}
	owner, err := s.properties.PropertyOwner(ctx, propertyID)
	if err != nil {
		return domain.Review{}, domain.Persist("property_owner", err)
	}
	if owner == renter.Profile.ID {
		return domain.Review{}, domain.ErrOwnProperty
	}
	exists, err := s.reviews.HasReview(ctx, renter.Profile.ID, propertyID)
	if err != nil {
		return domain.Review{}, domain.Persist("has_review", err)
	}
	if exists {
		return domain.Review{}, domain.ErrDuplicateReview
	}

	r := domain.Review{
		ID:         uuid.NewString(),
		PropertyID: propertyID,
		ProfileID:  renter.Profile.ID,
		Rating:     rating,
		Comment:    strings.TrimSpace(comment),
		CreatedAt:  s.now().UTC(),
	}
	// the store's unique key still catches a concurrent duplicate
	if err := s.reviews.InsertReview(ctx, r); err != nil {
		return domain.Review{}, domain.Persist("insert_review", err)
	}
	s.invalidateReviews(ctx, propertyID)
	log.Info().Str("review", r.ID).Str("property", propertyID).Int("rating", rating).Msg("review created")
	return r, nil
}

// PropertyReviews lists a property's reviews, newest first.
func (s *ReviewService) PropertyReviews(ctx context.Context, propertyID string) ([]domain.ReviewView, error) {
	key := reviewsKey(propertyID)
	var out []domain.ReviewView
	if cached(ctx, s.cache, key, &out) {
		return out, nil
	}
	rs, err := s.reviews.ListPropertyReviews(ctx, propertyID)
	if err != nil {
		return nil, domain.Persist("list_property_reviews", err)
	}
	out = make([]domain.ReviewView, len(rs))
	copy(out, rs)
	_ = s.cache.Set(ctx, key, out, int(s.cacheTTL.Seconds()))
	return out, nil
}

// PropertyRating returns the average rating and review count of a property.
func (s *ReviewService) PropertyRating(ctx context.Context, propertyID string) (domain.RatingSummary, error) {
	key := ratingKey(propertyID)
	var out domain.RatingSummary
	if cached(ctx, s.cache, key, &out) {
		return out, nil
	}
	sum, n, err := s.reviews.RatingTotals(ctx, propertyID)
	if err != nil {
		return domain.RatingSummary{}, domain.Persist("rating_totals", err)
	}
	out = domain.NewRatingSummary(propertyID, sum, n)
	_ = s.cache.Set(ctx, key, out, int(s.cacheTTL.Seconds()))
	return out, nil
}

// MyReviews lists the reviews written by the caller.
func (s *ReviewService) MyReviews(ctx context.Context) ([]domain.ReviewView, error) {
	renter, err := requireProfile(ctx, s.identity)
	if err != nil {
		return nil, err
	}
	out, err := s.reviews.ListProfileReviews(ctx, renter.Profile.ID)
	if err != nil {
		return nil, domain.Persist("list_profile_reviews", err)
	}
	return out, nil
}

// DeleteReview removes one of the caller's reviews.
func (s *ReviewService) DeleteReview(ctx context.Context, reviewID string) error {
	renter, err := requireProfile(ctx, s.identity)
	if err != nil {
		return err
	}
	propertyID, err := s.reviews.DeleteReview(ctx, reviewID, renter.Profile.ID)
	if err != nil {
		return domain.Persist("delete_review", err)
	}
	s.invalidateReviews(ctx, propertyID)
	return nil
}

// ToggleFavorite flips the caller's favorite on a property and reports
// whether it is now set.
func (s *ReviewService) ToggleFavorite(ctx context.Context, propertyID string) (bool, error) {
	renter, err := requireProfile(ctx, s.identity)
	if err != nil {
		return false, err
	}
	if _, err := s.properties.PropertyOwner(ctx, propertyID); err != nil {
		return false, domain.Persist("property_owner", err)
	}
	added, err := s.favorites.ToggleFavorite(ctx, renter.Profile.ID, propertyID)
	if err != nil {
		return false, domain.Persist("toggle_favorite", err)
	}
	log.Debug().Str("property", propertyID).Str("profile", renter.Profile.ID).Bool("added", added).Msg("favorite toggled")
	return added, nil
}

// IsFavorite reports whether the caller has favorited the property.
func (s *ReviewService) IsFavorite(ctx context.Context, propertyID string) (bool, error) {
	renter, err := requireProfile(ctx, s.identity)
	if err != nil {
		return false, err
	}
	ok, err := s.favorites.IsFavorite(ctx, renter.Profile.ID, propertyID)
	if err != nil {
		return false, domain.Persist("is_favorite", err)
	}
	return ok, nil
}

// Favorites lists the caller's favorited properties.
func (s *ReviewService) Favorites(ctx context.Context) ([]domain.PropertyCard, error) {
	renter, err := requireProfile(ctx, s.identity)
	if err != nil {
		return nil, err
	}
	out, err := s.favorites.ListFavorites(ctx, renter.Profile.ID)
	if err != nil {
		return nil, domain.Persist("list_favorites", err)
	}
	return out, nil
}

func (s *ReviewService) invalidateReviews(ctx context.Context, propertyID string) {
	_ = s.cache.Del(ctx, reviewsKey(propertyID))
	_ = s.cache.Del(ctx, ratingKey(propertyID))
}
