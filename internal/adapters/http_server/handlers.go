package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"staybook/internal/app"
	"staybook/internal/calendar"
	"staybook/internal/domain"
)

type Reservations interface {
	Quote(ctx context.Context, propertyID string, checkIn, checkOut time.Time) (domain.Totals, error)
	Reserve(ctx context.Context, propertyID string, checkIn, checkOut time.Time) (app.Reservation, error)
	ConfirmPayment(ctx context.Context, bookingID string) (domain.Booking, error)
	ListBookings(ctx context.Context) ([]domain.BookingView, error)
	CancelBooking(ctx context.Context, bookingID string) error
}

type Queries interface {
	BookedRanges(ctx context.Context, propertyID string) ([]domain.DateRange, error)
	Rentals(ctx context.Context) ([]domain.RentalSummary, error)
}

type Reports interface {
	Report(ctx context.Context, monthly bool) (domain.BookingReport, error)
}

type ReviewsAPI interface {
	CreateReview(ctx context.Context, propertyID string, rating int, comment string) (domain.Review, error)
	PropertyReviews(ctx context.Context, propertyID string) ([]domain.ReviewView, error)
	PropertyRating(ctx context.Context, propertyID string) (domain.RatingSummary, error)
	MyReviews(ctx context.Context) ([]domain.ReviewView, error)
	DeleteReview(ctx context.Context, reviewID string) error
	ToggleFavorite(ctx context.Context, propertyID string) (bool, error)
	IsFavorite(ctx context.Context, propertyID string) (bool, error)
	Favorites(ctx context.Context) ([]domain.PropertyCard, error)
}

type Handlers struct {
	R       Reservations
	Q       Queries
	Reports Reports
	// Reviews serves reviews and favorites; nil leaves those routes unmounted.
	Reviews ReviewsAPI
	// Limit guards renter mutations; nil disables it.
	Limit func(http.Handler) http.Handler
	// Payment authenticates the payment provider's callback. Without it the
	// callback route is not mounted at all.
	Payment func(http.Handler) http.Handler
	// Ready reports whether backing services answer; nil means always ready.
	Ready func(ctx context.Context) error
}

type problem struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (s *Server) MountHandlers(h *Handlers) {
	limit := h.Limit
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}

	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/readyz", h.ready)
	s.mux.Get("/v1/properties/{id}/quote", h.quote)
	s.mux.Get("/v1/properties/{id}/booked-ranges", h.bookedRanges)
	s.mux.Get("/v1/bookings", h.listBookings)
	s.mux.With(limit).Post("/v1/bookings", h.reserve)
	s.mux.With(limit).Delete("/v1/bookings/{id}", h.cancelBooking)
	if h.Payment != nil {
		s.mux.With(h.Payment).Post("/v1/bookings/{id}/payment", h.confirmPayment)
	}
	s.mux.Get("/v1/rentals", h.rentals)
	s.mux.Get("/v1/admin/reports/bookings", h.report)

	if h.Reviews != nil {
		s.mux.Get("/v1/properties/{id}/reviews", h.propertyReviews)
		s.mux.Get("/v1/properties/{id}/rating", h.propertyRating)
		s.mux.With(limit).Post("/v1/properties/{id}/reviews", h.createReview)
		s.mux.Get("/v1/properties/{id}/favorite", h.isFavorite)
		s.mux.With(limit).Post("/v1/properties/{id}/favorite", h.toggleFavorite)
		s.mux.Get("/v1/reviews", h.myReviews)
		s.mux.With(limit).Delete("/v1/reviews/{id}", h.deleteReview)
		s.mux.Get("/v1/favorites", h.favorites)
	}
}

func (h *Handlers) ready(w http.ResponseWriter, r *http.Request) {
	if h.Ready != nil {
		if err := h.Ready(r.Context()); err != nil {
			log.Warn().Err(err).Msg("readiness check failed")
			writeProblem(w, http.StatusServiceUnavailable, "Service Unavailable", "a backing service is not reachable")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	writeProblemBody(w, problem{Type: "about:blank", Title: title, Status: status, Detail: detail})
}

func writeProblemBody(w http.ResponseWriter, p problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps core errors onto HTTP problems.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var pe *domain.PersistenceError
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, domain.ErrProfileRequired):
		writeProblemBody(w, problem{Type: "/problems/profile-required", Title: "Profile Required", Status: http.StatusForbidden, Detail: err.Error()})
	case errors.Is(err, domain.ErrForbidden):
		writeProblem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrInvalidRange), errors.Is(err, domain.ErrInvalidPrice):
		writeProblem(w, http.StatusUnprocessableEntity, "Invalid Booking", err.Error())
	case errors.Is(err, domain.ErrInvalidRating):
		writeProblem(w, http.StatusUnprocessableEntity, "Invalid Review", err.Error())
	case errors.Is(err, domain.ErrDuplicateReview):
		writeProblem(w, http.StatusConflict, "Duplicate Review", err.Error())
	case errors.Is(err, domain.ErrBookingConflict):
		writeProblemBody(w, problem{Type: "/problems/booking-conflict", Title: "Booking Conflict", Status: http.StatusConflict, Detail: err.Error(), Retryable: true})
	case errors.As(err, &pe):
		log.Error().Err(err).Str("op", pe.Op).Str("path", r.URL.Path).Msg("persistence failure")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "could not complete the operation")
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("unexpected error")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "could not complete the operation")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	return `W/"` + hex.EncodeToString(sum[:]) + `"`, body
}

func writeCacheable(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	// If client already has this version, short-circuit.
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write body")
	}
}

type stayRequest struct {
	PropertyID string `json:"propertyId" validate:"required,max=64"`
	CheckIn    string `json:"checkIn" validate:"required,datetime=2006-01-02"`
	CheckOut   string `json:"checkOut" validate:"required,datetime=2006-01-02"`
}

func (s stayRequest) dates() (time.Time, time.Time) {
	in, _ := calendar.ParseDate(s.CheckIn)
	out, _ := calendar.ParseDate(s.CheckOut)
	return in, out
}

func (h *Handlers) quote(w http.ResponseWriter, r *http.Request) {
	req := stayRequest{
		PropertyID: chi.URLParam(r, "id"),
		CheckIn:    r.URL.Query().Get("checkIn"),
		CheckOut:   r.URL.Query().Get("checkOut"),
	}
	if err := validate.Struct(req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	in, out := req.dates()
	totals, err := h.R.Quote(r.Context(), req.PropertyID, in, out)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func (h *Handlers) reserve(w http.ResponseWriter, r *http.Request) {
	var req stayRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid request", "body must be JSON")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	in, out := req.dates()
	res, err := h.R.Reserve(r.Context(), req.PropertyID, in, out)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/bookings/"+res.BookingID)
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handlers) listBookings(w http.ResponseWriter, r *http.Request) {
	out, err := h.R.ListBookings(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if out == nil {
		out = []domain.BookingView{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) cancelBooking(w http.ResponseWriter, r *http.Request) {
	if err := h.R.CancelBooking(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) confirmPayment(w http.ResponseWriter, r *http.Request) {
	b, err := h.R.ConfirmPayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": b.ID, "status": b.PaymentStatus})
}

func (h *Handlers) bookedRanges(w http.ResponseWriter, r *http.Request) {
	out, err := h.Q.BookedRanges(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if out == nil {
		out = []domain.DateRange{}
	}
	writeCacheable(w, r, out)
}

func (h *Handlers) rentals(w http.ResponseWriter, r *http.Request) {
	out, err := h.Q.Rentals(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if out == nil {
		out = []domain.RentalSummary{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) report(w http.ResponseWriter, r *http.Request) {
	monthly := true
	switch r.URL.Query().Get("period") {
	case "", "month":
	case "day":
		monthly = false
	default:
		writeProblem(w, http.StatusBadRequest, "Invalid period", "period must be month or day")
		return
	}
	rep, err := h.Reports.Report(r.Context(), monthly)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCacheable(w, r, rep)
}

type reviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"required,min=10,max=1000"`
}

func (h *Handlers) createReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid request", "body must be JSON")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	rv, err := h.Reviews.CreateReview(r.Context(), chi.URLParam(r, "id"), req.Rating, req.Comment)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, domain.ReviewView{
		ID: rv.ID, PropertyID: rv.PropertyID, Rating: rv.Rating, Comment: rv.Comment, CreatedAt: rv.CreatedAt,
	})
}

func (h *Handlers) propertyReviews(w http.ResponseWriter, r *http.Request) {
	out, err := h.Reviews.PropertyReviews(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if out == nil {
		out = []domain.ReviewView{}
	}
	writeCacheable(w, r, out)
}

func (h *Handlers) propertyRating(w http.ResponseWriter, r *http.Request) {
	out, err := h.Reviews.PropertyRating(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCacheable(w, r, out)
}

func (h *Handlers) myReviews(w http.ResponseWriter, r *http.Request) {
	out, err := h.Reviews.MyReviews(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if out == nil {
		out = []domain.ReviewView{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) deleteReview(w http.ResponseWriter, r *http.Request) {
	if err := h.Reviews.DeleteReview(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) toggleFavorite(w http.ResponseWriter, r *http.Request) {
	on, err := h.Reviews.ToggleFavorite(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"favorite": on})
}

func (h *Handlers) isFavorite(w http.ResponseWriter, r *http.Request) {
	on, err := h.Reviews.IsFavorite(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"favorite": on})
}

func (h *Handlers) favorites(w http.ResponseWriter, r *http.Request) {
	out, err := h.Reviews.Favorites(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if out == nil {
		out = []domain.PropertyCard{}
	}
	writeJSON(w, http.StatusOK, out)
}
