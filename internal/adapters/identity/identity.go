// Package identity verifies bearer tokens and resolves the caller's profile.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"staybook/internal/domain"
)

type ctxKey struct{}

// WithSubject stores the verified external identity on ctx.
func WithSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, ctxKey{}, sub)
}

// Subject returns the external identity on ctx, if any.
func Subject(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(ctxKey{}).(string)
	return s, ok && s != ""
}

// Verifier checks HS256 bearer tokens issued by the identity provider.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), now: time.Now}
}

var errBadToken = errors.New("invalid token")

// Verify returns the token subject.
func (v *Verifier) Verify(raw string) (string, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithTimeFunc(v.now), jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return "", errBadToken
	}
	sub, err := tok.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errBadToken
	}
	return sub, nil
}

// Issue signs a token for sub; cmd/devseed prints these for local use.
func (v *Verifier) Issue(sub string, ttl time.Duration) (string, error) {
	now := v.now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Middleware attaches the bearer subject to the request context. Requests
// without a token pass through anonymously; an invalid token is rejected.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			next.ServeHTTP(w, r)
			return
		}
		raw, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		sub, err := v.Verify(strings.TrimSpace(raw))
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), sub)))
	})
}

// The payment provider calls back with its own token in PaymentHeader, signed
// with a secret renters never see.
const (
	PaymentHeader  = "X-Payment-Token"
	PaymentSubject = "payment-gateway"
)

// RequireService admits only requests whose header carries a valid token for
// subject. Anything else, including a renter's bearer token, gets 401.
// A verifier without a secret rejects every request.
func (v *Verifier) RequireService(header, subject string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(header))
			if len(v.secret) == 0 || raw == "" {
				http.Error(w, "service credential required", http.StatusUnauthorized)
				return
			}
			sub, err := v.Verify(raw)
			if err != nil || sub != subject {
				http.Error(w, "invalid service credential", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Resolver implements domain.IdentityResolver from the request context.
type Resolver struct{ profiles domain.ProfileStore }

func NewResolver(p domain.ProfileStore) *Resolver { return &Resolver{profiles: p} }

func (r *Resolver) CurrentRenter(ctx context.Context) (domain.Renter, error) {
	sub, ok := Subject(ctx)
	if !ok {
		return domain.Renter{}, domain.ErrUnauthenticated
	}
	p, found, err := r.profiles.ProfileByExternalID(ctx, sub)
	if err != nil {
		return domain.Renter{}, err
	}
	out := domain.Renter{ExternalID: sub}
	if found {
		out.Profile = &p
	}
	return out, nil
}
