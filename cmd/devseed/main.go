// Command devseed loads a local database with profiles and properties and
// prints bearer tokens for each profile.
package main

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"staybook/internal/adapters/identity"
	"staybook/internal/adapters/observability"
	"staybook/internal/domain"
	"staybook/internal/shared"
	mysqlrepo "staybook/internal/storage/mysql"
)

//go:embed fixtures.json
var defaultFixtures []byte

type fixtures struct {
	Profiles []struct {
		ID         string      `json:"id"`
		ExternalID string      `json:"externalId"`
		Username   string      `json:"username"`
		Role       domain.Role `json:"role"`
	} `json:"profiles"`
	Properties []struct {
		ID      string `json:"id"`
		OwnerID string `json:"ownerId"`
		Name    string `json:"name"`
		Country string `json:"country"`
		Price   int64  `json:"price"`
		Beds    int    `json:"beds"`
		Baths   int    `json:"baths"`
		Guests  int    `json:"guests"`
	} `json:"properties"`
}

type store interface {
	UpsertProfile(ctx context.Context, p domain.Profile) error
	UpsertProperty(ctx context.Context, p domain.Property) error
}

type issuer interface {
	Issue(sub string, ttl time.Duration) (string, error)
}

func main() {
	file := flag.String("file", "", "fixtures JSON (defaults to the built-in set)")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv)
	if cfg.AppEnv == "prod" {
		log.Fatal().Msg("devseed refuses to run with APP_ENV=prod")
	}

	raw := defaultFixtures
	if *file != "" {
		b, err := os.ReadFile(*file)
		if err != nil {
			log.Fatal().Err(err).Str("file", *file).Msg("read fixtures")
		}
		raw = b
	}
	var fx fixtures
	if err := json.Unmarshal(raw, &fx); err != nil {
		log.Fatal().Err(err).Msg("decode fixtures")
	}

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := seed(ctx, mysqlrepo.New(db), fx); err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}
	log.Info().Int("profiles", len(fx.Profiles)).Int("properties", len(fx.Properties)).Msg("seeded")

	var gateway issuer
	if cfg.PaymentSecret != "" {
		gateway = identity.NewVerifier(cfg.PaymentSecret)
	}
	if err := printTokens(os.Stdout, identity.NewVerifier(cfg.JWTSecret), gateway, fx, *ttl); err != nil {
		log.Fatal().Err(err).Msg("issue tokens")
	}
}

// seed upserts profiles before properties so owner references resolve.
func seed(ctx context.Context, s store, fx fixtures) error {
	for _, p := range fx.Profiles {
		if err := s.UpsertProfile(ctx, domain.Profile{ID: p.ID, ExternalID: p.ExternalID, Username: p.Username, Role: p.Role}); err != nil {
			return fmt.Errorf("profile %s: %w", p.ID, err)
		}
	}
	for _, p := range fx.Properties {
		if p.Price <= 0 {
			return fmt.Errorf("property %s: %w", p.ID, domain.ErrInvalidPrice)
		}
		prop := domain.Property{
			ID: p.ID, ProfileID: p.OwnerID, Name: p.Name, Country: p.Country,
			PriceMinor: p.Price, Beds: p.Beds, Baths: p.Baths, Guests: p.Guests,
		}
		if err := s.UpsertProperty(ctx, prop); err != nil {
			return fmt.Errorf("property %s: %w", p.ID, err)
		}
	}
	return nil
}

// printTokens writes one line per profile, plus the payment callback token
// when gateway is set.
func printTokens(w io.Writer, renters, gateway issuer, fx fixtures, ttl time.Duration) error {
	for _, p := range fx.Profiles {
		tok, err := renters.Issue(p.ExternalID, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%-12s Authorization: Bearer %s\n", p.Username, tok)
	}
	if gateway == nil {
		return nil
	}
	tok, err := gateway.Issue(identity.PaymentSubject, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%-12s %s: %s\n", "payments", identity.PaymentHeader, tok)
	return nil
}
