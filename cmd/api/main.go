package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	amqpad "staybook/internal/adapters/amqp"
	server "staybook/internal/adapters/http_server"
	"staybook/internal/adapters/identity"
	"staybook/internal/adapters/observability"
	redisad "staybook/internal/adapters/redis"
	"staybook/internal/app"
	"staybook/internal/shared"
	mysqlrepo "staybook/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cache.Close()

	verifier := identity.NewVerifier(cfg.JWTSecret)
	resolver := identity.NewResolver(repo)

	var opts []app.Option
	if cfg.AMQPURL != "" {
		opts = append(opts, app.WithEvents(amqpad.NewPublisher(cfg.AMQPURL)))
	}
	reservations := app.NewReservationService(resolver, repo, repo, cache, opts...)
	queries := app.NewQueryService(resolver, repo, repo, cache, cfg.CacheTTL)
	reports := app.NewReportService(resolver, repo, cache, cfg.CacheTTL)
	reviews := app.NewReviewService(resolver, repo, repo, repo, cache, cfg.CacheTTL)
	limiter := server.NewRateLimiter(cfg.ReserveRPS, cfg.ReserveBurst, cfg.LimiterIdle)

	handlers := &server.Handlers{
		R:       reservations,
		Q:       queries,
		Reports: reports,
		Reviews: reviews,
		Limit:   limiter.Middleware,
		Ready: func(ctx context.Context) error {
			return errors.Join(db.PingContext(ctx), cache.Ping(ctx))
		},
	}
	switch {
	case cfg.PaymentSecret == "":
		log.Warn().Msg("payment callback route disabled")
	case cfg.PaymentSecret == cfg.JWTSecret:
		log.Fatal().Msg("PAYMENT_SECRET must differ from JWT_SECRET")
	default:
		payments := identity.NewVerifier(cfg.PaymentSecret)
		handlers.Payment = payments.RequireService(identity.PaymentHeader, identity.PaymentSubject)
	}

	// http
	srv := server.New(verifier.Middleware)
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(handlers)

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
