package main

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"staybook/internal/adapters/observability"
	redisad "staybook/internal/adapters/redis"
	"staybook/internal/app"
	"staybook/internal/shared"
	mysqlrepo "staybook/internal/storage/mysql"
)

// reconcile rebuilds the cached booking reports from the paid bookings and
// re-warms the booked-range cache of every property that has any.
func main() {
	ctx := context.Background()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv)
	log.Info().Int("workers", cfg.Workers).Msg("reconcile starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cache.Close()

	// Sweeps run as an internal job; the resolver is never consulted.
	reports := app.NewReportService(nil, repo, cache, cfg.CacheTTL)
	queries := app.NewQueryService(nil, repo, repo, cache, cfg.CacheTTL)

	g, gctx := errgroup.WithContext(ctx)
	for _, monthly := range []bool{true, false} {
		g.Go(func() error {
			_, err := reports.Sweep(gctx, monthly)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("report sweep failed")
	}

	ids, err := confirmedProperties(ctx, repo)
	if err != nil {
		log.Fatal().Err(err).Msg("list confirmed bookings failed")
	}

	sem := semaphore.NewWeighted(int64(max(cfg.Workers, 1)))
	var wg sync.WaitGroup
	for _, id := range ids {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func(propertyID string) {
			defer wg.Done()
			defer sem.Release(1)

			if err := queries.WarmRanges(ctx, propertyID); err != nil {
				log.Warn().Str("property_id", propertyID).Err(err).Msg("warm ranges failed")
				return
			}
			log.Debug().Str("property_id", propertyID).Msg("ranges warmed")
		}(id)
	}

	wg.Wait()
	log.Info().Int("properties", len(ids)).Msg("reconcile completed")
}

func confirmedProperties(ctx context.Context, repo *mysqlrepo.Repo) ([]string, error) {
	bs, err := repo.ListConfirmed(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	for _, b := range bs {
		seen[b.PropertyID] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
