//go:build integration

package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	goredis "github.com/redis/go-redis/v9"

	server "staybook/internal/adapters/http_server"
	"staybook/internal/adapters/identity"
	redisad "staybook/internal/adapters/redis"
	"staybook/internal/app"
	"staybook/internal/domain"
	mysqlrepo "staybook/internal/storage/mysql"
)

// ---------- helpers ----------

func migrationsDir() string {
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		return v
	}
	return filepath.Join("..", "..", "migrations")
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := migrationsDir()
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir %s: %v", dir, err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)
	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env:        []string{"MYSQL_ROOT_PASSWORD=root", "MYSQL_DATABASE=staybook"},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	dsn := fmt.Sprintf("root:root@tcp(127.0.0.1:%s)/staybook?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		resource.GetPort("3306/tcp"))

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	applyMigrations(t, db)
	return db
}

type client struct {
	t     *testing.T
	base  string
	token string
	// header carries token raw; empty means an Authorization bearer.
	header string
}

func (c client) call(method, path, body string, out any) int {
	c.t.Helper()
	req, err := http.NewRequest(method, c.base+path, strings.NewReader(body))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	switch {
	case c.token == "":
	case c.header != "":
		req.Header.Set(c.header, c.token)
	default:
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()
	if out != nil && res.StatusCode < 300 {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			c.t.Fatalf("decode %s: %v", path, err)
		}
	}
	return res.StatusCode
}

// ---------- the test ----------

func TestHTTP_EndToEnd_ReservePayConflict(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	for _, p := range []domain.Profile{
		{ID: "00000000-0000-0000-0000-0000000000b1", ExternalID: "user_owner", Username: "owner"},
		{ID: "00000000-0000-0000-0000-0000000000b2", ExternalID: "user_alice", Username: "alice"},
		{ID: "00000000-0000-0000-0000-0000000000b3", ExternalID: "user_bob", Username: "bob"},
		{ID: "00000000-0000-0000-0000-0000000000b4", ExternalID: "user_admin", Username: "admin", Role: domain.RoleAdmin},
	} {
		if err := repo.UpsertProfile(ctx, p); err != nil {
			t.Fatalf("UpsertProfile: %v", err)
		}
	}
	if err := repo.UpsertProperty(ctx, domain.Property{
		ID: "prop-e2e", ProfileID: "00000000-0000-0000-0000-0000000000b1",
		Name: "Cabin", Country: "NO", PriceMinor: 100, Beds: 2, Baths: 1, Guests: 4,
	}); err != nil {
		t.Fatalf("UpsertProperty: %v", err)
	}

	mr := miniredis.RunT(t)
	cache := redisad.NewWithClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))

	verifier := identity.NewVerifier("e2e-secret")
	resolver := identity.NewResolver(repo)
	payments := identity.NewVerifier("e2e-payments")
	srv := server.New(verifier.Middleware)
	srv.MountHandlers(&server.Handlers{
		R:       app.NewReservationService(resolver, repo, repo, cache),
		Q:       app.NewQueryService(resolver, repo, repo, cache, time.Minute),
		Reports: app.NewReportService(resolver, repo, cache, time.Minute),
		Reviews: app.NewReviewService(resolver, repo, repo, repo, cache, time.Minute),
		Payment: payments.RequireService(identity.PaymentHeader, identity.PaymentSubject),
	})
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	as := func(sub string) client {
		tok, err := verifier.Issue(sub, time.Hour)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		return client{t: t, base: ts.URL, token: tok}
	}
	alice, bob, owner, admin := as("user_alice"), as("user_bob"), as("user_owner"), as("user_admin")
	body := `{"propertyId":"prop-e2e","checkIn":"2024-05-01","checkOut":"2024-05-04"}`

	// anonymous and profile-less callers are rejected
	if st := (client{t: t, base: ts.URL}).call(http.MethodPost, "/v1/bookings", body, nil); st != http.StatusUnauthorized {
		t.Fatalf("anonymous reserve = %d", st)
	}
	if st := as("user_ghost").call(http.MethodPost, "/v1/bookings", body, nil); st != http.StatusForbidden {
		t.Fatalf("ghost reserve = %d", st)
	}

	var a, b struct {
		ID          string `json:"id"`
		TotalNights int    `json:"totalNights"`
		OrderTotal  int64  `json:"orderTotal"`
	}
	if st := alice.call(http.MethodPost, "/v1/bookings", body, &a); st != http.StatusCreated {
		t.Fatalf("alice reserve = %d", st)
	}
	if a.TotalNights != 3 || a.OrderTotal != 300 {
		t.Fatalf("alice totals = %+v", a)
	}
	// holds never block each other
	if st := bob.call(http.MethodPost, "/v1/bookings", `{"propertyId":"prop-e2e","checkIn":"2024-05-03","checkOut":"2024-05-06"}`, &b); st != http.StatusCreated {
		t.Fatalf("bob reserve = %d", st)
	}

	gwTok, err := payments.Issue(identity.PaymentSubject, time.Hour)
	if err != nil {
		t.Fatalf("issue gateway: %v", err)
	}
	gateway := client{t: t, base: ts.URL, token: gwTok, header: identity.PaymentHeader}

	// renters cannot mark their own hold paid
	if st := alice.call(http.MethodPost, "/v1/bookings/"+a.ID+"/payment", "", nil); st != http.StatusUnauthorized {
		t.Fatalf("renter pay = %d, want 401", st)
	}
	if st := gateway.call(http.MethodPost, "/v1/bookings/"+a.ID+"/payment", "", nil); st != http.StatusOK {
		t.Fatalf("alice pay = %d", st)
	}
	if st := gateway.call(http.MethodPost, "/v1/bookings/"+b.ID+"/payment", "", nil); st != http.StatusConflict {
		t.Fatalf("bob pay = %d, want 409", st)
	}

	review := `{"rating":5,"comment":"Lovely lake view, warm cabin."}`
	if st := alice.call(http.MethodPost, "/v1/properties/prop-e2e/reviews", review, nil); st != http.StatusCreated {
		t.Fatalf("alice review = %d", st)
	}
	if st := alice.call(http.MethodPost, "/v1/properties/prop-e2e/reviews", review, nil); st != http.StatusConflict {
		t.Fatalf("second review = %d, want 409", st)
	}
	if st := owner.call(http.MethodPost, "/v1/properties/prop-e2e/reviews", review, nil); st != http.StatusForbidden {
		t.Fatalf("owner review = %d, want 403", st)
	}
	var rating domain.RatingSummary
	if st := bob.call(http.MethodGet, "/v1/properties/prop-e2e/rating", "", &rating); st != http.StatusOK {
		t.Fatalf("rating = %d", st)
	}
	if rating.Count != 1 || rating.Average != 5 {
		t.Fatalf("rating = %+v", rating)
	}
	var fav map[string]bool
	if st := bob.call(http.MethodPost, "/v1/properties/prop-e2e/favorite", "", &fav); st != http.StatusOK || !fav["favorite"] {
		t.Fatalf("favorite = %d %v", st, fav)
	}

	var ranges []domain.DateRange
	if st := bob.call(http.MethodGet, "/v1/properties/prop-e2e/booked-ranges", "", &ranges); st != http.StatusOK {
		t.Fatalf("ranges = %d", st)
	}
	if len(ranges) != 1 || ranges[0].CheckIn.Format("2006-01-02") != "2024-05-01" {
		t.Fatalf("ranges = %+v", ranges)
	}

	var rentals []domain.RentalSummary
	if st := owner.call(http.MethodGet, "/v1/rentals", "", &rentals); st != http.StatusOK {
		t.Fatalf("rentals = %d", st)
	}
	if len(rentals) != 1 || rentals[0].TotalNightsSum != 3 || rentals[0].OrderTotalSum != 300 {
		t.Fatalf("rentals = %+v", rentals)
	}

	if st := alice.call(http.MethodGet, "/v1/admin/reports/bookings", "", nil); st != http.StatusForbidden {
		t.Fatalf("non-admin report = %d", st)
	}
	var rep domain.BookingReport
	if st := admin.call(http.MethodGet, "/v1/admin/reports/bookings?period=month", "", &rep); st != http.StatusOK {
		t.Fatalf("admin report = %d", st)
	}
	if rep.Total.Count != 1 || rep.Total.NightsSum != 3 || rep.Total.RevenueSum != 300 {
		t.Fatalf("report total = %+v", rep.Total)
	}
}
