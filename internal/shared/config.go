package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	JWTSecret   string
	// PaymentSecret signs the payment provider's callback token.
	PaymentSecret string
	AMQPURL       string
	Workers       int
	CacheTTL      time.Duration
	ReserveRPS    float64
	ReserveBurst  int
	LimiterIdle   time.Duration
}

// Load reads the environment, after loading .env when one is present.
func Load() Config {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("loaded .env")
	}
	return fromEnv()
}

func fromEnv() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	atof := func(k string, def float64) float64 {
		if v := os.Getenv(k); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
		}
		return def
	}
	c := Config{
		AppEnv:        env("APP_ENV", "prod"),
		HTTPAddr:      env("HTTP_ADDR", ":8080"),
		MetricsAddr:   env("METRICS_ADDR", ""),
		MySQLDSN:      env("MYSQL_DSN", "root:root@tcp(localhost:3306)/staybook?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:     env("REDIS_ADDR", "localhost:6379"),
		RedisDB:       atoi("REDIS_DB", 0),
		RedisPass:     env("REDIS_PASSWORD", ""),
		JWTSecret:     env("JWT_SECRET", ""),
		PaymentSecret: env("PAYMENT_SECRET", ""),
		AMQPURL:       env("AMQP_URL", env("RABBITMQ_URL", "")),
		Workers:       atoi("RECONCILE_WORKERS", 8),
		CacheTTL:      time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,
		ReserveRPS:    atof("RESERVE_RPS", 2),
		ReserveBurst:  atoi("RESERVE_BURST", 5),
		LimiterIdle:   time.Duration(atoi("RATE_LIMIT_IDLE_SECONDS", 600)) * time.Second,
	}
	if c.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET is empty")
	}
	if c.PaymentSecret == "" {
		log.Warn().Msg("PAYMENT_SECRET is empty; payment callbacks are disabled")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
