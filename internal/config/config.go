package config

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

type Config struct {
	Env     string
	AppName string
	Port    int

	StoreDriver string
	DBURL       string
	DBMaxConns  int
	DBMigrate   bool

	MongoURI      string
	MongoDatabase string

	JWTSecret         string
	JWTExpiresIn      time.Duration
	JWTCookieExpireIn time.Duration

	PasswordResetTTL         time.Duration
	ResetConcealUnknownEmail bool
	HashConcurrency          int

	SweepInterval time.Duration
	SweepBatch    int
	WorkerPort    int

	Mail Mail

	SuperAdminEmail    string
	SuperAdminPassword string

	RateLimitPerHour int
	RedisAddr        string
	RedisPassword    string
	RedisDB          int

	CORSAllowedOrigins []string
	MaxBodyBytes       int64

	OTelEnabled     bool
	OTelEndpoint    string
	OTelSampleRatio float64
}

type Mail struct {
	Host            string
	Port            int
	Username        string
	Password        string
	From            string
	Support         string
	DefaultSiteName string
	Timeout         time.Duration
}

// IsProduction treats every environment other than dev/development as production.
func (c Config) IsProduction() bool {
	switch strings.ToLower(c.Env) {
	case "dev", "development":
		return false
	}
	return true
}

// Load reads .env (when present) and then the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("dotenv_load_failed", "err", err)
	}

	return Config{
		Env:     getEnv("APP_ENV", "dev"),
		AppName: getEnv("APP_NAME", "accounts service"),
		Port:    getEnvInt("PORT", 8080),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres)),
		DBURL:       buildDBURL(),
		DBMaxConns:  getEnvInt("DB_MAX_CONNS", 10),
		DBMigrate:   getEnvBool("DB_MIGRATE", true),

		MongoURI:      getEnv("MONGODB_URI", "mongodb://127.0.0.1:27017"),
		MongoDatabase: getEnv("MONGODB_DATABASE", "accounts"),

		JWTSecret:         getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTExpiresIn:      getEnvDuration("JWT_EXPIRES_IN", 24*time.Hour),
		JWTCookieExpireIn: getEnvDuration("JWT_COOKIE_EXPIRES_IN", 90*24*time.Hour),

		PasswordResetTTL:         getEnvDuration("PASSWORD_RESET_TTL", 10*time.Minute),
		ResetConcealUnknownEmail: getEnvBool("RESET_CONCEAL_UNKNOWN_EMAIL", false),
		HashConcurrency:          getEnvInt("HASH_CONCURRENCY", 4),

		SweepInterval: getEnvDuration("SWEEP_INTERVAL", time.Minute),
		SweepBatch:    getEnvInt("SWEEP_BATCH", 100),
		WorkerPort:    getEnvInt("WORKER_PORT", 8081),

		Mail: Mail{
			Host:            getEnv("EMAIL_HOST", ""),
			Port:            getEnvInt("EMAIL_PORT", 1025),
			Username:        getEnv("EMAIL_USERNAME", ""),
			Password:        getEnv("EMAIL_PASSWORD", ""),
			From:            getEnv("EMAIL_FROM", "no-reply@accounts.local"),
			Support:         getEnv("EMAIL_SUPPORT", "support@accounts.local"),
			DefaultSiteName: getEnv("DEFAULT_SITE_NAME", "http://localhost:3000"),
			Timeout:         getEnvDuration("MAIL_TIMEOUT", 10*time.Second),
		},

		SuperAdminEmail:    getEnv("SUPER_ADMIN_EMAIL", ""),
		SuperAdminPassword: getEnv("SUPER_ADMIN_PASSWORD", ""),

		RateLimitPerHour: getEnvInt("RATE_LIMIT_PER_HOUR", 100),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		MaxBodyBytes:       int64(getEnvInt("MAX_BODY_BYTES", 10<<10)),

		OTelEnabled:     getEnvBool("OTEL_ENABLED", false),
		OTelEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTelSampleRatio: getEnvFloat("OTEL_SAMPLE_RATIO", 1),
	}
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "accounts")
	pass := getEnv("DB_PASSWORD", "accounts")
	name := getEnv("DB_NAME", "accounts")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			slog.Warn("config_invalid_int", "key", key, "value", v)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			slog.Warn("config_invalid_bool", "key", key, "value", v)
			return fallback
		}
		return b
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			slog.Warn("config_invalid_float", "key", key, "value", v)
			return fallback
		}
		return f
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := ParseDuration(v)
		if err != nil {
			slog.Warn("config_invalid_duration", "key", key, "value", v)
			return fallback
		}
		return d
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ParseDuration accepts time.ParseDuration syntax plus a whole-day suffix ("90d").
// A bare number is read as milliseconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * time.Millisecond, nil
	}

	return time.ParseDuration(s)
}
