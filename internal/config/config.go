package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time.Duration for lease, hold and sweep settings
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Required values are enforced by must() and
// operational tuning knobs fall back to the defaults observed in production.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing

	// Admission gate
	QueueActiveLimit int           // max concurrently ACTIVE admission tokens
	QueueTokenTTL    time.Duration // fixed TTL of an admission token from issuance

	// Seat inventory and reservations
	SeatsPerDate int           // seats materialized per concert date (1..N)
	HoldDuration time.Duration // how long a seat hold lasts before expiring

	// Distributed lock budgets for reserve/pay critical sections
	LockWait  time.Duration // bounded-retry wait budget
	LockLease time.Duration // lease TTL; self-expires if the holder dies

	// Background reconciliation
	SweepInterval time.Duration // how often the expiry sweeper runs

	// Read-side caches
	AvailabilityTTL time.Duration // TTL of the cached seat-availability view
	RankingTTL      time.Duration // TTL of the sold-out ranking sorted set
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  Tuning knobs use
// env* helpers with defaults so a minimal environment still boots.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"), // empty allowed
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),

		QueueActiveLimit: envInt("QUEUE_ACTIVE_LIMIT", 100),
		QueueTokenTTL:    envDur("QUEUE_TOKEN_TTL", 10*time.Minute),

		SeatsPerDate: envInt("SEATS_PER_DATE", 50),
		HoldDuration: envDur("SEAT_HOLD_DURATION", 5*time.Minute),

		LockWait:  envDur("LOCK_WAIT", time.Second),
		LockLease: envDur("LOCK_LEASE", 5*time.Second),

		SweepInterval: envDur("SWEEP_INTERVAL", time.Minute),

		AvailabilityTTL: envDur("AVAILABILITY_CACHE_TTL", 5*time.Minute),
		RankingTTL:      envDur("RANKING_TTL", 30*24*time.Hour),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil && dur > 0 {
		return dur
	}
	return d
}
