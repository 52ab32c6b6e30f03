package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends accepted in STORAGE_BACKEND.
const (
	BackendCSV      = "csv"
	BackendPostgres = "postgres"
)

// Config holds the process configuration loaded from environment variables.
// Route definitions live in the routes file, see LoadRoutes.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	StorageBackend string
	DataDir        string
	RoutesFile     string
	LegacyPath     string
	LegacyRouteID  string

	RateLimitMs    int
	MaxRetries     int
	NavTimeout     time.Duration
	SettleDelay    time.Duration
	ChromeBin      string
	Headless       bool
	GeoParallelism int
	PremiumMarkup  float64

	// CheckInterval overrides the routes file interval when non-zero.
	CheckInterval time.Duration

	SMTPUser     string
	SMTPPassword string

	KafkaBrokers []string
	KafkaTopic   string

	DashboardAddr string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "monitor"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "monitor"),
		PostgresDB:       getEnv("POSTGRES_DB", "travel_monitor"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", BackendCSV)),
		DataDir:        getEnv("DATA_DIR", "./data"),
		RoutesFile:     getEnv("ROUTES_FILE", "routes.json5"),
		LegacyPath:     getEnv("LEGACY_PATH", "./prices.csv"),
		LegacyRouteID:  getEnv("LEGACY_ROUTE_ID", "VGO-MEX"),

		RateLimitMs:    getEnvInt("RATE_LIMIT_MS", 2000),
		MaxRetries:     getEnvInt("MAX_RETRIES", 2),
		NavTimeout:     getEnvDuration("NAV_TIMEOUT", "30s"),
		SettleDelay:    getEnvDuration("SETTLE_DELAY", "5s"),
		ChromeBin:      getEnv("CHROME_BIN", ""),
		Headless:       getEnvBool("HEADLESS", true),
		GeoParallelism: getEnvInt("GEO_PARALLELISM", 1),
		PremiumMarkup:  getEnvFloat("PREMIUM_MARKUP", 1.6),

		CheckInterval: getEnvDuration("CHECK_INTERVAL", "0s"),

		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		KafkaBrokers: splitAndTrim(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "price_signals"),

		DashboardAddr: getEnv("DASHBOARD_ADDR", "127.0.0.1:8080"),
	}
}

// Validate rejects values the monitor cannot run with.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendCSV, BackendPostgres:
	default:
		return fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", BackendCSV, BackendPostgres, c.StorageBackend)
	}
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR must not be empty")
	}
	if c.RateLimitMs < 0 {
		return fmt.Errorf("RATE_LIMIT_MS cannot be negative")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("MAX_RETRIES must be at least 1")
	}
	if c.NavTimeout <= 0 {
		return fmt.Errorf("NAV_TIMEOUT must be positive")
	}
	if c.GeoParallelism < 1 {
		return fmt.Errorf("GEO_PARALLELISM must be at least 1")
	}
	if c.PremiumMarkup <= 1 {
		return fmt.Errorf("PREMIUM_MARKUP must be greater than 1")
	}
	if c.CheckInterval < 0 {
		return fmt.Errorf("CHECK_INTERVAL cannot be negative")
	}
	return nil
}

// RateLimit is the pause between two queries.
func (c *Config) RateLimit() time.Duration {
	return time.Duration(c.RateLimitMs) * time.Millisecond
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key, fallback string) time.Duration {
	d, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
