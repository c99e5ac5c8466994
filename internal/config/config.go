package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds every runtime setting of the service
type Config struct {
	DBHost    string
	DBPort    int
	DBUser    string
	DBPass    string
	DBName    string
	DBSSLMode string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	HTTPPort    int
	GRPCPort    int
	MetricsPort int

	// FunctionsAddr, when set, makes the server invoke remote business
	// functions over gRPC instead of in-process.
	FunctionsAddr string

	JWTSecret     string
	EncryptionKey string

	StorageDriver string
	StorageRoot   string
	PublicBaseURL string
	OSSEndpoint   string
	OSSAccessKey  string
	OSSSecretKey  string
	OSSBucket     string

	CheckoutBaseURL      string
	PasswordResetBaseURL string
	CORSOrigins          []string
	TrustedProxies       int
	TrialDays            int
	SweepSchedule        string
}

// DSN builds the PostgreSQL connection string
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPass, c.DBName, c.DBSSLMode)
}

// Load reads an optional .env file, then the environment, then the command
// line flags in args. Later sources win.
func Load(args []string) (*Config, error) {
	c, err := parse(args)
	if err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadDatabase is Load without the checks on application secrets, for tools
// that only talk to the database.
func LoadDatabase(args []string) (*Config, error) {
	return parse(args)
}

func parse(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found; using system environment")
	}

	c := &Config{}
	fs := flag.NewFlagSet("agency-hub", flag.ContinueOnError)
	fs.StringVar(&c.DBHost, "db-host", env("DB_HOST", "localhost"), "Database host")
	fs.IntVar(&c.DBPort, "db-port", envInt("DB_PORT", 5432), "Database port")
	fs.StringVar(&c.DBUser, "db-user", env("DB_USER", "admin"), "Database user")
	fs.StringVar(&c.DBPass, "db-pass", env("DB_PASS", "securepassword"), "Database password")
	fs.StringVar(&c.DBName, "db-name", env("DB_NAME", "agency_hub"), "Database name")
	fs.StringVar(&c.DBSSLMode, "db-sslmode", env("DB_SSLMODE", "disable"), "Database sslmode")
	fs.StringVar(&c.RedisAddr, "redis-addr", env("REDIS_ADDR", "localhost:6379"), "Redis address")
	fs.StringVar(&c.RedisPassword, "redis-pass", env("REDIS_PASSWORD", ""), "Redis password")
	fs.IntVar(&c.RedisDB, "redis-db", envInt("REDIS_DB", 0), "Redis database")
	fs.IntVar(&c.HTTPPort, "port", envInt("PORT", 8080), "HTTP API port")
	fs.IntVar(&c.GRPCPort, "grpc-port", envInt("GRPC_PORT", 50051), "gRPC functions port")
	fs.IntVar(&c.MetricsPort, "metrics-port", envInt("METRICS_PORT", 8081), "Health and metrics port")
	fs.StringVar(&c.FunctionsAddr, "functions-addr", env("FUNCTIONS_ADDR", ""), "Remote functions gRPC address (empty = in-process)")
	fs.StringVar(&c.JWTSecret, "jwt-secret", env("JWT_SECRET", ""), "JWT signing secret")
	fs.StringVar(&c.EncryptionKey, "encryption-key", env("ENCRYPTION_KEY", ""), "32-byte key for PII encryption")
	fs.StringVar(&c.StorageDriver, "storage", env("STORAGE_DRIVER", "local"), "Storage driver (local, oss)")
	fs.StringVar(&c.StorageRoot, "storage-root", env("STORAGE_ROOT", "./static"), "Local storage root")
	fs.StringVar(&c.PublicBaseURL, "public-base-url", env("PUBLIC_BASE_URL", "http://localhost:8080/static"), "Public base URL of local storage")
	fs.StringVar(&c.OSSEndpoint, "oss-endpoint", env("OSS_ENDPOINT", ""), "OSS endpoint")
	fs.StringVar(&c.OSSAccessKey, "oss-access-key", env("OSS_ACCESS_KEY", ""), "OSS access key")
	fs.StringVar(&c.OSSSecretKey, "oss-secret-key", env("OSS_SECRET_KEY", ""), "OSS secret key")
	fs.StringVar(&c.OSSBucket, "oss-bucket", env("OSS_BUCKET", ""), "OSS bucket")
	fs.StringVar(&c.CheckoutBaseURL, "checkout-base-url", env("CHECKOUT_BASE_URL", "https://pay.example.com/checkout"), "Checkout page base URL")
	fs.StringVar(&c.PasswordResetBaseURL, "reset-base-url", env("PASSWORD_RESET_BASE_URL", "https://app.example.com/reset-password"), "Password reset base URL")
	origins := fs.String("cors-origins", env("CORS_ORIGINS", "*"), "Comma separated CORS origins")
	fs.IntVar(&c.TrustedProxies, "trusted-proxies", envInt("TRUSTED_PROXIES", 0), "Reverse proxies that append to X-Forwarded-For")
	fs.IntVar(&c.TrialDays, "trial-days", envInt("TRIAL_DAYS", 10), "Trial length in days")
	fs.StringVar(&c.SweepSchedule, "sweep-schedule", env("SWEEP_SCHEDULE", "@hourly"), "Subscription sweep cron schedule")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	c.CORSOrigins = splitList(*origins)
	return c, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt secret is required")
	}
	if len(c.EncryptionKey) != 32 {
		return fmt.Errorf("encryption key must be 32 bytes, got %d", len(c.EncryptionKey))
	}
	switch c.StorageDriver {
	case "local":
	case "oss":
		if c.OSSEndpoint == "" || c.OSSAccessKey == "" || c.OSSSecretKey == "" || c.OSSBucket == "" {
			return fmt.Errorf("oss storage requires endpoint, access key, secret key and bucket")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}
	if c.TrustedProxies < 0 {
		return fmt.Errorf("trusted proxies must not be negative")
	}
	if c.TrialDays < 0 {
		return fmt.Errorf("trial days must not be negative")
	}
	return nil
}

func env(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
