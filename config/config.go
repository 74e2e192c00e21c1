package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Auth        AuthConfig        `yaml:"auth"`
	Firebase    FirebaseConfig    `yaml:"firebase"`
	Commission  CommissionConfig  `yaml:"commission"`
	Sponsorship SponsorshipConfig `yaml:"sponsorship"`
	Ranking     RankingConfig     `yaml:"ranking"`
	Jobs        JobsConfig        `yaml:"jobs"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Tracking    TrackingConfig    `yaml:"tracking"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	Env             string        `yaml:"env"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// PublicBaseURL prefixes affiliate share links, e.g. https://shop.example.com
	PublicBaseURL string `yaml:"public_base_url"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MongoURI        string        `yaml:"mongo_uri"`
	MongoDatabase   string        `yaml:"mongo_database"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// RedisConfig: an empty URL disables Redis; caches and job locks stay in-process.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// KafkaConfig: no brokers means events are only relayed to WebSocket subscribers.
type KafkaConfig struct {
	Brokers     []string `yaml:"brokers"`
	TopicPrefix string   `yaml:"topic_prefix"`
}

const (
	AuthProviderJWT      = "jwt"
	AuthProviderFirebase = "firebase"
)

type AuthConfig struct {
	Provider string `yaml:"provider"`
	// JWTSecret and Issuer are used by the jwt provider (service tokens, local development).
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

type FirebaseConfig struct {
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file"`
	// PushEnabled turns on FCM delivery; notifications are still stored when off.
	PushEnabled bool `yaml:"push_enabled"`
}

type CommissionConfig struct {
	// DefaultRateBps is nil when no global rate is configured.
	DefaultRateBps    *int           `yaml:"default_rate_bps"`
	ProductRates      map[string]int `yaml:"product_rates"`
	AttributionWindow time.Duration  `yaml:"attribution_window"`
}

type SponsorshipConfig struct {
	// ClickCost is charged to a product's active sponsorship per tracked click; 0 disables.
	ClickCost int64         `yaml:"click_cost"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

type RankingConfig struct {
	Interval         time.Duration `yaml:"interval"`
	CacheTTL         time.Duration `yaml:"cache_ttl"`
	SponsoredWeight  float64       `yaml:"sponsored_weight"`
	ConversionWeight float64       `yaml:"conversion_weight"`
	RecencyWeight    float64       `yaml:"recency_weight"`
	SpendNormalizer  int64         `yaml:"spend_normalizer"`
	ConversionPrior  float64       `yaml:"conversion_prior"`
	RecencyHalfLife  time.Duration `yaml:"recency_half_life"`
}

type JobsConfig struct {
	Enabled            bool          `yaml:"enabled"`
	ActivationInterval time.Duration `yaml:"activation_interval"`
	MaxAttempts        int           `yaml:"max_attempts"`
	RetryBaseDelay     time.Duration `yaml:"retry_base_delay"`
	LockTTL            time.Duration `yaml:"lock_ttl"`
}

type RateLimitConfig struct {
	ClicksPerMinute int `yaml:"clicks_per_minute"`
}

type TrackingConfig struct {
	// FingerprintKey keys the click IP/user-agent hashes so they cannot be reversed by lookup.
	FingerprintKey string `yaml:"fingerprint_key"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8099",
			Env:             "development",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			PublicBaseURL:   "http://localhost:3000",
		},
		Log: LogConfig{Level: "info"},
		Database: DatabaseConfig{
			Driver:          DriverMySQL,
			DSN:             "ledger:ledger@tcp(localhost:3306)/promoledger?charset=utf8mb4&parseTime=True&loc=UTC",
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
			MongoURI:        "mongodb://localhost:27017",
			MongoDatabase:   "promoledger",
			AutoMigrate:     true,
		},
		Kafka: KafkaConfig{TopicPrefix: "ledger."},
		Auth: AuthConfig{
			Provider:  AuthProviderJWT,
			JWTSecret: "change-me-in-production",
			Issuer:    "promoledger",
		},
		Commission: CommissionConfig{
			ProductRates:      map[string]int{},
			AttributionWindow: 7 * 24 * time.Hour,
		},
		Sponsorship: SponsorshipConfig{
			CacheTTL: 15 * time.Second,
		},
		Ranking: RankingConfig{
			Interval:         5 * time.Minute,
			CacheTTL:         30 * time.Second,
			SponsoredWeight:  0.5,
			ConversionWeight: 0.3,
			RecencyWeight:    0.2,
			SpendNormalizer:  10000,
			ConversionPrior:  10,
			RecencyHalfLife:  72 * time.Hour,
		},
		Jobs: JobsConfig{
			Enabled:            true,
			ActivationInterval: time.Minute,
			MaxAttempts:        5,
			RetryBaseDelay:     500 * time.Millisecond,
			LockTTL:            2 * time.Minute,
		},
		RateLimit: RateLimitConfig{ClicksPerMinute: 120},
	}
}

// Load reads .env (if any), then the YAML file at path (missing file is fine),
// then environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()
	cfg := Default()
	if raw, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns CONFIG_PATH or config.yaml.
func Path() string {
	return envString("CONFIG_PATH", "config.yaml")
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = envString("PORT", cfg.Server.Port)
	cfg.Server.Env = envString("ENV", cfg.Server.Env)
	cfg.Server.PublicBaseURL = envString("PUBLIC_BASE_URL", cfg.Server.PublicBaseURL)
	cfg.Log.Level = envString("LOG_LEVEL", cfg.Log.Level)

	cfg.Database.Driver = envString("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = envString("DB_DSN", cfg.Database.DSN)
	cfg.Database.MongoURI = envString("MONGO_URI", cfg.Database.MongoURI)
	cfg.Database.MongoDatabase = envString("MONGO_DATABASE", cfg.Database.MongoDatabase)
	cfg.Database.AutoMigrate = envBool("DB_AUTO_MIGRATE", cfg.Database.AutoMigrate)

	cfg.Redis.URL = envString("REDIS_URL", cfg.Redis.URL)
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		cfg.Kafka.Brokers = splitList(raw)
	}
	cfg.Kafka.TopicPrefix = envString("KAFKA_TOPIC_PREFIX", cfg.Kafka.TopicPrefix)

	cfg.Auth.Provider = envString("AUTH_PROVIDER", cfg.Auth.Provider)
	cfg.Auth.JWTSecret = envString("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Firebase.ProjectID = envString("FIREBASE_PROJECT_ID", cfg.Firebase.ProjectID)
	cfg.Firebase.CredentialsFile = envString("FIREBASE_CREDENTIALS_FILE", cfg.Firebase.CredentialsFile)
	cfg.Firebase.PushEnabled = envBool("FIREBASE_PUSH_ENABLED", cfg.Firebase.PushEnabled)

	if raw := os.Getenv("COMMISSION_DEFAULT_RATE_BPS"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			cfg.Commission.DefaultRateBps = &v
		}
	}
	cfg.Sponsorship.ClickCost = int64(envInt("SPONSORSHIP_CLICK_COST", int(cfg.Sponsorship.ClickCost)))
	cfg.Jobs.Enabled = envBool("JOBS_ENABLED", cfg.Jobs.Enabled)
	cfg.Tracking.FingerprintKey = envString("FINGERPRINT_KEY", cfg.Tracking.FingerprintKey)
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverMySQL, DriverPostgres, DriverMongo, DriverMemory:
	default:
		return fmt.Errorf("config: unknown database.driver %q", c.Database.Driver)
	}
	switch c.Auth.Provider {
	case AuthProviderJWT:
		if c.Auth.JWTSecret == "" {
			return errors.New("config: auth.jwt_secret is required for the jwt provider")
		}
	case AuthProviderFirebase:
	default:
		return fmt.Errorf("config: unknown auth.provider %q", c.Auth.Provider)
	}
	if rate := c.Commission.DefaultRateBps; rate != nil && (*rate < 0 || *rate > 10000) {
		return fmt.Errorf("config: commission.default_rate_bps %d out of range", *rate)
	}
	for product, rate := range c.Commission.ProductRates {
		if rate < 0 || rate > 10000 {
			return fmt.Errorf("config: commission.product_rates[%s] %d out of range", product, rate)
		}
	}
	if c.Sponsorship.ClickCost < 0 {
		return errors.New("config: sponsorship.click_cost must not be negative")
	}
	r := c.Ranking
	if r.SponsoredWeight < 0 || r.ConversionWeight < 0 || r.RecencyWeight < 0 ||
		r.SponsoredWeight+r.ConversionWeight+r.RecencyWeight <= 0 {
		return errors.New("config: ranking weights must be non-negative with a positive sum")
	}
	if r.SpendNormalizer <= 0 || r.ConversionPrior < 0 || r.RecencyHalfLife <= 0 {
		return errors.New("config: ranking spend_normalizer and recency_half_life must be positive")
	}
	for name, d := range map[string]time.Duration{
		"commission.attribution_window": c.Commission.AttributionWindow,
		"ranking.interval":              r.Interval,
		"jobs.activation_interval":      c.Jobs.ActivationInterval,
		"jobs.lock_ttl":                 c.Jobs.LockTTL,
	} {
		if d <= 0 {
			return fmt.Errorf("config: %s must be positive", name)
		}
	}
	if len(c.Tracking.FingerprintKey) > 64 {
		return errors.New("config: tracking.fingerprint_key must be at most 64 bytes")
	}
	if c.Jobs.MaxAttempts < 1 {
		return errors.New("config: jobs.max_attempts must be at least 1")
	}
	return nil
}

func (c *Config) IsProduction() bool { return c.Server.Env == "production" }

func envString(name, fallback string) string {
	if raw := os.Getenv(name); raw != "" {
		return raw
	}
	return fallback
}

func envInt(name string, fallback int) int {
	if raw := os.Getenv(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}

func envBool(name string, fallback bool) bool {
	if raw := os.Getenv(name); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			return v
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
