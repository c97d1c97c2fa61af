package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Origin-Inc/e-invoicing-backend/logger"
	"github.com/Origin-Inc/e-invoicing-backend/middleware"
	"github.com/Origin-Inc/e-invoicing-backend/models"
	"github.com/Origin-Inc/e-invoicing-backend/storage"
)

type Config struct {
	Port                  string        `mapstructure:"PORT"`
	DatabaseURL           string        `mapstructure:"DATABASE_URL"`
	RedisURL              string        `mapstructure:"REDIS_URL"`
	AllowedOrigins        string        `mapstructure:"ALLOWED_ORIGINS"`
	S3Endpoint            string        `mapstructure:"S3_ENDPOINT"`
	S3Region              string        `mapstructure:"S3_REGION"`
	S3AccessKeyID         string        `mapstructure:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey     string        `mapstructure:"S3_SECRET_ACCESS_KEY"`
	S3PublicBaseURL       string        `mapstructure:"S3_PUBLIC_BASE_URL"`
	S3BucketPrefix        string        `mapstructure:"S3_BUCKET_PREFIX"`
	HorizonURL            string        `mapstructure:"HORIZON_URL"`
	StellarVerifyPayments bool          `mapstructure:"STELLAR_VERIFY_PAYMENTS"`
	LogLevel              string        `mapstructure:"LOG_LEVEL"`
	LogFormat             string        `mapstructure:"LOG_FORMAT"`
	RateLimitTier         string        `mapstructure:"RATE_LIMIT_TIER"`
	RateLimitRequests     int64         `mapstructure:"RATE_LIMIT_REQUESTS"`
	RateLimitWindow       time.Duration `mapstructure:"RATE_LIMIT_WINDOW"`
}

var defaults = map[string]any{
	"PORT":                    "8080",
	"DATABASE_URL":            "",
	"REDIS_URL":               "",
	"ALLOWED_ORIGINS":         "http://localhost:3000",
	"S3_ENDPOINT":             "",
	"S3_REGION":               "auto",
	"S3_ACCESS_KEY_ID":        "",
	"S3_SECRET_ACCESS_KEY":    "",
	"S3_PUBLIC_BASE_URL":      "",
	"S3_BUCKET_PREFIX":        "",
	"HORIZON_URL":             "https://horizon-testnet.stellar.org",
	"STELLAR_VERIFY_PAYMENTS": false,
	"LOG_LEVEL":               "info",
	"LOG_FORMAT":              "console",
	"RATE_LIMIT_TIER":         "moderate",
	"RATE_LIMIT_REQUESTS":     0,
	"RATE_LIMIT_WINDOW":       "0s",
}

func LoadConfig() (*Config, error) {
	// .env is optional; real environment variables win over it.
	godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if _, err := middleware.TierByName(cfg.RateLimitTier); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_TIER: %w", err)
	}
	if cfg.RateLimitRequests < 0 {
		return nil, fmt.Errorf("RATE_LIMIT_REQUESTS must not be negative, got %d", cfg.RateLimitRequests)
	}
	if cfg.RateLimitWindow < 0 {
		return nil, fmt.Errorf("RATE_LIMIT_WINDOW must not be negative, got %s", cfg.RateLimitWindow)
	}
	return &cfg, nil
}

// RateLimit returns the named tier with RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW overriding it when set.
func (c *Config) RateLimit() middleware.RateLimitTier {
	tier, err := middleware.TierByName(c.RateLimitTier)
	if err != nil {
		tier = middleware.TierModerate
	}
	if c.RateLimitRequests > 0 {
		tier.Requests = c.RateLimitRequests
	}
	if c.RateLimitWindow > 0 {
		tier.Window = c.RateLimitWindow
	}
	return tier
}

// Origins splits ALLOWED_ORIGINS on commas.
func (c *Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func (c *Config) Storage() storage.Config {
	return storage.Config{
		Endpoint:        c.S3Endpoint,
		Region:          c.S3Region,
		AccessKeyID:     c.S3AccessKeyID,
		SecretAccessKey: c.S3SecretAccessKey,
		PublicBaseURL:   c.S3PublicBaseURL,
		BucketPrefix:    c.S3BucketPrefix,
	}
}

// StorageEnabled reports whether object storage has been configured at all.
func (c *Config) StorageEnabled() bool {
	return c.S3Endpoint != "" || c.S3AccessKeyID != ""
}

func (c *Config) Log() logger.LogConfig {
	cfg := logger.DefaultConfig()
	cfg.Level = c.LogLevel
	cfg.Format = c.LogFormat
	return cfg
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Client{}, &models.Invoice{}, &models.Payment{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// InitRedis returns nil when REDIS_URL is unset.
func InitRedis(ctx context.Context, cfg *Config) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}
