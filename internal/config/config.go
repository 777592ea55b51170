// Package config provides application configuration loading and management.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultJWTSecret     = "your-secret-key-change-in-production"
	defaultEncryptionKey = "ZGV2LW9ubHktZW5jcnlwdGlvbi1rZXktMzItYnl0ZXM" // "dev-only-encryption-key-32-bytes"
	defaultFingerprint   = "dev-only-fingerprint-secret"
	defaultSetupPassword = "change-me-root-setup"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags   string `mapstructure:"FEATURE_FLAGS"`

	DBDriver                 string `mapstructure:"DB_DRIVER"`
	DBHost                   string `mapstructure:"DB_HOST"`
	DBPort                   string `mapstructure:"DB_PORT"`
	DBUser                   string `mapstructure:"DB_USER"`
	DBPassword               string `mapstructure:"DB_PASSWORD"`
	DBName                   string `mapstructure:"DB_NAME"`
	DBSSLMode                string `mapstructure:"DB_SSLMODE"`
	DBMaxOpenConns           int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns           int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes int    `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`

	RedisURL string `mapstructure:"REDIS_URL"`

	JWTSecret          string `mapstructure:"JWT_SECRET"`
	JWTTTLHours        int    `mapstructure:"JWT_TTL_HOURS"`
	EncryptionKey      string `mapstructure:"ENCRYPTION_KEY"`
	FingerprintKey     string `mapstructure:"FINGERPRINT_KEY"`
	AdminSetupPassword string `mapstructure:"ADMIN_SETUP_PASSWORD"`

	ReferralChainMaxDepth  int `mapstructure:"REFERRAL_CHAIN_MAX_DEPTH"`
	ReferralTreeMaxDepth   int `mapstructure:"REFERRAL_TREE_MAX_DEPTH"`
	ReferralTreeDepthLimit int `mapstructure:"REFERRAL_TREE_DEPTH_LIMIT"`
	SearchDefaultPageSize  int `mapstructure:"SEARCH_DEFAULT_PAGE_SIZE"`
	SearchMaxPageSize      int `mapstructure:"SEARCH_MAX_PAGE_SIZE"`

	TracingEnabled      bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter     string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint        string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSamplerRatio float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
}

// LoadConfig loads application configuration from .env, config files and environment variables.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base config file is optional.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env != "" && env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults(viper.GetViper())

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.DBSSLMode = strings.ToLower(strings.TrimSpace(config.DBSSLMode))
	config.DBDriver = strings.ToLower(strings.TrimSpace(config.DBDriver))

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8375")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173")
	v.SetDefault("FEATURE_FLAGS", "name_search=on")

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "user")
	v.SetDefault("DB_PASSWORD", "password")
	v.SetDefault("DB_NAME", "treematch")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 5)

	v.SetDefault("REDIS_URL", "localhost:6379")

	v.SetDefault("JWT_SECRET", defaultJWTSecret)
	v.SetDefault("JWT_TTL_HOURS", 24)
	v.SetDefault("ENCRYPTION_KEY", defaultEncryptionKey)
	v.SetDefault("FINGERPRINT_KEY", defaultFingerprint)
	v.SetDefault("ADMIN_SETUP_PASSWORD", defaultSetupPassword)

	v.SetDefault("REFERRAL_CHAIN_MAX_DEPTH", 10)
	v.SetDefault("REFERRAL_TREE_MAX_DEPTH", 3)
	v.SetDefault("REFERRAL_TREE_DEPTH_LIMIT", 10)
	v.SetDefault("SEARCH_DEFAULT_PAGE_SIZE", 20)
	v.SetDefault("SEARCH_MAX_PAGE_SIZE", 100)

	v.SetDefault("TRACING_ENABLED", false)
	v.SetDefault("TRACING_EXPORTER", "stdout")
	v.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	v.SetDefault("TRACING_SAMPLER_RATIO", 1.0)
}

// IsProduction reports whether strict production rules apply.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// EncryptionKeyBytes decodes ENCRYPTION_KEY (base64, standard or URL alphabet, padded or not).
func (c *Config) EncryptionKeyBytes() ([]byte, error) {
	raw := strings.TrimRight(strings.TrimSpace(c.EncryptionKey), "=")
	for _, enc := range []*base64.Encoding{base64.RawURLEncoding, base64.RawStdEncoding} {
		if b, err := enc.DecodeString(raw); err == nil {
			return b, nil
		}
	}
	return nil, errors.New("ENCRYPTION_KEY must be base64 encoded")
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.DBDriver != "postgres" && c.DBDriver != "sqlite" {
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}
	key, err := c.EncryptionKeyBytes()
	if err != nil {
		return err
	}
	if len(key) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must decode to 32 bytes, got %d", len(key))
	}
	if c.FingerprintKey == "" {
		return errors.New("FINGERPRINT_KEY is required")
	}
	if c.ReferralChainMaxDepth <= 0 || c.ReferralTreeMaxDepth < 0 {
		return errors.New("referral depth limits must be positive")
	}
	if c.ReferralTreeDepthLimit < c.ReferralTreeMaxDepth {
		return errors.New("REFERRAL_TREE_DEPTH_LIMIT must be >= REFERRAL_TREE_MAX_DEPTH")
	}
	if c.SearchDefaultPageSize <= 0 || c.SearchMaxPageSize < c.SearchDefaultPageSize {
		return errors.New("invalid search page size limits")
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.EncryptionKey == defaultEncryptionKey {
			return errors.New("ENCRYPTION_KEY must be changed from the default value in production")
		}
		if c.FingerprintKey == defaultFingerprint {
			return errors.New("FINGERPRINT_KEY must be changed from the default value in production")
		}
		if c.AdminSetupPassword == defaultSetupPassword {
			return errors.New("ADMIN_SETUP_PASSWORD must be changed from the default value in production")
		}
		if c.DBDriver == "postgres" && (c.DBPassword == "password" || c.DBPassword == "") {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBDriver == "postgres" && (c.DBSSLMode == "disable" || c.DBSSLMode == "") {
			return errors.New("DB_SSLMODE must not be 'disable' in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
