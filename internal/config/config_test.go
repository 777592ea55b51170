package config

import (
	"encoding/base64"
	"os"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Port:                   "8375",
		Env:                    "development",
		DBDriver:               "postgres",
		DBSSLMode:              "disable",
		DBPassword:             "secure-password",
		JWTSecret:              "secure-secret-at-least-32-chars-long",
		EncryptionKey:          base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32))),
		FingerprintKey:         "fingerprint-secret",
		AdminSetupPassword:     "root-setup-password",
		ReferralChainMaxDepth:  10,
		ReferralTreeMaxDepth:   3,
		ReferralTreeDepthLimit: 10,
		SearchDefaultPageSize:  20,
		SearchMaxPageSize:      100,
	}
}

func TestConfig_ValidateSSLMode(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		sslMode     string
		expectError bool
	}{
		{"Production with empty SSL mode", "production", "", true},
		{"Production with disable SSL mode", "production", "disable", true},
		{"Production with require SSL mode", "production", "require", false},
		{"Prod with verify-full SSL mode", "prod", "verify-full", false},
		{"Development with disable SSL mode", "development", "disable", false},
		{"Test with empty SSL mode", "test", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			c.Env = tt.env
			c.DBSSLMode = tt.sslMode

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateEncryptionKey(t *testing.T) {
	c := validConfig()
	c.EncryptionKey = base64.StdEncoding.EncodeToString([]byte("too-short"))
	assert.Error(t, c.Validate())

	c.EncryptionKey = "not base64 !!"
	assert.Error(t, c.Validate())

	c.EncryptionKey = base64.RawURLEncoding.EncodeToString([]byte(strings.Repeat("u", 32)))
	assert.NoError(t, c.Validate())
	key, err := c.EncryptionKeyBytes()
	require.NoError(t, err)
	assert.Len(t, key, 32)
}

func TestConfig_ValidateLimits(t *testing.T) {
	c := validConfig()
	c.ReferralTreeDepthLimit = 2
	assert.Error(t, c.Validate())

	c = validConfig()
	c.SearchMaxPageSize = 5
	assert.Error(t, c.Validate())

	c = validConfig()
	c.DBDriver = "mysql"
	assert.Error(t, c.Validate())
}

func TestConfig_ProductionRejectsDefaults(t *testing.T) {
	c := validConfig()
	c.Env = "production"
	c.DBSSLMode = "require"
	assert.NoError(t, c.Validate())

	c.AdminSetupPassword = defaultSetupPassword
	assert.Error(t, c.Validate())

	c = validConfig()
	c.Env = "production"
	c.DBSSLMode = "require"
	c.EncryptionKey = defaultEncryptionKey
	assert.Error(t, c.Validate())
}

func TestLoadConfig_Defaults(t *testing.T) {
	defer os.Unsetenv("APP_ENV")
	defer os.Unsetenv("DB_SSLMODE")
	defer viper.Reset()

	os.Setenv("APP_ENV", "development")
	os.Setenv("DB_SSLMODE", "  DISABLE  ")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, "8375", c.Port)
	assert.Equal(t, 10, c.ReferralChainMaxDepth)
	assert.Equal(t, 3, c.ReferralTreeMaxDepth)
	assert.Equal(t, 20, c.SearchDefaultPageSize)
}
