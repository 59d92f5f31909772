package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigMethods(t *testing.T) {
	t.Run("Addr returns formatted port", func(t *testing.T) {
		cfg := &Config{Port: 3000}
		assert.Equal(t, ":3000", cfg.Addr())
	})

	t.Run("SessionMaxAge converts hours to duration", func(t *testing.T) {
		cfg := &Config{SessionMaxAgeHrs: 24}
		assert.Equal(t, 24*time.Hour, cfg.SessionMaxAge())
	})

	t.Run("EventPollInterval converts millis to duration", func(t *testing.T) {
		cfg := &Config{EventPollMs: 1000}
		assert.Equal(t, time.Second, cfg.EventPollInterval())
	})
}

func TestLoad(t *testing.T) {
	originalEnv := map[string]string{
		"PORT":                  os.Getenv("PORT"),
		"DATABASE_URL":          os.Getenv("DATABASE_URL"),
		"REDIS_URL":             os.Getenv("REDIS_URL"),
		"ENCRYPTION_KEY":        os.Getenv("ENCRYPTION_KEY"),
		"ADMIN_PASSWORD_HASH":   os.Getenv("ADMIN_PASSWORD_HASH"),
		"SESSION_MAX_AGE_HOURS": os.Getenv("SESSION_MAX_AGE_HOURS"),
		"EVENT_POLL_MS":         os.Getenv("EVENT_POLL_MS"),
		"LOG_LEVEL":             os.Getenv("LOG_LEVEL"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	t.Run("loads config with defaults", func(t *testing.T) {
		os.Setenv("DATABASE_URL", "postgres://localhost/test")
		os.Setenv("REDIS_URL", "redis://localhost:6379")
		os.Unsetenv("PORT")
		os.Unsetenv("SESSION_MAX_AGE_HOURS")
		os.Unsetenv("EVENT_POLL_MS")
		os.Unsetenv("LOG_LEVEL")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
		assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
		assert.Equal(t, 24, cfg.SessionMaxAgeHrs)
		assert.Equal(t, 1000, cfg.EventPollMs)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("fails without required values", func(t *testing.T) {
		os.Unsetenv("DATABASE_URL")
		os.Setenv("REDIS_URL", "redis://localhost:6379")

		_, err := Load()
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	validKey := "0000000000000000000000000000000000000000000000000000000000000000"

	t.Run("accepts empty optional secrets outside production", func(t *testing.T) {
		cfg := &Config{}
		assert.NoError(t, cfg.Validate(false))
	})

	t.Run("rejects non-bcrypt admin hash", func(t *testing.T) {
		cfg := &Config{AdminPasswordHash: "plaintext"}
		assert.Error(t, cfg.Validate(false))
	})

	t.Run("accepts bcrypt admin hash", func(t *testing.T) {
		cfg := &Config{AdminPasswordHash: "$2a$10$abcdefghijklmnopqrstuv", EncryptionKey: validKey}
		assert.NoError(t, cfg.Validate(false))
	})

	t.Run("rejects malformed encryption key", func(t *testing.T) {
		cfg := &Config{EncryptionKey: "not-hex"}
		assert.Error(t, cfg.Validate(false))

		cfg = &Config{EncryptionKey: "abcd"}
		assert.Error(t, cfg.Validate(false))
	})

	t.Run("requires encryption key in production", func(t *testing.T) {
		cfg := &Config{RedisURL: "rediss://host"}
		assert.Error(t, cfg.Validate(true))

		cfg.EncryptionKey = validKey
		assert.NoError(t, cfg.Validate(true))
	})
}
