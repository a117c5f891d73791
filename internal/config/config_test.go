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

	t.Run("TTL helpers convert hours to durations", func(t *testing.T) {
		cfg := &Config{
			SessionTTLHours:       24,
			PatientTTLHours:       72,
			RememberTTLHours:      168,
			ImpersonationTTLHours: 2,
		}
		assert.Equal(t, 24*time.Hour, cfg.SessionTTL())
		assert.Equal(t, 72*time.Hour, cfg.PatientTTL())
		assert.Equal(t, 168*time.Hour, cfg.RememberTTL())
		assert.Equal(t, 2*time.Hour, cfg.ImpersonationTTL())
	})

	t.Run("Argon2Params maps config onto hasher parameters", func(t *testing.T) {
		cfg := &Config{Argon2MemoryKB: 32 * 1024, Argon2Time: 2, Argon2Parallelism: 4}
		p := cfg.Argon2Params()
		assert.Equal(t, uint32(32*1024), p.Memory)
		assert.Equal(t, uint32(2), p.Time)
		assert.Equal(t, uint8(4), p.Parallelism)
	})
}

func TestLoad(t *testing.T) {
	originalEnv := map[string]string{
		"PORT":                "",
		"DATABASE_URL":        "",
		"REDIS_URL":           "",
		"SESSION_TTL_HOURS":   "",
		"MAX_EXTEND_HOURS":    "",
		"MIN_PASSWORD_LENGTH": "",
		"LOG_LEVEL":           "",
	}
	for k := range originalEnv {
		originalEnv[k] = os.Getenv(k)
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
		os.Unsetenv("SESSION_TTL_HOURS")
		os.Unsetenv("MAX_EXTEND_HOURS")
		os.Unsetenv("MIN_PASSWORD_LENGTH")
		os.Unsetenv("LOG_LEVEL")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
		assert.Equal(t, 24, cfg.SessionTTLHours)
		assert.Equal(t, 72, cfg.PatientTTLHours)
		assert.Equal(t, 168, cfg.RememberTTLHours)
		assert.Equal(t, 720, cfg.MaxExtendHours)
		assert.Equal(t, 2, cfg.ImpersonationTTLHours)
		assert.Equal(t, 8, cfg.MinPasswordLength)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("loads custom values", func(t *testing.T) {
		os.Setenv("DATABASE_URL", "postgres://localhost/test")
		os.Setenv("REDIS_URL", "redis://localhost:6379")
		os.Setenv("SESSION_TTL_HOURS", "12")
		os.Setenv("MAX_EXTEND_HOURS", "48")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 12, cfg.SessionTTLHours)
		assert.Equal(t, 48, cfg.MaxExtendHours)
	})

	t.Run("fails without DATABASE_URL", func(t *testing.T) {
		os.Unsetenv("DATABASE_URL")
		os.Setenv("REDIS_URL", "redis://localhost:6379")

		_, err := Load()
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			SessionTTLHours:       24,
			PatientTTLHours:       72,
			RememberTTLHours:      168,
			MaxExtendHours:        720,
			ImpersonationTTLHours: 2,
			MinPasswordLength:     8,
			Argon2MemoryKB:        64 * 1024,
			Argon2Time:            3,
			Argon2Parallelism:     2,
		}
	}

	t.Run("accepts defaults", func(t *testing.T) {
		assert.NoError(t, valid().Validate(false))
	})

	t.Run("rejects zero TTL", func(t *testing.T) {
		cfg := valid()
		cfg.SessionTTLHours = 0
		assert.Error(t, cfg.Validate(false))
	})

	t.Run("rejects short minimum password length", func(t *testing.T) {
		cfg := valid()
		cfg.MinPasswordLength = 4
		assert.Error(t, cfg.Validate(false))
	})

	t.Run("rejects weak argon2 parameters", func(t *testing.T) {
		cfg := valid()
		cfg.Argon2MemoryKB = 1024
		assert.Error(t, cfg.Validate(false))
	})
}
