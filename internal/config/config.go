package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"

	"github.com/dcmshq/dcms-server-go/internal/util"
)

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL,required"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Session TTL policy, all in hours.
	SessionTTLHours       int `env:"SESSION_TTL_HOURS" envDefault:"24"`
	PatientTTLHours       int `env:"PATIENT_SESSION_TTL_HOURS" envDefault:"72"`
	RememberTTLHours      int `env:"REMEMBER_SESSION_TTL_HOURS" envDefault:"168"`
	MaxExtendHours        int `env:"MAX_EXTEND_HOURS" envDefault:"720"`
	ImpersonationTTLHours int `env:"IMPERSONATION_TTL_HOURS" envDefault:"2"`

	MinPasswordLength int `env:"MIN_PASSWORD_LENGTH" envDefault:"8"`

	// Argon2id cost parameters for newly hashed passwords.
	Argon2MemoryKB    int `env:"ARGON2_MEMORY_KB" envDefault:"65536"`
	Argon2Time        int `env:"ARGON2_TIME" envDefault:"3"`
	Argon2Parallelism int `env:"ARGON2_PARALLELISM" envDefault:"2"`

	LoginRateLimitPerMin int `env:"LOGIN_RATE_LIMIT_PER_MIN" envDefault:"30"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

func (c *Config) PatientTTL() time.Duration {
	return time.Duration(c.PatientTTLHours) * time.Hour
}

func (c *Config) RememberTTL() time.Duration {
	return time.Duration(c.RememberTTLHours) * time.Hour
}

func (c *Config) ImpersonationTTL() time.Duration {
	return time.Duration(c.ImpersonationTTLHours) * time.Hour
}

func (c *Config) Argon2Params() util.Argon2Params {
	p := util.DefaultArgon2Params()
	p.Memory = uint32(c.Argon2MemoryKB)
	p.Time = uint32(c.Argon2Time)
	p.Parallelism = uint8(c.Argon2Parallelism)
	return p
}

func (c *Config) Validate(isProduction bool) error {
	if c.SessionTTLHours <= 0 {
		return fmt.Errorf("SESSION_TTL_HOURS must be positive")
	}
	if c.PatientTTLHours <= 0 {
		return fmt.Errorf("PATIENT_SESSION_TTL_HOURS must be positive")
	}
	if c.MaxExtendHours <= 0 {
		return fmt.Errorf("MAX_EXTEND_HOURS must be positive")
	}
	if c.ImpersonationTTLHours <= 0 {
		return fmt.Errorf("IMPERSONATION_TTL_HOURS must be positive")
	}
	if c.MinPasswordLength < 8 {
		return fmt.Errorf("MIN_PASSWORD_LENGTH must be at least 8")
	}
	if c.Argon2MemoryKB < 8*1024 || c.Argon2Time < 1 || c.Argon2Parallelism < 1 || c.Argon2Parallelism > 255 {
		return fmt.Errorf("invalid argon2 parameters")
	}

	if isProduction {
		if c.Argon2MemoryKB < 64*1024 {
			log.Warn().Int("memoryKB", c.Argon2MemoryKB).Msg("ARGON2_MEMORY_KB below 64MB in production")
		}
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
