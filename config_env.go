package authcore

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/docuflow/authcore/ratelimit"
)

// envConfig mirrors the environment surface. Durations and rate-limit
// classes arrive as strings and are parsed after unmarshal.
type envConfig struct {
	AccessSecret  string `mapstructure:"AUTH_ACCESS_SECRET"`
	RefreshSecret string `mapstructure:"AUTH_REFRESH_SECRET"`
	AccessTTL     string `mapstructure:"AUTH_ACCESS_TTL"`
	RefreshTTL    string `mapstructure:"AUTH_REFRESH_TTL"`
	Issuer        string `mapstructure:"AUTH_TOKEN_ISSUER"`

	PasswordMinLength int  `mapstructure:"AUTH_PASSWORD_MIN_LENGTH"`
	HashMemoryKB      int  `mapstructure:"AUTH_HASH_MEMORY_KB"`
	HashTimeCost      int  `mapstructure:"AUTH_HASH_TIME_COST"`
	HashParallelism   int  `mapstructure:"AUTH_HASH_PARALLELISM"`
	SessionMaxPerUser int  `mapstructure:"AUTH_SESSION_MAX_PER_USER"`
	AuditEnabled      bool `mapstructure:"AUTH_AUDIT_ENABLED"`

	RateAuth      string `mapstructure:"AUTH_RATE_LIMIT_AUTH"`
	RateAPI       string `mapstructure:"AUTH_RATE_LIMIT_API"`
	RateExpensive string `mapstructure:"AUTH_RATE_LIMIT_EXPENSIVE"`

	StoreTimeout string `mapstructure:"AUTH_STORE_TIMEOUT"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
}

// ConfigFromEnv builds a [Config] from the environment, reading an optional
// .env file first (missing .env is ignored; real env vars win). Secrets are
// required and validated for minimum length here so misconfiguration fails
// at startup, not at first login.
func ConfigFromEnv() (Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore missing .env (e.g. in CI)

	v.AutomaticEnv()

	// Empty defaults register the keys with viper so AutomaticEnv can
	// populate them through Unmarshal.
	v.SetDefault("AUTH_ACCESS_SECRET", "")
	v.SetDefault("AUTH_REFRESH_SECRET", "")
	v.SetDefault("AUTH_ACCESS_TTL", "15m")
	v.SetDefault("AUTH_REFRESH_TTL", "168h")
	v.SetDefault("AUTH_TOKEN_ISSUER", "authcore")
	v.SetDefault("AUTH_PASSWORD_MIN_LENGTH", 8)
	v.SetDefault("AUTH_HASH_MEMORY_KB", 64*1024)
	v.SetDefault("AUTH_HASH_TIME_COST", 3)
	v.SetDefault("AUTH_HASH_PARALLELISM", 2)
	v.SetDefault("AUTH_SESSION_MAX_PER_USER", 5)
	v.SetDefault("AUTH_AUDIT_ENABLED", true)
	v.SetDefault("AUTH_RATE_LIMIT_AUTH", "5/15m")
	v.SetDefault("AUTH_RATE_LIMIT_API", "100/1m")
	v.SetDefault("AUTH_RATE_LIMIT_EXPENSIVE", "30/1h")
	v.SetDefault("AUTH_STORE_TIMEOUT", "3s")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	var env envConfig
	if err := v.Unmarshal(&env); err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()

	if len(env.AccessSecret) < 32 {
		return Config{}, errors.New("config: AUTH_ACCESS_SECRET must be set and at least 32 characters")
	}
	if len(env.RefreshSecret) < 32 {
		return Config{}, errors.New("config: AUTH_REFRESH_SECRET must be set and at least 32 characters")
	}
	if env.AccessSecret == env.RefreshSecret {
		return Config{}, errors.New("config: access and refresh secrets must differ")
	}
	cfg.Token.AccessSecret = []byte(env.AccessSecret)
	cfg.Token.RefreshSecret = []byte(env.RefreshSecret)
	cfg.Token.Issuer = env.Issuer

	var err error
	if cfg.Token.AccessTTL, err = parseEnvDuration("AUTH_ACCESS_TTL", env.AccessTTL); err != nil {
		return Config{}, err
	}
	if cfg.Token.RefreshTTL, err = parseEnvDuration("AUTH_REFRESH_TTL", env.RefreshTTL); err != nil {
		return Config{}, err
	}
	if cfg.StoreTimeout, err = parseEnvDuration("AUTH_STORE_TIMEOUT", env.StoreTimeout); err != nil {
		return Config{}, err
	}

	if env.PasswordMinLength > 0 {
		cfg.Password.MinLength = env.PasswordMinLength
	}
	if env.HashMemoryKB > 0 {
		cfg.Password.Memory = uint32(env.HashMemoryKB)
	}
	if env.HashTimeCost > 0 {
		cfg.Password.Time = uint32(env.HashTimeCost)
	}
	if env.HashParallelism > 0 {
		cfg.Password.Parallelism = uint8(env.HashParallelism)
	}
	if env.SessionMaxPerUser > 0 {
		cfg.Session.MaxPerUser = env.SessionMaxPerUser
	}
	cfg.Audit.Enabled = env.AuditEnabled

	if cfg.RateLimit.Auth, err = ratelimit.ParseClass("auth", env.RateAuth); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if cfg.RateLimit.API, err = ratelimit.ParseClass("api", env.RateAPI); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if cfg.RateLimit.Expensive, err = ratelimit.ParseClass("expensive", env.RateExpensive); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	cfg.Redis = RedisConfig{
		Addr:     env.RedisAddr,
		Password: env.RedisPassword,
		DB:       env.RedisDB,
	}

	return cfg, nil
}

func parseEnvDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("config: %s must be a positive duration, got %q", key, value)
	}
	return d, nil
}
