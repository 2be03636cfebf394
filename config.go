package authcore

import (
	"errors"
	"time"

	"github.com/docuflow/authcore/ratelimit"
)

// Config is the full engine configuration. Build it from
// [DefaultConfig] plus overrides, or from the environment with
// [ConfigFromEnv].
type Config struct {
	Token     TokenConfig
	Session   SessionConfig
	Password  PasswordConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
	Redis     RedisConfig

	// StoreTimeout bounds every shared-state round trip so a slow or
	// unreachable store degrades the operation instead of hanging the
	// caller.
	StoreTimeout time.Duration
}

// TokenConfig configures the token engine. Access and refresh secrets must
// differ; each must be at least 32 bytes.
type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Leeway        time.Duration
}

// SessionConfig configures the session registry.
type SessionConfig struct {
	RedisPrefix string
	// MaxPerUser caps concurrent sessions per user; the oldest session is
	// evicted (and its refresh token blacklisted) when exceeded.
	MaxPerUser int
}

// PasswordConfig holds hashing cost parameters and the strength policy.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
}

// RateLimitConfig names the limit classes. Class thresholds are fixed per
// class, never chosen by the caller at check time.
type RateLimitConfig struct {
	RedisPrefix string
	// Auth throttles authentication attempts per client IP.
	Auth ratelimit.Class
	// API throttles general API calls per client IP.
	API ratelimit.Class
	// Expensive throttles a separately configurable expensive operation
	// class.
	Expensive ratelimit.Class
}

// RedisConfig is consumed by integrating servers (see cmd/authcored); the
// engine itself takes an already-connected client.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuditConfig configures the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking the caller when the
	// buffer is saturated.
	DropIfFull bool
}

// DefaultConfig returns the documented defaults. Signing secrets have no
// default and must always be supplied.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			Issuer:     "authcore",
		},
		Session: SessionConfig{
			RedisPrefix: "as",
			MaxPerUser:  5,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			MinLength:   8,
		},
		RateLimit: RateLimitConfig{
			RedisPrefix: "rl",
			Auth:        ratelimit.Class{Name: "auth", Limit: 5, Window: 15 * time.Minute},
			API:         ratelimit.Class{Name: "api", Limit: 100, Window: time.Minute},
			Expensive:   ratelimit.Class{Name: "expensive", Limit: 30, Window: time.Hour},
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		StoreTimeout: 3 * time.Second,
	}
}

func (c *Config) validate() error {
	if c.StoreTimeout <= 0 {
		return errors.New("store timeout must be positive")
	}
	if c.Session.MaxPerUser < 1 {
		return errors.New("session cap must be at least 1")
	}
	for _, class := range []ratelimit.Class{c.RateLimit.Auth, c.RateLimit.API, c.RateLimit.Expensive} {
		if class.Name == "" || class.Limit <= 0 || class.Window <= 0 {
			return errors.New("rate limit classes must have a name, positive limit, and positive window")
		}
	}
	// Token and password parameters are validated by their own
	// constructors during Build.
	return nil
}
