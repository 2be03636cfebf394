package authcore

import (
	"errors"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/docuflow/authcore/metrics"
	"github.com/docuflow/authcore/password"
	"github.com/docuflow/authcore/ratelimit"
	"github.com/docuflow/authcore/revocation"
	"github.com/docuflow/authcore/session"
	"github.com/docuflow/authcore/token"
)

// Builder assembles an [Engine]. Redis client, config secrets, and a user
// provider are required; logger, audit sink, and metrics are optional.
type Builder struct {
	config       Config
	redis        redis.UniversalClient
	userProvider UserProvider
	auditSink    AuditSink
	logger       *slog.Logger
	metrics      *metrics.Metrics

	built bool
}

// New starts a builder with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(log *slog.Logger) *Builder {
	b.logger = log
	return b
}

func (b *Builder) WithMetrics(m *metrics.Metrics) *Builder {
	b.metrics = m
	return b
}

// Build validates the configuration, constructs every component, and wires
// the session registry's eviction path into the revocation registry.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client is required")
	}
	if b.userProvider == nil {
		return nil, errors.New("user provider is required")
	}
	if err := b.config.validate(); err != nil {
		return nil, err
	}

	tokens, err := token.NewEngine(token.Config{
		AccessSecret:  b.config.Token.AccessSecret,
		RefreshSecret: b.config.Token.RefreshSecret,
		AccessTTL:     b.config.Token.AccessTTL,
		RefreshTTL:    b.config.Token.RefreshTTL,
		Issuer:        b.config.Token.Issuer,
		Leeway:        b.config.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewArgon2(password.Config{
		Memory:      b.config.Password.Memory,
		Time:        b.config.Password.Time,
		Parallelism: b.config.Password.Parallelism,
		SaltLength:  b.config.Password.SaltLength,
		KeyLength:   b.config.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	revocations := revocation.NewStore(b.redis, "rvk")
	sessions := session.NewStore(b.redis, revocations, b.config.Session.RedisPrefix, b.config.Session.MaxPerUser)
	limiter := ratelimit.New(b.redis, b.config.RateLimit.RedisPrefix)

	e := &Engine{
		config:      b.config,
		tokens:      tokens,
		sessions:    sessions,
		revocations: revocations,
		limiter:     limiter,
		hasher:      hasher,
		policy:      password.Policy{MinLength: b.config.Password.MinLength},
		users:       b.userProvider,
		audit:       newAuditDispatcher(b.config.Audit, b.auditSink),
		metrics:     b.metrics,
		log:         logger,
	}

	sessions.OnEvict = func(userID, jti string) {
		e.metrics.SessionEvicted()
		e.emitAudit(AuditEvent{
			EventType: AuditSessionEvicted,
			UserID:    userID,
			JTI:       jti,
			Success:   true,
		})
	}

	b.built = true
	return e, nil
}
