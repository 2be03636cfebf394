package authcore

import (
	"context"
	"log/slog"
	"time"

	"github.com/docuflow/authcore/metrics"
	"github.com/docuflow/authcore/password"
	"github.com/docuflow/authcore/ratelimit"
	"github.com/docuflow/authcore/revocation"
	"github.com/docuflow/authcore/session"
	"github.com/docuflow/authcore/token"
)

// Engine is the authentication orchestrator. It owns the token engine, the
// session and revocation registries, the rate limiter, and the credential
// hasher; HTTP and socket adapters delegate to it and never touch those
// components directly.
//
// Every operation that reaches the shared state store is bounded by
// Config.StoreTimeout.
type Engine struct {
	config      Config
	tokens      *token.Engine
	sessions    *session.Store
	revocations *revocation.Store
	limiter     *ratelimit.Limiter
	hasher      *password.Argon2
	policy      password.Policy
	users       UserProvider
	audit       *auditDispatcher
	metrics     *metrics.Metrics
	log         *slog.Logger
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were dropped because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// RateLimiter exposes the limiter for transport adapters, which pick the
// limit class per endpoint category.
func (e *Engine) RateLimiter() *ratelimit.Limiter {
	if e == nil {
		return nil
	}
	return e.limiter
}

// RateClasses returns the configured limit classes.
func (e *Engine) RateClasses() RateLimitConfig {
	if e == nil {
		return RateLimitConfig{}
	}
	return e.config.RateLimit
}

// NoteRateLimited records a rejection by the rate limiter, for transport
// adapters to call when they turn away a request.
func (e *Engine) NoteRateLimited(class, clientIP string) {
	if e == nil {
		return
	}
	e.metrics.RateLimited(class)
	e.emitAudit(AuditEvent{
		EventType: AuditRateLimitRejection,
		IP:        clientIP,
		Success:   false,
		Metadata:  map[string]string{"class": class},
	})
}

// storeCtx bounds a shared-state round trip. In-flight store calls run to
// completion even if the caller goes away, so no partial writes are left
// behind by cancellation.
func (e *Engine) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(context.WithoutCancel(ctx), e.config.StoreTimeout)
}

func (e *Engine) emitAudit(event AuditEvent) {
	if e == nil || e.audit == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	e.audit.Emit(context.Background(), event)
}

// penalizeAuthAttempt contributes one unit to the auth rate-limit class for
// the client. Limiter store failures are fail-open and only logged.
func (e *Engine) penalizeAuthAttempt(ctx context.Context, clientIP string) {
	if clientIP == "" {
		return
	}
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	if _, err := e.limiter.Check(sctx, e.config.RateLimit.Auth, clientIP); err != nil {
		e.log.Warn("rate limiter unavailable during auth penalty", "error", err)
	}
}
