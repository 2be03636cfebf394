package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/docuflow/authcore/session"
	"github.com/docuflow/authcore/token"
)

// Verify decodes a bearer token for the expected class and checks its jti
// against the revocation registry. Every failure (expired, malformed,
// wrong class, bad signature, blacklisted) collapses to [ErrUnauthorized];
// the distinct cause is logged and counted internally.
//
// A revocation-store failure fails closed.
func (e *Engine) Verify(ctx context.Context, tokenStr string, expected token.Class) (*Identity, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.verifyClaims(ctx, tokenStr, expected)
	if err != nil {
		return nil, err
	}

	return &Identity{
		UserID:      claims.Subject,
		Email:       claims.Email,
		WorkspaceID: claims.WorkspaceID,
		Class:       claims.TokenClass,
		JTI:         claims.ID,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

func (e *Engine) verifyClaims(ctx context.Context, tokenStr string, expected token.Class) (*token.Claims, error) {
	claims, err := e.tokens.Verify(tokenStr, expected)
	if err != nil {
		e.metrics.Verification(verifyOutcome(err))
		e.emitAudit(AuditEvent{
			EventType: AuditVerifyDenied,
			Success:   false,
			Error:     err.Error(),
		})
		return nil, ErrUnauthorized
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	blacklisted, err := e.revocations.IsBlacklisted(sctx, claims.ID)
	if err != nil {
		e.log.Error("revocation lookup failed, failing closed", "jti", claims.ID, "error", err)
		e.metrics.Verification("error")
		return nil, ErrUnauthorized
	}
	if blacklisted {
		e.metrics.Verification("revoked")
		e.emitAudit(AuditEvent{
			EventType: AuditVerifyDenied,
			UserID:    claims.Subject,
			JTI:       claims.ID,
			Success:   false,
			Error:     "token revoked",
		})
		return nil, ErrUnauthorized
	}

	e.metrics.Verification("success")
	return claims, nil
}

// Refresh exchanges a valid refresh token for a new access token. The
// refresh token itself is reused, not rotated; the session record's
// last-activity timestamp is advanced instead.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.verifyClaims(ctx, refreshToken, token.ClassRefresh)
	if err != nil {
		e.metrics.Refresh("denied")
		return nil, err
	}

	access, err := e.tokens.IssueAccess(claims.Subject, claims.Email, claims.WorkspaceID)
	if err != nil {
		e.metrics.Refresh("error")
		return nil, err
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	if err := e.sessions.Touch(sctx, claims.ID); err != nil {
		// The session record may have expired ahead of the token by a
		// narrow margin; the refresh is still valid.
		if !errors.Is(err, session.ErrNotFound) {
			e.log.Warn("session touch failed", "jti", claims.ID, "error", err)
		}
	}

	e.metrics.Refresh("success")
	e.emitAudit(AuditEvent{
		EventType: AuditTokenRefresh,
		UserID:    claims.Subject,
		JTI:       claims.ID,
		Success:   true,
	})

	return &RefreshResult{
		AccessToken:     access.Value,
		RefreshToken:    refreshToken,
		AccessExpiresIn: int(e.config.Token.AccessTTL.Seconds()),
	}, nil
}

// Logout revokes the presented tokens: each jti is blacklisted for the
// remaining lifetime computed from its own exp claim, and the session
// record behind the refresh token is removed. The access token is optional;
// an access token that no longer verifies (e.g. already expired) is skipped
// silently since there is nothing left to revoke.
func (e *Engine) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	claims, err := e.verifyClaims(ctx, refreshToken, token.ClassRefresh)
	if err != nil {
		return err
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	if accessToken != "" {
		if accessClaims, err := e.tokens.Verify(accessToken, token.ClassAccess); err == nil {
			if err := e.revocations.Blacklist(sctx, accessClaims.ID, time.Until(accessClaims.ExpiresAt.Time)); err != nil {
				return err
			}
		}
	}

	if err := e.revocations.Blacklist(sctx, claims.ID, time.Until(claims.ExpiresAt.Time)); err != nil {
		return err
	}
	if err := e.sessions.Invalidate(sctx, claims.Subject, claims.ID); err != nil {
		return err
	}

	e.emitAudit(AuditEvent{
		EventType: AuditLogout,
		UserID:    claims.Subject,
		JTI:       claims.ID,
		Success:   true,
	})
	return nil
}

// LogoutAll invalidates every session the user holds, blacklisting each
// active refresh jti. Used for "log out everywhere" and administrative
// lockout.
func (e *Engine) LogoutAll(ctx context.Context, refreshToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	claims, err := e.verifyClaims(ctx, refreshToken, token.ClassRefresh)
	if err != nil {
		return err
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	if err := e.sessions.InvalidateAll(sctx, claims.Subject); err != nil {
		return err
	}

	e.emitAudit(AuditEvent{
		EventType: AuditLogoutAll,
		UserID:    claims.Subject,
		Success:   true,
	})
	return nil
}

func verifyOutcome(err error) string {
	switch {
	case errors.Is(err, token.ErrExpired):
		return "expired"
	case errors.Is(err, token.ErrBadSignature):
		return "bad_signature"
	case errors.Is(err, token.ErrWrongClass):
		return "wrong_class"
	default:
		return "malformed"
	}
}
