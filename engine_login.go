package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/docuflow/authcore/session"
)

// Register validates the password policy, hashes the credential, and
// creates the account through the provider. Policy violations return a
// *[PolicyError] carrying every violated rule.
func (e *Engine) Register(ctx context.Context, email, plaintext, workspaceID string) (UserRecord, error) {
	if e == nil {
		return UserRecord{}, ErrEngineNotReady
	}

	if reasons := e.policy.Validate(plaintext); len(reasons) > 0 {
		return UserRecord{}, &PolicyError{Reasons: reasons}
	}

	hash, err := e.hasher.Hash(plaintext)
	if err != nil {
		return UserRecord{}, err
	}

	user, err := e.users.CreateUser(ctx, CreateUserInput{
		Email:        email,
		PasswordHash: hash,
		WorkspaceID:  workspaceID,
	})
	if err != nil {
		return UserRecord{}, err
	}

	e.emitAudit(AuditEvent{EventType: AuditRegister, UserID: user.UserID, Success: true})
	return user, nil
}

// Login verifies credentials and, on success, issues an access+refresh pair
// and records a session keyed by the refresh token's jti. On failure it
// contributes one unit to the auth rate-limit class for the client; callers
// are expected to check the limiter before attempting verification, so
// repeated bad attempts are throttled regardless of outcome.
//
// Unknown identity and bad password are indistinguishable to the caller.
func (e *Engine) Login(ctx context.Context, email, plaintext string, dev session.DeviceInfo) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	user, err := e.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.loginDenied(ctx, "", dev.IPAddress, "unknown identity")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := e.hasher.Verify(plaintext, user.PasswordHash)
	if err != nil {
		// Malformed stored digest: treated as a credential failure; the
		// detail stays in the logs.
		e.log.Error("stored password digest rejected", "user_id", user.UserID, "error", err)
		e.loginDenied(ctx, user.UserID, dev.IPAddress, "malformed digest")
		return nil, ErrInvalidCredentials
	}
	if !ok {
		e.loginDenied(ctx, user.UserID, dev.IPAddress, "bad password")
		return nil, ErrInvalidCredentials
	}

	access, err := e.tokens.IssueAccess(user.UserID, user.Email, user.WorkspaceID)
	if err != nil {
		return nil, err
	}
	refresh, err := e.tokens.IssueRefresh(user.UserID, user.Email, user.WorkspaceID)
	if err != nil {
		return nil, err
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	if err := e.sessions.Create(sctx, user.UserID, refresh.JTI, dev, e.config.Token.RefreshTTL); err != nil {
		e.metrics.Login("error")
		return nil, fmt.Errorf("session creation failed: %w", err)
	}

	e.metrics.Login("success")
	e.emitAudit(AuditEvent{
		EventType: AuditLoginSuccess,
		UserID:    user.UserID,
		JTI:       refresh.JTI,
		IP:        dev.IPAddress,
		Success:   true,
	})

	return &LoginResult{
		AccessToken:     access.Value,
		RefreshToken:    refresh.Value,
		TokenType:       "bearer",
		AccessExpiresIn: int(e.config.Token.AccessTTL.Seconds()),
	}, nil
}

func (e *Engine) loginDenied(ctx context.Context, userID, clientIP, reason string) {
	e.penalizeAuthAttempt(ctx, clientIP)
	e.metrics.Login("denied")
	e.emitAudit(AuditEvent{
		EventType: AuditLoginFailure,
		UserID:    userID,
		IP:        clientIP,
		Success:   false,
		Error:     reason,
	})
}
