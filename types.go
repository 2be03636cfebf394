package authcore

import (
	"context"
	"time"

	"github.com/docuflow/authcore/token"
)

// Identity is the verified-token result handed to downstream collaborators.
// Downstream code treats tokens as opaque and consumes only this.
type Identity struct {
	UserID      string
	Email       string
	WorkspaceID string
	Class       token.Class
	JTI         string
	ExpiresAt   time.Time
}

// LoginResult is returned by [Engine.Login].
type LoginResult struct {
	AccessToken     string `json:"access_token"`
	RefreshToken    string `json:"refresh_token"`
	TokenType       string `json:"token_type"`
	AccessExpiresIn int    `json:"access_expires_in"`
}

// RefreshResult is returned by [Engine.Refresh]. The refresh token is
// echoed unchanged: this core does not rotate refresh tokens on use.
type RefreshResult struct {
	AccessToken     string `json:"access_token"`
	RefreshToken    string `json:"refresh_token"`
	AccessExpiresIn int    `json:"access_expires_in"`
}

// UserRecord is the account record returned by [UserProvider].
type UserRecord struct {
	UserID       string
	Email        string
	WorkspaceID  string
	PasswordHash string
}

// CreateUserInput is the input for [UserProvider.CreateUser].
type CreateUserInput struct {
	Email        string
	PasswordHash string
	WorkspaceID  string
}

// UserProvider is the interface callers implement to integrate the engine
// with their user database. GetUserByEmail returns [ErrUserNotFound] for
// unknown identities; CreateUser returns [ErrAccountExists] for duplicates.
type UserProvider interface {
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	CreateUser(ctx context.Context, input CreateUserInput) (UserRecord, error)
}
