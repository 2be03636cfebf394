package token

import (
	"bytes"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Class discriminates access tokens from refresh tokens. The class is
// embedded as a claim and checked after signature verification, so a token
// signed for one class never validates in the other class's context.
type Class string

const (
	// ClassAccess is the short-lived per-request credential class.
	ClassAccess Class = "access"
	// ClassRefresh is the long-lived token-renewal credential class.
	ClassRefresh Class = "refresh"
)

var (
	// ErrExpired is returned when the token's exp claim has passed.
	ErrExpired = errors.New("token expired")
	// ErrBadSignature is returned when the signature does not verify
	// against the secret for the requested class.
	ErrBadSignature = errors.New("token signature invalid")
	// ErrWrongClass is returned when the signature verifies but the
	// embedded class claim does not match the verification context.
	ErrWrongClass = errors.New("token class mismatch")
	// ErrMalformed is returned for tokens that cannot be decoded or are
	// missing required claims.
	ErrMalformed = errors.New("token malformed")
)

const minSecretLength = 32

// Claims is the fixed claim structure embedded in every issued token.
// Subject carries the user id, ID carries the jti.
type Claims struct {
	Email       string `json:"email,omitempty"`
	WorkspaceID string `json:"wid,omitempty"`
	TokenClass  Class  `json:"cls"`
	jwt.RegisteredClaims
}

// Config holds the per-class signing secrets and lifetimes.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Leeway        time.Duration
}

// Engine signs and verifies tokens. It holds no mutable state and is safe
// for concurrent use.
type Engine struct {
	config Config
}

// IssuedToken is the result of issuing a token: the signed compact form
// plus the metadata the orchestrator needs for session and revocation
// bookkeeping.
type IssuedToken struct {
	Value     string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// NewEngine validates the config and returns a token [Engine].
// Secrets must be at least 32 bytes and must differ between classes.
func NewEngine(cfg Config) (*Engine, error) {
	if len(cfg.AccessSecret) < minSecretLength {
		return nil, errors.New("access secret must be at least 32 bytes")
	}
	if len(cfg.RefreshSecret) < minSecretLength {
		return nil, errors.New("refresh secret must be at least 32 bytes")
	}
	if bytes.Equal(cfg.AccessSecret, cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	return &Engine{config: cfg}, nil
}

// IssueAccess signs a new access-class token for the given identity.
func (e *Engine) IssueAccess(userID, email, workspaceID string) (IssuedToken, error) {
	return e.issue(ClassAccess, userID, email, workspaceID)
}

// IssueRefresh signs a new refresh-class token for the given identity.
func (e *Engine) IssueRefresh(userID, email, workspaceID string) (IssuedToken, error) {
	return e.issue(ClassRefresh, userID, email, workspaceID)
}

func (e *Engine) issue(class Class, userID, email, workspaceID string) (IssuedToken, error) {
	now := time.Now()
	exp := now.Add(e.ttl(class))
	jti := uuid.NewString()

	claims := Claims{
		Email:       email,
		WorkspaceID: workspaceID,
		TokenClass:  class,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			Issuer:    e.config.Issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(e.secret(class))
	if err != nil {
		return IssuedToken{}, err
	}

	return IssuedToken{Value: signed, JTI: jti, IssuedAt: now, ExpiresAt: exp}, nil
}

// Verify decodes tokenStr against the secret for expected and returns its
// claims. Failures map to the closed error set: [ErrExpired],
// [ErrBadSignature], [ErrWrongClass], [ErrMalformed]. The class check runs
// after signature verification and is never skipped.
func (e *Engine) Verify(tokenStr string, expected Class) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if e.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(e.config.Leeway))
	}
	if e.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(e.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return e.secret(expected), nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrBadSignature
		default:
			return nil, ErrMalformed
		}
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}
	if claims.Subject == "" || claims.ID == "" || claims.ExpiresAt == nil {
		return nil, ErrMalformed
	}
	if claims.TokenClass != expected {
		return nil, ErrWrongClass
	}

	return claims, nil
}

// TTL returns the configured lifetime for a class.
func (e *Engine) TTL(class Class) time.Duration {
	return e.ttl(class)
}

func (e *Engine) ttl(class Class) time.Duration {
	if class == ClassRefresh {
		return e.config.RefreshTTL
	}
	return e.config.AccessTTL
}

func (e *Engine) secret(class Class) []byte {
	if class == ClassRefresh {
		return e.config.RefreshSecret
	}
	return e.config.AccessSecret
}
