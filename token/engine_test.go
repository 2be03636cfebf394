package token

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	testAccessSecret  = []byte("test-access-secret-0123456789abcdef")
	testRefreshSecret = []byte("test-refresh-secret-0123456789abcde")
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(Config{
		AccessSecret:  testAccessSecret,
		RefreshSecret: testRefreshSecret,
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "authcore-test",
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	e := newTestEngine(t)

	issued, err := e.IssueAccess("u-1", "alice@example.com", "ws-1")
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	if issued.JTI == "" {
		t.Fatal("expected non-empty jti")
	}

	claims, err := e.Verify(issued.Value, ClassAccess)
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	if claims.Subject != "u-1" || claims.Email != "alice@example.com" || claims.WorkspaceID != "ws-1" {
		t.Fatalf("claims mismatch: %+v", claims)
	}
	if claims.ID != issued.JTI {
		t.Fatalf("jti mismatch: got %q want %q", claims.ID, issued.JTI)
	}
}

func TestCrossClassRejection(t *testing.T) {
	e := newTestEngine(t)

	access, err := e.IssueAccess("u-1", "alice@example.com", "")
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	refresh, err := e.IssueRefresh("u-1", "alice@example.com", "")
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}

	// Different signing secrets per class, so the cross-class attempt fails
	// at the signature stage.
	if _, err := e.Verify(access.Value, ClassRefresh); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("access-as-refresh: got %v, want ErrBadSignature", err)
	}
	if _, err := e.Verify(refresh.Value, ClassAccess); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("refresh-as-access: got %v, want ErrBadSignature", err)
	}
}

func TestClassClaimCheckedAfterSignature(t *testing.T) {
	e := newTestEngine(t)

	// A token signed with the access secret but carrying a refresh class
	// claim passes signature verification in the access context; the class
	// check must still reject it.
	forged := signTestToken(t, testAccessSecret, Claims{
		TokenClass: ClassRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u-1",
			ID:        "jti-forged",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			Issuer:    "authcore-test",
		},
	})

	if _, err := e.Verify(forged, ClassAccess); !errors.Is(err, ErrWrongClass) {
		t.Fatalf("got %v, want ErrWrongClass", err)
	}
}

func TestExpiredToken(t *testing.T) {
	e := newTestEngine(t)

	expired := signTestToken(t, testAccessSecret, Claims{
		TokenClass: ClassAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u-1",
			ID:        "jti-expired",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			Issuer:    "authcore-test",
		},
	})

	if _, err := e.Verify(expired, ClassAccess); !errors.Is(err, ErrExpired) {
		t.Fatalf("got %v, want ErrExpired", err)
	}
}

func TestMalformedToken(t *testing.T) {
	e := newTestEngine(t)

	for _, tok := range []string{"", "garbage", "a.b.c", "eyJhbGciOiJIUzI1NiJ9..sig"} {
		if _, err := e.Verify(tok, ClassAccess); !errors.Is(err, ErrMalformed) {
			t.Fatalf("token %q: got %v, want ErrMalformed", tok, err)
		}
	}
}

func TestMissingIdentityClaims(t *testing.T) {
	e := newTestEngine(t)

	// Signed and unexpired, but no subject or jti.
	anonymous := signTestToken(t, testAccessSecret, Claims{
		TokenClass: ClassAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			Issuer:    "authcore-test",
		},
	})

	if _, err := e.Verify(anonymous, ClassAccess); !errors.Is(err, ErrMalformed) {
		t.Fatalf("got %v, want ErrMalformed", err)
	}
}

func TestMissingExpiryClaim(t *testing.T) {
	e := newTestEngine(t)

	// Signed and carrying identity, but no exp: without one the token
	// would never expire.
	eternal := signTestToken(t, testAccessSecret, Claims{
		TokenClass: ClassAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  "u-1",
			ID:       "jti-1",
			IssuedAt: jwt.NewNumericDate(time.Now()),
			Issuer:   "authcore-test",
		},
	})

	if _, err := e.Verify(eternal, ClassAccess); !errors.Is(err, ErrMalformed) {
		t.Fatalf("got %v, want ErrMalformed", err)
	}
}

func TestNewEngineRejectsWeakConfig(t *testing.T) {
	base := Config{
		AccessSecret:  testAccessSecret,
		RefreshSecret: testRefreshSecret,
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	}

	short := base
	short.AccessSecret = []byte("short")
	if _, err := NewEngine(short); err == nil {
		t.Fatal("expected error for short access secret")
	}

	same := base
	same.RefreshSecret = base.AccessSecret
	if _, err := NewEngine(same); err == nil {
		t.Fatal("expected error for identical class secrets")
	}

	zeroTTL := base
	zeroTTL.RefreshTTL = 0
	if _, err := NewEngine(zeroTTL); err == nil {
		t.Fatal("expected error for zero refresh TTL")
	}
}

func signTestToken(t *testing.T, secret []byte, claims Claims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign test token: %v", err)
	}
	return signed
}
