package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	authcore "github.com/docuflow/authcore"
	"github.com/docuflow/authcore/session"
)

type stubUsers struct {
	mu    sync.Mutex
	users map[string]authcore.UserRecord
}

func (s *stubUsers) GetUserByEmail(_ context.Context, email string) (authcore.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[email]
	if !ok {
		return authcore.UserRecord{}, authcore.ErrUserNotFound
	}
	return user, nil
}

func (s *stubUsers) CreateUser(_ context.Context, input authcore.CreateUserInput) (authcore.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[input.Email]; ok {
		return authcore.UserRecord{}, authcore.ErrAccountExists
	}
	user := authcore.UserRecord{
		UserID:       "u-" + input.Email,
		Email:        input.Email,
		WorkspaceID:  input.WorkspaceID,
		PasswordHash: input.PasswordHash,
	}
	s.users[input.Email] = user
	return user, nil
}

func newGuardedEngine(t *testing.T) (*authcore.Engine, string) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := authcore.DefaultConfig()
	cfg.Token.AccessSecret = []byte("middleware-test-access-secret-012345")
	cfg.Token.RefreshSecret = []byte("middleware-test-refresh-secret-01234")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(&stubUsers{users: map[string]authcore.UserRecord{}}).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(func() { engine.Close() })

	ctx := context.Background()
	if _, err := engine.Register(ctx, "guard@example.com", "StrongPass123!", "ws-1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	login, err := engine.Login(ctx, "guard@example.com", "StrongPass123!", session.DeviceInfo{IPAddress: "198.51.100.7"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return engine, login.AccessToken
}

func TestGuardAttachesIdentity(t *testing.T) {
	engine, access := newGuardedEngine(t)

	var seen *authcore.Identity
	handler := Guard(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Fatal("identity missing from context")
		}
		seen = id
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	if seen == nil || seen.Email != "guard@example.com" || seen.WorkspaceID != "ws-1" {
		t.Fatalf("unexpected identity: %+v", seen)
	}
}

func TestGuardRejectsBadRequests(t *testing.T) {
	engine, access := newGuardedEngine(t)

	handler := Guard(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	cases := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"wrong scheme", "Basic " + access},
		{"empty token", "Bearer "},
		{"garbage token", "Bearer not-a-token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status %d, want 401", rec.Code)
			}
		})
	}
}

func TestGuardRejectsRefreshToken(t *testing.T) {
	engine, _ := newGuardedEngine(t)

	login, err := engine.Login(context.Background(), "guard@example.com", "StrongPass123!", session.DeviceInfo{IPAddress: "198.51.100.7"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	handler := Guard(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.RefreshToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh token at a guarded endpoint: status %d, want 401", rec.Code)
	}
}

func TestGuardRejectsRevokedToken(t *testing.T) {
	engine, _ := newGuardedEngine(t)
	ctx := context.Background()

	login, err := engine.Login(ctx, "guard@example.com", "StrongPass123!", session.DeviceInfo{IPAddress: "198.51.100.7"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := engine.Logout(ctx, login.AccessToken, login.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}

	handler := Guard(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("revoked token: status %d, want 401", rec.Code)
	}
}
