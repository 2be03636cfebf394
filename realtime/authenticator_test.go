package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	authcore "github.com/docuflow/authcore"
	"github.com/docuflow/authcore/token"
)

type stubVerifier struct {
	accept string
}

func (v *stubVerifier) Verify(_ context.Context, tokenStr string, expected token.Class) (*authcore.Identity, error) {
	if expected != token.ClassAccess {
		return nil, authcore.ErrUnauthorized
	}
	if tokenStr != v.accept {
		return nil, authcore.ErrUnauthorized
	}
	return &authcore.Identity{UserID: "u-1", Email: "socket@example.com"}, nil
}

func TestTokenFromRequestPriority(t *testing.T) {
	cases := []struct {
		name   string
		query  string
		header string
		want   string
	}{
		{"query only", "?token=abc", "", "abc"},
		{"header only", "", "Bearer xyz", "xyz"},
		{"query wins over header", "?token=abc", "Bearer xyz", "abc"},
		{"wrong header scheme", "", "Basic xyz", ""},
		{"neither", "", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if got := TokenFromRequest(req); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func dialTest(t *testing.T, auth *Authenticator, path string) (*websocket.Conn, *http.Response, error) {
	t.Helper()

	var identity *authcore.Identity
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, id, err := auth.Upgrade(w, r)
		if err != nil {
			return
		}
		identity = id
		defer conn.Close(websocket.StatusNormalClosure, "")

		// Echo one message back so the client can confirm the session.
		typ, data, err := conn.Read(r.Context())
		if err != nil {
			return
		}
		_ = conn.Write(r.Context(), typ, data)
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	url := strings.Replace(srv.URL, "http://", "ws://", 1) + path
	conn, resp, err := websocket.Dial(ctx, url, nil)
	_ = identity
	return conn, resp, err
}

func TestUpgradeAcceptsValidToken(t *testing.T) {
	auth := NewAuthenticator(&stubVerifier{accept: "good-token"}, nil)

	conn, _, err := dialTest(t, auth, "/ws?token=good-token")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.Write(ctx, websocket.MessageText, []byte("ping")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "ping" {
		t.Fatalf("echo mismatch: %q", data)
	}
}

func TestUpgradeClosesOnBadToken(t *testing.T) {
	auth := NewAuthenticator(&stubVerifier{accept: "good-token"}, nil)

	for _, path := range []string{"/ws?token=wrong", "/ws"} {
		conn, _, err := dialTest(t, auth, path)
		if err != nil {
			// Handshake may already be torn down by the close frame.
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, _, err = conn.Read(ctx)
		cancel()
		if err == nil {
			t.Fatalf("%s: expected the server to close the connection", path)
		}

		var closeErr websocket.CloseError
		if errors.As(err, &closeErr) && closeErr.Code != websocket.StatusPolicyViolation {
			t.Fatalf("%s: close code %v, want policy violation", path, closeErr.Code)
		}
		conn.Close(websocket.StatusNormalClosure, "")
	}
}
