// Package realtime authenticates persistent socket connections.
//
// The handshake authenticator extracts a bearer token from the connection
// request (query parameter first, Authorization header fallback), verifies
// it through the auth engine, and refuses unauthenticated handshakes with a
// policy-violation close code instead of accepting and erroring later.
package realtime

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coder/websocket"

	authcore "github.com/docuflow/authcore"
	"github.com/docuflow/authcore/token"
)

// Verifier is the slice of the auth engine the authenticator needs.
// *authcore.Engine satisfies it.
type Verifier interface {
	Verify(ctx context.Context, tokenStr string, expected token.Class) (*authcore.Identity, error)
}

// Authenticator upgrades HTTP requests to websocket connections after
// verifying the presented access token.
type Authenticator struct {
	verifier Verifier
	log      *slog.Logger

	// AcceptOptions are passed through to websocket.Accept (origin
	// patterns, subprotocols, compression).
	AcceptOptions *websocket.AcceptOptions
}

// NewAuthenticator creates a handshake [Authenticator].
func NewAuthenticator(verifier Verifier, log *slog.Logger) *Authenticator {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Authenticator{verifier: verifier, log: log}
}

// Upgrade accepts the websocket handshake and verifies the access token.
// On verification failure the connection is closed immediately with
// StatusPolicyViolation and a nil conn is returned; the failure detail is
// logged, never sent to the peer.
func (a *Authenticator) Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, *authcore.Identity, error) {
	tok := TokenFromRequest(r)

	conn, err := websocket.Accept(w, r, a.AcceptOptions)
	if err != nil {
		return nil, nil, err
	}

	if tok == "" {
		a.log.Debug("socket handshake without token", "remote", r.RemoteAddr)
		conn.Close(websocket.StatusPolicyViolation, "authentication required")
		return nil, nil, authcore.ErrUnauthorized
	}

	id, err := a.verifier.Verify(r.Context(), tok, token.ClassAccess)
	if err != nil {
		a.log.Debug("socket handshake rejected", "remote", r.RemoteAddr)
		conn.Close(websocket.StatusPolicyViolation, "authentication failed")
		return nil, nil, authcore.ErrUnauthorized
	}

	return conn, id, nil
}

// TokenFromRequest extracts the bearer token for a socket handshake: the
// "token" query parameter takes priority, then the Authorization header.
func TokenFromRequest(r *http.Request) string {
	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok
	}

	const bearer = "Bearer "
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, bearer) {
		return header[len(bearer):]
	}
	return ""
}
