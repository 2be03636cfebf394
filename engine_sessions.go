package authcore

import (
	"context"

	"github.com/docuflow/authcore/session"
)

// Sessions lists the user's active session records ordered oldest-first,
// for self-service session management UI.
func (e *Engine) Sessions(ctx context.Context, userID string) ([]*session.Record, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	return e.sessions.List(sctx, userID)
}
