// Package token issues and verifies the signed bearer credentials used by
// the authentication core.
//
// Two token classes exist: access (short-lived, authorizes individual API
// calls) and refresh (long-lived, only obtains new access tokens). Each class
// is signed with its own HS256 secret, so compromise of one secret cannot
// forge tokens of the other class.
//
// The engine is stateless. Revocation is layered on top by the caller: every
// verified token carries a jti that the orchestrator checks against the
// revocation registry.
package token
