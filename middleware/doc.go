// Package middleware provides the HTTP transport adapters for authcore:
// a bearer-token guard that attaches the verified identity to the request
// context, and a per-class rate limiter that honors the retry-after
// contract.
//
// All authentication failures return a uniform 401 without revealing which
// check failed. Rate limit rejections return 429 with a Retry-After header
// and a machine-readable limit class.
package middleware
