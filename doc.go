// Package authcore is the distributed authentication and session core: it
// issues, verifies, and revokes bearer tokens, tracks refresh-token-backed
// sessions across processes, and throttles abusive clients.
//
// All shared mutable state lives in a Redis-compatible store; the processes
// running this package hold no cross-request state of their own, so any
// number of API workers, background workers, and socket handlers can share
// one deployment.
//
// The entry point is [Engine], constructed through [New]:
//
//	engine, err := authcore.New().
//		WithConfig(cfg).
//		WithRedis(rdb).
//		WithUserProvider(provider).
//		Build()
//
// Transport adapters live in the middleware and realtime subpackages.
package authcore
