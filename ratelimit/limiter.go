// Package ratelimit provides fixed-window request limiting backed by Redis.
//
// # Window semantics
//
// INCR + conditional EXPIRE on the first hit of the window. The counter key
// is <prefix>:<class>:<clientKey>; when the window TTL lapses Redis drops
// the key and the next hit starts a fresh window.
//
// Thresholds and window durations are properties of the [Class] alone;
// callers pick a class per endpoint category and never supply their own
// numbers at check time.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrStoreUnavailable wraps Redis transport failures. Callers are
	// expected to fail open on it rather than reject traffic.
	ErrStoreUnavailable = errors.New("rate limit store unavailable")
)

// Class names one limit category with its threshold and window.
type Class struct {
	Name   string
	Limit  int
	Window time.Duration
}

// ParseClass parses a "count/window" spec such as "5/15m" or "100/1m".
func ParseClass(name, spec string) (Class, error) {
	parts := strings.SplitN(spec, "/", 2)
	if len(parts) != 2 {
		return Class{}, fmt.Errorf("rate limit class %q: spec %q must be count/window", name, spec)
	}
	limit, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || limit <= 0 {
		return Class{}, fmt.Errorf("rate limit class %q: invalid count in %q", name, spec)
	}
	window, err := time.ParseDuration(strings.TrimSpace(parts[1]))
	if err != nil || window <= 0 {
		return Class{}, fmt.Errorf("rate limit class %q: invalid window in %q", name, spec)
	}
	return Class{Name: name, Limit: limit, Window: window}, nil
}

// Result is the outcome of one [Limiter.Check] call.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter enforces fixed-window limits using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
}

// New creates a [Limiter]. prefix namespaces the counter keys.
func New(client redis.UniversalClient, prefix string) *Limiter {
	if prefix == "" {
		prefix = "rl"
	}
	return &Limiter{redis: client, prefix: prefix}
}

func (l *Limiter) key(class Class, clientKey string) string {
	return l.prefix + ":" + class.Name + ":" + clientKey
}

// Check counts one attempt against the class window for clientKey and
// reports whether it is allowed, how many attempts remain, and, when
// rejected, how long until the window resets.
func (l *Limiter) Check(ctx context.Context, class Class, clientKey string) (Result, error) {
	key := l.key(class, clientKey)

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, class.Window).Err(); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	if count > int64(class.Limit) {
		reset, err := l.redis.TTL(ctx, key).Result()
		if err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if reset < 0 {
			// The EXPIRE from the first hit was lost (e.g. store
			// failover); re-arm the window instead of leaving the
			// key immortal.
			if err := l.redis.Expire(ctx, key, class.Window).Err(); err != nil {
				return Result{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			}
			reset = class.Window
		}
		return Result{Allowed: false, Remaining: 0, RetryAfter: reset}, nil
	}

	return Result{Allowed: true, Remaining: class.Limit - int(count)}, nil
}

// Reset clears the counter for clientKey in the given class.
func (l *Limiter) Reset(ctx context.Context, class Class, clientKey string) error {
	if err := l.redis.Del(ctx, l.key(class, clientKey)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// ClientIP derives the client identity key for a request: the first
// X-Forwarded-For entry, then X-Real-IP, then the connection address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
		if first != "" {
			return first
		}
	}
	if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
