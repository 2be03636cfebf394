// Package revocation tracks blacklisted token ids (jti) in Redis.
//
// Each entry lives under its own key with a TTL equal to the remaining
// lifetime of the token it revokes, so Redis reclaims entries the moment the
// token would have expired on its own. Lookup is a single EXISTS and runs on
// every token verification.
package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStoreUnavailable wraps Redis transport failures so callers can decide
// their fail-open/fail-closed posture.
var ErrStoreUnavailable = errors.New("revocation store unavailable")

// Store is a Redis-backed revocation registry.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a revocation [Store]. prefix namespaces the Redis keys.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "rvk"
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) key(jti string) string {
	return s.prefix + ":" + jti
}

// Blacklist records jti as revoked for ttl. Blacklisting an already
// blacklisted jti is a no-op success; the longer of the two TTLs wins so a
// repeat call can never shorten an existing entry. A non-positive ttl means
// the token is already expired and nothing is stored.
func (s *Store) Blacklist(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" || ttl <= 0 {
		return nil
	}

	existing, err := s.redis.PTTL(ctx, s.key(jti)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if existing >= ttl {
		return nil
	}

	if err := s.redis.Set(ctx, s.key(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// IsBlacklisted reports whether jti has been revoked. Single O(1) lookup.
func (s *Store) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}

	n, err := s.redis.Exists(ctx, s.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n > 0, nil
}
