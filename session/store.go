package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrStoreUnavailable wraps Redis transport failures.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrNotFound is returned when no record exists for the given jti.
	ErrNotFound = errors.New("session not found")
)

const defaultMaxPerUser = 5

// Revoker blacklists a refresh jti when its session is invalidated. The
// revocation registry satisfies this; the indirection keeps this package
// free of a direct dependency on it.
type Revoker interface {
	Blacklist(ctx context.Context, jti string, ttl time.Duration) error
}

// Store is the Redis-backed session registry.
type Store struct {
	redis      redis.UniversalClient
	revoker    Revoker
	prefix     string
	maxPerUser int

	// OnEvict, when set, is called after a cap eviction with the affected
	// user and the evicted refresh jti. Used for audit and metrics hooks.
	OnEvict func(userID, jti string)
}

// NewStore creates a session [Store]. maxPerUser caps concurrent sessions
// per user; values below 1 fall back to the default of 5.
func NewStore(client redis.UniversalClient, revoker Revoker, prefix string, maxPerUser int) *Store {
	if prefix == "" {
		prefix = "as"
	}
	if maxPerUser < 1 {
		maxPerUser = defaultMaxPerUser
	}
	return &Store{
		redis:      client,
		revoker:    revoker,
		prefix:     prefix,
		maxPerUser: maxPerUser,
	}
}

func (s *Store) recordKey(jti string) string {
	return s.prefix + ":rec:" + jti
}

func (s *Store) userKey(userID string) string {
	return s.prefix + ":usr:" + userID
}

// Create writes a new session record for the given refresh jti with
// TTL = refresh token lifetime. If the user is at the session cap, the
// oldest record by CreatedAt is invalidated (and its jti blacklisted for
// its remaining lifetime) before the new record is written.
func (s *Store) Create(ctx context.Context, userID, jti string, dev DeviceInfo, ttl time.Duration) error {
	live, err := s.liveRecords(ctx, userID)
	if err != nil {
		return err
	}

	for len(live) >= s.maxPerUser {
		oldest := live[0]
		if err := s.Invalidate(ctx, userID, oldest.RefreshJTI); err != nil {
			return err
		}
		if s.OnEvict != nil {
			s.OnEvict(userID, oldest.RefreshJTI)
		}
		live = live[1:]
	}

	now := time.Now()
	dev.UserAgent = truncateUserAgent(dev.UserAgent)
	rec := &Record{
		UserID:       userID,
		RefreshJTI:   jti,
		CreatedAt:    now,
		LastActivity: now,
		Device:       dev,
	}
	data, err := Encode(rec)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.recordKey(jti), data, ttl)
		pipe.SAdd(ctx, s.userKey(userID), jti)
		pipe.Expire(ctx, s.userKey(userID), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Touch updates the record's LastActivity, preserving its TTL.
func (s *Store) Touch(ctx context.Context, jti string) error {
	key := s.recordKey(jti)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	rec, err := Decode(data)
	if err != nil {
		return err
	}
	rec.LastActivity = time.Now()

	updated, err := Encode(rec)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, key, updated, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Invalidate removes a session record and blacklists its refresh jti for
// the record's remaining lifetime. Invalidating an absent record is a
// no-op success.
func (s *Store) Invalidate(ctx context.Context, userID, jti string) error {
	key := s.recordKey(jti)

	remaining, err := s.redis.PTTL(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if remaining > 0 && s.revoker != nil {
		if err := s.revoker.Blacklist(ctx, jti, remaining); err != nil {
			return err
		}
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.SRem(ctx, s.userKey(userID), jti)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// InvalidateAll removes every session record for the user, blacklisting
// each refresh jti. Used for logout-everywhere and account lockout.
func (s *Store) InvalidateAll(ctx context.Context, userID string) error {
	ids, err := s.memberIDs(ctx, userID)
	if err != nil {
		return err
	}

	for _, jti := range ids {
		if err := s.Invalidate(ctx, userID, jti); err != nil {
			return err
		}
	}

	if err := s.redis.Del(ctx, s.userKey(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// List returns the user's active session records ordered oldest-first by
// CreatedAt. Stale index entries discovered along the way are pruned.
func (s *Store) List(ctx context.Context, userID string) ([]*Record, error) {
	return s.liveRecords(ctx, userID)
}

// Get fetches a single record by refresh jti.
func (s *Store) Get(ctx context.Context, jti string) (*Record, error) {
	data, err := s.redis.Get(ctx, s.recordKey(jti)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return Decode(data)
}

func (s *Store) memberIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return ids, nil
}

// liveRecords resolves the user's index set to decoded records, pruning
// ids whose record key has already expired.
func (s *Store) liveRecords(ctx context.Context, userID string) ([]*Record, error) {
	ids, err := s.memberIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*Record{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, jti := range ids {
		cmds[i] = pipe.Get(ctx, s.recordKey(jti))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	records := make([]*Record, 0, len(ids))
	var stale []interface{}
	for i, cmd := range cmds {
		data, cmdErr := cmd.Bytes()
		if cmdErr != nil {
			if errors.Is(cmdErr, redis.Nil) {
				stale = append(stale, ids[i])
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, cmdErr)
		}

		rec, decErr := Decode(data)
		if decErr != nil {
			stale = append(stale, ids[i])
			continue
		}
		records = append(records, rec)
	}

	if len(stale) > 0 {
		if err := s.redis.SRem(ctx, s.userKey(userID), stale...).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}
