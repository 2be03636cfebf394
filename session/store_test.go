package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// fakeRevoker records blacklist calls so tests can assert eviction side
// effects without the real revocation registry.
type fakeRevoker struct {
	mu      sync.Mutex
	entries map[string]time.Duration
}

func newFakeRevoker() *fakeRevoker {
	return &fakeRevoker{entries: map[string]time.Duration{}}
}

func (f *fakeRevoker) Blacklist(_ context.Context, jti string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[jti] = ttl
	return nil
}

func (f *fakeRevoker) has(jti string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.entries[jti]
	return ok
}

func newSessionStoreTest(t *testing.T, cap int) (*Store, *fakeRevoker, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	revoker := newFakeRevoker()
	store := NewStore(rdb, revoker, "as", cap)
	return store, revoker, mr, func() {
		rdb.Close()
		mr.Close()
	}
}

func testDevice(ip string) DeviceInfo {
	return DeviceInfo{
		UserAgent:  "Mozilla/5.0 test",
		IPAddress:  ip,
		DeviceType: "desktop",
		Browser:    "Firefox",
	}
}

func TestCreateAndList(t *testing.T) {
	store, _, _, done := newSessionStoreTest(t, 5)
	defer done()
	ctx := context.Background()

	if err := store.Create(ctx, "u-1", "jti-1", testDevice("10.0.0.1"), time.Hour); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, "u-1", "jti-2", testDevice("10.0.0.2"), time.Hour); err != nil {
		t.Fatalf("create: %v", err)
	}

	records, err := store.List(ctx, "u-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if !records[0].CreatedAt.After(time.Time{}) {
		t.Fatal("created_at not set")
	}
	if records[0].Device.IPAddress != "10.0.0.1" {
		t.Fatalf("unexpected order or device: %+v", records[0].Device)
	}
}

func TestCapEvictsOldestAndBlacklists(t *testing.T) {
	store, revoker, _, done := newSessionStoreTest(t, 3)
	defer done()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		jti := fmt.Sprintf("jti-%d", i)
		if err := store.Create(ctx, "u-1", jti, testDevice("10.0.0.1"), time.Hour); err != nil {
			t.Fatalf("create %s: %v", jti, err)
		}
		// CreatedAt ordering must be strict for deterministic eviction.
		time.Sleep(5 * time.Millisecond)
	}

	if err := store.Create(ctx, "u-1", "jti-4", testDevice("10.0.0.1"), time.Hour); err != nil {
		t.Fatalf("create over cap: %v", err)
	}

	records, err := store.List(ctx, "u-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records after eviction, got %d", len(records))
	}
	for _, rec := range records {
		if rec.RefreshJTI == "jti-1" {
			t.Fatal("oldest session should have been evicted")
		}
	}
	if !revoker.has("jti-1") {
		t.Fatal("evicted jti should be blacklisted")
	}
	if revoker.has("jti-2") || revoker.has("jti-3") {
		t.Fatal("exactly one session should have been evicted")
	}
}

func TestEvictionCallback(t *testing.T) {
	store, _, _, done := newSessionStoreTest(t, 1)
	defer done()
	ctx := context.Background()

	var evictedUser, evictedJTI string
	store.OnEvict = func(userID, jti string) {
		evictedUser, evictedJTI = userID, jti
	}

	if err := store.Create(ctx, "u-1", "jti-1", testDevice("10.0.0.1"), time.Hour); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, "u-1", "jti-2", testDevice("10.0.0.1"), time.Hour); err != nil {
		t.Fatalf("create: %v", err)
	}

	if evictedUser != "u-1" || evictedJTI != "jti-1" {
		t.Fatalf("eviction hook got (%q, %q)", evictedUser, evictedJTI)
	}
}

func TestInvalidateBlacklistsRemainingTTL(t *testing.T) {
	store, revoker, _, done := newSessionStoreTest(t, 5)
	defer done()
	ctx := context.Background()

	if err := store.Create(ctx, "u-1", "jti-1", testDevice("10.0.0.1"), time.Hour); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Invalidate(ctx, "u-1", "jti-1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	if !revoker.has("jti-1") {
		t.Fatal("invalidate should blacklist the refresh jti")
	}
	revoker.mu.Lock()
	ttl := revoker.entries["jti-1"]
	revoker.mu.Unlock()
	if ttl <= 0 || ttl > time.Hour {
		t.Fatalf("blacklist TTL should be the remaining record lifetime, got %v", ttl)
	}

	if _, err := store.Get(ctx, "jti-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get after invalidate: got %v, want ErrNotFound", err)
	}

	// Second invalidate is a no-op success.
	if err := store.Invalidate(ctx, "u-1", "jti-1"); err != nil {
		t.Fatalf("repeat invalidate: %v", err)
	}
}

func TestInvalidateAll(t *testing.T) {
	store, revoker, _, done := newSessionStoreTest(t, 5)
	defer done()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		jti := fmt.Sprintf("jti-%d", i)
		if err := store.Create(ctx, "u-1", jti, testDevice("10.0.0.1"), time.Hour); err != nil {
			t.Fatalf("create %s: %v", jti, err)
		}
	}

	if err := store.InvalidateAll(ctx, "u-1"); err != nil {
		t.Fatalf("invalidate all: %v", err)
	}

	records, err := store.List(ctx, "u-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
	for i := 1; i <= 3; i++ {
		if !revoker.has(fmt.Sprintf("jti-%d", i)) {
			t.Fatalf("jti-%d should be blacklisted", i)
		}
	}
}

func TestTouchUpdatesLastActivityKeepsTTL(t *testing.T) {
	store, _, mr, done := newSessionStoreTest(t, 5)
	defer done()
	ctx := context.Background()

	if err := store.Create(ctx, "u-1", "jti-1", testDevice("10.0.0.1"), time.Hour); err != nil {
		t.Fatalf("create: %v", err)
	}

	before, err := store.Get(ctx, "jti-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	mr.FastForward(10 * time.Minute)
	time.Sleep(5 * time.Millisecond)

	if err := store.Touch(ctx, "jti-1"); err != nil {
		t.Fatalf("touch: %v", err)
	}

	after, err := store.Get(ctx, "jti-1")
	if err != nil {
		t.Fatalf("get after touch: %v", err)
	}
	if !after.LastActivity.After(before.LastActivity) {
		t.Fatal("touch should advance last_activity")
	}
	if after.CreatedAt.Unix() != before.CreatedAt.Unix() {
		t.Fatal("touch must not change created_at")
	}

	ttl := mr.TTL("as:rec:jti-1")
	if ttl <= 0 || ttl > time.Hour {
		t.Fatalf("touch must preserve the record TTL, got %v", ttl)
	}

	if err := store.Touch(ctx, "jti-missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("touch missing: got %v, want ErrNotFound", err)
	}
}

func TestExpiredRecordsPrunedFromIndex(t *testing.T) {
	store, _, mr, done := newSessionStoreTest(t, 5)
	defer done()
	ctx := context.Background()

	if err := store.Create(ctx, "u-1", "jti-1", testDevice("10.0.0.1"), time.Minute); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, "u-1", "jti-2", testDevice("10.0.0.1"), time.Hour); err != nil {
		t.Fatalf("create: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	records, err := store.List(ctx, "u-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].RefreshJTI != "jti-2" {
		t.Fatalf("expected only jti-2 to survive, got %d records", len(records))
	}
}
