package goToken

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goToken/password"
	"github.com/MrEthical07/goToken/revocation"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	engine *Engine
	store  *revocation.MemoryStore
	clock  *fakeClock
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.JWT.Lifetime = 15 * time.Minute
	cfg.Purge.Interval = 0
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

func newTestEngine(t testing.TB, cfg Config, opts ...func(*Builder)) *testEnv {
	t.Helper()

	env := &testEnv{
		store: revocation.NewMemoryStore(),
		clock: newFakeClock(),
	}
	b := New().
		WithConfig(cfg).
		WithRevocationStore(env.store).
		WithClock(env.clock.Now)
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	env.engine = engine
	return env
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func newTestHasher(t *testing.T) *password.Argon2 {
	t.Helper()

	h, err := testConfig().Password.NewHasher()
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	return h
}

type mockUserProvider struct {
	mu      sync.Mutex
	users   map[string]UserRecord
	failErr error
	calls   int
}

func newMockUserProvider(t *testing.T, users map[string][]string, pass string) *mockUserProvider {
	t.Helper()

	hash, err := newTestHasher(t).Hash(pass)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	up := &mockUserProvider{users: make(map[string]UserRecord, len(users))}
	for name, roles := range users {
		up.users[name] = UserRecord{Identifier: name, PasswordHash: hash, Roles: roles}
	}
	return up
}

func (m *mockUserProvider) GetUserByIdentifier(_ context.Context, identifier string) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.failErr != nil {
		return UserRecord{}, m.failErr
	}
	u, ok := m.users[identifier]
	if !ok {
		return UserRecord{}, fmt.Errorf("%w: %s", ErrUserNotFound, identifier)
	}
	return u, nil
}

func (m *mockUserProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// failingStore wraps a MemoryStore and fails every call once armed.
type failingStore struct {
	*revocation.MemoryStore
	mu   sync.Mutex
	fail bool
}

func (f *failingStore) arm() {
	f.mu.Lock()
	f.fail = true
	f.mu.Unlock()
}

func (f *failingStore) err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return fmt.Errorf("%w: connection refused", revocation.ErrUnavailable)
	}
	return nil
}

func (f *failingStore) Revoke(ctx context.Context, rec revocation.Record) error {
	if err := f.err(); err != nil {
		return err
	}
	return f.MemoryStore.Revoke(ctx, rec)
}

func (f *failingStore) RevokeIfAbsent(ctx context.Context, rec revocation.Record) (bool, error) {
	if err := f.err(); err != nil {
		return false, err
	}
	return f.MemoryStore.RevokeIfAbsent(ctx, rec)
}

func (f *failingStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if err := f.err(); err != nil {
		return false, err
	}
	return f.MemoryStore.IsRevoked(ctx, tokenID)
}

func (f *failingStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	if err := f.err(); err != nil {
		return 0, err
	}
	return f.MemoryStore.PurgeExpired(ctx, now)
}
