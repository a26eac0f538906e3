package goToken

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goToken/password"
	"github.com/MrEthical07/goToken/session"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.SigningKey = []byte(testSigningKey)
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Security.EnableLoginThrottle = false
	return cfg
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now().Truncate(time.Second)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testUserProvider struct {
	mu     sync.Mutex
	users  map[string]UserRecord
	nextID int
}

func newTestUserProvider() *testUserProvider {
	return &testUserProvider{users: make(map[string]UserRecord)}
}

func (p *testUserProvider) add(u UserRecord) UserRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	if u.UserID == "" {
		p.nextID++
		u.UserID = "u-" + strconv.Itoa(p.nextID)
	}
	p.users[u.UserID] = u
	return u
}

func (p *testUserProvider) GetUserByIdentifier(_ context.Context, identifier string) (UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range p.users {
		if strings.EqualFold(u.Email, identifier) || strings.EqualFold(u.Username, identifier) {
			return u, nil
		}
	}
	return UserRecord{}, ErrUserNotFound
}

func (p *testUserProvider) GetUserByID(_ context.Context, userID string) (UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.users[userID]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return u, nil
}

func (p *testUserProvider) EmailExists(_ context.Context, email string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range p.users {
		if strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (p *testUserProvider) CreateUser(ctx context.Context, in CreateUserInput) (UserRecord, error) {
	if exists, _ := p.EmailExists(ctx, in.Email); exists {
		return UserRecord{}, ErrConflict
	}
	return p.add(UserRecord{
		Username:     in.Username,
		Email:        in.Email,
		FullName:     in.FullName,
		EmployeeID:   in.EmployeeID,
		Role:         in.Role,
		RoleID:       in.RoleID,
		PasswordHash: in.PasswordHash,
		Active:       true,
	}), nil
}

func (p *testUserProvider) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = hash
	p.users[userID] = u
	return nil
}

func (p *testUserProvider) remove(userID string) {
	p.mu.Lock()
	delete(p.users, userID)
	p.mu.Unlock()
}

func hashForTest(t *testing.T, plain string) string {
	t.Helper()
	cfg := testConfig()
	h, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	hash, err := h.Hash(plain)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return hash
}

// seedAlice registers an active user with password "correct-password".
func seedAlice(t *testing.T, up *testUserProvider) UserRecord {
	t.Helper()
	return up.add(UserRecord{
		UserID:       "u-alice",
		Username:     "alice",
		Email:        "alice@example.com",
		FullName:     "Alice Example",
		EmployeeID:   "E-100",
		Role:         "Admin",
		RoleID:       "1",
		PasswordHash: hashForTest(t, "correct-password"),
		Active:       true,
	})
}

type engineFixture struct {
	engine *Engine
	users  *testUserProvider
	store  *session.MemoryStore
	clock  *testClock
}

func newEngineFixture(t *testing.T, cfg Config, opts ...func(*Builder)) *engineFixture {
	t.Helper()
	clock := newTestClock()
	up := newTestUserProvider()
	store := session.NewMemoryStore().WithClock(clock.Now)

	b := New().
		WithConfig(cfg).
		WithSessionStore(store).
		WithUserProvider(up).
		WithClock(clock.Now)
	for _, opt := range opts {
		opt(b)
	}
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	return &engineFixture{engine: engine, users: up, store: store, clock: clock}
}
