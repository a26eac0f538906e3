//go:build integration
// +build integration

package test

import (
	"sync"
	"testing"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/internal/userstore"
	"github.com/MrEthical07/goToken/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const signingKey = "integration-signing-key-0123456789abcdef"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type redisFixture struct {
	engine *goToken.Engine
	users  *userstore.Memory
	mr     *miniredis.Miniredis
	clock  *clock
	alice  goToken.UserRecord
}

// newRedisFixture builds an engine on the Redis session store with one
// seeded user, alice@example.com / correct-password.
func newRedisFixture(t *testing.T, mutate func(*goToken.Config)) *redisFixture {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	cfg := goToken.DefaultConfig()
	cfg.JWT.SigningKey = []byte(signingKey)
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Security.EnableLoginThrottle = false
	cfg.Security.EnableRefreshThrottle = false
	if mutate != nil {
		mutate(&cfg)
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	require.NoError(t, err)
	hash, err := hasher.Hash("correct-password")
	require.NoError(t, err)

	users := userstore.NewMemory()
	alice := users.Put(goToken.UserRecord{
		Username:     "alice",
		Email:        "alice@example.com",
		FullName:     "Alice Example",
		Role:         "Admin",
		PasswordHash: hash,
		Active:       true,
	})

	clk := &clock{now: time.Now().Truncate(time.Second)}
	engine, err := goToken.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(users).
		WithPasswordHasher(hasher).
		WithClock(clk.Now).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	return &redisFixture{engine: engine, users: users, mr: mr, clock: clk, alice: alice}
}

func (f *redisFixture) sessionKey(userID string) string {
	return f.engine.Config().Session.RedisPrefix + ":rt:" + userID
}
